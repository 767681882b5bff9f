// Package sec adapts the SEC EDGAR data API (company search, filings,
// XBRL facts) to the tool dispatch pipeline. EDGAR requires no API key but
// rejects requests without a descriptive User-Agent.
package sec

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/usdatahub/usdata-mcp/pkg/catalog"
	"github.com/usdatahub/usdata-mcp/pkg/credentials"
	"github.com/usdatahub/usdata-mcp/pkg/envelope"
	"github.com/usdatahub/usdata-mcp/pkg/httpclient"
	"github.com/usdatahub/usdata-mcp/pkg/schema"
)

// Source is the adapter's source id.
const Source = "sec"

// CommonFormTypes maps SEC form types to descriptions.
var CommonFormTypes = map[string]string{
	// Annual & Quarterly Reports
	"10-K":   "Annual Report",
	"10-Q":   "Quarterly Report",
	"8-K":    "Current Report (major events)",
	"10-K/A": "Annual Report Amendment",
	"10-Q/A": "Quarterly Report Amendment",

	// Registration & Offerings
	"S-1":  "Registration Statement",
	"S-3":  "Registration Statement (simplified)",
	"S-4":  "Registration Statement (business combinations)",
	"S-8":  "Registration Statement (employee benefit plans)",
	"424B": "Prospectus",

	// Proxy Materials
	"DEF 14A": "Definitive Proxy Statement",
	"PRE 14A": "Preliminary Proxy Statement",
	"DEFA14A": "Additional Proxy Soliciting Materials",

	// Ownership Reports
	"3":      "Initial Statement of Beneficial Ownership",
	"4":      "Statement of Changes in Beneficial Ownership",
	"5":      "Annual Statement of Changes in Beneficial Ownership",
	"13F-HR": "Institutional Investment Manager Holdings Report",
	"13D":    "Schedule 13D - Beneficial Ownership Report",
	"13G":    "Schedule 13G - Beneficial Ownership Report (passive)",

	// Tender Offers
	"SC 13D": "Tender Offer Statement",
	"SC 13G": "Tender Offer Statement (passive)",
	"SC TO":  "Tender Offer Statement",

	// Foreign Companies
	"20-F": "Annual Report (foreign private issuers)",
	"6-K":  "Current Report (foreign private issuers)",

	// Investment Companies
	"N-CSR":   "Certified Shareholder Report (investment companies)",
	"N-Q":     "Quarterly Schedule of Investments",
	"485BPOS": "Post-Effective Amendment (investment companies)",
}

// SICCategories maps Standard Industrial Classification code ranges to
// their major industry groups.
var SICCategories = map[string]string{
	"0100-0999": "Agriculture, Forestry, and Fishing",
	"1000-1499": "Mining",
	"1500-1799": "Construction",
	"2000-3999": "Manufacturing",
	"4000-4999": "Transportation, Communications, Electric, Gas, and Sanitary Services",
	"5000-5199": "Wholesale Trade",
	"5200-5999": "Retail Trade",
	"6000-6799": "Finance, Insurance, and Real Estate",
	"7000-8999": "Services",
	"9100-9729": "Public Administration",
}

// SICCategory resolves a four-digit SIC code to its industry group.
func SICCategory(code string) string {
	n, err := strconv.Atoi(code)
	if err != nil {
		return ""
	}
	for rng, name := range SICCategories {
		bounds := strings.SplitN(rng, "-", 2)
		lo, _ := strconv.Atoi(bounds[0])
		hi, _ := strconv.Atoi(bounds[1])
		if n >= lo && n <= hi {
			return name
		}
	}
	return ""
}

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeCIK pads a Central Index Key to the 10-digit form EDGAR expects.
func NormalizeCIK(cik string) string {
	digits := nonDigits.ReplaceAllString(cik, "")
	for len(digits) < 10 {
		digits = "0" + digits
	}
	return digits
}

// CredentialSpecs declares that this source needs no credential.
func CredentialSpecs() []credentials.Spec {
	return nil
}

// Config is the adapter's static configuration.
type Config struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	MaxInFlight int
	Retry       httpclient.Policy
}

// DefaultConfig returns the production defaults. Deployments should set a
// contact address in the User-Agent per the EDGAR fair-access policy.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://data.sec.gov",
		UserAgent:   "usdata-mcp-sec/1.0 (contact: ops@usdatahub.dev)",
		Timeout:     30 * time.Second,
		MaxInFlight: 4,
		Retry:       httpclient.DefaultPolicy(),
	}
}

// Adapter owns one pooled transport against EDGAR.
type Adapter struct {
	cfg    Config
	engine *httpclient.Engine
	logger *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

// WithThrottle attaches shared rate-limit state.
func WithThrottle(t httpclient.Throttle) Option {
	return func(a *Adapter) { a.engine.Throttle = t }
}

// WithObserver attaches attempt-level metrics.
func WithObserver(o httpclient.Observer) Option {
	return func(a *Adapter) { a.engine.Observer = o }
}

// WithClient replaces the pooled transport (tests).
func WithClient(c *httpclient.Client) Option {
	return func(a *Adapter) { a.engine.Client = c }
}

// New creates the adapter with its own pooled transport.
func New(cfg Config, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:    cfg,
		logger: slog.Default(),
		engine: &httpclient.Engine{
			Source: Source,
			Client: httpclient.NewClient(
				httpclient.WithMaxInFlight(cfg.MaxInFlight),
				httpclient.WithUserAgent(cfg.UserAgent),
			),
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.engine.Logger = a.logger
	return a
}

// Tools returns the adapter's tool descriptors.
func (a *Adapter) Tools() []catalog.Descriptor {
	return []catalog.Descriptor{
		{
			Name:        "search_company",
			Description: "Search for SEC-registered companies by name, ticker symbol, or CIK number.",
			Source:      Source,
			Schema: schema.Schema{
				"query": {Type: schema.String(), Required: true, Description: "Company name, ticker symbol, or CIK"},
			},
			Op: a.searchCompany,
		},
		{
			Name:        "get_company_filings",
			Description: "Get recent SEC filings for a company by CIK, optionally filtered by form type (10-K, 10-Q, 8-K, etc.).",
			Source:      Source,
			Schema: schema.Schema{
				"cik":       {Type: schema.String(), Required: true, Description: "Central Index Key (CIK)"},
				"form_type": {Type: schema.String(), Description: "Filing type filter (10-K, 10-Q, 8-K, etc.)"},
				"count":     {Type: schema.IntRange(1, 100), Description: "Number of filings to retrieve (default 10)"},
			},
			Op: a.companyFilings,
		},
		{
			Name:        "get_insider_trades",
			Description: "Get recent insider trading reports (Form 4 filings) for a company by CIK.",
			Source:      Source,
			Schema: schema.Schema{
				"cik":   {Type: schema.String(), Required: true, Description: "Central Index Key (CIK)"},
				"limit": {Type: schema.IntRange(1, 100), Description: "Number of reports to retrieve (default 20)"},
			},
			Op: a.insiderTrades,
		},
		{
			Name:        "get_company_facts",
			Description: "Get structured XBRL financial facts for a company by CIK.",
			Source:      Source,
			Schema: schema.Schema{
				"cik": {Type: schema.String(), Required: true, Description: "Central Index Key (CIK)"},
			},
			Op: a.companyFacts,
		},
		{
			Name:        "get_form_types",
			Description: "Get a reference list of common SEC form types and their descriptions. Helps identify which form types to use when searching filings.",
			Source:      Source,
			Schema:      schema.Schema{},
			Op:          a.formTypes,
		},
	}
}

func (a *Adapter) searchCompany(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	md := metadata("search_company")

	query, _ := rawArgs["query"].(string)
	md["query"] = query

	spec := httpclient.NewRequest(http.MethodGet, a.cfg.BaseURL, "/files/company_tickers.json").
		Timeout(a.cfg.Timeout).
		Build(credentials.Credential{}, httpclient.AuthScheme{Mode: httpclient.AuthNone})

	raw, cerr := a.engine.Execute(ctx, spec, a.cfg.Retry)
	return envelope.Normalize(raw, cerr, shapeCompanySearch(query), md)
}

type tickerEntry struct {
	CIK      any    `json:"cik_str"`
	Ticker   string `json:"ticker"`
	Title    string `json:"title"`
	Exchange string `json:"exchange"`
}

// shapeCompanySearch scans the full ticker file for case-insensitive name
// matches, exact ticker matches, or CIK substring matches.
func shapeCompanySearch(query string) envelope.Shaper {
	return func(raw *httpclient.RawResult) ([]envelope.Record, map[string]any, error) {
		var companies map[string]tickerEntry
		if err := raw.Decode(&companies); err != nil {
			return nil, nil, err
		}

		queryLower := strings.ToLower(query)
		keys := make([]string, 0, len(companies))
		for k := range companies {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var matches []envelope.Record
		for _, k := range keys {
			company := companies[k]
			cik := fmt.Sprintf("%v", company.CIK)
			title := strings.ToLower(company.Title)
			ticker := strings.ToLower(company.Ticker)

			if strings.Contains(title, queryLower) || queryLower == ticker || strings.Contains(cik, query) {
				matches = append(matches, envelope.Record{
					"cik":      NormalizeCIK(cik),
					"name":     company.Title,
					"ticker":   strings.ToUpper(company.Ticker),
					"exchange": company.Exchange,
				})
			}
		}
		return matches, map[string]any{"count": len(matches)}, nil
	}
}

type filingsArgs struct {
	CIK      string `mapstructure:"cik"`
	FormType string `mapstructure:"form_type"`
	Count    int    `mapstructure:"count"`
}

type submissionsResponse struct {
	Name           string `json:"name"`
	SIC            string `json:"sic"`
	SICDescription string `json:"sicDescription"`
	Filings        struct {
		Recent struct {
			AccessionNumber       []string `json:"accessionNumber"`
			FilingDate            []string `json:"filingDate"`
			ReportDate            []string `json:"reportDate"`
			Form                  []string `json:"form"`
			PrimaryDocument       []string `json:"primaryDocument"`
			PrimaryDocDescription []string `json:"primaryDocDescription"`
		} `json:"recent"`
	} `json:"filings"`
}

func (a *Adapter) companyFilings(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	md := metadata("get_company_filings")

	var args filingsArgs
	if err := catalog.DecodeArgs(rawArgs, &args); err != nil {
		return envelope.ValidationFailure(err.Error(), md)
	}
	if args.Count <= 0 {
		args.Count = 10
	}
	cik := NormalizeCIK(args.CIK)
	md["cik"] = cik
	if args.FormType != "" {
		md["form_type"] = args.FormType
	}

	spec := httpclient.NewRequest(http.MethodGet, a.cfg.BaseURL, "/submissions/CIK"+cik+".json").
		Timeout(a.cfg.Timeout).
		Build(credentials.Credential{}, httpclient.AuthScheme{Mode: httpclient.AuthNone})

	raw, cerr := a.engine.Execute(ctx, spec, a.cfg.Retry)
	return envelope.Normalize(raw, cerr, shapeFilings(cik, args.FormType, args.Count), md)
}

// shapeFilings joins EDGAR's column-oriented recent-filings arrays into
// row records, filtered by form type and truncated to count.
func shapeFilings(cik, formType string, count int) envelope.Shaper {
	return func(raw *httpclient.RawResult) ([]envelope.Record, map[string]any, error) {
		var resp submissionsResponse
		if err := raw.Decode(&resp); err != nil {
			return nil, nil, err
		}
		recent := resp.Filings.Recent

		var filings []envelope.Record
		for i := range recent.AccessionNumber {
			if i >= len(recent.Form) {
				break
			}
			form := recent.Form[i]
			if formType != "" && form != formType {
				continue
			}
			filing := envelope.Record{
				"accession_number": recent.AccessionNumber[i],
				"form_type":        form,
				"form_description": formDescription(form),
				"filing_url":       filingURL(cik, recent.AccessionNumber[i]),
			}
			if i < len(recent.FilingDate) {
				filing["filing_date"] = recent.FilingDate[i]
			}
			if i < len(recent.ReportDate) {
				filing["report_date"] = recent.ReportDate[i]
			}
			if i < len(recent.PrimaryDocument) {
				filing["primary_document"] = recent.PrimaryDocument[i]
			}
			if i < len(recent.PrimaryDocDescription) {
				filing["primary_doc_description"] = recent.PrimaryDocDescription[i]
			}
			filings = append(filings, filing)
			if len(filings) >= count {
				break
			}
		}

		md := map[string]any{
			"company_name": resp.Name,
			"count":        len(filings),
		}
		if resp.SIC != "" {
			md["sic"] = resp.SIC
			md["sic_description"] = resp.SICDescription
			if industry := SICCategory(resp.SIC); industry != "" {
				md["industry_group"] = industry
			}
		}
		return filings, md, nil
	}
}

func formDescription(form string) string {
	if desc, ok := CommonFormTypes[form]; ok {
		return desc
	}
	return "Unknown form type"
}

// filingURL points at the filing's document index in the EDGAR archive.
func filingURL(cik, accession string) string {
	noDash := strings.ReplaceAll(accession, "-", "")
	return fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s-index.htm",
		strings.TrimLeft(cik, "0"), noDash, accession)
}

type insiderArgs struct {
	CIK   string `mapstructure:"cik"`
	Limit int    `mapstructure:"limit"`
}

// insiderTrades reads Form 4 filings out of the same submissions feed.
func (a *Adapter) insiderTrades(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	md := metadata("get_insider_trades")

	var args insiderArgs
	if err := catalog.DecodeArgs(rawArgs, &args); err != nil {
		return envelope.ValidationFailure(err.Error(), md)
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}
	cik := NormalizeCIK(args.CIK)
	md["cik"] = cik
	md["form_type"] = "4"

	spec := httpclient.NewRequest(http.MethodGet, a.cfg.BaseURL, "/submissions/CIK"+cik+".json").
		Timeout(a.cfg.Timeout).
		Build(credentials.Credential{}, httpclient.AuthScheme{Mode: httpclient.AuthNone})

	raw, cerr := a.engine.Execute(ctx, spec, a.cfg.Retry)
	return envelope.Normalize(raw, cerr, shapeFilings(cik, "4", args.Limit), md)
}

func (a *Adapter) companyFacts(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	md := metadata("get_company_facts")

	cikArg, _ := rawArgs["cik"].(string)
	cik := NormalizeCIK(cikArg)
	md["cik"] = cik

	spec := httpclient.NewRequest(http.MethodGet, a.cfg.BaseURL, "/api/xbrl/companyfacts/CIK"+cik+".json").
		Timeout(a.cfg.Timeout).
		Build(credentials.Credential{}, httpclient.AuthScheme{Mode: httpclient.AuthNone})

	raw, cerr := a.engine.Execute(ctx, spec, a.cfg.Retry)
	return envelope.Normalize(raw, cerr, shapeFacts, md)
}

// shapeFacts wraps the whole XBRL facts document as a single record.
func shapeFacts(raw *httpclient.RawResult) ([]envelope.Record, map[string]any, error) {
	var facts map[string]any
	if err := raw.Decode(&facts); err != nil {
		return nil, nil, err
	}
	return []envelope.Record{facts}, map[string]any{"description": "XBRL financial data"}, nil
}

func (a *Adapter) formTypes(_ context.Context, _ map[string]any) envelope.Envelope {
	forms := make([]string, 0, len(CommonFormTypes))
	for form := range CommonFormTypes {
		forms = append(forms, form)
	}
	sort.Strings(forms)

	records := make([]envelope.Record, 0, len(forms))
	for _, form := range forms {
		records = append(records, envelope.Record{
			"form_type":   form,
			"description": CommonFormTypes[form],
		})
	}
	md := metadata("get_form_types")
	md["count"] = len(records)
	return envelope.OK(records, md)
}

func metadata(tool string) map[string]any {
	return map[string]any{"source": Source, "tool": tool}
}
