// Package fda adapts the openFDA drug API (drug products, labeling,
// enforcement reports, adverse events) to the tool dispatch pipeline.
// openFDA requires no API key for basic usage.
package fda

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/usdatahub/usdata-mcp/pkg/catalog"
	"github.com/usdatahub/usdata-mcp/pkg/credentials"
	"github.com/usdatahub/usdata-mcp/pkg/envelope"
	"github.com/usdatahub/usdata-mcp/pkg/httpclient"
	"github.com/usdatahub/usdata-mcp/pkg/schema"
)

// Source is the adapter's source id.
const Source = "fda"

// pageSize is the openFDA per-request maximum; larger requests page with
// the skip parameter.
const pageSize = 100

// RecallClassifications maps recall classes to their FDA definitions.
var RecallClassifications = map[string]string{
	"I":   "Class I - Dangerous or defective products that predictably could cause serious health problems or death",
	"II":  "Class II - Products that might cause a temporary health problem, or pose a slight threat of a serious nature",
	"III": "Class III - Products unlikely to cause any adverse health reaction, but violate FDA labeling or manufacturing regulations",
}

// CredentialSpecs declares that this source needs no credential.
func CredentialSpecs() []credentials.Spec {
	return nil
}

// Config is the adapter's static configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxInFlight int
	Retry       httpclient.Policy
	MaxRecords  int
	MaxPages    int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.fda.gov",
		Timeout:     30 * time.Second,
		MaxInFlight: 4,
		Retry:       httpclient.DefaultPolicy(),
		MaxRecords:  httpclient.DefaultMaxRecords,
		MaxPages:    httpclient.DefaultMaxPages,
	}
}

// Adapter owns one pooled transport against the openFDA API.
type Adapter struct {
	cfg       Config
	engine    *httpclient.Engine
	paginator *httpclient.Paginator
	logger    *slog.Logger
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
				httpclient.WithUserAgent("usdata-mcp-fda/1.0"),
			),
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.engine.Logger = a.logger
	a.paginator = &httpclient.Paginator{
		Engine:     a.engine,
		OffsetKey:  "skip",
		MaxRecords: cfg.MaxRecords,
		MaxPages:   cfg.MaxPages,
	}
	return a
}

// Tools returns the adapter's tool descriptors.
func (a *Adapter) Tools() []catalog.Descriptor {
	limitField := schema.Field{Type: schema.IntRange(1, httpclient.DefaultMaxRecords), Description: "Maximum results to return (default 10)"}
	return []catalog.Descriptor{
		{
			Name:        "search_drugs",
			Description: "Search FDA drug product information by brand name, generic name, or application number.",
			Source:      Source,
			Schema: schema.Schema{
				"brand_name":         {Type: schema.String(), Description: "Brand/trade name"},
				"generic_name":       {Type: schema.String(), Description: "Generic/chemical name"},
				"application_number": {Type: schema.String(), Description: "FDA application number"},
				"limit":              limitField,
			},
			Op: a.searchDrugs,
		},
		{
			Name:        "search_drug_labels",
			Description: "Search FDA drug labeling information (indications, warnings, dosage) by brand or generic name.",
			Source:      Source,
			Schema: schema.Schema{
				"brand_name":   {Type: schema.String(), Description: "Brand name"},
				"generic_name": {Type: schema.String(), Description: "Generic name"},
				"limit":        limitField,
			},
			Op: a.searchLabels,
		},
		{
			Name:        "search_recalls",
			Description: "Search FDA drug recall enforcement reports by product description, classification, or status.",
			Source:      Source,
			Schema: schema.Schema{
				"product_description": {Type: schema.String(), Description: "Product description"},
				"classification":      {Type: schema.Enum("I", "II", "III"), Description: "Recall classification"},
				"status":              {Type: schema.String(), Description: "Recall status (e.g., Ongoing, Completed)"},
				"limit":               limitField,
			},
			Op: a.searchRecalls,
		},
		{
			Name:        "search_adverse_events",
			Description: "Search FDA adverse event reports for a drug, optionally filtered by reaction.",
			Source:      Source,
			Schema: schema.Schema{
				"drug_name": {Type: schema.String(), Required: true, Description: "Drug name"},
				"reaction":  {Type: schema.String(), Description: "Specific adverse reaction (optional)"},
				"limit":     limitField,
			},
			Op: a.searchAdverseEvents,
		},
		{
			Name:        "get_recall_classifications",
			Description: "Get the FDA recall classification reference (Class I, II, III) and what each class means.",
			Source:      Source,
			Schema:      schema.Schema{},
			Op:          a.recallClassifications,
		},
		{
			Name:        "search_devices",
			Description: "Search FDA-regulated medical devices by name. Returns 510(k) clearance information and manufacturer details.",
			Source:      Source,
			Schema: schema.Schema{
				"device_name": {Type: schema.String(), Required: true, Description: "Name of the medical device"},
				"limit":       limitField,
			},
			Op: a.searchDevices,
		},
		{
			Name:        "search_all_recalls",
			Description: "Search FDA recall enforcement reports across food, medical device, and drug products.",
			Source:      Source,
			Schema: schema.Schema{
				"category":            {Type: schema.Enum("food", "device", "drug"), Required: true, Description: "Recall category"},
				"product_description": {Type: schema.String(), Description: "Product name or keywords"},
				"limit":               limitField,
			},
			Op: a.searchAllRecalls,
		},
	}
}

// buildSearchQuery renders field:value conditions joined by +AND+, the
// openFDA search expression form.
func buildSearchQuery(conditions []searchCondition) string {
	parts := make([]string, 0, len(conditions))
	for _, c := range conditions {
		if c.value == "" {
			continue
		}
		parts = append(parts, c.field+":"+url.QueryEscape(c.value))
	}
	return strings.Join(parts, "+AND+")
}

type searchCondition struct {
	field string
	value string
}

type drugsArgs struct {
	BrandName         string `mapstructure:"brand_name"`
	GenericName       string `mapstructure:"generic_name"`
	ApplicationNumber string `mapstructure:"application_number"`
	Limit             int    `mapstructure:"limit"`
}

func (a *Adapter) searchDrugs(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	md := metadata("search_drugs")

	var args drugsArgs
	if err := catalog.DecodeArgs(rawArgs, &args); err != nil {
		return envelope.ValidationFailure(err.Error(), md)
	}

	query := buildSearchQuery([]searchCondition{
		{"openfda.brand_name", args.BrandName},
		{"openfda.generic_name", args.GenericName},
		{"application_number", args.ApplicationNumber},
	})
	if query == "" {
		return envelope.ValidationFailure("brand_name: at least one search parameter is required", md)
	}

	md["endpoint"] = "drug/drugsfda"
	return a.search(ctx, "/drug/drugsfda.json", query, args.Limit, md, nil)
}

type labelsArgs struct {
	BrandName   string `mapstructure:"brand_name"`
	GenericName string `mapstructure:"generic_name"`
	Limit       int    `mapstructure:"limit"`
}

func (a *Adapter) searchLabels(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	md := metadata("search_drug_labels")

	var args labelsArgs
	if err := catalog.DecodeArgs(rawArgs, &args); err != nil {
		return envelope.ValidationFailure(err.Error(), md)
	}

	query := buildSearchQuery([]searchCondition{
		{"openfda.brand_name", args.BrandName},
		{"openfda.generic_name", args.GenericName},
	})
	if query == "" {
		return envelope.ValidationFailure("brand_name: brand name or generic name is required", md)
	}

	md["endpoint"] = "drug/label"
	return a.search(ctx, "/drug/label.json", query, args.Limit, md, nil)
}

type recallsArgs struct {
	ProductDescription string `mapstructure:"product_description"`
	Classification     string `mapstructure:"classification"`
	Status             string `mapstructure:"status"`
	Limit              int    `mapstructure:"limit"`
}

func (a *Adapter) searchRecalls(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	md := metadata("search_recalls")

	var args recallsArgs
	if err := catalog.DecodeArgs(rawArgs, &args); err != nil {
		return envelope.ValidationFailure(err.Error(), md)
	}

	classification := args.Classification
	if classification != "" {
		classification = "Class+" + classification
	}
	query := buildSearchQuery([]searchCondition{
		{"product_description", args.ProductDescription},
		{"classification", classification},
		{"status", args.Status},
	})

	md["endpoint"] = "drug/enforcement"
	return a.search(ctx, "/drug/enforcement.json", query, args.Limit, md, annotateRecall)
}

// annotateRecall attaches the classification definition to each report.
func annotateRecall(record envelope.Record) {
	class, _ := record["classification"].(string)
	switch {
	case strings.Contains(class, "Class III"):
		record["classification_description"] = RecallClassifications["III"]
	case strings.Contains(class, "Class II"):
		record["classification_description"] = RecallClassifications["II"]
	case strings.Contains(class, "Class I"):
		record["classification_description"] = RecallClassifications["I"]
	}
}

type adverseEventsArgs struct {
	DrugName string `mapstructure:"drug_name"`
	Reaction string `mapstructure:"reaction"`
	Limit    int    `mapstructure:"limit"`
}

func (a *Adapter) searchAdverseEvents(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	md := metadata("search_adverse_events")

	var args adverseEventsArgs
	if err := catalog.DecodeArgs(rawArgs, &args); err != nil {
		return envelope.ValidationFailure(err.Error(), md)
	}

	query := buildSearchQuery([]searchCondition{
		{"patient.drug.openfda.brand_name", args.DrugName},
		{"patient.reaction.reactionmeddrapt", args.Reaction},
	})
	md["endpoint"] = "drug/event"
	md["drug_name"] = args.DrugName

	env := a.search(ctx, "/drug/event.json", query, args.Limit, md, nil)
	// openFDA reports "no matches" as a 404; surface that as an empty
	// result set rather than an error.
	if !env.Success && strings.Contains(env.ErrorText(), "HTTP 404") {
		md["note"] = "no adverse events found for this drug"
		return envelope.OK(nil, md)
	}
	return env
}

// search runs one paginated collection against an openFDA endpoint.
func (a *Adapter) search(ctx context.Context, path, query string, limit int, md map[string]any, annotate func(envelope.Record)) envelope.Envelope {
	if limit <= 0 {
		limit = 10
	}

	perPage := limit
	if perPage > pageSize {
		perPage = pageSize
	}

	builder := httpclient.NewRequest(http.MethodGet, a.cfg.BaseURL, path).
		ParamInt("limit", perPage).
		Timeout(a.cfg.Timeout)
	if query != "" {
		builder.Param("search", query)
	}
	spec := builder.Build(credentials.Credential{}, httpclient.AuthScheme{Mode: httpclient.AuthNone})

	paginator := *a.paginator
	if limit < paginator.MaxRecords || paginator.MaxRecords == 0 {
		paginator.MaxRecords = limit
	}

	records, cerr := paginator.Collect(ctx, spec, a.cfg.Retry, extractResultsPage(perPage))
	if cerr != nil {
		return envelope.FromClassified(cerr, md)
	}

	if annotate != nil {
		for _, record := range records {
			annotate(record)
		}
	}
	md["count"] = len(records)

	out := make([]envelope.Record, len(records))
	copy(out, records)
	return envelope.OK(out, md)
}

type openFDAResponse struct {
	Meta struct {
		Results struct {
			Skip  int `json:"skip"`
			Limit int `json:"limit"`
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []map[string]any `json:"results"`
}

// extractResultsPage decodes one openFDA page and advances the skip offset
// while the reported total indicates more data.
func extractResultsPage(perPage int) httpclient.PageExtractor {
	return func(raw *httpclient.RawResult) (httpclient.Page, error) {
		var resp openFDAResponse
		if err := raw.Decode(&resp); err != nil {
			return httpclient.Page{}, err
		}
		page := httpclient.Page{Records: resp.Results}
		next := resp.Meta.Results.Skip + len(resp.Results)
		if resp.Meta.Results.Total > next && len(resp.Results) == perPage {
			page.NextOffset = &next
		}
		return page, nil
	}
}

func (a *Adapter) recallClassifications(_ context.Context, _ map[string]any) envelope.Envelope {
	records := []envelope.Record{
		{"class": "I", "description": RecallClassifications["I"]},
		{"class": "II", "description": RecallClassifications["II"]},
		{"class": "III", "description": RecallClassifications["III"]},
	}
	md := metadata("get_recall_classifications")
	md["count"] = len(records)
	return envelope.OK(records, md)
}

type devicesArgs struct {
	DeviceName string `mapstructure:"device_name"`
	Limit      int    `mapstructure:"limit"`
}

func (a *Adapter) searchDevices(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	md := metadata("search_devices")

	var args devicesArgs
	if err := catalog.DecodeArgs(rawArgs, &args); err != nil {
		return envelope.ValidationFailure(err.Error(), md)
	}

	query := buildSearchQuery([]searchCondition{
		{"device_name", args.DeviceName},
	})
	if query == "" {
		return envelope.ValidationFailure("device_name: required", md)
	}

	md["endpoint"] = "device/510k"
	return a.search(ctx, "/device/510k.json", query, args.Limit, md, nil)
}

type allRecallsArgs struct {
	Category           string `mapstructure:"category"`
	ProductDescription string `mapstructure:"product_description"`
	Limit              int    `mapstructure:"limit"`
}

// searchAllRecalls queries the enforcement endpoint of the chosen product
// category; food and device recalls share the drug endpoint's report shape.
func (a *Adapter) searchAllRecalls(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	md := metadata("search_all_recalls")

	var args allRecallsArgs
	if err := catalog.DecodeArgs(rawArgs, &args); err != nil {
		return envelope.ValidationFailure(err.Error(), md)
	}
	switch args.Category {
	case "food", "device", "drug":
	default:
		return envelope.ValidationFailure("category: must be one of food, device, drug", md)
	}

	query := buildSearchQuery([]searchCondition{
		{"product_description", args.ProductDescription},
	})

	md["endpoint"] = args.Category + "/enforcement"
	md["category"] = args.Category
	return a.search(ctx, "/"+args.Category+"/enforcement.json", query, args.Limit, md, annotateRecall)
}

func metadata(tool string) map[string]any {
	return map[string]any{"source": Source, "tool": tool}
}
