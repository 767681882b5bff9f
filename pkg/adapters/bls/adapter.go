// Package bls adapts the Bureau of Labor Statistics public API v2 to the
// tool dispatch pipeline. A registration key is optional; unauthenticated
// requests run at a lower upstream quota.
package bls

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/usdatahub/usdata-mcp/pkg/catalog"
	"github.com/usdatahub/usdata-mcp/pkg/credentials"
	"github.com/usdatahub/usdata-mcp/pkg/envelope"
	"github.com/usdatahub/usdata-mcp/pkg/httpclient"
	"github.com/usdatahub/usdata-mcp/pkg/schema"
)

// Source is the adapter's source id.
const Source = "bls"

// CommonSeries maps frequently used BLS series IDs to descriptions.
var CommonSeries = map[string]string{
	// Unemployment
	"LNS14000000": "Unemployment Rate (Seasonally Adjusted) - National",
	"LNS14000001": "Unemployment Rate - Men",
	"LNS14000002": "Unemployment Rate - Women",

	// CPI (Inflation)
	"CUUR0000SA0":  "CPI for All Urban Consumers (All Items) - U.S. City Average",
	"CUUR0000SAF1": "CPI - Food",
	"CUUR0000SA0E": "CPI - Energy",

	// Employment
	"CES0000000001": "Total Nonfarm Employment (Seasonally Adjusted)",
	"CES0500000003": "Average Hourly Earnings of All Private Employees",

	// Productivity
	"PRU8010663": "Labor Productivity - Nonfarm Business",
}

// CredentialSpecs declares the environment entries this source reads.
func CredentialSpecs() []credentials.Spec {
	return []credentials.Spec{
		{Source: Source, Name: "api_key", EnvVar: "BLS_API_KEY", Required: false},
	}
}

// Config is the adapter's static configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxInFlight int
	Retry       httpclient.Policy
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.bls.gov/publicAPI/v2",
		Timeout:     30 * time.Second,
		MaxInFlight: 4,
		Retry:       httpclient.DefaultPolicy(),
	}
}

// Adapter owns one pooled transport against the BLS API.
type Adapter struct {
	cfg    Config
	creds  *credentials.Store
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
func New(creds *credentials.Store, cfg Config, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:    cfg,
		creds:  creds,
		logger: slog.Default(),
		engine: &httpclient.Engine{
			Source: Source,
			Client: httpclient.NewClient(
				httpclient.WithMaxInFlight(cfg.MaxInFlight),
				httpclient.WithUserAgent("usdata-mcp-bls/1.0"),
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
			Name:        "get_series_data",
			Description: "Fetch data for one or more BLS series IDs. Returns time-series data including observations, periods, and values.",
			Source:      Source,
			Schema: schema.Schema{
				"series_ids": {Type: schema.Slice(schema.String()), Required: true, Description: "List of series IDs (e.g., ['LNS14000000'] for national unemployment)"},
				"start_year": {Type: schema.IntRange(1900, 2100), Description: "Start year (e.g., 2020)"},
				"end_year":   {Type: schema.IntRange(1900, 2100), Description: "End year (e.g., 2023)"},
			},
			Op: a.seriesData,
		},
		{
			Name:        "get_common_series",
			Description: "Get a list of commonly used BLS series IDs (unemployment, CPI, etc.) to help you formulate data requests.",
			Source:      Source,
			Schema:      schema.Schema{},
			Op:          a.commonSeries,
		},
	}
}

type seriesArgs struct {
	SeriesIDs []string `mapstructure:"series_ids"`
	StartYear int      `mapstructure:"start_year"`
	EndYear   int      `mapstructure:"end_year"`
}

// seriesPayload is the POST body of the timeseries endpoint. The optional
// registration key travels in the body, per the BLS API contract.
type seriesPayload struct {
	SeriesID        []string `json:"seriesid"`
	StartYear       string   `json:"startyear,omitempty"`
	EndYear         string   `json:"endyear,omitempty"`
	RegistrationKey string   `json:"registrationkey,omitempty"`
}

type seriesResponse struct {
	Status  string   `json:"status"`
	Message []string `json:"message"`
	Results struct {
		Series []map[string]any `json:"series"`
	} `json:"Results"`
}

func (a *Adapter) seriesData(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	md := map[string]any{"source": Source, "tool": "get_series_data"}

	var args seriesArgs
	if err := catalog.DecodeArgs(rawArgs, &args); err != nil {
		return envelope.ValidationFailure(err.Error(), md)
	}
	if len(args.SeriesIDs) == 0 {
		return envelope.ValidationFailure("series_ids: required", md)
	}

	payload := seriesPayload{SeriesID: args.SeriesIDs}
	if args.StartYear > 0 {
		payload.StartYear = strconv.Itoa(args.StartYear)
	}
	if args.EndYear > 0 {
		payload.EndYear = strconv.Itoa(args.EndYear)
	}
	if cred, err := a.creds.Resolve(Source, "api_key"); err == nil && cred.Present {
		payload.RegistrationKey = cred.Value
	}

	spec := httpclient.NewRequest(http.MethodPost, a.cfg.BaseURL, "/timeseries/data/").
		Body(payload).
		Timeout(a.cfg.Timeout).
		Build(credentials.Credential{}, httpclient.AuthScheme{Mode: httpclient.AuthNone})

	raw, cerr := a.engine.Execute(ctx, spec, a.cfg.Retry)
	md["series_ids"] = args.SeriesIDs

	return envelope.Normalize(raw, cerr, shapeSeries, md)
}

// shapeSeries extracts Results.series and annotates known series with
// catalog descriptions. A REQUEST_NOT_PROCESSED status is a terminal
// upstream rejection, not data.
func shapeSeries(raw *httpclient.RawResult) ([]envelope.Record, map[string]any, error) {
	var resp seriesResponse
	if err := raw.Decode(&resp); err != nil {
		return nil, nil, err
	}
	if resp.Status == "REQUEST_NOT_PROCESSED" {
		msg := "request not processed"
		if len(resp.Message) > 0 {
			msg = resp.Message[0]
		}
		return nil, nil, &upstreamRejection{message: msg}
	}

	records := make([]envelope.Record, 0, len(resp.Results.Series))
	for _, series := range resp.Results.Series {
		if id, ok := series["seriesID"].(string); ok {
			if desc, known := CommonSeries[id]; known {
				series["description"] = desc
			}
		}
		records = append(records, series)
	}

	meta := map[string]any{"status": resp.Status, "count": len(records)}
	if len(resp.Message) > 0 {
		meta["messages"] = resp.Message
	}
	return records, meta, nil
}

type upstreamRejection struct {
	message string
}

func (e *upstreamRejection) Error() string {
	return e.message
}

func (a *Adapter) commonSeries(_ context.Context, _ map[string]any) envelope.Envelope {
	ids := make([]string, 0, len(CommonSeries))
	for id := range CommonSeries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]envelope.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, envelope.Record{
			"series_id":   id,
			"description": CommonSeries[id],
		})
	}
	return envelope.OK(records, map[string]any{
		"source": Source,
		"tool":   "get_common_series",
		"count":  len(records),
	})
}
