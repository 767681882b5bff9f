// Package epa adapts the EPA Air Quality System (AQS) API. AQS requires a
// registered email and key, both sent as query parameters.
package epa

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/usdatahub/usdata-mcp/pkg/catalog"
	"github.com/usdatahub/usdata-mcp/pkg/credentials"
	"github.com/usdatahub/usdata-mcp/pkg/envelope"
	"github.com/usdatahub/usdata-mcp/pkg/httpclient"
	"github.com/usdatahub/usdata-mcp/pkg/schema"
)

// Source is the adapter's source id.
const Source = "epa"

// CommonParams maps AQS parameter codes to pollutant names.
var CommonParams = map[string]string{
	"44201": "Ozone",
	"42401": "Sulfur dioxide",
	"42101": "Carbon monoxide",
	"42602": "Nitrogen dioxide (NO2)",
	"81102": "PM10 Total 0-10um",
	"88101": "PM2.5 - Local Conditions",
	"88502": "Acceptable PM2.5 AQI Specs",
	"14129": "Lead (TSP) LC",
}

// CredentialSpecs declares the two required AQS credentials.
func CredentialSpecs() []credentials.Spec {
	return []credentials.Spec{
		{Source: Source, Name: "email", EnvVar: "EPA_AQS_EMAIL", Required: true},
		{Source: Source, Name: "key", EnvVar: "EPA_AQS_KEY", Required: true},
	}
}

// Config is the adapter's static configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxInFlight int
	Retry       httpclient.Policy
}

// DefaultConfig returns the production defaults. AQS daily summaries can be
// slow to assemble server-side, hence the long per-attempt timeout.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://aqs.epa.gov/data/api",
		Timeout:     60 * time.Second,
		MaxInFlight: 2,
		Retry:       httpclient.DefaultPolicy(),
	}
}

// Adapter owns one pooled transport against AQS.
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
			Name:        "get_daily_air_quality",
			Description: "Fetch daily air quality summary data from EPA AQS. Requires parameter code, start date, end date, and state/county FIPS codes.",
			Source:      Source,
			Schema: schema.Schema{
				"param_code": {Type: schema.String(), Required: true, Description: "Parameter code (e.g., '44201' for Ozone, '88101' for PM2.5)"},
				"bdate":      {Type: schema.String(), Required: true, Description: "Begin date (YYYYMMDD)"},
				"edate":      {Type: schema.String(), Required: true, Description: "End date (YYYYMMDD)"},
				"state":      {Type: schema.String(), Required: true, Description: "2-digit State FIPS code"},
				"county":     {Type: schema.String(), Description: "3-digit County FIPS code (optional)"},
			},
			Op: a.dailyAirQuality,
		},
		{
			Name:        "get_common_aqs_parameters",
			Description: "Get a reference list of commonly used EPA AQS parameter codes for air pollutants like Ozone, PM2.5, SO2, etc.",
			Source:      Source,
			Schema:      schema.Schema{},
			Op:          a.commonParameters,
		},
	}
}

type dailyArgs struct {
	ParamCode string `mapstructure:"param_code"`
	BDate     string `mapstructure:"bdate"`
	EDate     string `mapstructure:"edate"`
	State     string `mapstructure:"state"`
	County    string `mapstructure:"county"`
}

func (a *Adapter) dailyAirQuality(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	md := metadata("get_daily_air_quality")

	var args dailyArgs
	if err := catalog.DecodeArgs(rawArgs, &args); err != nil {
		return envelope.ValidationFailure(err.Error(), md)
	}

	email, err := a.creds.Resolve(Source, "email")
	if err != nil {
		return envelope.ValidationFailure(err.Error(), md)
	}
	key, err := a.creds.Resolve(Source, "key")
	if err != nil {
		return envelope.ValidationFailure(err.Error(), md)
	}

	// County-scoped queries hit a different endpoint than state-wide ones.
	path := "/dailyData/byState"
	if args.County != "" {
		path = "/dailyData/byCounty"
	}

	md["param"] = args.ParamCode
	md["param_description"] = paramDescription(args.ParamCode)

	spec := httpclient.NewRequest(http.MethodGet, a.cfg.BaseURL, path).
		SecretParam("email", email.Value).
		Param("param", args.ParamCode).
		Param("bdate", args.BDate).
		Param("edate", args.EDate).
		Param("state", args.State).
		Param("county", args.County).
		Timeout(a.cfg.Timeout).
		Build(key, httpclient.AuthScheme{Mode: httpclient.AuthQueryParam, Name: "key"})

	raw, cerr := a.engine.Execute(ctx, spec, a.cfg.Retry)
	return envelope.Normalize(raw, cerr, shapeDaily, md)
}

type aqsResponse struct {
	Header []struct {
		Status   string `json:"status"`
		ErrorMsg string `json:"error_msg"`
	} `json:"Header"`
	Data []envelope.Record `json:"Data"`
}

// shapeDaily unwraps the AQS Header/Data envelope. AQS reports application
// errors inside a 200 response, so the header status is the real verdict.
func shapeDaily(raw *httpclient.RawResult) ([]envelope.Record, map[string]any, error) {
	var resp aqsResponse
	if err := raw.Decode(&resp); err != nil {
		return nil, nil, err
	}
	if len(resp.Header) == 0 || resp.Header[0].Status != "Success" {
		msg := "Unknown AQS error"
		if len(resp.Header) > 0 && resp.Header[0].ErrorMsg != "" {
			msg = resp.Header[0].ErrorMsg
		}
		return nil, nil, fmt.Errorf("AQS request rejected: %s", msg)
	}
	return resp.Data, map[string]any{"count": len(resp.Data)}, nil
}

func (a *Adapter) commonParameters(_ context.Context, _ map[string]any) envelope.Envelope {
	codes := make([]string, 0, len(CommonParams))
	for code := range CommonParams {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	records := make([]envelope.Record, 0, len(codes))
	for _, code := range codes {
		records = append(records, envelope.Record{
			"code":        code,
			"description": CommonParams[code],
		})
	}
	md := metadata("get_common_aqs_parameters")
	md["count"] = len(records)
	return envelope.OK(records, md)
}

func paramDescription(code string) string {
	if desc, ok := CommonParams[code]; ok {
		return desc
	}
	return "Unknown"
}

func metadata(tool string) map[string]any {
	return map[string]any{"source": Source, "tool": tool}
}
