// Package census adapts the US Census Bureau data API (ACS datasets) to the
// tool dispatch pipeline. Requires a CENSUS_API_KEY.
package census

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/usdatahub/usdata-mcp/pkg/catalog"
	"github.com/usdatahub/usdata-mcp/pkg/credentials"
	"github.com/usdatahub/usdata-mcp/pkg/envelope"
	"github.com/usdatahub/usdata-mcp/pkg/httpclient"
	"github.com/usdatahub/usdata-mcp/pkg/schema"
)

// Source is the adapter's source id.
const Source = "census"

var authScheme = httpclient.AuthScheme{Mode: httpclient.AuthQueryParam, Name: "key"}

// CredentialSpecs declares the environment entries this source needs.
func CredentialSpecs() []credentials.Spec {
	return []credentials.Spec{
		{Source: Source, Name: "api_key", EnvVar: "CENSUS_API_KEY", Required: true},
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
		BaseURL:     "https://api.census.gov/data",
		Timeout:     30 * time.Second,
		MaxInFlight: 4,
		Retry:       httpclient.DefaultPolicy(),
	}
}

// Adapter owns one pooled transport against the Census API.
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
				httpclient.WithUserAgent("usdata-mcp-census/1.0"),
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
			Name:        "search_population",
			Description: "Search US Census population data by geographic area. Returns population statistics from the American Community Survey.",
			Source:      Source,
			Schema: schema.Schema{
				"year":      {Type: schema.IntRange(2000, 2030), Required: true, Description: "Year of data (e.g., 2021)"},
				"state":     {Type: schema.String(), Required: true, Description: "State FIPS code (2 digits, e.g., '06' for California)"},
				"county":    {Type: schema.String(), Description: "County FIPS code (3 digits, optional)"},
				"variables": {Type: schema.Slice(schema.String()), Description: "Census variable codes (defaults to population and median age)"},
			},
			Op: a.searchPopulation,
		},
		{
			Name:        "search_economic",
			Description: "Search US Census economic data (income, poverty, unemployment) by geographic area.",
			Source:      Source,
			Schema: schema.Schema{
				"year":      {Type: schema.IntRange(2000, 2030), Required: true, Description: "Year of data"},
				"dataset":   {Type: schema.String(), Description: "Dataset name (default 'acs/acs5')"},
				"variables": {Type: schema.Slice(schema.String()), Description: "Economic variable codes (defaults to median household income, poverty, unemployment)"},
				"geography": {Type: schema.String(), Description: "Geographic level (default 'state:*')"},
				"state":     {Type: schema.String(), Description: "State FIPS code filter (2 digits)"},
			},
			Op: a.searchEconomic,
		},
		{
			Name:        "get_common_variables",
			Description: "Get a reference list of commonly used Census variable codes and their descriptions.",
			Source:      Source,
			Schema:      schema.Schema{},
			Op:          a.commonVariables,
		},
		{
			Name:        "get_state_fips",
			Description: "Get FIPS codes for US states. Returns a mapping of state names to their 2-digit FIPS codes used in Census API queries.",
			Source:      Source,
			Schema: schema.Schema{
				"state_name": {Type: schema.String(), Description: "State name to look up (optional, returns all if not provided)"},
			},
			Op: a.stateFIPS,
		},
	}
}

type populationArgs struct {
	Year      int      `mapstructure:"year"`
	State     string   `mapstructure:"state"`
	County    string   `mapstructure:"county"`
	Variables []string `mapstructure:"variables"`
}

func (a *Adapter) searchPopulation(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	var args populationArgs
	if env, ok := a.prepare(rawArgs, &args); !ok {
		return env
	}

	variables := args.Variables
	if len(variables) == 0 {
		variables = []string{"NAME", "B01001_001E", "B01002_001E"}
	}
	variables = ensureName(variables)

	md := baseMetadata("search_population", map[string]any{
		"year":    args.Year,
		"dataset": "acs/acs5",
	})
	return a.fetch(ctx, args.Year, "acs/acs5", variables, "", args.State, args.County, md)
}

type economicArgs struct {
	Year      int      `mapstructure:"year"`
	Dataset   string   `mapstructure:"dataset"`
	Variables []string `mapstructure:"variables"`
	Geography string   `mapstructure:"geography"`
	State     string   `mapstructure:"state"`
}

func (a *Adapter) searchEconomic(ctx context.Context, rawArgs map[string]any) envelope.Envelope {
	var args economicArgs
	if env, ok := a.prepare(rawArgs, &args); !ok {
		return env
	}

	dataset := args.Dataset
	if dataset == "" {
		dataset = "acs/acs5"
	}
	geography := args.Geography
	if geography == "" {
		geography = "state:*"
	}
	variables := args.Variables
	if len(variables) == 0 {
		variables = []string{"NAME", "B19013_001E", "B17001_002E", "B23025_005E"}
	}
	variables = ensureName(variables)

	md := baseMetadata("search_economic", map[string]any{
		"year":    args.Year,
		"dataset": dataset,
	})
	return a.fetch(ctx, args.Year, dataset, variables, geography, args.State, "", md)
}

// fetch builds the canonical request, runs it through the retry engine and
// shapes the Census list-of-lists payload into records.
func (a *Adapter) fetch(ctx context.Context, year int, dataset string, variables []string, geography, state, county string, md map[string]any) envelope.Envelope {
	cred, err := a.creds.Resolve(Source, "api_key")
	if err != nil {
		return envelope.ValidationFailure(err.Error(), md)
	}

	builder := httpclient.NewRequest(http.MethodGet, a.cfg.BaseURL, fmt.Sprintf("/%d/%s", year, dataset)).
		Param("get", strings.Join(variables, ",")).
		Timeout(a.cfg.Timeout)

	// Geography selection mirrors the Census API's for/in convention.
	switch {
	case county != "" && state != "":
		builder.Param("for", "county:"+county).Param("in", "state:"+state)
	case state != "" && strings.HasPrefix(geography, "county"):
		builder.Param("for", "county:*").Param("in", "state:"+state)
	case state != "":
		builder.Param("for", "state:"+state)
	default:
		builder.Param("for", geography)
	}

	spec := builder.Build(cred, authScheme)
	raw, cerr := a.engine.Execute(ctx, spec, a.cfg.Retry)

	described := map[string]string{}
	for _, v := range variables {
		if desc, ok := CommonVariables[v]; ok {
			described[v] = desc
		} else {
			described[v] = "Variable " + v
		}
	}
	md["variables"] = described

	return envelope.Normalize(raw, cerr, shapeTable, md)
}

// shapeTable converts the Census list-of-lists payload (first row headers)
// into record maps.
func shapeTable(raw *httpclient.RawResult) ([]envelope.Record, map[string]any, error) {
	var table [][]any
	if err := raw.Decode(&table); err != nil {
		return nil, nil, err
	}
	if len(table) < 2 {
		return []envelope.Record{}, map[string]any{"count": 0}, nil
	}

	headers := make([]string, len(table[0]))
	for i, h := range table[0] {
		headers[i] = fmt.Sprintf("%v", h)
	}

	records := make([]envelope.Record, 0, len(table)-1)
	for _, row := range table[1:] {
		record := envelope.Record{}
		for i, cell := range row {
			if i >= len(headers) {
				break
			}
			record[headers[i]] = cell
		}
		records = append(records, record)
	}
	return records, map[string]any{"count": len(records)}, nil
}

func (a *Adapter) commonVariables(_ context.Context, _ map[string]any) envelope.Envelope {
	records := make([]envelope.Record, 0, len(CommonVariables))
	for _, code := range sortedCodes(CommonVariables) {
		records = append(records, envelope.Record{
			"code":        code,
			"description": CommonVariables[code],
		})
	}
	return envelope.OK(records, baseMetadata("get_common_variables", map[string]any{"count": len(records)}))
}

func (a *Adapter) stateFIPS(_ context.Context, rawArgs map[string]any) envelope.Envelope {
	md := baseMetadata("get_state_fips", nil)

	if name, _ := rawArgs["state_name"].(string); name != "" {
		for state, code := range StateFIPS {
			if strings.EqualFold(state, name) {
				return envelope.OK([]envelope.Record{{"state": state, "fips": code}}, md)
			}
		}
		return envelope.ValidationFailure(fmt.Sprintf("state_name: unknown state %q", name), md)
	}

	records := make([]envelope.Record, 0, len(StateFIPS))
	for _, state := range sortedCodes(StateFIPS) {
		records = append(records, envelope.Record{"state": state, "fips": StateFIPS[state]})
	}
	md["count"] = len(records)
	return envelope.OK(records, md)
}

// prepare runs the credential check and argument decode shared by the
// network-bound operations.
func (a *Adapter) prepare(rawArgs map[string]any, out any) (envelope.Envelope, bool) {
	md := baseMetadata("", nil)
	if err := a.creds.Check(Source); err != nil {
		return envelope.ValidationFailure(err.Error(), md), false
	}
	if err := catalog.DecodeArgs(rawArgs, out); err != nil {
		return envelope.ValidationFailure(err.Error(), md), false
	}
	return envelope.Envelope{}, true
}

func ensureName(variables []string) []string {
	for _, v := range variables {
		if v == "NAME" {
			return variables
		}
	}
	return append([]string{"NAME"}, variables...)
}

func baseMetadata(tool string, extra map[string]any) map[string]any {
	md := map[string]any{"source": Source}
	if tool != "" {
		md["tool"] = tool
	}
	for k, v := range extra {
		md[k] = v
	}
	return md
}

func sortedCodes(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
