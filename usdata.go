// Package usdata assembles the tool dispatch pipeline for US government
// data sources. It wires credentials, rate-limit state, metrics and the
// five source adapters into one catalog that the MCP, HTTP and CLI
// surfaces share.
package usdata

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/usdatahub/usdata-mcp/pkg/adapters/bls"
	"github.com/usdatahub/usdata-mcp/pkg/adapters/census"
	"github.com/usdatahub/usdata-mcp/pkg/adapters/epa"
	"github.com/usdatahub/usdata-mcp/pkg/adapters/fda"
	"github.com/usdatahub/usdata-mcp/pkg/adapters/sec"
	"github.com/usdatahub/usdata-mcp/pkg/catalog"
	"github.com/usdatahub/usdata-mcp/pkg/config"
	"github.com/usdatahub/usdata-mcp/pkg/credentials"
	"github.com/usdatahub/usdata-mcp/pkg/httpclient"
	"github.com/usdatahub/usdata-mcp/pkg/observability"
	"github.com/usdatahub/usdata-mcp/pkg/ratelimit"
)

// Version is the release version reported by every surface.
var Version = "0.1.0"

// System is the assembled pipeline.
type System struct {
	Registry    *catalog.Registry
	Credentials *credentials.Store
	Metrics     *observability.Metrics
	Prometheus  *prometheus.Registry
}

// Option configures system assembly.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
	getenv func(string) string
}

// WithLogger sets the logger shared by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithGetenv overrides the environment lookup used for credentials (tests).
func WithGetenv(getenv func(string) string) Option {
	return func(s *settings) { s.getenv = getenv }
}

// New builds the full system from a deployment configuration. Credentials
// are resolved lazily per call, so sources with missing keys still register
// their tools; calling one yields a validation failure naming the variable.
func New(cfg config.Config, opts ...Option) (*System, error) {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}

	var specs []credentials.Spec
	specs = append(specs, census.CredentialSpecs()...)
	specs = append(specs, bls.CredentialSpecs()...)
	specs = append(specs, epa.CredentialSpecs()...)
	specs = append(specs, fda.CredentialSpecs()...)
	specs = append(specs, sec.CredentialSpecs()...)

	var creds *credentials.Store
	if s.getenv != nil {
		creds = credentials.LoadFunc(s.getenv, specs...)
	} else {
		creds = credentials.Load(specs...)
	}

	promReg := prometheus.NewRegistry()
	metrics := observability.New(promReg)

	var store ratelimit.StateStore
	if cfg.Redis.Address != "" {
		store = ratelimit.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		s.logger.Info("using redis rate-limit state", "address", cfg.Redis.Address)
	} else {
		store = ratelimit.NewMemoryStore()
	}
	gate := ratelimit.NewGate(store)

	registry := catalog.New(
		catalog.WithLogger(s.logger),
		catalog.WithObserver(metrics),
		catalog.WithCallTimeout(cfg.CallTimeout),
	)

	censusCfg := census.DefaultConfig()
	applyOverrides(&censusCfg.BaseURL, &censusCfg.Timeout, &censusCfg.MaxInFlight, &censusCfg.Retry, cfg.Source(census.Source))
	registry.MustRegister(census.New(creds, censusCfg,
		census.WithLogger(s.logger), census.WithThrottle(gate), census.WithObserver(metrics)).Tools()...)

	blsCfg := bls.DefaultConfig()
	applyOverrides(&blsCfg.BaseURL, &blsCfg.Timeout, &blsCfg.MaxInFlight, &blsCfg.Retry, cfg.Source(bls.Source))
	registry.MustRegister(bls.New(creds, blsCfg,
		bls.WithLogger(s.logger), bls.WithThrottle(gate), bls.WithObserver(metrics)).Tools()...)

	epaCfg := epa.DefaultConfig()
	applyOverrides(&epaCfg.BaseURL, &epaCfg.Timeout, &epaCfg.MaxInFlight, &epaCfg.Retry, cfg.Source(epa.Source))
	registry.MustRegister(epa.New(creds, epaCfg,
		epa.WithLogger(s.logger), epa.WithThrottle(gate), epa.WithObserver(metrics)).Tools()...)

	fdaCfg := fda.DefaultConfig()
	applyOverrides(&fdaCfg.BaseURL, &fdaCfg.Timeout, &fdaCfg.MaxInFlight, &fdaCfg.Retry, cfg.Source(fda.Source))
	registry.MustRegister(fda.New(fdaCfg,
		fda.WithLogger(s.logger), fda.WithThrottle(gate), fda.WithObserver(metrics)).Tools()...)

	secCfg := sec.DefaultConfig()
	applyOverrides(&secCfg.BaseURL, &secCfg.Timeout, &secCfg.MaxInFlight, &secCfg.Retry, cfg.Source(sec.Source))
	if ua := cfg.Source(sec.Source).UserAgent; ua != "" {
		secCfg.UserAgent = ua
	}
	registry.MustRegister(sec.New(secCfg,
		sec.WithLogger(s.logger), sec.WithThrottle(gate), sec.WithObserver(metrics)).Tools()...)

	if len(registry.List()) == 0 {
		return nil, fmt.Errorf("no tools registered")
	}

	return &System{
		Registry:    registry,
		Credentials: creds,
		Metrics:     metrics,
		Prometheus:  promReg,
	}, nil
}

// applyOverrides folds the optional per-source config block into an
// adapter's defaults.
func applyOverrides(baseURL *string, timeout *time.Duration, maxInFlight *int, retry *httpclient.Policy, sc config.SourceConfig) {
	if sc.BaseURL != "" {
		*baseURL = sc.BaseURL
	}
	if sc.Timeout > 0 {
		*timeout = sc.Timeout
	}
	if sc.MaxInFlight > 0 {
		*maxInFlight = sc.MaxInFlight
	}
	if sc.MaxAttempts > 0 {
		retry.MaxAttempts = sc.MaxAttempts
	}
}
