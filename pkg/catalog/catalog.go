// Package catalog owns the static tool catalog and the dispatch boundary.
//
// Tools are registered once at startup; List order is registration order
// and stable for the process lifetime. Call never lets a fault escape:
// unknown names, invalid arguments, upstream failures and panics all
// resolve into an Envelope.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/usdatahub/usdata-mcp/pkg/envelope"
	"github.com/usdatahub/usdata-mcp/pkg/schema"
)

// Operation is one adapter-bound tool implementation. Arguments arrive
// already validated against the descriptor's schema.
type Operation func(ctx context.Context, args map[string]any) envelope.Envelope

// Descriptor describes one registered tool.
type Descriptor struct {
	Name        string
	Description string
	Source      string // source id, e.g. "census"
	Schema      schema.Schema
	Op          Operation
}

// CallObserver receives one signal per completed call. Implemented by the
// metrics layer.
type CallObserver interface {
	ObserveCall(tool string, success bool)
}

// Registry is the static dispatch table. Built once at startup, read-only
// afterwards, so lookups need no locking.
type Registry struct {
	order    []string
	tools    map[string]Descriptor
	timeout  time.Duration
	logger   *slog.Logger
	observer CallObserver
}

// Option configures a Registry.
type Option func(*Registry)

// WithCallTimeout sets the default deadline applied to each call.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithObserver sets the call metrics hook.
func WithObserver(obs CallObserver) Option {
	return func(r *Registry) {
		r.observer = obs
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		tools:   map[string]Descriptor{},
		timeout: 2 * time.Minute,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Duplicate names are a startup configuration error.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("catalog: tool name is empty")
	}
	if d.Op == nil {
		return fmt.Errorf("catalog: tool %q has no operation", d.Name)
	}
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("catalog: duplicate tool %q", d.Name)
	}
	r.tools[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// MustRegister registers a batch of descriptors and panics on a bad
// catalog. Only called during startup wiring.
func (r *Registry) MustRegister(descriptors ...Descriptor) {
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// List returns the descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Call validates the arguments and dispatches to the bound operation. Every
// code path, including a panicking adapter, funnels into an Envelope.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (env envelope.Envelope) {
	requestID := uuid.NewString()
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool call panicked", "tool", name, "request_id", requestID, "panic", rec)
			env = envelope.Fail(fmt.Sprintf("internal error: %v", rec), map[string]any{})
		}
		if env.Metadata == nil {
			env.Metadata = map[string]any{}
		}
		env.Metadata["request_id"] = requestID
		if r.observer != nil {
			r.observer.ObserveCall(name, env.Success)
		}
		r.logger.Debug("tool call finished",
			"tool", name, "request_id", requestID,
			"success", env.Success, "duration", time.Since(start))
	}()

	tool, ok := r.tools[name]
	if !ok {
		return envelope.NotFound(name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := schema.Validate(tool.Schema, args); err != nil {
		return envelope.ValidationFailure(firstReason(err), map[string]any{"tool": name})
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return tool.Op(callCtx, args)
}

// firstReason renders the leading validation failure as "<field>: <reason>".
func firstReason(err error) string {
	if errs := schema.ValidationErrors(err); len(errs) > 0 {
		return errs[0].Error()
	}
	return err.Error()
}
