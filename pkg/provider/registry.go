package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/driftlabs/helmsman/pkg/errors"
	"github.com/driftlabs/helmsman/pkg/telemetry"
)

// Registry holds all configured providers by name. It is constructed once
// at startup and passed by reference to the dispatcher and the agent loop;
// there is no ambient global registry.
type Registry struct {
	env       Env
	log       *slog.Logger
	tracer    trace.Tracer
	metrics   *telemetry.RuntimeMetrics
	factories map[string]Factory
	order     []string
	providers map[string]Provider
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMetrics attaches runtime metrics to the dispatch path.
func WithMetrics(m *telemetry.RuntimeMetrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty registry bound to the given environment.
func NewRegistry(env Env, opts ...RegistryOption) *Registry {
	r := &Registry{
		env:       env,
		log:       slog.Default(),
		tracer:    otel.Tracer("helmsman/registry"),
		factories: make(map[string]Factory),
		providers: make(map[string]Provider),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterFactory binds a provider name to its constructor.
func (r *Registry) RegisterFactory(name string, factory Factory) {
	r.factories[name] = factory
}

// Register instantiates the provider bound to the config block's name and
// stores it. Construction failure is logged and the provider is simply
// absent afterward: an explicitly degraded mode, never a fatal error.
func (r *Registry) Register(ctx context.Context, cfg map[string]any) {
	name, err := RequiredString(cfg, "name")
	if err != nil {
		r.log.Error("provider config block has no name", slog.String("error", err.Error()))
		return
	}
	factory, ok := r.factories[name]
	if !ok {
		r.log.Error("unknown provider", slog.String("provider", name))
		r.metrics.RecordRegistrationFailure(ctx, name)
		return
	}
	p, err := factory(cfg, r.env)
	if err != nil {
		r.log.Error("failed to initialize provider",
			slog.String("provider", name),
			slog.String("error", err.Error()),
		)
		r.metrics.RecordRegistrationFailure(ctx, name)
		return
	}
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
	r.log.Info("registered provider", slog.String("provider", name))
}

// Get returns the provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "unknown provider %q", name)
	}
	return p, nil
}

// Names returns registered provider names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// LLMProviders returns the names of providers that are both configured and
// LLM-capable, in registration order. The agent picks the first as its
// default text generator.
func (r *Registry) LLMProviders(ctx context.Context) []string {
	var names []string
	for _, name := range r.order {
		p := r.providers[name]
		if p.LLMProvider() && p.IsConfigured(ctx, false) {
			names = append(names, name)
		}
	}
	return names
}

// Configure runs a provider's credential setup, reporting success as a
// boolean so interactive retry flows can re-prompt.
func (r *Registry) Configure(ctx context.Context, name string) bool {
	p, err := r.Get(name)
	if err != nil {
		r.log.Error("unknown provider", slog.String("provider", name))
		return false
	}
	ok, err := p.Configure(ctx)
	if err != nil {
		r.log.Error("failed to configure provider",
			slog.String("provider", name),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

// Dispatch validates and routes one operation invocation. Positional
// parameters map onto the operation's declared parameter order, filling
// from the front: extras beyond the declared count are silently dropped
// and unfilled trailing optionals are simply omitted. Callers must supply
// values in declared order with required parameters declared first.
func (r *Registry) Dispatch(ctx context.Context, providerName, operation string, positional []any) (result any, err error) {
	dispatchID := uuid.NewString()
	ctx, span := r.tracer.Start(ctx, "Registry.Dispatch", trace.WithAttributes(
		attribute.String("provider", providerName),
		attribute.String("operation", operation),
		attribute.String("dispatch.id", dispatchID),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		r.metrics.RecordDispatch(ctx, providerName, operation, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			r.log.Error("dispatch failed",
				slog.String("provider", providerName),
				slog.String("operation", operation),
				slog.String("dispatch_id", dispatchID),
				slog.String("error", err.Error()),
			)
		}
	}()

	p, err := r.Get(providerName)
	if err != nil {
		return nil, err
	}
	if !p.IsConfigured(ctx, false) {
		return nil, errors.Newf(errors.CodeNotConfigured, "provider %q is not configured", providerName).
			WithRecoverable(true)
	}
	op, found := findOperation(p, operation)
	if !found {
		return nil, errors.Newf(errors.CodeUnknownOperation,
			"unknown operation %q for provider %q", operation, providerName)
	}

	params := make(map[string]any, len(op.Params))
	for i, decl := range op.Params {
		if i >= len(positional) {
			break
		}
		params[decl.Name] = positional[i]
	}

	result, err = p.Perform(ctx, operation, params)
	if err != nil {
		// Providers return typed errors; anything else is folded here so
		// no raw error escapes the dispatch boundary.
		return nil, errors.As(err)
	}
	r.log.Debug("dispatch complete",
		slog.String("provider", providerName),
		slog.String("operation", operation),
		slog.String("dispatch_id", dispatchID),
	)
	return result, nil
}

func findOperation(p Provider, name string) (Operation, bool) {
	for _, op := range p.Operations() {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}
