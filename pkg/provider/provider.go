// Package provider defines the capability-provider contract: named
// operations with typed parameters, the registry that holds configured
// providers, and the dispatch path that validates and routes invocations.
package provider

import (
	"context"
	"fmt"

	"github.com/driftlabs/helmsman/pkg/errors"
	"github.com/driftlabs/helmsman/pkg/secrets"
)

// Provider is a self-contained adapter exposing a fixed set of named
// operations over one external capability. Implementations own their
// credential lifecycle and their own timeout policy.
type Provider interface {
	// Name returns the provider's unique registry name.
	Name() string

	// LLMProvider reports whether the provider can generate text. The
	// agent uses this tag to auto-select a text-generation backend.
	LLMProvider() bool

	// Configure acquires and persists credentials. It must be idempotent:
	// re-running against an already-configured provider never corrupts
	// stored state. The boolean mirrors success for interactive retry
	// flows; failures are reported, not raised.
	Configure(ctx context.Context) (bool, error)

	// IsConfigured reports whether the provider is usable. It never
	// errors: all failures, including network probes in verbose mode,
	// fold into false.
	IsConfigured(ctx context.Context, verbose bool) bool

	// Operations returns the provider's operations in declaration order.
	Operations() []Operation

	// Perform executes one operation with named parameters.
	Perform(ctx context.Context, operation string, params map[string]any) (any, error)
}

// Env carries the shared dependencies handed to provider factories.
type Env struct {
	Secrets *secrets.Store

	// Prompt asks the operator for a value during interactive Configure
	// flows. Nil outside interactive sessions; providers fall back to
	// environment variables and stored secrets when it is unset.
	Prompt func(label string) (string, error)
}

// Factory constructs a provider from its validated configuration block.
type Factory func(cfg map[string]any, env Env) (Provider, error)

// RequiredString extracts a mandatory string field from a config block.
func RequiredString(cfg map[string]any, key string) (string, error) {
	v, ok := cfg[key]
	if !ok {
		return "", errors.Newf(errors.CodeConfiguration, "missing required configuration field: %s", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", errors.Newf(errors.CodeConfiguration, "configuration field %s must be a non-empty string", key)
	}
	return s, nil
}

// OptionalString extracts an optional string field, returning def when absent.
func OptionalString(cfg map[string]any, key, def string) (string, error) {
	v, ok := cfg[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Newf(errors.CodeConfiguration, "configuration field %s must be a string", key)
	}
	return s, nil
}

// OptionalInt extracts an optional integer field, returning def when absent.
// YAML and JSON decoders disagree on number types, so both paths are handled.
func OptionalInt(cfg map[string]any, key string, def int) (int, error) {
	v, ok := cfg[key]
	if !ok {
		return def, nil
	}
	coerced, err := Coerce(KindInt, v)
	if err != nil {
		return 0, errors.New(errors.CodeConfiguration,
			fmt.Sprintf("configuration field %s must be an integer", key), err)
	}
	return coerced.(int), nil
}

// OptionalStringList extracts an optional list-of-strings field.
func OptionalStringList(cfg map[string]any, key string) ([]string, error) {
	v, ok := cfg[key]
	if !ok {
		return nil, nil
	}
	coerced, err := Coerce(KindStringList, v)
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration,
			fmt.Sprintf("configuration field %s must be a list of strings", key), err)
	}
	return coerced.([]string), nil
}
