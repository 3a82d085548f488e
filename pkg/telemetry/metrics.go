// Copyright 2026 © The Helmsman Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RuntimeMetrics tracks dispatch and loop behavior for production monitoring.
type RuntimeMetrics struct {
	// dispatchCounter tracks dispatches by provider, operation, and outcome
	dispatchCounter metric.Int64Counter

	// dispatchDuration tracks dispatch latency in milliseconds
	dispatchDuration metric.Float64Histogram

	// iterationCounter tracks loop iterations by outcome
	iterationCounter metric.Int64Counter

	// registrationFailures tracks providers that failed construction
	registrationFailures metric.Int64Counter
}

// NewRuntimeMetrics creates the runtime metrics set on the global meter.
func NewRuntimeMetrics() (*RuntimeMetrics, error) {
	meter := otel.Meter("helmsman/runtime")

	dispatchCounter, err := meter.Int64Counter(
		"helmsman.dispatch.total",
		metric.WithDescription("Dispatched operations by provider, operation, and outcome"),
	)
	if err != nil {
		return nil, err
	}

	dispatchDuration, err := meter.Float64Histogram(
		"helmsman.dispatch.duration",
		metric.WithDescription("Dispatch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	iterationCounter, err := meter.Int64Counter(
		"helmsman.loop.iterations",
		metric.WithDescription("Agent loop iterations by outcome"),
	)
	if err != nil {
		return nil, err
	}

	registrationFailures, err := meter.Int64Counter(
		"helmsman.providers.registration_failures",
		metric.WithDescription("Providers that failed construction"),
	)
	if err != nil {
		return nil, err
	}

	return &RuntimeMetrics{
		dispatchCounter:      dispatchCounter,
		dispatchDuration:     dispatchDuration,
		iterationCounter:     iterationCounter,
		registrationFailures: registrationFailures,
	}, nil
}

// RecordDispatch records one dispatch with its outcome and latency.
func (m *RuntimeMetrics) RecordDispatch(ctx context.Context, providerName, operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", providerName),
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	)
	m.dispatchCounter.Add(ctx, 1, attrs)
	m.dispatchDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}

// RecordIteration records one agent loop iteration outcome.
func (m *RuntimeMetrics) RecordIteration(ctx context.Context, task string, success bool) {
	if m == nil {
		return
	}
	m.iterationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", task),
		attribute.Bool("success", success),
	))
}

// RecordRegistrationFailure records a provider that failed construction.
func (m *RuntimeMetrics) RecordRegistrationFailure(ctx context.Context, providerName string) {
	if m == nil {
		return
	}
	m.registrationFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", providerName),
	))
}
