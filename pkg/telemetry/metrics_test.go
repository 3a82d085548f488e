// Copyright 2026 © The Helmsman Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRuntimeMetrics(t *testing.T) {
	m, err := NewRuntimeMetrics()
	if err != nil {
		t.Fatalf("NewRuntimeMetrics failed: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil RuntimeMetrics")
	}
}

func TestRecordDispatch(t *testing.T) {
	m, _ := NewRuntimeMetrics()
	ctx := context.Background()

	m.RecordDispatch(ctx, "openai", "generate-text", nil, 120*time.Millisecond)
	m.RecordDispatch(ctx, "discord", "send-message", errors.New("boom"), time.Millisecond)
}

func TestRecordIteration(t *testing.T) {
	m, _ := NewRuntimeMetrics()
	ctx := context.Background()

	m.RecordIteration(ctx, "post-message", true)
	m.RecordIteration(ctx, "reply-to-message", false)
	m.RecordIteration(ctx, "", false)
}

func TestNilRuntimeMetricsIsSafe(t *testing.T) {
	// The registry and loop call these unconditionally; a nil receiver
	// must be a no-op.
	var m *RuntimeMetrics
	ctx := context.Background()

	m.RecordDispatch(ctx, "openai", "generate-text", nil, time.Second)
	m.RecordIteration(ctx, "post-message", true)
	m.RecordRegistrationFailure(ctx, "discord")
}
