// SPDX-License-Identifier: Apache-2.0
package errors

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("connection refused")
	he := New(CodeProvider, "rpc call failed", cause)

	if he.Code != CodeProvider {
		t.Errorf("expected CodeProvider, got %v", he.Code)
	}
	if he.Message != "rpc call failed" {
		t.Errorf("expected message 'rpc call failed', got %q", he.Message)
	}
	if he.Err != cause {
		t.Errorf("expected cause to be preserved")
	}
	if !errors.Is(he, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestWithViolations(t *testing.T) {
	he := Newf(CodeInvalidParameters, "validation failed for %s", "say").
		WithViolations("missing required parameter: text").
		WithViolations("invalid type for count, expected int")

	if len(he.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(he.Violations))
	}
	msg := he.Error()
	if !strings.Contains(msg, "missing required parameter: text") {
		t.Errorf("expected violations in message, got %q", msg)
	}
	if !strings.Contains(msg, "invalid type for count") {
		t.Errorf("expected all violations in message, got %q", msg)
	}
}

func TestWithRecoverable(t *testing.T) {
	he := New(CodeConfiguration, "missing api key", nil)
	if he.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}
	he.WithRecoverable(true)
	if !he.Recoverable {
		t.Errorf("expected recoverable to be true after WithRecoverable")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		he       *Error
		expected string
	}{
		{
			name:     "with cause",
			he:       New(CodeProvider, "timeline fetch failed", errors.New("status 500")),
			expected: "[PROVIDER_ERROR] timeline fetch failed: status 500",
		},
		{
			name:     "without cause",
			he:       New(CodeNotFound, "unknown provider ghost", nil),
			expected: "[NOT_FOUND] unknown provider ghost",
		},
		{
			name:     "with violations",
			he:       New(CodeInvalidParameters, "invalid invocation", nil).WithViolations("missing required parameter: text"),
			expected: "[INVALID_PARAMETERS] invalid invocation: missing required parameter: text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.he.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestAs(t *testing.T) {
	he := New(CodeNotConfigured, "discord is not configured", nil)
	if As(he) != he {
		t.Errorf("expected As to return the same typed error")
	}

	plain := errors.New("boom")
	wrapped := As(plain)
	if wrapped.Code != CodeInternal {
		t.Errorf("expected untyped errors to wrap as internal, got %v", wrapped.Code)
	}
	if !errors.Is(wrapped, plain) {
		t.Errorf("expected wrapped error chain to preserve cause")
	}

	if As(nil) != nil {
		t.Errorf("expected As(nil) to return nil")
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(New(CodeUnknownOperation, "no such op", nil)) != CodeUnknownOperation {
		t.Errorf("expected CodeUnknownOperation")
	}
	if CodeOf(errors.New("boom")) != CodeInternal {
		t.Errorf("expected untyped errors to report CodeInternal")
	}
	if CodeOf(nil) != "" {
		t.Errorf("expected empty code for nil")
	}
}

func TestHasCode(t *testing.T) {
	err := New(CodeInvalidParameters, "bad params", nil)
	if !HasCode(err, CodeInvalidParameters) {
		t.Errorf("expected HasCode to match")
	}
	if HasCode(err, CodeProvider) {
		t.Errorf("expected HasCode to reject other codes")
	}
	if HasCode(errors.New("boom"), CodeInternal) {
		t.Errorf("expected HasCode to reject untyped errors")
	}
}

func TestMarshalJSON(t *testing.T) {
	he := New(CodeInvalidParameters, "validation failed", nil).
		WithViolations("missing required parameter: text")
	data, err := json.Marshal(he)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["code"] != "INVALID_PARAMETERS" {
		t.Errorf("expected code field, got %v", decoded["code"])
	}
	if _, ok := decoded["violations"]; !ok {
		t.Errorf("expected violations field in JSON output")
	}
}
