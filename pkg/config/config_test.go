package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %q", cfg.Log.Level)
	}
	if cfg.Telemetry.Exporter != "stdout" {
		t.Errorf("expected default exporter stdout, got %q", cfg.Telemetry.Exporter)
	}
	if cfg.Secrets.Path == "" {
		t.Errorf("expected default secrets path")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
log:
  level: debug
  format: json
telemetry:
  exporter: otlp
  otlp_endpoint: localhost:4317
  otlp_insecure: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Telemetry.OTLPEndpoint != "localhost:4317" || !cfg.Telemetry.OTLPInsecure {
		t.Errorf("unexpected telemetry config: %+v", cfg.Telemetry)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HELMSMAN_LOG_LEVEL", "error")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("expected env override to win, got %q", cfg.Log.Level)
	}
}

const definitionYAML = `
name: starter
bio:
  - "An agent that keeps a Discord channel lively."
traits: [curious, concise]
examples:
  - "Short and punchy."
loop_delay: 900
use_time_based_weights: true
schedule:
  rules:
    - name: night-suppressed
      start_hour: 1
      end_hour: 5
      multiplier: 0.4
      tasks: [post-message]
tasks:
  - name: post-message
    weight: 10
  - name: reply-to-message
    weight: 5
providers:
  - name: openai
    model: gpt-4o-mini
  - name: discord
    channel_id: "42"
`

func TestLoadDefinition(t *testing.T) {
	path := writeFile(t, t.TempDir(), "agent.yaml", definitionYAML)
	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("LoadDefinition failed: %v", err)
	}
	if def.Name != "starter" {
		t.Errorf("expected name starter, got %q", def.Name)
	}
	if def.LoopDelay != 900 {
		t.Errorf("expected loop_delay 900, got %d", def.LoopDelay)
	}
	if def.FailureBackoff != 60 {
		t.Errorf("expected default failure_backoff 60, got %d", def.FailureBackoff)
	}
	if len(def.Tasks) != 2 || def.Tasks[0].Weight != 10 {
		t.Errorf("unexpected tasks: %+v", def.Tasks)
	}
	if len(def.Schedule.Rules) != 1 || def.Schedule.Rules[0].Multiplier != 0.4 {
		t.Errorf("unexpected rules: %+v", def.Schedule.Rules)
	}
	if len(def.Providers) != 2 {
		t.Fatalf("expected 2 provider blocks, got %d", len(def.Providers))
	}
	if def.Providers[1]["channel_id"] != "42" {
		t.Errorf("unexpected provider block: %v", def.Providers[1])
	}
}

func TestLoadDefinitionMissingFields(t *testing.T) {
	path := writeFile(t, t.TempDir(), "agent.yaml", "name: incomplete\n")
	_, err := LoadDefinition(path)
	if err == nil {
		t.Fatal("expected error for missing fields")
	}
	for _, field := range []string{"bio", "loop_delay", "tasks", "providers"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("expected error to name missing field %s, got %v", field, err)
		}
	}
}

func TestDefinitionValidate(t *testing.T) {
	base := func() *Definition {
		return &Definition{
			Name:           "a",
			LoopDelay:      10,
			FailureBackoff: 5,
			Tasks:          []TaskDefinition{{Name: "t", Weight: 1}},
			Providers:      []map[string]any{{"name": "echo"}},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("expected valid definition, got %v", err)
	}

	d := base()
	d.LoopDelay = 0
	if err := d.Validate(); err == nil {
		t.Errorf("expected error for zero loop_delay")
	}

	d = base()
	d.Tasks[0].Weight = -1
	if err := d.Validate(); err == nil {
		t.Errorf("expected error for negative weight")
	}

	d = base()
	d.Providers = append(d.Providers, map[string]any{})
	if err := d.Validate(); err == nil {
		t.Errorf("expected error for unnamed provider block")
	}
}
