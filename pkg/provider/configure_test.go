package provider

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/driftlabs/helmsman/pkg/errors"
	"github.com/driftlabs/helmsman/pkg/secrets"
)

const testEnvVar = "HELMSMAN_TEST_API_KEY"

func newTestStore(t *testing.T) *secrets.Store {
	t.Helper()
	store, err := secrets.Open(filepath.Join(t.TempDir(), "secrets.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConfigureSecretPersistsEnvValue(t *testing.T) {
	t.Setenv(testEnvVar, "from-env")
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := ConfigureSecret(ctx, Env{Secrets: store}, "demo", testEnvVar, "demo key")
	if err != nil || !ok {
		t.Fatalf("expected success, got ok=%v err=%v", ok, err)
	}
	value, found, err := store.Get(ctx, "demo", testEnvVar)
	if err != nil || !found || value != "from-env" {
		t.Errorf("expected persisted env value, got %q found=%v err=%v", value, found, err)
	}
}

func TestConfigureSecretPromptFallback(t *testing.T) {
	t.Setenv(testEnvVar, "")
	store := newTestStore(t)
	ctx := context.Background()

	env := Env{
		Secrets: store,
		Prompt:  func(string) (string, error) { return "typed-in\n", nil },
	}
	ok, err := ConfigureSecret(ctx, env, "demo", testEnvVar, "demo key")
	if err != nil || !ok {
		t.Fatalf("expected success, got ok=%v err=%v", ok, err)
	}
	value, _, _ := store.Get(ctx, "demo", testEnvVar)
	if value != "typed-in" {
		t.Errorf("expected trimmed prompt value, got %q", value)
	}
}

func TestConfigureSecretDeclineKeepsStoredValue(t *testing.T) {
	t.Setenv(testEnvVar, "")
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Set(ctx, "demo", testEnvVar, "original"); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	env := Env{
		Secrets: store,
		Prompt:  func(string) (string, error) { return "n", nil },
	}
	ok, err := ConfigureSecret(ctx, env, "demo", testEnvVar, "demo key")
	if err != nil || !ok {
		t.Fatalf("expected decline to count as configured, got ok=%v err=%v", ok, err)
	}
	value, _, _ := store.Get(ctx, "demo", testEnvVar)
	if value != "original" {
		t.Errorf("expected stored value untouched, got %q", value)
	}
}

func TestConfigureSecretReconfigurePromptsOverEnv(t *testing.T) {
	t.Setenv(testEnvVar, "stale-env-value")
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Set(ctx, "demo", testEnvVar, "original"); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	prompts := 0
	env := Env{
		Secrets: store,
		Prompt: func(string) (string, error) {
			prompts++
			if prompts == 1 {
				return "y", nil
			}
			return "replacement", nil
		},
	}
	ok, err := ConfigureSecret(ctx, env, "demo", testEnvVar, "demo key")
	if err != nil || !ok {
		t.Fatalf("expected success, got ok=%v err=%v", ok, err)
	}
	if prompts != 2 {
		t.Errorf("expected confirm then value prompt, got %d prompts", prompts)
	}
	value, _, _ := store.Get(ctx, "demo", testEnvVar)
	if value != "replacement" {
		t.Errorf("expected prompted replacement, not the exported env value, got %q", value)
	}
}

func TestConfigureSecretFailsWithoutAnySource(t *testing.T) {
	t.Setenv(testEnvVar, "")
	store := newTestStore(t)

	ok, err := ConfigureSecret(context.Background(), Env{Secrets: store}, "demo", testEnvVar, "demo key")
	if ok {
		t.Error("expected failure without env, store, or prompt")
	}
	if !errors.HasCode(err, errors.CodeConfiguration) {
		t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
	}
}
