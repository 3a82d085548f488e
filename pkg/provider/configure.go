package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/driftlabs/helmsman/pkg/errors"
	"github.com/driftlabs/helmsman/pkg/secrets"
)

// ConfigureSecret runs the shared credential acquisition flow for a single
// secret. Resolution order is the process environment, then the secret
// store, then an interactive prompt when one is available. Values resolved
// from the environment or a prompt are persisted so later runs work without
// the variable exported. Declining to reconfigure an already-stored secret
// returns true and leaves it untouched; confirming always prompts for the
// replacement value, since the environment still holds the old one.
func ConfigureSecret(ctx context.Context, env Env, providerName, envVar, label string) (bool, error) {
	reconfigure := false
	if _, ok := secrets.Lookup(ctx, env.Secrets, providerName, envVar); ok {
		if env.Prompt == nil {
			return true, nil
		}
		answer, err := env.Prompt(fmt.Sprintf("%s is already configured. Reconfigure? (y/n)", label))
		if err != nil {
			return false, err
		}
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			return true, nil
		}
		reconfigure = true
	}

	var value string
	if !reconfigure {
		value = os.Getenv(envVar)
	}
	if value == "" && env.Prompt != nil {
		answer, err := env.Prompt(fmt.Sprintf("Enter %s", label))
		if err != nil {
			return false, err
		}
		value = strings.TrimSpace(answer)
	}
	if value == "" {
		return false, errors.Newf(errors.CodeConfiguration,
			"%s is not set; export %s or run configure interactively", label, envVar)
	}

	if env.Secrets != nil {
		if err := env.Secrets.Set(ctx, providerName, envVar, value); err != nil {
			return false, errors.New(errors.CodeConfiguration, "failed to persist credential", err)
		}
	}
	return true, nil
}
