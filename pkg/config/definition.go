package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Definition is one agent's declaration: persona, pacing, weighted tasks,
// schedule rules, and the provider configuration blocks to register.
type Definition struct {
	Name                string           `koanf:"name"`
	Bio                 []string         `koanf:"bio"`
	Traits              []string         `koanf:"traits"`
	Examples            []string         `koanf:"examples"`
	LoopDelay           int              `koanf:"loop_delay"`       // seconds between iterations on success
	FailureBackoff      int              `koanf:"failure_backoff"`  // seconds after a failed iteration
	UseTimeBasedWeights bool             `koanf:"use_time_based_weights"`
	Schedule            Schedule         `koanf:"schedule"`
	Tasks               []TaskDefinition `koanf:"tasks"`
	Providers           []map[string]any `koanf:"providers"`
}

// TaskDefinition binds a registered action name to a scheduling weight.
type TaskDefinition struct {
	Name   string  `koanf:"name"`
	Weight float64 `koanf:"weight"`
}

// Schedule holds the time-of-day multiplier rules.
type Schedule struct {
	Rules []ScheduleRule `koanf:"rules"`
}

// ScheduleRule multiplies the weights of named tasks during an hour range.
type ScheduleRule struct {
	Name       string   `koanf:"name"`
	StartHour  int      `koanf:"start_hour"`
	EndHour    int      `koanf:"end_hour"`
	Multiplier float64  `koanf:"multiplier"`
	Tasks      []string `koanf:"tasks"`
}

// requiredDefinitionFields mirrors the fields an agent file must declare.
var requiredDefinitionFields = []string{"name", "bio", "loop_delay", "tasks", "providers"}

// LoadDefinition reads and validates an agent definition file.
func LoadDefinition(path string) (*Definition, error) {
	k := koanf.New(".")

	k.Set("failure_backoff", 60)

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load agent definition: %w", err)
	}

	var missing []string
	for _, field := range requiredDefinitionFields {
		if !k.Exists(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("agent definition missing required fields: %s", strings.Join(missing, ", "))
	}

	var def Definition
	if err := k.Unmarshal("", &def); err != nil {
		return nil, fmt.Errorf("parse agent definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the definition's internal consistency.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	if d.LoopDelay <= 0 {
		return fmt.Errorf("loop_delay must be positive")
	}
	if d.FailureBackoff <= 0 {
		return fmt.Errorf("failure_backoff must be positive")
	}
	if len(d.Tasks) == 0 {
		return fmt.Errorf("at least one task is required")
	}
	for _, t := range d.Tasks {
		if t.Name == "" {
			return fmt.Errorf("every task needs a name")
		}
		if t.Weight < 0 {
			return fmt.Errorf("task %s has negative weight", t.Name)
		}
	}
	for _, block := range d.Providers {
		if name, _ := block["name"].(string); name == "" {
			return fmt.Errorf("every provider config block needs a name")
		}
	}
	return nil
}
