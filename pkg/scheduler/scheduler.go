// Package scheduler draws one weighted task per loop tick, optionally
// adjusting weights by time of day.
package scheduler

import (
	"math"
	"math/rand/v2"

	"github.com/driftlabs/helmsman/pkg/errors"
)

// Task is a named, weighted unit of schedulable behavior bound to one action.
type Task struct {
	Name   string
	Weight float64
}

// Rule multiplies the weights of the tasks it names while the current local
// hour falls inside [StartHour, EndHour] (inclusive, wrap-around allowed).
// Rules come from configuration; tasks a rule does not name are unaffected.
type Rule struct {
	Name       string
	StartHour  int
	EndHour    int
	Multiplier float64
	Tasks      []string
}

// Matches reports whether the rule applies at the given hour.
func (r Rule) Matches(hour int) bool {
	if r.StartHour <= r.EndHour {
		return hour >= r.StartHour && hour <= r.EndHour
	}
	// Wrap-around range, e.g. 22-04.
	return hour >= r.StartHour || hour <= r.EndHour
}

func (r Rule) appliesTo(task string) bool {
	for _, name := range r.Tasks {
		if name == task {
			return true
		}
	}
	return false
}

// Scheduler holds the base task weights and multiplier rules. Base weights
// are never mutated: each tick works on a copy.
type Scheduler struct {
	tasks     []Task
	rules     []Rule
	randFloat func() float64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRandFloat injects the random source, for deterministic tests.
// The function must return values in [0, 1).
func WithRandFloat(fn func() float64) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.randFloat = fn
		}
	}
}

// New validates the task and rule configuration and builds a scheduler.
func New(tasks []Task, rules []Rule, opts ...Option) (*Scheduler, error) {
	if len(tasks) == 0 {
		return nil, errors.New(errors.CodeConfiguration, "at least one task is required", nil)
	}
	for _, t := range tasks {
		if t.Name == "" {
			return nil, errors.New(errors.CodeConfiguration, "task name is required", nil)
		}
		if t.Weight < 0 || math.IsNaN(t.Weight) {
			return nil, errors.Newf(errors.CodeConfiguration, "task %s has invalid weight %v", t.Name, t.Weight)
		}
	}
	for _, r := range rules {
		if r.Multiplier <= 0 || math.IsNaN(r.Multiplier) {
			return nil, errors.Newf(errors.CodeConfiguration, "rule %s has invalid multiplier %v", r.Name, r.Multiplier)
		}
		if r.StartHour < 0 || r.StartHour > 23 || r.EndHour < 0 || r.EndHour > 23 {
			return nil, errors.Newf(errors.CodeConfiguration, "rule %s has hours outside 0-23", r.Name)
		}
	}
	s := &Scheduler{
		tasks:     append([]Task(nil), tasks...),
		rules:     append([]Rule(nil), rules...),
		randFloat: rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tasks returns a copy of the configured tasks.
func (s *Scheduler) Tasks() []Task {
	return append([]Task(nil), s.tasks...)
}

// EffectiveWeights returns the weight vector after applying every rule that
// matches the given hour. The stored base weights are left untouched.
func (s *Scheduler) EffectiveWeights(hour int) []float64 {
	weights := make([]float64, len(s.tasks))
	for i, t := range s.tasks {
		weights[i] = t.Weight
	}
	for _, rule := range s.rules {
		if !rule.Matches(hour) {
			continue
		}
		for i, t := range s.tasks {
			if rule.appliesTo(t.Name) {
				weights[i] *= rule.Multiplier
			}
		}
	}
	return weights
}

// Pick draws exactly one task with probability proportional to its
// effective weight. It is a pure query: scheduler state never changes.
// A zero weight sum is a configuration error, not a division by zero.
func (s *Scheduler) Pick(hour int, timeBased bool) (Task, error) {
	var weights []float64
	if timeBased {
		weights = s.EffectiveWeights(hour)
	} else {
		weights = make([]float64, len(s.tasks))
		for i, t := range s.tasks {
			weights[i] = t.Weight
		}
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return Task{}, errors.New(errors.CodeConfiguration,
			"task weights sum to zero, nothing can be scheduled", nil)
	}

	target := s.randFloat() * sum
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if target < cumulative {
			return s.tasks[i], nil
		}
	}
	// Floating point edge: fall back to the last positive-weight task.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return s.tasks[i], nil
		}
	}
	return Task{}, errors.New(errors.CodeConfiguration,
		"task weights sum to zero, nothing can be scheduled", nil)
}
