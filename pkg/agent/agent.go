// Package agent runs one autonomous agent: a weighted scheduler drawing
// actions that dispatch provider operations, inside a loop that survives
// any single iteration's failure.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/driftlabs/helmsman/pkg/config"
	"github.com/driftlabs/helmsman/pkg/errors"
	"github.com/driftlabs/helmsman/pkg/provider"
	"github.com/driftlabs/helmsman/pkg/scheduler"
	"github.com/driftlabs/helmsman/pkg/telemetry"
)

// Status is the loop lifecycle state.
type Status int32

const (
	StatusIdle Status = iota
	StatusRunning
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "RUNNING"
	case StatusStopped:
		return "STOPPED"
	default:
		return "IDLE"
	}
}

const defaultPostInterval = 900 * time.Second

// Agent binds a definition to a populated registry and drives the loop.
type Agent struct {
	def      *config.Definition
	registry *provider.Registry
	sched    *scheduler.Scheduler
	log      *slog.Logger
	tracer   trace.Tracer
	metrics  *telemetry.RuntimeMetrics
	state    *State
	actions  map[string]ActionFunc

	systemPrompt string
	msgProvider  string
	mentions     <-chan provider.InboundMessage
	status       atomic.Int32

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) {
		if log != nil {
			a.log = log
		}
	}
}

// WithMetrics attaches runtime metrics to the loop.
func WithMetrics(m *telemetry.RuntimeMetrics) Option {
	return func(a *Agent) {
		a.metrics = m
	}
}

// WithAction binds a custom action name before task resolution runs.
func WithAction(name string, fn ActionFunc) Option {
	return func(a *Agent) {
		if name != "" && fn != nil {
			a.actions[name] = fn
		}
	}
}

// New builds an agent from a validated definition and an already-populated
// registry. Every task in the definition must resolve to an action binding.
func New(def *config.Definition, registry *provider.Registry, opts ...Option) (*Agent, error) {
	if def == nil {
		return nil, errors.New(errors.CodeConfiguration, "agent definition is required", nil)
	}
	if registry == nil {
		return nil, errors.New(errors.CodeConfiguration, "provider registry is required", nil)
	}

	tasks := make([]scheduler.Task, 0, len(def.Tasks))
	for _, t := range def.Tasks {
		tasks = append(tasks, scheduler.Task{Name: t.Name, Weight: t.Weight})
	}
	rules := make([]scheduler.Rule, 0, len(def.Schedule.Rules))
	for _, r := range def.Schedule.Rules {
		rules = append(rules, scheduler.Rule{
			Name:       r.Name,
			StartHour:  r.StartHour,
			EndHour:    r.EndHour,
			Multiplier: r.Multiplier,
			Tasks:      r.Tasks,
		})
	}
	sched, err := scheduler.New(tasks, rules)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		def:          def,
		registry:     registry,
		sched:        sched,
		log:          slog.Default(),
		tracer:       otel.Tracer("helmsman/agent"),
		state:        NewState(),
		actions:      builtinActions(),
		systemPrompt: composeSystemPrompt(def),
		now:          time.Now,
		sleep:        sleepCtx,
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, t := range def.Tasks {
		if _, ok := a.actions[t.Name]; !ok {
			return nil, errors.Newf(errors.CodeConfiguration,
				"task %q has no registered action", t.Name)
		}
	}
	return a, nil
}

// Status returns the loop lifecycle state.
func (a *Agent) Status() Status {
	return Status(a.status.Load())
}

// State exposes the agent's working memory. Only the loop goroutine may
// mutate it.
func (a *Agent) State() *State {
	return a.state
}

// SystemPrompt returns the persona prompt composed at construction.
func (a *Agent) SystemPrompt() string {
	return a.systemPrompt
}

// PromptLLM generates text through the first configured LLM provider.
func (a *Agent) PromptLLM(ctx context.Context, prompt string) (string, error) {
	names := a.registry.LLMProviders(ctx)
	if len(names) == 0 {
		return "", errors.New(errors.CodeNotConfigured, "no configured LLM provider", nil).
			WithRecoverable(true)
	}
	result, err := a.registry.Dispatch(ctx, names[0], "generate-text", []any{prompt, a.systemPrompt})
	if err != nil {
		return "", err
	}
	text, ok := result.(string)
	if !ok {
		return "", errors.Newf(errors.CodeInternal, "generate-text returned %T, expected string", result)
	}
	return text, nil
}

// Run drives the loop until ctx is cancelled. A failed or panicking
// iteration backs off and continues; only cancellation stops the loop.
func (a *Agent) Run(ctx context.Context) error {
	a.status.Store(int32(StatusRunning))
	defer a.status.Store(int32(StatusStopped))

	a.startMentionStream(ctx)
	a.log.Info("agent loop starting",
		slog.String("agent", a.def.Name),
		slog.Int("tasks", len(a.def.Tasks)),
	)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("agent loop stopped", slog.String("agent", a.def.Name))
			return nil
		default:
		}

		task, success := a.iterate(ctx)
		delay := time.Duration(a.def.LoopDelay) * time.Second
		if !success {
			delay = time.Duration(a.def.FailureBackoff) * time.Second
			a.log.Warn("iteration failed, backing off",
				slog.String("task", task),
				slog.Duration("backoff", delay),
			)
		}
		if err := a.sleep(ctx, delay); err != nil {
			a.log.Info("agent loop stopped", slog.String("agent", a.def.Name))
			return nil
		}
	}
}

// iterate runs one loop tick. Panics are recovered here so the loop's
// failure domain is exactly one iteration.
func (a *Agent) iterate(ctx context.Context) (taskName string, success bool) {
	runID := uuid.NewString()
	ctx, span := a.tracer.Start(ctx, "Agent.Iteration", trace.WithAttributes(
		attribute.String("run.id", runID),
	))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("iteration panicked",
				slog.Any("panic", r),
				slog.String("run_id", runID),
			)
			success = false
		}
		a.metrics.RecordIteration(ctx, taskName, success)
	}()

	a.drainMentions()
	a.replenishTimeline(ctx)

	task, err := a.sched.Pick(a.now().Hour(), a.def.UseTimeBasedWeights)
	if err != nil {
		a.log.Error("scheduler draw failed", slog.String("error", err.Error()))
		return "", false
	}
	taskName = task.Name
	span.SetAttributes(attribute.String("task", taskName))

	ok, err := a.actions[taskName](ctx, a)
	if err != nil {
		span.RecordError(err)
		a.log.Error("action failed",
			slog.String("task", taskName),
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		return taskName, false
	}
	return taskName, ok
}

// drainMentions folds everything the listener pushed since the last
// iteration into state. Never blocks.
func (a *Agent) drainMentions() {
	for a.mentions != nil {
		select {
		case msg, ok := <-a.mentions:
			if !ok {
				a.mentions = nil
				return
			}
			a.state.PushMessages(stateMentions, msg)
		default:
			return
		}
	}
}

// replenishTimeline fetches channel history at most once per iteration,
// and only when the queue ran dry. Stale timelines are acceptable.
func (a *Agent) replenishTimeline(ctx context.Context) {
	if len(a.state.Messages(stateTimeline)) > 0 {
		return
	}
	name, ok := a.messagingProvider(ctx)
	if !ok {
		return
	}
	result, err := a.registry.Dispatch(ctx, name, "read-channel", nil)
	if err != nil {
		a.log.Warn("timeline fetch failed", slog.String("error", err.Error()))
		return
	}
	if msgs, ok := result.([]provider.InboundMessage); ok {
		a.state.PushMessages(stateTimeline, msgs...)
	}
}

func (a *Agent) startMentionStream(ctx context.Context) {
	name, ok := a.messagingProvider(ctx)
	if !ok {
		return
	}
	p, err := a.registry.Get(name)
	if err != nil {
		return
	}
	src, ok := p.(provider.MentionSource)
	if !ok {
		return
	}
	ch, err := src.StreamMentions(ctx)
	if err != nil {
		a.log.Warn("mention stream unavailable", slog.String("error", err.Error()))
		return
	}
	a.mentions = ch
	a.log.Info("mention stream started", slog.String("provider", name))
}

// messagingProvider resolves the first registered provider exposing
// send-message, caching the name after the first hit.
func (a *Agent) messagingProvider(ctx context.Context) (string, bool) {
	if a.msgProvider != "" {
		return a.msgProvider, true
	}
	for _, name := range a.registry.Names() {
		p, err := a.registry.Get(name)
		if err != nil {
			continue
		}
		for _, op := range p.Operations() {
			if op.Name == "send-message" {
				a.msgProvider = name
				return name, true
			}
		}
	}
	return "", false
}

// postInterval reads the messaging provider's pacing, falling back to the
// package default.
func (a *Agent) postInterval(name string) time.Duration {
	p, err := a.registry.Get(name)
	if err != nil {
		return defaultPostInterval
	}
	if paced, ok := p.(interface{ PostInterval() int }); ok {
		return time.Duration(paced.PostInterval()) * time.Second
	}
	return defaultPostInterval
}

func composeSystemPrompt(def *config.Definition) string {
	var b strings.Builder
	b.WriteString("You are " + def.Name + ".\n")
	for _, line := range def.Bio {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(def.Traits) > 0 {
		b.WriteString("\nYour personality traits: " + strings.Join(def.Traits, ", ") + ".\n")
	}
	if len(def.Examples) > 0 {
		b.WriteString("\nExamples of your style:\n")
		for _, example := range def.Examples {
			b.WriteString("- " + example + "\n")
		}
	}
	return b.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
