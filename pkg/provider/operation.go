package provider

import (
	"context"
	"fmt"

	"github.com/driftlabs/helmsman/pkg/errors"
)

// Handler executes one operation with validated, coerced parameters.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Operation is one named, parameter-typed function a provider exposes.
// Operations are immutable after provider construction.
type Operation struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// Validate checks params against the declared parameter list, coercing
// values to their declared kinds. It aggregates every violation found
// rather than stopping at the first, and returns the coerced copy so a
// failed validation leaks nothing into the caller's map.
func (o Operation) Validate(params map[string]any) (map[string]any, []string) {
	coerced := make(map[string]any, len(params))
	var violations []string
	for _, p := range o.Params {
		value, present := params[p.Name]
		if !present {
			if p.Required {
				violations = append(violations, fmt.Sprintf("missing required parameter: %s", p.Name))
			}
			continue
		}
		converted, err := Coerce(p.Kind, value)
		if err != nil {
			violations = append(violations, fmt.Sprintf("invalid type for %s, expected %s", p.Name, p.Kind))
			continue
		}
		coerced[p.Name] = converted
	}
	return coerced, violations
}

// OperationSet holds a provider's operations keyed by name, preserving
// declaration order. It is populated once at provider construction.
type OperationSet struct {
	order []string
	ops   map[string]Operation
}

// NewOperationSet builds an operation set, rejecting duplicate names,
// missing handlers, and unsupported parameter kinds up front.
func NewOperationSet(ops ...Operation) (*OperationSet, error) {
	s := &OperationSet{ops: make(map[string]Operation, len(ops))}
	for _, op := range ops {
		if op.Name == "" {
			return nil, errors.New(errors.CodeConfiguration, "operation name is required", nil)
		}
		if op.Handler == nil {
			return nil, errors.Newf(errors.CodeConfiguration, "operation %s has no handler", op.Name)
		}
		if _, exists := s.ops[op.Name]; exists {
			return nil, errors.Newf(errors.CodeConfiguration, "duplicate operation %s", op.Name)
		}
		for _, p := range op.Params {
			if !p.Kind.Valid() {
				return nil, errors.Newf(errors.CodeConfiguration,
					"operation %s declares unsupported kind %q for parameter %s", op.Name, p.Kind, p.Name)
			}
		}
		s.order = append(s.order, op.Name)
		s.ops[op.Name] = op
	}
	return s, nil
}

// Get returns the operation by name.
func (s *OperationSet) Get(name string) (Operation, bool) {
	op, ok := s.ops[name]
	return op, ok
}

// List returns all operations in declaration order.
func (s *OperationSet) List() []Operation {
	out := make([]Operation, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.ops[name])
	}
	return out
}

// Perform resolves an operation, validates and coerces its parameters,
// and invokes the handler. Any violation aborts before the handler runs.
// Handler failures surface as PROVIDER_ERROR unless already typed.
func (s *OperationSet) Perform(ctx context.Context, name string, params map[string]any) (any, error) {
	op, ok := s.ops[name]
	if !ok {
		return nil, errors.Newf(errors.CodeUnknownOperation, "unknown operation %q", name)
	}
	coerced, violations := op.Validate(params)
	if len(violations) > 0 {
		return nil, errors.Newf(errors.CodeInvalidParameters, "invalid parameters for %s", name).
			WithViolations(violations...)
	}
	result, err := op.Handler(ctx, coerced)
	if err != nil {
		if he, ok := err.(*errors.Error); ok {
			return nil, he
		}
		return nil, errors.New(errors.CodeProvider, fmt.Sprintf("operation %s failed", name), err).
			WithRecoverable(true)
	}
	return result, nil
}
