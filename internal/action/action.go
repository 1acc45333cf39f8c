// Package action defines the effectful operations an experiment dispatches
// and the executor that isolates their failures from the pipeline.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrContractViolation indicates a value that cannot be dispatched as an
// Action: nil, or with an empty identifier.
var ErrContractViolation = errors.New("action contract violation")

// Action is one discrete effect against the environment.
//
// ID must be stable for the same logical action. Run is invoked exactly
// once per experiment; its result is implementation-defined and recorded
// verbatim.
type Action interface {
	ID() string
	Run(ctx context.Context) (any, error)
}

// Outcome is the result of one dispatch. Exactly one of Result and Err is
// meaningful; Err is data, never re-raised.
type Outcome struct {
	Result any
	Err    error
}

// Failed reports whether the action failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Executor validates and invokes actions.
type Executor struct {
	Logger *slog.Logger
}

// Execute runs a once, synchronously. Validation failures, returned
// errors and panics all end up in Outcome.Err.
func (e Executor) Execute(ctx context.Context, a Action) (out Outcome) {
	id, err := validate(a)
	if err != nil {
		return Outcome{Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Err: fmt.Errorf("action %s panicked: %v", id, r)}
		}
		if out.Err != nil {
			e.logger().Debug("action failed", "action_id", id, "error", out.Err)
		}
	}()

	result, err := a.Run(ctx)
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Result: result}
}

func (e Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// validate checks the capability contract. A typed nil whose ID method
// dereferences the receiver is reported as a violation rather than a panic.
func validate(a Action) (id string, err error) {
	if a == nil {
		return "", fmt.Errorf("%w: nil action", ErrContractViolation)
	}
	defer func() {
		if r := recover(); r != nil {
			id, err = "", fmt.Errorf("%w: ID panicked: %v", ErrContractViolation, r)
		}
	}()
	id = a.ID()
	if id == "" {
		return "", fmt.Errorf("%w: empty action id", ErrContractViolation)
	}
	return id, nil
}

// Noop does nothing. It is the control action: with an unchanged
// environment its experiments report no observable change.
type Noop struct{}

// ID returns "noop".
func (Noop) ID() string { return "noop" }

// Run returns nil, nil.
func (Noop) Run(ctx context.Context) (any, error) { return nil, nil }

// Func adapts a function to an Action.
type Func struct {
	Name string
	Fn   func(ctx context.Context) (any, error)
}

// ID returns f.Name.
func (f Func) ID() string { return f.Name }

// Run calls f.Fn.
func (f Func) Run(ctx context.Context) (any, error) {
	if f.Fn == nil {
		return nil, nil
	}
	return f.Fn(ctx)
}
