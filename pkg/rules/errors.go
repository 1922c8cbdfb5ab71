package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEngine is returned by New for unsupported evaluator names.
	ErrUnknownEngine = errors.New("rules: unknown evaluator engine")
	// ErrEngineUnavailable is returned when an evaluator was compiled out.
	ErrEngineUnavailable = errors.New("rules: evaluator engine not available in this build")
	// ErrNotBoolean is returned by Match when a rule yields a non boolean result.
	ErrNotBoolean = errors.New("rules: rule did not evaluate to a boolean")
)

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Toggle string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("rules: %s evaluator %s toggle=%s: %v", e.Engine, describeExpression(e.Expr), e.Toggle, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluationError(engine, expr, toggle string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Toggle == "" {
			evalErr.Toggle = toggle
		}
		return evalErr
	}
	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Toggle: toggle,
		Err:    err,
	}
}

var errEmptyExpression = errors.New("expression must not be empty")
