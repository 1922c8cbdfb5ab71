package rules

import (
	"fmt"
	"strings"
)

// Engine names accepted by New.
const (
	EngineExpr  = "expr"
	EngineCEL   = "cel"
	EngineJS    = "js"
	EngineBexpr = "bexpr"
)

// New returns the evaluator registered under engine. An empty name selects
// the expr evaluator.
func New(engine string, opts ...Option) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(opts...), nil
	case EngineCEL:
		return NewCELEvaluator(opts...), nil
	case EngineBexpr:
		return NewBexprEvaluator(opts...), nil
	case EngineJS:
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("%w: %s", ErrEngineUnavailable, EngineJS)
		}
		return NewJSEvaluator(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
}

// Match evaluates rule and requires a boolean outcome.
func Match(rule CompiledRule, ctx RuleContext) (bool, error) {
	value, err := rule.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	matched, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("%w: toggle %s got %T", ErrNotBoolean, ctx.label(), value)
	}
	return matched, nil
}
