package rules

import (
	"github.com/hashicorp/go-bexpr"
)

// bexprEvaluator runs go-bexpr boolean filters such as
// `plan == "pro" and country in allowed`. Selectors resolve against the rule
// bindings; custom functions are not available.
type bexprEvaluator struct {
	cache ProgramCache
}

// NewBexprEvaluator constructs an Evaluator backed by hashicorp/go-bexpr.
// Referencing an attribute that is not set is an evaluation error.
func NewBexprEvaluator(opts ...Option) Evaluator {
	cfg := applyOptions(opts)
	return &bexprEvaluator{cache: cfg.cache}
}

func (e *bexprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineBexpr, "", ctx.ToggleID, errEmptyExpression)
	}
	evaluator, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, expression, evaluator)
}

func (e *bexprEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineBexpr, "", "", errEmptyExpression)
	}
	evaluator, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &bexprCompiledRule{evaluator: e, filter: evaluator, expression: expression}, nil
}

func (e *bexprEvaluator) run(ctx RuleContext, expression string, filter *bexpr.Evaluator) (any, error) {
	matched, err := filter.Evaluate(ctx.bindings())
	if err != nil {
		return nil, wrapEvaluationError(EngineBexpr, expression, ctx.label(), err)
	}
	return matched, nil
}

func (e *bexprEvaluator) loadOrCompile(expression string) (*bexpr.Evaluator, error) {
	key := EngineBexpr + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if filter, ok := cached.(*bexpr.Evaluator); ok {
				return filter, nil
			}
		}
	}
	filter, err := bexpr.CreateEvaluator(expression)
	if err != nil {
		return nil, wrapEvaluationError(EngineBexpr, expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(key, filter)
	}
	return filter, nil
}

type bexprCompiledRule struct {
	evaluator  *bexprEvaluator
	filter     *bexpr.Evaluator
	expression string
}

func (r *bexprCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.run(ctx, r.expression, r.filter)
}
