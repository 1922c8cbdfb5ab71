package rules

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprEvaluator executes rule expressions using github.com/expr-lang/expr.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr. Undefined
// attributes evaluate to nil rather than failing compilation.
func NewExprEvaluator(opts ...Option) Evaluator {
	cfg := applyOptions(opts)
	return &exprEvaluator{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineExpr, "", ctx.ToggleID, errEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, expression, program)
}

func (e *exprEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineExpr, "", "", errEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &exprCompiledRule{
		evaluator:  e,
		program:    program,
		expression: expression,
	}, nil
}

func (e *exprEvaluator) run(ctx RuleContext, expression string, program *exprvm.Program) (any, error) {
	result, err := exprlang.Run(program, ctx.bindings())
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, expression, ctx.label(), err)
	}
	return result, nil
}

func (e *exprEvaluator) loadOrCompile(expression string) (*exprvm.Program, error) {
	key := EngineExpr + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registry.Names() {
		options = append(options, exprlang.Function(name, e.registry.bind(name)))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

type exprCompiledRule struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (r *exprCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.run(ctx, r.expression, r.program)
}
