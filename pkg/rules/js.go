//go:build js_eval

package rules

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewJSEvaluator constructs an Evaluator backed by goja. Each evaluation runs
// in a fresh runtime.
func NewJSEvaluator(opts ...Option) Evaluator {
	cfg := applyOptions(opts)
	return &jsEvaluator{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineJS, "", ctx.ToggleID, errEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, expression, program)
}

func (e *jsEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineJS, "", "", errEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &jsCompiledRule{
		evaluator:  e,
		expression: expression,
		program:    program,
	}, nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	key := EngineJS + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", wrapExpression(expression), false)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *jsEvaluator) run(ctx RuleContext, expression string, program *goja.Program) (any, error) {
	vm := goja.New()
	for key, value := range ctx.bindings() {
		if err := vm.Set(key, value); err != nil {
			return nil, wrapEvaluationError(EngineJS, expression, ctx.label(), err)
		}
	}
	for _, name := range e.registry.Names() {
		if err := vm.Set(name, e.registry.bind(name)); err != nil {
			return nil, wrapEvaluationError(EngineJS, expression, ctx.label(), err)
		}
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, expression, ctx.label(), err)
	}
	return value.Export(), nil
}

func wrapExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

type jsCompiledRule struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (r *jsCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.run(ctx, r.expression, r.program)
}

func jsEvaluatorAvailable() bool {
	return true
}
