package rules

import (
	"fmt"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celMaxArity bounds the overloads generated for registry functions.
const celMaxArity = 4

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Every attribute
// key that is a valid identifier is declared as a dyn variable; all attributes
// are also reachable through the "attributes" map.
func NewCELEvaluator(opts ...Option) Evaluator {
	cfg := applyOptions(opts)
	return &celEvaluator{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineCEL, "", ctx.ToggleID, errEmptyExpression)
	}
	return e.run(ctx, expression)
}

// Compile defers program construction until evaluation because the
// declared variables depend on the attribute keys in scope.
func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineCEL, "", "", errEmptyExpression)
	}
	return &celCompiledRule{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) run(ctx RuleContext, expression string) (any, error) {
	ctx = ctx.withDefaults()
	keys := declaredKeys(ctx.Attributes)
	program, err := e.loadOrCompile(expression, keys)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.label(), err)
	}
	out, _, err := program.Eval(ctx.bindings())
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.label(), err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) loadOrCompile(expression string, keys []string) (celgo.Program, error) {
	key := EngineCEL + ":" + expression + "|" + strings.Join(keys, ",")
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(keys)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *celEvaluator) buildEnv(keys []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("user_id", celgo.StringType),
		celgo.Variable("toggle", celgo.StringType),
		celgo.Variable("attributes", celgo.MapType(celgo.StringType, celgo.DynType)),
	}
	for _, key := range keys {
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	for _, name := range e.registry.Names() {
		opts = append(opts, celgo.Function(name, e.overloads(name)...))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) overloads(name string) []celgo.FunctionOpt {
	overloads := make([]celgo.FunctionOpt, 0, celMaxArity)
	for arity := 1; arity <= celMaxArity; arity++ {
		args := make([]*celgo.Type, arity)
		for i := range args {
			args[i] = celgo.DynType
		}
		overloads = append(overloads, celgo.Overload(
			fmt.Sprintf("%s_dyn_%d", name, arity),
			args,
			celgo.DynType,
			celgo.FunctionBinding(e.binding(name)),
		))
	}
	return overloads
}

func (e *celEvaluator) binding(name string) func(values ...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		args := make([]any, 0, len(values))
		for _, val := range values {
			args = append(args, val.Value())
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}

var reservedCELNames = map[string]struct{}{
	"now": {}, "user_id": {}, "toggle": {}, "attributes": {},
	"in": {}, "as": {}, "break": {}, "const": {}, "continue": {}, "else": {},
	"for": {}, "function": {}, "if": {}, "import": {}, "let": {}, "loop": {},
	"package": {}, "namespace": {}, "return": {}, "var": {}, "void": {}, "while": {},
	"true": {}, "false": {}, "null": {},
}

func declaredKeys(attributes map[string]any) []string {
	keys := make([]string, 0, len(attributes))
	for key := range attributes {
		if _, reserved := reservedCELNames[key]; reserved {
			continue
		}
		if !isIdentifier(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func isIdentifier(key string) bool {
	if key == "" {
		return false
	}
	for i, r := range key {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.run(ctx, r.expression)
}
