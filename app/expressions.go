package app

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// exprFunc is a helper exposed to interceptor expressions. arity < 0
// accepts any number of arguments.
type exprFunc struct {
	name  string
	arity int
	fn    func(args []any) (any, error)
}

var exprFuncs = []exprFunc{
	{"lower", 1, func(a []any) (any, error) { return strings.ToLower(str(a[0])), nil }},
	{"upper", 1, func(a []any) (any, error) { return strings.ToUpper(str(a[0])), nil }},
	{"trim", 1, func(a []any) (any, error) { return strings.TrimSpace(str(a[0])), nil }},
	{"replace", 3, func(a []any) (any, error) { return strings.ReplaceAll(str(a[0]), str(a[1]), str(a[2])), nil }},
	{"jsonEncode", 1, func(a []any) (any, error) {
		b, err := json.Marshal(a[0])
		return string(b), err
	}},
	{"env", 1, func(a []any) (any, error) { return os.Getenv(str(a[0])), nil }},
	{"coalesce", -1, func(a []any) (any, error) {
		for _, v := range a {
			if v != nil && v != "" {
				return v, nil
			}
		}
		return nil, nil
	}},
	{"default", 2, func(a []any) (any, error) {
		if a[0] == nil || a[0] == "" {
			return a[1], nil
		}
		return a[0], nil
	}},
	// size counts the items of a content list.
	{"size", 1, func(a []any) (any, error) {
		switch v := a[0].(type) {
		case []any:
			return len(v), nil
		case []map[string]any:
			return len(v), nil
		case []string:
			return len(v), nil
		}
		return 0, nil
	}},
	// field reads a dotted path from query result data.
	{"field", 2, func(a []any) (any, error) {
		cur := a[0]
		for _, part := range strings.Split(str(a[1]), ".") {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, nil
			}
			cur = m[part]
		}
		return cur, nil
	}},
	// set returns a copy of a result object with one member replaced.
	{"set", 3, func(a []any) (any, error) {
		m, _ := a[0].(map[string]any)
		out := make(map[string]any, len(m)+1)
		maps.Copy(out, m)
		out[str(a[1])] = a[2]
		return out, nil
	}},
}

// ExpressionService compiles and runs the Expr expressions of configured
// interceptors. Compiled programs are cached by source.
type ExpressionService struct {
	opts []expr.Option

	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewExpressionService registers the helper functions.
func NewExpressionService() *ExpressionService {
	s := &ExpressionService{programs: make(map[string]*vm.Program)}
	for _, f := range exprFuncs {
		s.opts = append(s.opts, expr.Function(f.name, checked(f)))
	}
	return s
}

func checked(f exprFunc) func(...any) (any, error) {
	return func(args ...any) (any, error) {
		if f.arity >= 0 && len(args) != f.arity {
			return nil, fmt.Errorf("%s takes %d argument(s), got %d", f.name, f.arity, len(args))
		}
		return f.fn(args)
	}
}

// Compile checks expression against the shape of env.
func (s *ExpressionService) Compile(expression string, env map[string]any) error {
	_, err := s.program(expression, env)
	return err
}

// Eval runs expression over env.
func (s *ExpressionService) Eval(ctx context.Context, expression string, env map[string]any) (any, error) {
	p, err := s.program(expression, env)
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}
	out, err := expr.Run(p, env)
	if err != nil {
		return nil, fmt.Errorf("run expression: %w", err)
	}
	return out, nil
}

// EvalBool runs an expression that must yield a boolean.
func (s *ExpressionService) EvalBool(ctx context.Context, expression string, env map[string]any) (bool, error) {
	out, err := s.Eval(ctx, expression, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, want bool", expression, out)
	}
	return b, nil
}

// ClearCache drops compiled programs.
func (s *ExpressionService) ClearCache() {
	s.mu.Lock()
	clear(s.programs)
	s.mu.Unlock()
}

func (s *ExpressionService) program(expression string, env map[string]any) (*vm.Program, error) {
	s.mu.RLock()
	p, ok := s.programs[expression]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	// the env key set is fixed; only values vary per request
	opts := append([]expr.Option{expr.Env(env), expr.AllowUndefinedVariables()}, s.opts...)
	p, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.programs[expression] = p
	s.mu.Unlock()
	return p, nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
