package app

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/domain/execution"
	"github.com/artpar/caas/ports"
)

// InterceptorRule configures one expression interceptor.
type InterceptorRule struct {
	Name    string
	Queries []string // glob patterns on "name#view"; empty matches all
	Pre     string   // boolean guard; false skips the request
	Post    string   // replacement data; nil keeps the result
}

// ExpressionInterceptor runs configured Expr expressions around queries.
// Evaluation errors never fail a request: a failing guard proceeds and a
// failing transform keeps the data.
type ExpressionInterceptor struct {
	rule   InterceptorRule
	exprs  *ExpressionService
	logger zerolog.Logger
}

// NewExpressionInterceptor validates the rule and compiles its expressions.
func NewExpressionInterceptor(rule InterceptorRule, exprs *ExpressionService, logger zerolog.Logger) (*ExpressionInterceptor, error) {
	if rule.Name == "" {
		return nil, fmt.Errorf("interceptor without name")
	}
	for _, p := range rule.Queries {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("interceptor %s: invalid query pattern %q", rule.Name, p)
		}
	}

	env := interceptorEnv(&execution.Invocation{}, nil)
	if rule.Pre != "" {
		if err := exprs.Compile(rule.Pre, env); err != nil {
			return nil, fmt.Errorf("interceptor %s: pre: %w", rule.Name, err)
		}
	}
	if rule.Post != "" {
		if err := exprs.Compile(rule.Post, env); err != nil {
			return nil, fmt.Errorf("interceptor %s: post: %w", rule.Name, err)
		}
	}

	return &ExpressionInterceptor{
		rule:   rule,
		exprs:  exprs,
		logger: logger.With().Str("interceptor", rule.Name).Logger(),
	}, nil
}

// Name returns the rule name.
func (i *ExpressionInterceptor) Name() string {
	return i.rule.Name
}

// PreQuery evaluates the guard expression.
func (i *ExpressionInterceptor) PreQuery(ctx context.Context, inv *execution.Invocation) bool {
	if i.rule.Pre == "" || !i.matches(inv) {
		return true
	}
	ok, err := i.exprs.EvalBool(ctx, i.rule.Pre, interceptorEnv(inv, nil))
	if err != nil {
		i.logger.Warn().Err(err).Msg("pre-query expression failed")
		return true
	}
	return ok
}

// PostQuery evaluates the transform expression.
func (i *ExpressionInterceptor) PostQuery(ctx context.Context, data any, inv *execution.Invocation) any {
	if i.rule.Post == "" || !i.matches(inv) {
		return nil
	}
	result, err := i.exprs.Eval(ctx, i.rule.Post, interceptorEnv(inv, data))
	if err != nil {
		i.logger.Warn().Err(err).Msg("post-query expression failed")
		return nil
	}
	return result
}

func (i *ExpressionInterceptor) matches(inv *execution.Invocation) bool {
	if len(i.rule.Queries) == 0 {
		return true
	}
	if inv.Query == nil {
		return false
	}
	key := inv.Query.Name + "#" + inv.Query.View
	for _, p := range i.rule.Queries {
		if ok, _ := doublestar.Match(p, key); ok {
			return true
		}
	}
	return false
}

// interceptorEnv exposes the invocation to expressions.
// The key set and value types must not depend on the request: programs are
// compiled once against a placeholder env, so data is always typed as a
// result object, even when absent.
func interceptorEnv(inv *execution.Invocation, data any) map[string]any {
	env := map[string]any{
		"tenant":     inv.TenantID,
		"site":       inv.SiteID,
		"client":     inv.Client.ClientID,
		"anonymous":  inv.Client.Anonymous,
		"definition": "",
		"query":      "",
		"view":       inv.View,
		"params":     map[string]string{},
		"headers":    map[string]string{},
		"target":     map[string]any{},
		"data":       resultData(data),
	}
	if inv.Definition != nil {
		env["definition"] = inv.Definition.Name
	}
	if inv.Query != nil {
		env["query"] = inv.Query.Name
	}
	if inv.Params != nil {
		env["params"] = inv.Params
	}
	if inv.Headers != nil {
		env["headers"] = inv.Headers
	}

	switch t := inv.Root.Target.(type) {
	case content.Content:
		env["target"] = map[string]any{"id": t.ID, "type": t.Type, "name": t.Name, "list": false}
	case content.List:
		env["target"] = map[string]any{"size": len(t), "list": true}
	}
	return env
}

// resultData types query results for expressions. Engine results are JSON
// objects; anything else an earlier interceptor produced is passed as is.
func resultData(data any) any {
	switch d := data.(type) {
	case nil:
		return map[string]any(nil)
	case map[string]any:
		return d
	}
	return data
}

var _ ports.QueryInterceptor = (*ExpressionInterceptor)(nil)
