// Package graphql executes query documents against schemas derived from
// processing definitions.
//
// Schemas are compiled lazily per definition and per root scope: a single
// content target exposes `content` typed as the target's interface, a list
// target exposes `items` and `size`. Parsed and validated documents are
// cached in the definition's query registry under the same scope.
package graphql

import (
	"context"
	"fmt"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/rs/zerolog"

	"github.com/artpar/caas/domain/definition"
	"github.com/artpar/caas/domain/execution"
	"github.com/artpar/caas/ports"
)

const (
	scopeList          = "graphql:list"
	scopeContentPrefix = "graphql:content:"
)

// QueryError is one error reported by the engine.
type QueryError struct {
	Message string
	Path    []any
}

func (e *QueryError) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Path))
	for i, p := range e.Path {
		parts[i] = fmt.Sprint(p)
	}
	return fmt.Sprintf("%s (at %s)", e.Message, strings.Join(parts, "."))
}

// Engine implements ports.QueryEngine on graphql-go.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates a query engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "graphql").Logger()}
}

// Execute runs a query. Errors never discard data.
func (e *Engine) Execute(ctx context.Context, req ports.ExecuteRequest) ports.ExecuteResult {
	ec := req.Context
	if ec == nil || !ec.Definition.IsValid() {
		return failed(fmt.Errorf("no valid processing definition"))
	}

	scope, err := scopeOf(ec)
	if err != nil {
		return failed(err)
	}

	sch, err := Compile(ec.Definition, scope)
	if err != nil {
		return failed(err)
	}

	doc, errs := e.document(ec.Definition, scope, sch, req.Query)
	if len(errs) > 0 {
		return ports.ExecuteResult{Errors: errs}
	}

	res := graphql.Execute(graphql.ExecuteParams{
		Schema:  *sch,
		Root:    map[string]any{},
		AST:     doc,
		Args:    req.Variables,
		Context: execution.WithContext(ctx, ec),
	})

	out := ports.ExecuteResult{Data: res.Data}
	for _, fe := range res.Errors {
		out.Errors = append(out.Errors, &QueryError{Message: fe.Message, Path: fe.Path})
	}
	return out
}

// document returns a parsed and validated document, caching successes.
func (e *Engine) document(pd *definition.ProcessingDefinition, scope string, sch *graphql.Schema, text string) (*ast.Document, []error) {
	if cached, ok := pd.Queries.Document(scope, text); ok {
		return cached.(*ast.Document), nil
	}

	doc, err := parser.Parse(parser.ParseParams{Source: text})
	if err != nil {
		return nil, []error{fmt.Errorf("parse query: %w", err)}
	}

	vr := graphql.ValidateDocument(sch, doc, nil)
	if !vr.IsValid {
		errs := make([]error, 0, len(vr.Errors))
		for _, fe := range vr.Errors {
			errs = append(errs, &QueryError{Message: fe.Message})
		}
		return nil, errs
	}

	pd.Queries.StoreDocument(scope, text, doc)
	e.logger.Debug().Str("definition", pd.Name).Str("scope", scope).Msg("query document cached")
	return doc, nil
}

func scopeOf(ec *execution.Context) (string, error) {
	if ec.Root.IsList() {
		return scopeList, nil
	}
	iface, err := ec.Definition.Schema.ResolveInterfaceType(ec.Root.Target)
	if err != nil {
		return "", err
	}
	return scopeContentPrefix + iface.Name, nil
}

// Compile returns the memoized schema of a definition for a root scope.
func Compile(pd *definition.ProcessingDefinition, scope string) (*graphql.Schema, error) {
	v, err := pd.Compiled(scope, func() (any, error) {
		b := newBuilder(pd)
		if err := b.build(); err != nil {
			return nil, err
		}

		var root *graphql.Object
		var err error
		if scope == scopeList {
			root, err = b.listRoot()
		} else {
			root, err = b.contentRoot(strings.TrimPrefix(scope, scopeContentPrefix))
		}
		if err != nil {
			return nil, err
		}

		sch, err := b.schemaFor(root)
		if err != nil {
			return nil, err
		}
		return &sch, nil
	})
	if err != nil {
		return nil, fmt.Errorf("compile schema %s for %s: %w", scope, pd.Name, err)
	}
	return v.(*graphql.Schema), nil
}

// Check compiles the schema of every interface and the list scope.
// It reports configuration errors before the first request does.
func Check(pd *definition.ProcessingDefinition) error {
	if _, err := Compile(pd, scopeList); err != nil {
		return err
	}
	for _, td := range pd.Schema.Types() {
		if !td.IsInterface() {
			continue
		}
		if _, err := Compile(pd, scopeContentPrefix+td.Name); err != nil {
			return err
		}
	}
	return nil
}

func failed(err error) ports.ExecuteResult {
	return ports.ExecuteResult{Errors: []error{err}}
}

var _ ports.QueryEngine = (*Engine)(nil)
