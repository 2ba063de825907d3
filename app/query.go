// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/caas/domain/cachecontrol"
	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/domain/delivery"
	"github.com/artpar/caas/domain/execution"
	"github.com/artpar/caas/domain/query"
	"github.com/artpar/caas/ports"
)

// ValidToProperty is the content property holding an expiry instant.
const ValidToProperty = "validTo"

// QueryService runs the query pipeline for one request at a time.
type QueryService struct {
	definitions *DefinitionCache
	roots       *RootResolver
	clients     *ClientService
	engine      ports.QueryEngine
	services    execution.Services
	metrics     ports.QueryMetrics
	clock       ports.Clock
	logger      zerolog.Logger

	// Dynamic configuration (hot-reloadable)
	policy       atomic.Pointer[cachecontrol.Policy]
	interceptors atomic.Pointer[[]ports.QueryInterceptor]
}

// QueryDeps contains dependencies for QueryService.
type QueryDeps struct {
	Definitions *DefinitionCache
	Roots       *RootResolver
	Clients     *ClientService
	Engine      ports.QueryEngine
	Services    execution.Services
	Metrics     ports.QueryMetrics
	Clock       ports.Clock
}

// QueryConfig contains configuration for QueryService.
type QueryConfig struct {
	Policy       cachecontrol.Policy
	Interceptors []ports.QueryInterceptor
}

// NewQueryService creates a query service.
func NewQueryService(deps QueryDeps, cfg QueryConfig, logger zerolog.Logger) *QueryService {
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	s := &QueryService{
		definitions: deps.Definitions,
		roots:       deps.Roots,
		clients:     deps.Clients,
		engine:      deps.Engine,
		services:    deps.Services,
		metrics:     deps.Metrics,
		clock:       deps.Clock,
		logger:      logger.With().Str("service", "query").Logger(),
	}
	s.UpdatePolicy(cfg.Policy)
	s.SetInterceptors(cfg.Interceptors)
	return s
}

// UpdatePolicy replaces the cache policy.
// This is thread-safe and can be called while handling requests.
func (s *QueryService) UpdatePolicy(p cachecontrol.Policy) {
	s.policy.Store(&p)
}

// Policy returns the current cache policy.
func (s *QueryService) Policy() cachecontrol.Policy {
	return *s.policy.Load()
}

// SetInterceptors replaces the interceptor chain. Order is registration order.
func (s *QueryService) SetInterceptors(list []ports.QueryInterceptor) {
	cp := append([]ports.QueryInterceptor(nil), list...)
	s.interceptors.Store(&cp)
}

// Execute runs the pipeline. It never returns a raw error: failures are
// reported in Result.Error and panics are recovered.
func (s *QueryService) Execute(ctx context.Context, req delivery.Request) (res delivery.Result) {
	start := s.clock.Now()
	view := req.View
	if view == "" {
		view = query.DefaultView
	}
	log := s.logger.With().
		Str("tenant", req.TenantID).
		Str("site", req.SiteID).
		Str("query", req.Query).
		Str("view", view).
		Str("trace_id", req.TraceID).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("query pipeline panic")
			res = delivery.Result{Status: delivery.ErrInternal.Status, Error: &delivery.ErrInternal}
		}
		res.Latency = s.clock.Now().Sub(start)
		s.metrics.ObserveQuery(req.TenantID, req.SiteID, res.Definition, req.Query, resultStatus(res), res.Latency)
	}()

	fail := func(err error) delivery.Result {
		var er *delivery.ErrorResponse
		if errors.As(err, &er) {
			return delivery.Result{Status: er.Status, Error: er}
		}
		log.Error().Err(err).Msg("query pipeline failed")
		return delivery.Result{Status: delivery.ErrInternal.Status, Error: &delivery.ErrInternal}
	}

	// 1. Root context
	root, err := s.roots.Resolve(ctx, req.TenantID, req.SiteID, req.TargetID)
	if err != nil {
		return fail(err)
	}

	// 2. Client identification
	ident, err := s.clients.Identify(ctx, req.APIKey, root.Site)
	if err != nil {
		return fail(err)
	}
	log = log.With().Str("client", ident.ClientID).Str("pd", ident.DefinitionName).Logger()

	// 3. Processing definition
	pd, ok, err := s.definitions.Resolve(ctx, root.Site.Indicator, ident.DefinitionName)
	if err != nil {
		return fail(fmt.Errorf("processing definition %s: %w", ident.DefinitionName, err))
	}
	if !ok {
		log.Error().Msg("processing definition not found")
		return fail(delivery.ErrDefinitionNotFound.WithMessage(
			fmt.Sprintf("Processing definition %s not found", ident.DefinitionName)))
	}

	// 4. Query definition
	qd, ok := pd.Queries.Definition(req.Query, view)
	if !ok {
		log.Error().Msg("query definition not found")
		return fail(delivery.ErrQueryNotFound.WithMessage(
			fmt.Sprintf("Query %s not found in %s", query.Key(req.Query, view), pd.Name)))
	}

	inv := &execution.Invocation{
		TenantID:   req.TenantID,
		SiteID:     req.SiteID,
		Client:     ident,
		Root:       root,
		Definition: pd,
		Query:      qd,
		View:       view,
		Params:     req.Params,
		Headers:    req.Headers,
	}
	interceptors := *s.interceptors.Load()

	// 5. Pre-query interceptors, registration order
	for _, ic := range interceptors {
		if !ic.PreQuery(ctx, inv) {
			log.Debug().Str("interceptor", ic.Name()).Msg("query skipped by interceptor")
			s.metrics.InterceptorSkip(ic.Name())
			return delivery.Result{Status: 204, Skipped: true, Definition: pd.Name, Client: ident.ClientID}
		}
	}

	// 6. Query variant
	text := qd.Query
	if !root.IsList() {
		obj, err := pd.Schema.ResolveObjectType(root.Target)
		if err != nil {
			return fail(fmt.Errorf("resolve target type: %w", err))
		}
		text = qd.QueryFor(obj.Name)
	}
	if text == "" {
		log.Error().Msg("no query text for target")
		return fail(delivery.ErrQueryNotFound.WithMessage(
			fmt.Sprintf("Query %s has no variant for this target", query.Key(req.Query, view))))
	}

	// 7. Fresh execution context
	ec := &execution.Context{Definition: pd, Services: s.services, Root: root}

	// 8. Execute; errors keep partial data
	out := s.engine.Execute(ctx, ports.ExecuteRequest{
		Context:   ec,
		Query:     text,
		Variables: variables(req.Params),
	})
	for _, e := range out.Errors {
		log.Error().Err(e).Msg("query execution error")
	}
	if len(out.Errors) > 0 {
		s.metrics.EngineErrors(len(out.Errors))
	}

	// 9. Post-query interceptors, reverse order
	data := out.Data
	for i := len(interceptors) - 1; i >= 0; i-- {
		if replaced := interceptors[i].PostQuery(ctx, data, inv); replaced != nil {
			data = replaced
		}
	}

	// 10. Cache control
	cc := s.cacheControl(log, qd, root)

	log.Info().
		Dur("duration", s.clock.Now().Sub(start)).
		Int("errors", len(out.Errors)).
		Str("cache_control", cc.String()).
		Msg("query executed")

	// 11. Response
	return delivery.Result{
		Status:       200,
		CacheControl: cc,
		ContentType:  delivery.ContentTypeJSON,
		Data:         data,
		Definition:   pd.Name,
		Client:       ident.ClientID,
		EngineErrs:   len(out.Errors),
	}
}

// cacheControl computes the directive for a result. A malformed cacheFor
// option falls back to the service default.
func (s *QueryService) cacheControl(log zerolog.Logger, qd *query.Definition, root execution.RootContext) cachecontrol.Directive {
	policy := s.Policy()
	if policy.Preview {
		return cachecontrol.NoCache
	}

	maxAge := policy.DefaultMaxAge
	if secs, ok, err := qd.CacheFor(); err != nil {
		log.Warn().Err(err).Msg("invalid query cache time specified")
	} else if ok {
		maxAge = secs
	}

	limits := cachecontrol.Limits{SiteMaxAge: root.Site.MaxAge, ValidTo: validTo(root.Target)}
	return policy.Compute(maxAge, limits, s.clock.Now())
}

// validTo returns the earliest expiry of the target, zero if none.
func validTo(target any) time.Time {
	switch t := target.(type) {
	case content.Content:
		return contentValidTo(t)
	case content.List:
		var earliest time.Time
		for _, c := range t {
			v := contentValidTo(c)
			if !v.IsZero() && (earliest.IsZero() || v.Before(earliest)) {
				earliest = v
			}
		}
		return earliest
	}
	return time.Time{}
}

func contentValidTo(c content.Content) time.Time {
	v, ok := c.Property(ValidToProperty)
	if !ok {
		return time.Time{}
	}
	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return t
		}
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return time.Unix(n, 0)
		}
	case int64:
		return time.Unix(val, 0)
	case float64:
		return time.Unix(int64(val), 0)
	}
	return time.Time{}
}

func variables(params map[string]string) map[string]any {
	vars := make(map[string]any, len(params))
	for k, v := range params {
		vars[k] = v
	}
	return vars
}

func resultStatus(res delivery.Result) string {
	switch {
	case res.Skipped:
		return "skipped"
	case res.Error != nil:
		return res.Error.Code
	default:
		return "ok"
	}
}

// nopMetrics discards measurements.
type nopMetrics struct{}

func (nopMetrics) ObserveQuery(tenant, siteID, pd, query, status string, d time.Duration) {}
func (nopMetrics) DefinitionCacheHit()                                                 {}
func (nopMetrics) DefinitionCacheMiss()                                                {}
func (nopMetrics) DefinitionBuild(status string)                                       {}
func (nopMetrics) InterceptorSkip(name string)                                         {}
func (nopMetrics) EngineErrors(n int)                                                  {}
