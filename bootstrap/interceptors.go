package bootstrap

import (
	"github.com/rs/zerolog"

	"github.com/artpar/caas/app"
	"github.com/artpar/caas/config"
	"github.com/artpar/caas/ports"
)

// BuildInterceptors compiles the configured interceptor chain in
// configuration order. Any invalid rule fails the whole chain.
func BuildInterceptors(cfgs []config.InterceptorConfig, exprs *app.ExpressionService, logger zerolog.Logger) ([]ports.QueryInterceptor, error) {
	chain := make([]ports.QueryInterceptor, 0, len(cfgs))
	for _, c := range cfgs {
		ic, err := app.NewExpressionInterceptor(app.InterceptorRule{
			Name:    c.Name,
			Queries: c.Queries,
			Pre:     c.Pre,
			Post:    c.Post,
		}, exprs, logger)
		if err != nil {
			return nil, err
		}
		chain = append(chain, ic)
	}
	return chain, nil
}
