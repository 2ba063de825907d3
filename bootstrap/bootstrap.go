// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file when one exists, otherwise from
// CAAS_* environment variables; runtime service settings are overlaid from
// the database.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/caas/adapters/clock"
	"github.com/artpar/caas/adapters/definitions"
	"github.com/artpar/caas/adapters/graphql"
	"github.com/artpar/caas/adapters/hasher"
	apihttp "github.com/artpar/caas/adapters/http"
	"github.com/artpar/caas/adapters/http/admin"
	"github.com/artpar/caas/adapters/idgen"
	"github.com/artpar/caas/adapters/metrics"
	"github.com/artpar/caas/adapters/sqlite"
	"github.com/artpar/caas/app"
	"github.com/artpar/caas/config"
	"github.com/artpar/caas/ports"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Settings   *app.SettingsService

	// Stores
	Content ports.ContentStore
	Sites   ports.SiteStore

	// Services
	Definitions *app.DefinitionCache
	Clients     *app.ClientService
	Queries     *app.QueryService
	Admin       *admin.Handler

	cfg      *config.Config
	holder   *config.Holder
	loader   *definitions.FileLoader
	watcher  *definitions.Watcher
	exprs    *app.ExpressionService
	registry *prometheus.Registry
	stopCh   chan struct{}
}

// Options controls application initialization.
type Options struct {
	// ConfigPath is the YAML config file. A missing file falls back to the
	// environment.
	ConfigPath string

	// Config, when set, is used instead of loading ConfigPath.
	Config *config.Config

	// LogOutput defaults to stdout.
	LogOutput io.Writer
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.LoadWithFallback(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := NewLogger(cfg.Logging, out)
	logger.Info().Str("version", apihttp.BuildVersion).Msg("initializing caas")

	a := &App{
		Logger: logger,
		cfg:    cfg,
		exprs:  app.NewExpressionService(),
		stopCh: make(chan struct{}),
	}

	if opts.Config == nil && opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err == nil {
			holder, err := config.NewHolder(opts.ConfigPath, logger)
			if err != nil {
				return nil, err
			}
			a.holder = holder
		}
	}

	if err := a.initDatabase(); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	// Runtime settings overlay the configured cache policy
	a.Settings = app.NewSettingsService(sqlite.NewSettingsStore(a.DB), logger)
	if err := a.Settings.Load(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("failed to load settings, using defaults")
	}

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(a.registry)
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	if err := a.initServices(); err != nil {
		a.DB.Close()
		return nil, err
	}

	a.initHTTPServer()

	if a.holder != nil {
		a.holder.OnChange(a.applyConfig)
	}

	return a, nil
}

func (a *App) initDatabase() error {
	db, err := sqlite.Open(a.cfg.Database.DSN)
	if err != nil {
		return err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	a.DB = db
	a.Content = sqlite.NewContentStore(db)
	a.Sites = sqlite.NewSiteStore(db)
	a.Logger.Info().Str("dsn", a.cfg.Database.DSN).Msg("database initialized")
	return nil
}

func (a *App) initServices() error {
	cfg := a.cfg
	logger := a.Logger

	var queryMetrics ports.QueryMetrics
	if a.Metrics != nil {
		queryMetrics = a.Metrics
	}

	// Processing definitions: site documents from settings, static files as fallback
	a.Definitions = app.NewDefinitionCache(
		definitions.NewSettingsSource(a.Settings.Store(), logger),
		a.Content,
		queryMetrics,
		logger,
	)
	a.Definitions.SetCheck(graphql.Check)

	if len(cfg.Definitions.Paths) > 0 {
		a.loader = definitions.NewFileLoader(cfg.Definitions.Paths, logger)
		if err := a.Definitions.LoadStatic(context.Background(), a.loader); err != nil {
			return fmt.Errorf("static definitions: %w", err)
		}
		if cfg.Definitions.Watch {
			a.watcher = definitions.NewWatcher(a.loader.Dirs(), a.reloadStatic, logger)
			a.watcher.SetDebounce(cfg.Definitions.Debounce)
		}
	}

	interceptors, err := BuildInterceptors(cfg.Interceptors, a.exprs, logger)
	if err != nil {
		return fmt.Errorf("interceptors: %w", err)
	}

	a.Clients = app.NewClientService(
		sqlite.NewClientStore(a.DB),
		hasher.NewBcrypt(bcrypt.DefaultCost),
		clock.Real{},
		cfg.Clients.KeyPrefix,
		a.Settings.DefaultDefinition(cfg.Clients.DefaultDefinition),
		logger,
	)

	a.Queries = app.NewQueryService(app.QueryDeps{
		Definitions: a.Definitions,
		Roots:       app.NewRootResolver(a.Sites, a.Content),
		Clients:     a.Clients,
		Engine:      graphql.NewEngine(logger),
		Services:    app.NewServiceRegistry(a.Content, cfg.Server.BaseURL),
		Metrics:     queryMetrics,
		Clock:       clock.Real{},
	}, app.QueryConfig{
		Policy:       a.Settings.ApplyPolicy(cfg.Policy()),
		Interceptors: interceptors,
	}, logger)

	deps := admin.Deps{
		Definitions: a.Definitions,
		Settings:    a.Settings,
		Clients:     a.Clients,
		Token:       a.Settings.AdminToken(cfg.Admin.Token),
		Logger:      logger,
	}
	if a.loader != nil {
		deps.Loader = a.loader
	}
	a.Admin = admin.NewHandler(deps)

	return nil
}

func (a *App) initHTTPServer() {
	cfg := a.cfg

	routerCfg := apihttp.RouterConfig{
		AdminHandler:   a.Admin.Router(),
		RequestTimeout: cfg.Server.RequestTimeout,
		IDs:            idgen.UUID{},
	}
	if a.Metrics != nil {
		routerCfg.Metrics = a.Metrics
		routerCfg.MetricsPath = cfg.Metrics.Path
		routerCfg.MetricsHandler = promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry})
	}

	router := apihttp.NewRouterWithConfig(
		apihttp.NewQueryHandler(a.Queries, a.Logger),
		apihttp.NewHealthHandler(a.DB),
		a.Logger,
		routerCfg,
	)

	a.HTTPServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.HTTPServer.Handler
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	if a.watcher != nil {
		if err := a.watcher.Start(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to watch definition files")
		}
	}

	if a.holder != nil {
		if err := a.holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to watch config file")
		}
		a.holder.WatchSignals()
	} else {
		a.watchSignals()
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// watchSignals reloads settings on SIGHUP when there is no config file.
func (a *App) watchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				a.Logger.Info().Msg("received SIGHUP, reloading")
				if err := a.Reload(); err != nil {
					a.Logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-a.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	select {
	case <-a.stopCh:
		return nil
	default:
		close(a.stopCh)
	}

	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.holder != nil {
		a.holder.Stop()
	}

	// Shutdown HTTP server
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	// Close database
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// Reload re-reads the config file, when there is one, and reapplies the
// reloadable settings. A failed reload keeps the running configuration.
func (a *App) Reload() error {
	if a.holder == nil {
		a.applyConfig(a.cfg)
		return nil
	}
	err := a.holder.Reload()
	if err != nil && a.Metrics != nil {
		a.Metrics.ConfigReloaded(err)
	}
	return err
}

// applyConfig pushes the reloadable parts of cfg into the running services.
// Runtime settings are re-read so that database overrides stay on top.
func (a *App) applyConfig(cfg *config.Config) {
	ctx := context.Background()

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if err := a.Settings.Load(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("failed to reload settings, keeping previous values")
	}
	a.Queries.UpdatePolicy(a.Settings.ApplyPolicy(cfg.Policy()))

	interceptors, err := BuildInterceptors(cfg.Interceptors, a.exprs, a.Logger)
	if err != nil {
		a.Logger.Error().Err(err).Msg("invalid interceptors, keeping previous chain")
	} else {
		a.exprs.ClearCache()
		a.Queries.SetInterceptors(interceptors)
	}

	a.Admin.SetToken(a.Settings.AdminToken(cfg.Admin.Token))
	a.Clients.SetDefaultDefinition(a.Settings.DefaultDefinition(cfg.Clients.DefaultDefinition))

	if a.loader != nil {
		a.reloadStatic()
	}

	if a.Metrics != nil {
		a.Metrics.ConfigReloaded(err)
	}
}

func (a *App) reloadStatic() {
	if err := a.Definitions.LoadStatic(context.Background(), a.loader); err != nil {
		a.Logger.Error().Err(err).Msg("static definition reload failed, keeping previous definitions")
	}
}

// NewLogger creates the process logger.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
