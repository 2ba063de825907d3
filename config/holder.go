package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDebounce coalesces the bursts of events editors emit on save.
const reloadDebounce = 100 * time.Millisecond

// Holder serves the current configuration and swaps it on reload.
type Holder struct {
	current atomic.Pointer[Config]
	path    string
	logger  zerolog.Logger

	mu        sync.Mutex // guards listeners, reloads and timer
	listeners []func(*Config)
	timer     *time.Timer

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewHolder loads the file at path.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	h := &Holder{
		path:   abs,
		logger: logger.With().Str("component", "config").Logger(),
		done:   make(chan struct{}),
	}
	h.current.Store(cfg)
	return h, nil
}

// Get returns the current configuration. It must not be modified.
func (h *Holder) Get() *Config {
	return h.current.Load()
}

// OnChange registers fn to run after every successful reload.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// Reload re-reads the file. On error the current configuration is kept.
func (h *Holder) Reload() error {
	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.path).Msg("config reload failed, keeping current config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current.Swap(next)
	listeners := slices.Clone(h.listeners)
	h.mu.Unlock()

	h.report(prev, next)
	for _, fn := range listeners {
		fn(next)
	}
	return nil
}

// WatchFile reloads whenever the file is written or replaced. The parent
// directory is watched so that atomic saves are seen.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	h.watcher = w

	go h.watch()
	h.logger.Info().Str("path", h.path).Msg("watching config file")
	return nil
}

// WatchSignals reloads on SIGHUP.
func (h *Holder) WatchSignals() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sig)
		for {
			select {
			case <-sig:
				h.logger.Info().Msg("SIGHUP received")
				_ = h.Reload()
			case <-h.done:
				return
			}
		}
	}()
}

// Stop ends file and signal watching. It is safe to call more than once.
func (h *Holder) Stop() {
	h.once.Do(func() {
		close(h.done)
		if h.watcher != nil {
			h.watcher.Close()
		}
		h.mu.Lock()
		if h.timer != nil {
			h.timer.Stop()
		}
		h.mu.Unlock()
	})
}

func (h *Holder) watch() {
	name := filepath.Base(h.path)
	for {
		select {
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().Str("event", ev.Op.String()).Msg("config file changed")
			h.schedule()
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("config watcher error")
		case <-h.done:
			return
		}
	}
}

func (h *Holder) schedule() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(reloadDebounce, func() {
		select {
		case <-h.done:
		default:
			_ = h.Reload()
		}
	})
}

// field describes one reported configuration value.
type field struct {
	name       string
	reloadable bool
	value      func(*Config) any
}

var fields = []field{
	{"service.preview", true, func(c *Config) any { return c.Service.Preview }},
	{"service.cache_time", true, func(c *Config) any { return c.Service.CacheTime }},
	{"service.min_max_age", true, func(c *Config) any { return c.Service.MinMaxAge }},
	{"service.max_max_age", true, func(c *Config) any { return c.Service.MaxMaxAge }},
	{"interceptors", true, func(c *Config) any { return fmt.Sprint(c.Interceptors) }},
	{"clients.default_definition", true, func(c *Config) any { return c.Clients.DefaultDefinition }},
	{"admin.token", true, func(c *Config) any { return c.Admin.Token }},
	{"logging.level", true, func(c *Config) any { return c.Logging.Level }},

	{"server.host", false, func(c *Config) any { return c.Server.Host }},
	{"server.port", false, func(c *Config) any { return c.Server.Port }},
	{"server.base_url", false, func(c *Config) any { return c.Server.BaseURL }},
	{"database.dsn", false, func(c *Config) any { return c.Database.DSN }},
	{"definitions.paths", false, func(c *Config) any { return fmt.Sprint(c.Definitions.Paths) }},
	{"metrics.enabled", false, func(c *Config) any { return c.Metrics.Enabled }},
}

func (h *Holder) report(prev, next *Config) {
	var applied []string
	for _, f := range fields {
		if f.value(prev) == f.value(next) {
			continue
		}
		if f.reloadable {
			applied = append(applied, f.name)
		} else {
			h.logger.Warn().Str("field", f.name).Msg("change requires a restart")
		}
	}
	h.logger.Info().Strs("changed", applied).Msg("configuration reloaded")
}

// ReloadableFields lists the settings a reload applies.
func ReloadableFields() []string {
	return fieldNames(true)
}

// NonReloadableFields lists the settings that need a restart.
func NonReloadableFields() []string {
	return fieldNames(false)
}

func fieldNames(reloadable bool) []string {
	var out []string
	for _, f := range fields {
		if f.reloadable == reloadable {
			out = append(out, f.name)
		}
	}
	return out
}
