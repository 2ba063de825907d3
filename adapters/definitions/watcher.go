package definitions

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces bursts of file events from editors.
const DefaultDebounce = 250 * time.Millisecond

// Watcher triggers a reload when definition files change.
type Watcher struct {
	dirs     []string
	reload   func()
	debounce time.Duration
	logger   zerolog.Logger

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	once    sync.Once

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher over dirs and their subdirectories.
func NewWatcher(dirs []string, reload func(), logger zerolog.Logger) *Watcher {
	return &Watcher{
		dirs:     dirs,
		reload:   reload,
		debounce: DefaultDebounce,
		logger:   logger.With().Str("component", "definition_watcher").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// SetDebounce changes the quiet period before a reload.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching. Missing directories are skipped.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	w.watcher = watcher

	watched := 0
	for _, dir := range w.dirs {
		if _, err := os.Stat(dir); err != nil {
			w.logger.Warn().Str("dir", dir).Msg("definition directory not found, not watching")
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return err
			}
			watched++
			return watcher.Add(path)
		})
		if err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	go w.loop()

	w.logger.Info().Strs("dirs", w.dirs).Int("watched", watched).Msg("watching definition files for changes")
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
		}
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("definition watcher error")

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Error().Err(err).Str("dir", event.Name).Msg("watch new directory")
			}
			return
		}
	}

	if _, ok := FormatOf(event.Name); !ok {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.logger.Debug().
		Str("event", event.Op.String()).
		Str("file", event.Name).
		Msg("definition file changed")
	w.schedule()
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		w.reload()
	})
}
