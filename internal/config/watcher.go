package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file, and the labels file it points to, when
// either changes on disk. Invalid edits are logged and ignored.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(old, new *Config)

	fs       *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	current *Config
	watched map[string]bool
	timer   *time.Timer
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for writes to settle.
// The default is 100ms.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher loads the config at path and starts watching it.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}

	w := &Watcher{
		path:     path,
		debounce: 100 * time.Millisecond,
		onChange: onChange,
		fs:       fsw,
		done:     make(chan struct{}),
		current:  cfg,
		watched:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.watchFiles(cfg); err != nil {
		fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fs.Close()
		w.wg.Wait()

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
}

// watchFiles adds the directories of the config and labels files. Editors
// replace files by rename, so directories are watched rather than files.
func (w *Watcher) watchFiles(cfg *Config) error {
	for _, p := range w.files(cfg) {
		dir := filepath.Dir(p)
		if w.watched[dir] {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("config: watch %q: %w", dir, err)
		}
		w.watched[dir] = true
	}
	return nil
}

func (w *Watcher) files(cfg *Config) []string {
	files := []string{absPath(w.path)}
	if labels := cfg.LabelsPath(); labels != "" {
		files = append(files, absPath(labels))
	}
	return files
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			w.schedule()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "err", err)
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	name = absPath(name)
	for _, f := range w.files(w.Current()) {
		if f == name {
			return true
		}
	}
	return false
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	cfg, err := Load(w.path)
	if err == nil {
		_, err = cfg.LoadLabels()
		if errors.Is(err, ErrNoLabels) {
			err = nil
		}
	}
	if err != nil {
		slog.Warn("config reload rejected", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	if err := w.watchFiles(cfg); err != nil {
		slog.Warn("config watcher", "err", err)
	}
	w.mu.Unlock()

	slog.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
