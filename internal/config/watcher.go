package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Watcher keeps the most recent valid config from a file. A background loop
// polls the file; [Watcher.Reload] checks it on demand. Edits that fail to
// load or validate are logged and ignored.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	logger   *slog.Logger

	snap atomic.Pointer[snapshot]

	// checkMu serializes checks so onChange sees reloads in file order.
	checkMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

type snapshot struct {
	cfg *Config
	sum [sha256.Size]byte
	mod time.Time
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Default: 5s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger for reload and error messages.
func WithLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher loads path and starts polling it. onChange, when non-nil, is
// called with the previous and the new config after each accepted edit.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	s, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.snap.Store(s)

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.loop(ctx)
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config { return w.snap.Load().cfg }

// Reload checks the file now, regardless of its modification time. It
// reports whether a new config was accepted.
func (w *Watcher) Reload() bool { return w.check(true) }

// Stop ends polling and waits for an in-flight check. Safe to call more than
// once.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.check(false)
		}
	}
}

func (w *Watcher) check(force bool) bool {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	prev := w.snap.Load()
	if !force {
		info, err := os.Stat(w.path)
		if err != nil {
			w.logger.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
			return false
		}
		if info.ModTime().Equal(prev.mod) {
			return false
		}
	}

	next, err := w.read()
	if err != nil {
		w.logger.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return false
	}
	if next.sum == prev.sum {
		// Touched, not edited.
		w.snap.Store(&snapshot{cfg: prev.cfg, sum: prev.sum, mod: next.mod})
		return false
	}
	w.snap.Store(next)
	w.logger.Info("config watcher: configuration reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(prev.cfg, next.cfg)
	}
	return true
}

func (w *Watcher) read() (*snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &snapshot{cfg: cfg, sum: sha256.Sum256(data), mod: info.ModTime()}, nil
}
