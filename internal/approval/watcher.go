package approval

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// LoadFunc reads the current allow/deny configuration from its backing store.
type LoadFunc func() (Config, error)

// Watcher reloads an Engine whenever its configuration file changes.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	engine   *Engine
	path     string
	load     LoadFunc
	debounce time.Duration
	log      *zap.Logger
	reloads  chan error
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher creates a watcher for the configuration file at path. The parent
// directory is watched so editors that replace the file are still seen.
func NewWatcher(path string, engine *Engine, load LoadFunc, log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		watcher:  fw,
		engine:   engine,
		path:     filepath.Clean(path),
		load:     load,
		debounce: 200 * time.Millisecond,
		log:      log,
		reloads:  make(chan error, 8),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SetDebounce changes how long the watcher waits for writes to settle.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Reloads delivers the outcome of every reload attempt. Sends never block;
// outcomes are dropped when nobody reads them.
func (w *Watcher) Reloads() <-chan error {
	return w.reloads
}

// Start begins watching. It is non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.log.Debug("watching auto-approve config", zap.String("path", w.path))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.mu.Lock()
			d := w.debounce
			w.mu.Unlock()
			if timer == nil {
				timer = time.NewTimer(d)
			} else {
				timer.Reset(d)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.load()
	if err == nil {
		err = w.engine.UpdateConfiguration(cfg)
	}
	if err != nil {
		w.log.Warn("auto-approve reload failed, keeping previous rules", zap.Error(err))
	} else {
		w.log.Info("auto-approve rules reloaded", zap.String("path", w.path))
	}
	select {
	case w.reloads <- err:
	default:
	}
}
