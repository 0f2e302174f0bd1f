// Package watch implements a push-driven local directory watcher: each
// file under a watched root becomes one key in the sync engine, keyed by
// its path relative to the root. File writes call Engine.Push with the
// file's contents; removals call Engine.DeleteRemote.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pulsepoint/kvsync/internal/core/engine"
	"github.com/pulsepoint/kvsync/internal/watch/ignore"
	"github.com/pulsepoint/kvsync/pkg/logger"
	"github.com/pulsepoint/kvsync/pkg/value"
	"go.uber.org/zap"
)

// Watcher pushes local filesystem changes under a root directory into a
// sync engine as key/value writes.
type Watcher struct {
	root    string
	engine  *engine.Engine
	ignorer *ignore.Matcher
	fsw     *fsnotify.Watcher
	logger  *zap.Logger

	debounce       time.Duration
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options configures a Watcher.
type Options struct {
	Root           string
	Engine         *engine.Engine
	Ignorer        *ignore.Matcher
	DebouncePeriod time.Duration
}

// New creates a Watcher rooted at opts.Root.
func New(opts *Options) (*Watcher, error) {
	if opts == nil || opts.Root == "" || opts.Engine == nil {
		return nil, fmt.Errorf("watch: root and engine are required")
	}

	absRoot, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	debounce := opts.DebouncePeriod
	if debounce == 0 {
		debounce = 200 * time.Millisecond
	}

	ignorer := opts.Ignorer
	if ignorer == nil {
		ignorer = ignore.New()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		root:           absRoot,
		engine:         opts.Engine,
		ignorer:        ignorer,
		fsw:            fsw,
		logger:         logger.Get(),
		debounce:       debounce,
		debounceTimers: make(map[string]*time.Timer),
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// Start begins watching the root directory tree.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.monitor()

	w.logger.Info("local watcher started",
		zap.String("root", w.root),
		zap.Duration("debounce_period", w.debounce))
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() error {
	w.cancel()

	w.debounceMu.Lock()
	for _, t := range w.debounceTimers {
		t.Stop()
	}
	w.debounceTimers = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	w.wg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if w.ignorer.ShouldIgnore(path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) monitor() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)
	isDir := statErr == nil && info.IsDir()

	if w.ignorer.ShouldIgnore(event.Name, isDir) {
		return
	}

	if isDir && event.Op&fsnotify.Create != 0 {
		if err := w.addRecursive(event.Name); err != nil {
			w.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
		}
		return
	}

	w.debounceMu.Lock()
	if timer, exists := w.debounceTimers[event.Name]; exists {
		timer.Stop()
	}
	w.debounceTimers[event.Name] = time.AfterFunc(w.debounce, func() {
		w.applyChange(event)
	})
	w.debounceMu.Unlock()
}

func (w *Watcher) applyChange(event fsnotify.Event) {
	key, err := w.keyForPath(event.Name)
	if err != nil {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if err := w.engine.DeleteRemote(w.ctx, key); err != nil {
			w.logger.Warn("failed to propagate delete", zap.String("key", key), zap.Error(err))
		}
	default:
		data, err := os.ReadFile(event.Name)
		if err != nil {
			return
		}
		if err := w.engine.Push(w.ctx, key, value.String(string(data))); err != nil {
			w.logger.Warn("failed to propagate write", zap.String("key", key), zap.Error(err))
		}
	}
}

func (w *Watcher) keyForPath(path string) (string, error) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
