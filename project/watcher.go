package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"golang.org/x/time/rate"
)

// Watcher reports changed Python sources under a set of directories.
// Bursts of events are coalesced and callbacks are rate limited.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	limiter   *rate.Limiter
	exclude   []glob.Glob
	onChange  func([]string)

	callbackMu sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	pending map[string]struct{}
	timer   *time.Timer
}

type WatchOption func(*Watcher) error

func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) error {
		w.debounce = d
		return nil
	}
}

// WithRate allows at most perSecond callbacks per second.
func WithRate(perSecond float64) WatchOption {
	return func(w *Watcher) error {
		w.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		return nil
	}
}

func WithExclude(patterns []string) WatchOption {
	return func(w *Watcher) error {
		globs, err := compileGlobs(patterns)
		if err != nil {
			return err
		}
		w.exclude = globs
		return nil
	}
}

func NewWatcher(onChange func([]string), opts ...WatchOption) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("new watcher: nil callback")
	}
	w := &Watcher{
		debounce: 200 * time.Millisecond,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		onChange: onChange,
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fsWatcher = fsw
	return w, nil
}

// NewWatcher creates a watcher configured from the project's watch and
// bootstrap settings.
func (p *Project) NewWatcher(onChange func([]string)) (*Watcher, error) {
	return NewWatcher(onChange,
		WithDebounce(p.Config.Watch.Debounce),
		WithRate(p.Config.Watch.Rate),
		WithExclude(p.Config.Bootstrap.Exclude),
	)
}

// Watch adds roots recursively and delivers changes until ctx is done.
// It closes the watcher before returning.
func (w *Watcher) Watch(ctx context.Context, roots []string) error {
	defer w.close()

	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	for _, root := range roots {
		if err := w.watchRecursive(root); err != nil {
			return err
		}
	}
	log.Infof("watching %s", strings.Join(roots, ", "))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watcher error: %s", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.excluded(event.Name) {
				return
			}
			if err := w.watchRecursive(event.Name); err != nil {
				log.Warningf("watch new directory %s: %s", event.Name, err)
			}
			return
		}
	}
	if !isSource(event.Name) || w.excluded(event.Name) {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.scheduleChange(event.Name)
	}
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.excluded(path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) scheduleChange(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	ctx := w.ctx
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}
	w.onChange(paths)
}

func (w *Watcher) excluded(path string) bool {
	slash := filepath.ToSlash(path)
	return matchAny(w.exclude, filepath.Base(path)) || matchAny(w.exclude, slash)
}

func (w *Watcher) close() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	if err := w.fsWatcher.Close(); err != nil {
		log.Warningf("close watcher: %s", err)
	}
}

func isSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".py" || ext == ".pyi"
}
