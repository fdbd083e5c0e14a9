package content

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dilipdevops/portfolio/internal/log"
)

// Store hands out the current Site. Readers never block on a reload.
type Store struct {
	site atomic.Pointer[Site]
}

func NewStore(site *Site) *Store {
	s := &Store{}
	s.site.Store(site)
	return s
}

func (s *Store) Site() *Site {
	return s.site.Load()
}

func (s *Store) Swap(site *Site) {
	s.site.Store(site)
}

const defaultDebounce = 300 * time.Millisecond

// Watcher reloads a content file into a Store when it changes on disk. A
// file that fails to parse is logged and the previous content stays live.
type Watcher struct {
	path     string
	store    *Store
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu       sync.Mutex
	reloads  int
	failures int
	onReload func(*Site)
}

// NewWatcher watches the directory holding path, so editors that replace
// the file with a rename are still seen.
func NewWatcher(path string, store *Store) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("content watcher needs a file path")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		path:     filepath.Clean(path),
		store:    store,
		debounce: defaultDebounce,
		watcher:  fw,
	}, nil
}

// OnReload registers fn to run after each successful reload.
func (w *Watcher) OnReload(fn func(*Site)) {
	w.mu.Lock()
	w.onReload = fn
	w.mu.Unlock()
}

// Stats reports successful and failed reloads.
func (w *Watcher) Stats() (reloads, failures int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads, w.failures
}

// Run blocks until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debugf("content: %s %s", event.Op, event.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("content watcher: %v", err)

		case <-timerCh:
			timerCh = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	site, err := Load(w.path)

	w.mu.Lock()
	if err != nil {
		w.failures++
		w.mu.Unlock()
		log.Warnf("content: keeping previous content, reload of %s failed: %v", w.path, err)
		return
	}
	w.reloads++
	fn := w.onReload
	w.mu.Unlock()

	w.store.Swap(site)
	log.Infof("content: reloaded %s", w.path)
	if fn != nil {
		fn(site)
	}
}
