package page

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dilipdevops/portfolio/internal/content"
	"github.com/dilipdevops/portfolio/internal/log"
)

// Registry owns the live page views. A page that has not been touched for
// ttl is closed by Sweep.
type Registry struct {
	content  *content.Store
	pipeline Pipeline
	cfg      Config
	ttl      time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	pages map[string]*Page
}

func NewRegistry(store *content.Store, pipeline Pipeline, cfg Config, ttl time.Duration) *Registry {
	return &Registry{
		content:  store,
		pipeline: pipeline,
		cfg:      cfg,
		ttl:      ttl,
		now:      time.Now,
		pages:    make(map[string]*Page),
	}
}

// Create mounts a new page view on the current content.
func (r *Registry) Create() (*Page, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("page id: %w", err)
	}
	p, err := New(id.String(), r.content.Site(), r.pipeline, r.cfg)
	if err != nil {
		return nil, err
	}
	p.touch(r.now())

	r.mu.Lock()
	r.pages[p.ID] = p
	r.mu.Unlock()
	log.WithFields(log.Fields{"page": p.ID}).Debug("page mounted")
	return p, nil
}

// Get returns the page and marks it as active.
func (r *Registry) Get(id string) (*Page, error) {
	r.mu.RLock()
	p, ok := r.pages[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrPageNotFound
	}
	p.touch(r.now())
	return p, nil
}

// Close unmounts one page. Closing an unknown page is not an error.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	p, ok := r.pages[id]
	delete(r.pages, id)
	r.mu.Unlock()
	if ok {
		p.Close()
		log.WithFields(log.Fields{"page": id}).Debug("page unmounted")
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pages)
}

// Sweep closes every page idle for longer than the ttl and reports how many
// were closed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var stale []*Page
	for id, p := range r.pages {
		if p.idleSince().Before(cutoff) {
			stale = append(stale, p)
			delete(r.pages, id)
		}
	}
	r.mu.Unlock()

	for _, p := range stale {
		p.Close()
	}
	if len(stale) > 0 {
		log.Infof("page sweep: closed %d idle pages", len(stale))
	}
	return len(stale)
}

// Reconfigure pushes new content to every live page.
func (r *Registry) Reconfigure(site *content.Site) {
	r.mu.RLock()
	pages := make([]*Page, 0, len(r.pages))
	for _, p := range r.pages {
		pages = append(pages, p)
	}
	r.mu.RUnlock()

	for _, p := range pages {
		if err := p.Reconfigure(site); err != nil {
			log.Warnf("page %s: reconfigure: %v", p.ID, err)
		}
	}
}

// Run sweeps every interval until ctx is done, then closes all pages.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	pages := r.pages
	r.pages = make(map[string]*Page)
	r.mu.Unlock()
	for _, p := range pages {
		p.Close()
	}
}
