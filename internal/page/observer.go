package page

import (
	"sync"

	"github.com/dilipdevops/portfolio/internal/visibility"
)

// bridge is the visibility.Observer for one page view. The browser computes
// intersections and reports them over HTTP; Deliver hands them to whichever
// tracker is currently registered for the section.
type bridge struct {
	mu   sync.Mutex
	regs map[string]*bridgeRegistration
}

type bridgeRegistration struct {
	b        *bridge
	target   string
	opts     visibility.Options
	callback func(visibility.Entry)
}

func newBridge() *bridge {
	return &bridge{regs: make(map[string]*bridgeRegistration)}
}

func (b *bridge) Observe(target string, opts visibility.Options, callback func(visibility.Entry)) (visibility.Registration, error) {
	r := &bridgeRegistration{b: b, target: target, opts: opts, callback: callback}
	b.mu.Lock()
	b.regs[target] = r
	b.mu.Unlock()
	return r, nil
}

func (r *bridgeRegistration) Unobserve() {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	if r.b.regs[r.target] == r {
		delete(r.b.regs, r.target)
	}
}

// Deliver reports false when nothing observes target any more.
func (b *bridge) Deliver(target string, visible bool, ratio float64) bool {
	b.mu.Lock()
	r, ok := b.regs[target]
	b.mu.Unlock()
	if !ok {
		return false
	}
	if ratio <= 0 && visible {
		ratio = r.opts.Threshold
	}
	r.callback(visibility.Entry{Target: target, IsIntersecting: visible, Ratio: ratio})
	return true
}
