// Package visibility tracks when page regions scroll into view and maps that
// to the hidden/visible presentation of the reveal animation.
//
// A Tracker never observes anything itself. It registers with an Observer
// (the browser bridge, or the geometric Viewport) and reacts to the entries
// the Observer delivers.
package visibility

import (
	"fmt"
	"sync"
)

// Entry is one intersection notification for an observed target.
type Entry struct {
	Target string
	// IsIntersecting is true when the target is in view at or above the
	// registration threshold.
	IsIntersecting bool
	Ratio          float64
}

// Observer is the intersection capability a Tracker registers with.
// Callbacks must not be invoked while the Observer holds its own locks.
type Observer interface {
	Observe(target string, opts Options, callback func(Entry)) (Registration, error)
}

// Registration is an active observation. Unobserve is idempotent.
type Registration interface {
	Unobserve()
}

type State int

const (
	StateDetached State = iota
	StateRegistered
	StateFired
	StateDeregistered
	// StateUnsupported means no Observer was available; the tracker stays hidden.
	StateUnsupported
)

func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateRegistered:
		return "registered"
	case StateFired:
		return "fired"
	case StateDeregistered:
		return "deregistered"
	case StateUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Tracker holds the visibility flag of one region.
type Tracker struct {
	observer Observer

	mu       sync.Mutex
	opts     Options
	target   string
	reg      Registration
	gen      uint64
	state    State
	visible  bool
	fired    bool
	onChange func(visible bool)
}

// NewTracker returns a detached tracker. A nil observer is allowed and
// degrades to a region that never becomes visible.
func NewTracker(observer Observer, opts Options) *Tracker {
	return &Tracker{observer: observer, opts: opts}
}

// OnChange installs a callback run after every flip of the visibility flag.
// It is called without the tracker lock held.
func (t *Tracker) OnChange(fn func(visible bool)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Tracker) IsVisible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) Options() Options {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opts
}

// Observing reports whether the tracker currently holds a registration and
// still wants intersection events.
func (t *Tracker) Observing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateRegistered
}

// Attach starts observing target. A one-shot tracker that already fired stays
// visible and does not register again.
func (t *Tracker) Attach(target string) error {
	t.mu.Lock()
	if t.fired && t.opts.TriggerOnce {
		t.mu.Unlock()
		return nil
	}
	if t.state == StateRegistered && t.target == target {
		t.mu.Unlock()
		return nil
	}
	old := t.reg
	t.reg = nil
	t.gen++
	t.target = target
	t.mu.Unlock()

	if old != nil {
		old.Unobserve()
	}
	return t.register()
}

// Configure replaces the options. An active registration is dropped and made
// again so the observer never runs with stale threshold or margin.
func (t *Tracker) Configure(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	if sameObservation(t.opts, opts) {
		t.mu.Unlock()
		return nil
	}
	t.opts = opts
	if t.state != StateRegistered {
		t.mu.Unlock()
		return nil
	}
	old := t.reg
	t.reg = nil
	t.gen++
	t.mu.Unlock()

	if old != nil {
		old.Unobserve()
	}
	return t.register()
}

// Detach drops the registration unconditionally.
func (t *Tracker) Detach() {
	t.mu.Lock()
	reg := t.reg
	t.reg = nil
	t.gen++
	if t.state != StateUnsupported && t.state != StateDetached {
		t.state = StateDeregistered
	}
	t.mu.Unlock()

	if reg != nil {
		reg.Unobserve()
	}
}

func (t *Tracker) register() error {
	t.mu.Lock()
	if t.observer == nil {
		t.state = StateUnsupported
		t.mu.Unlock()
		return nil
	}
	t.gen++
	gen := t.gen
	target, opts := t.target, t.opts
	t.state = StateRegistered
	t.mu.Unlock()

	reg, err := t.observer.Observe(target, opts, func(e Entry) { t.handle(gen, e) })

	t.mu.Lock()
	if err != nil {
		if gen == t.gen {
			t.state = StateUnsupported
		}
		t.mu.Unlock()
		return fmt.Errorf("observe %s: %w", target, err)
	}
	if gen != t.gen || t.state != StateRegistered {
		// detached, reconfigured or fired while Observe was running
		if gen == t.gen && t.state == StateFired {
			t.state = StateDeregistered
		}
		t.mu.Unlock()
		reg.Unobserve()
		return nil
	}
	t.reg = reg
	t.mu.Unlock()
	return nil
}

func (t *Tracker) handle(gen uint64, e Entry) {
	t.mu.Lock()
	if gen != t.gen || t.state != StateRegistered {
		t.mu.Unlock()
		return
	}

	changed := false
	var reg Registration
	switch {
	case e.IsIntersecting:
		changed = !t.visible
		t.visible = true
		if t.opts.TriggerOnce {
			t.fired = true
			t.state = StateFired
			if t.reg != nil {
				reg = t.reg
				t.reg = nil
				t.state = StateDeregistered
			}
		}
	case !t.opts.TriggerOnce:
		changed = t.visible
		t.visible = false
	}
	fn, visible := t.onChange, t.visible
	t.mu.Unlock()

	if reg != nil {
		reg.Unobserve()
	}
	if changed && fn != nil {
		fn(visible)
	}
}
