package visibility

import (
	"fmt"
	"sync"
)

// Rect is an axis-aligned box in document coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) area() float64 {
	return r.Width * r.Height
}

func (r Rect) intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.Width, o.X+o.Width), min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func (r Rect) contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

func (l Length) resolve(dimension float64) float64 {
	if l.Percent {
		return dimension * l.Value / 100
	}
	return l.Value
}

// Viewport is a geometric Observer for tests: regions are placed in document
// space and entries are produced as the viewport scrolls or resizes.
type Viewport struct {
	mu           sync.Mutex
	width        float64
	height       float64
	scrollX      float64
	scrollY      float64
	regions      map[string]Rect
	observations map[uint64]*observation
	nextID       uint64
}

type observation struct {
	id        uint64
	target    string
	threshold float64
	margin    Margin
	callback  func(Entry)
	// last reported state; nil until the initial entry went out
	intersecting *bool
}

func NewViewport(width, height float64) *Viewport {
	return &Viewport{
		width:        width,
		height:       height,
		regions:      make(map[string]Rect),
		observations: make(map[uint64]*observation),
	}
}

// Place sets or moves a region.
func (v *Viewport) Place(target string, r Rect) {
	v.mu.Lock()
	v.regions[target] = r
	pending := v.collectLocked()
	v.mu.Unlock()
	deliver(pending)
}

func (v *Viewport) ScrollTo(x, y float64) {
	v.mu.Lock()
	v.scrollX, v.scrollY = x, y
	pending := v.collectLocked()
	v.mu.Unlock()
	deliver(pending)
}

func (v *Viewport) Resize(width, height float64) {
	v.mu.Lock()
	v.width, v.height = width, height
	pending := v.collectLocked()
	v.mu.Unlock()
	deliver(pending)
}

// Ratio is the visible fraction of target inside the root box grown by margin.
func (v *Viewport) Ratio(target string, margin Margin) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ratioLocked(target, margin)
}

// Observations is the number of live registrations.
func (v *Viewport) Observations() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.observations)
}

// Observe registers a callback. Like the browser API, an initial entry for the
// current geometry is delivered right away.
func (v *Viewport) Observe(target string, opts Options, callback func(Entry)) (Registration, error) {
	if callback == nil {
		return nil, fmt.Errorf("observe %s: nil callback", target)
	}
	margin, err := ParseMargin(opts.RootMargin)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.nextID++
	obs := &observation{
		id:        v.nextID,
		target:    target,
		threshold: opts.Threshold,
		margin:    margin,
		callback:  callback,
	}
	v.observations[obs.id] = obs
	pending := v.collectLocked()
	v.mu.Unlock()

	deliver(pending)
	return &viewportRegistration{viewport: v, id: obs.id}, nil
}

type viewportRegistration struct {
	viewport *Viewport
	id       uint64
}

func (r *viewportRegistration) Unobserve() {
	r.viewport.mu.Lock()
	delete(r.viewport.observations, r.id)
	r.viewport.mu.Unlock()
}

type pendingEntry struct {
	callback func(Entry)
	entry    Entry
}

func deliver(pending []pendingEntry) {
	for _, p := range pending {
		p.callback(p.entry)
	}
}

// collectLocked finds observations whose threshold state changed since the
// last report.
func (v *Viewport) collectLocked() []pendingEntry {
	var pending []pendingEntry
	for _, obs := range v.observations {
		ratio := v.ratioLocked(obs.target, obs.margin)
		intersecting := ratio > 0 && ratio >= obs.threshold
		if obs.intersecting != nil && *obs.intersecting == intersecting {
			continue
		}
		obs.intersecting = &intersecting
		pending = append(pending, pendingEntry{
			callback: obs.callback,
			entry:    Entry{Target: obs.target, IsIntersecting: intersecting, Ratio: ratio},
		})
	}
	return pending
}

func (v *Viewport) ratioLocked(target string, margin Margin) float64 {
	region, ok := v.regions[target]
	if !ok {
		return 0
	}

	top := margin.Top.resolve(v.height)
	bottom := margin.Bottom.resolve(v.height)
	left := margin.Left.resolve(v.width)
	right := margin.Right.resolve(v.width)
	root := Rect{
		X:      v.scrollX - left,
		Y:      v.scrollY - top,
		Width:  v.width + left + right,
		Height: v.height + top + bottom,
	}
	if root.Width <= 0 || root.Height <= 0 {
		return 0
	}

	if region.area() == 0 {
		if root.contains(region.X, region.Y) {
			return 1
		}
		return 0
	}
	return root.intersect(region).area() / region.area()
}
