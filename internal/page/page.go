// Package page keeps the server-side state of one page view: a tracker per
// section, the contact and interview forms, the interview modal and the
// schedule button. Sections talk to each other only through the page's
// event bus.
package page

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/dilipdevops/portfolio/internal/content"
	"github.com/dilipdevops/portfolio/internal/events"
	"github.com/dilipdevops/portfolio/internal/form"
	"github.com/dilipdevops/portfolio/internal/log"
	"github.com/dilipdevops/portfolio/internal/submission"
	"github.com/dilipdevops/portfolio/internal/visibility"
)

var (
	ErrPageNotFound   = errors.New("page not found")
	ErrUnknownSection = errors.New("unknown section")
	ErrPageClosed     = errors.New("page closed")
)

// Events the page emits besides events.OpenInterviewModal.
const (
	InterviewModalClosed = "interviewModalClosed"
	ScheduleChanged      = "scheduleChanged"
	SectionChanged       = "sectionChanged"
)

// Pipeline is the part of submission.Pipeline a page needs.
type Pipeline interface {
	SubmitContact(ctx context.Context, msg submission.ContactMessage) submission.Result
	SubmitInterviewRequest(ctx context.Context, req submission.InterviewRequest) submission.Result
}

type Config struct {
	ContactDecay   time.Duration
	InterviewDecay time.Duration
	// ScheduleDelay is how long the schedule button spins before the modal
	// opens; ScheduleDone is how long it then shows as complete.
	ScheduleDelay time.Duration
	ScheduleDone  time.Duration
	// ModalCloseDelay is the pause after a successful interview request
	// before the modal closes.
	ModalCloseDelay time.Duration
	Clock           form.Clock
}

func DefaultConfig() Config {
	return Config{
		ContactDecay:    8 * time.Second,
		InterviewDecay:  5 * time.Second,
		ScheduleDelay:   2 * time.Second,
		ScheduleDone:    time.Second,
		ModalCloseDelay: 2 * time.Second,
		Clock:           form.SystemClock,
	}
}

type ScheduleState string

const (
	ScheduleIdle       ScheduleState = "idle"
	ScheduleInProgress ScheduleState = "scheduling"
	ScheduleComplete   ScheduleState = "complete"
)

// SectionView is what a template needs to render one section wrapper.
type SectionView struct {
	content.Section
	Visible bool
	// Observing is false once a one-shot section has revealed; the browser
	// should stop reporting intersections for it.
	Observing bool
}

func (v SectionView) Class() string {
	return visibility.Classes(v.Animation, v.Visible, "")
}

func (v SectionView) Style() template.CSS {
	return template.CSS(v.Transition().Style())
}

type Page struct {
	ID string

	cfg       Config
	bus       *events.Bus
	bridge    *bridge
	contact   *form.Form[submission.ContactMessage]
	interview *form.Form[submission.InterviewRequest]

	mu            sync.Mutex
	site          *content.Site
	trackers      map[string]*visibility.Tracker
	modalOpen     bool
	modalTimer    form.Timer
	schedule      ScheduleState
	scheduleTimer form.Timer
	scheduleGen   uint64
	unsubscribe   []func()
	lastSeen      time.Time
	closed        bool
}

// New builds a page view and registers a tracker for every section of site.
func New(id string, site *content.Site, pipeline Pipeline, cfg Config) (*Page, error) {
	if cfg.Clock == nil {
		cfg.Clock = form.SystemClock
	}
	p := &Page{
		ID:       id,
		cfg:      cfg,
		bus:      events.NewBus(),
		bridge:   newBridge(),
		site:     site,
		trackers: make(map[string]*visibility.Tracker, len(site.Sections)),
		schedule: ScheduleIdle,
	}

	p.contact = form.New(submission.ContactMessage{}, cfg.ContactDecay,
		pipeline.SubmitContact,
		form.WithClock[submission.ContactMessage](cfg.Clock))
	p.interview = form.New(submission.NewInterviewRequest(), cfg.InterviewDecay,
		pipeline.SubmitInterviewRequest,
		form.WithClock[submission.InterviewRequest](cfg.Clock),
		form.WithOnSuccess[submission.InterviewRequest](p.closeModalLater))

	// the contact section listens for the about section's schedule action
	// for as long as the page lives
	p.unsubscribe = append(p.unsubscribe,
		p.bus.Subscribe(events.OpenInterviewModal, func(events.Event) { p.OpenInterview() }))

	for _, sec := range site.Sections {
		tr, err := p.attach(sec)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.trackers[sec.ID] = tr
	}
	return p, nil
}

func (p *Page) attach(sec content.Section) (*visibility.Tracker, error) {
	tr := visibility.NewTracker(p.bridge, sec.Options())
	section := sec.ID
	tr.OnChange(func(visible bool) {
		p.bus.Emit(SectionChanged, SectionEvent{Section: section, Visible: visible})
	})
	if err := tr.Attach(section); err != nil {
		return nil, fmt.Errorf("attach section %s: %w", section, err)
	}
	return tr, nil
}

// SectionEvent is the payload of SectionChanged.
type SectionEvent struct {
	Section string `json:"section"`
	Visible bool   `json:"visible"`
}

func (p *Page) Bus() *events.Bus {
	return p.bus
}

func (p *Page) Site() *content.Site {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.site
}

func (p *Page) touch(now time.Time) {
	p.mu.Lock()
	p.lastSeen = now
	p.mu.Unlock()
}

func (p *Page) idleSince() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

func (p *Page) tracker(section string) (*visibility.Tracker, content.Section, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, content.Section{}, ErrPageClosed
	}
	sec, ok := p.site.Section(section)
	tr := p.trackers[section]
	if !ok || tr == nil {
		return nil, content.Section{}, fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	return tr, sec, nil
}

func (p *Page) Section(section string) (SectionView, error) {
	tr, sec, err := p.tracker(section)
	if err != nil {
		return SectionView{}, err
	}
	return SectionView{Section: sec, Visible: tr.IsVisible(), Observing: tr.Observing()}, nil
}

// Sections lists every section in page order.
func (p *Page) Sections() []SectionView {
	site := p.Site()
	views := make([]SectionView, 0, len(site.Sections))
	for _, sec := range site.Sections {
		if v, err := p.Section(sec.ID); err == nil {
			views = append(views, v)
		}
	}
	return views
}

// Intersect feeds one browser intersection report to the section's tracker.
// Reports for a section that is no longer observed are ignored.
func (p *Page) Intersect(section string, visible bool, ratio float64) (SectionView, error) {
	if _, _, err := p.tracker(section); err != nil {
		return SectionView{}, err
	}
	if !p.bridge.Deliver(section, visible, ratio) {
		log.Debugf("page %s: late intersection for %s ignored", p.ID, section)
	}
	return p.Section(section)
}

// Reconfigure swaps in new site content. Trackers of sections that still
// exist get the new options; sections that disappeared are detached and new
// ones are attached.
func (p *Page) Reconfigure(site *content.Site) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPageClosed
	}
	p.site = site
	old := p.trackers
	p.trackers = make(map[string]*visibility.Tracker, len(site.Sections))
	var added []content.Section
	for _, sec := range site.Sections {
		if tr, ok := old[sec.ID]; ok {
			p.trackers[sec.ID] = tr
			delete(old, sec.ID)
			continue
		}
		added = append(added, sec)
	}
	p.mu.Unlock()

	for _, tr := range old {
		tr.Detach()
	}
	var errs []error
	for _, sec := range site.Sections {
		p.mu.Lock()
		tr := p.trackers[sec.ID]
		p.mu.Unlock()
		if tr == nil {
			continue
		}
		if err := tr.Configure(sec.Options()); err != nil {
			errs = append(errs, fmt.Errorf("configure %s: %w", sec.ID, err))
		}
	}
	for _, sec := range added {
		tr, err := p.attach(sec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.mu.Lock()
		p.trackers[sec.ID] = tr
		p.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (p *Page) Contact() form.Snapshot[submission.ContactMessage] {
	return p.contact.Snapshot()
}

// SubmitContact runs the contact pipeline. ErrBusy means an earlier submit
// is still in flight.
func (p *Page) SubmitContact(ctx context.Context, msg submission.ContactMessage) (form.Snapshot[submission.ContactMessage], error) {
	if p.isClosed() {
		return form.Snapshot[submission.ContactMessage]{}, ErrPageClosed
	}
	return p.contact.Submit(ctx, msg)
}

// EditContact keeps the typed values when a submit was rejected before it
// reached the pipeline.
func (p *Page) EditContact(msg submission.ContactMessage) error {
	return p.contact.Edit(msg)
}

func (p *Page) Interview() form.Snapshot[submission.InterviewRequest] {
	return p.interview.Snapshot()
}

func (p *Page) SubmitInterview(ctx context.Context, req submission.InterviewRequest) (form.Snapshot[submission.InterviewRequest], error) {
	if p.isClosed() {
		return form.Snapshot[submission.InterviewRequest]{}, ErrPageClosed
	}
	return p.interview.Submit(ctx, req)
}

func (p *Page) EditInterview(req submission.InterviewRequest) error {
	return p.interview.Edit(req)
}

func (p *Page) InterviewOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modalOpen
}

func (p *Page) OpenInterview() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.stopModalTimerLocked()
	p.modalOpen = true
}

// CloseInterview hides the modal. The form keeps its values.
func (p *Page) CloseInterview() {
	p.mu.Lock()
	p.stopModalTimerLocked()
	wasOpen := p.modalOpen
	p.modalOpen = false
	p.mu.Unlock()

	if wasOpen {
		p.bus.Emit(InterviewModalClosed, nil)
	}
}

func (p *Page) closeModalLater() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.stopModalTimerLocked()
	p.modalTimer = p.cfg.Clock.AfterFunc(p.cfg.ModalCloseDelay, func() {
		p.CloseInterview()
		p.interview.Reset()
	})
}

func (p *Page) stopModalTimerLocked() {
	if p.modalTimer != nil {
		p.modalTimer.Stop()
		p.modalTimer = nil
	}
}

func (p *Page) Schedule() ScheduleState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.schedule
}

// StartSchedule begins the schedule animation. After ScheduleDelay the
// interview modal is asked to open; the button shows complete for
// ScheduleDone and returns to idle. Pressing it again while it runs does
// nothing.
func (p *Page) StartSchedule() ScheduleState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.schedule == ScheduleInProgress {
		return p.schedule
	}
	if p.scheduleTimer != nil {
		p.scheduleTimer.Stop()
	}
	p.scheduleGen++
	gen := p.scheduleGen
	p.schedule = ScheduleInProgress
	p.scheduleTimer = p.cfg.Clock.AfterFunc(p.cfg.ScheduleDelay, func() { p.scheduleFired(gen) })
	return p.schedule
}

func (p *Page) scheduleFired(gen uint64) {
	p.mu.Lock()
	if p.closed || gen != p.scheduleGen {
		p.mu.Unlock()
		return
	}
	p.schedule = ScheduleComplete
	p.scheduleTimer = p.cfg.Clock.AfterFunc(p.cfg.ScheduleDone, func() { p.scheduleReset(gen) })
	p.mu.Unlock()

	p.bus.Emit(events.OpenInterviewModal, nil)
	p.bus.Emit(ScheduleChanged, ScheduleComplete)
}

func (p *Page) scheduleReset(gen uint64) {
	p.mu.Lock()
	if p.closed || gen != p.scheduleGen {
		p.mu.Unlock()
		return
	}
	p.schedule = ScheduleIdle
	p.scheduleTimer = nil
	p.mu.Unlock()

	p.bus.Emit(ScheduleChanged, ScheduleIdle)
}

// Listen forwards the named bus events into a buffered channel until stop
// is called. Events are dropped when the reader falls behind.
func (p *Page) Listen(names ...string) (<-chan events.Event, func()) {
	ch := make(chan events.Event, 16)
	unsubs := make([]func(), 0, len(names))
	for _, name := range names {
		unsubs = append(unsubs, p.bus.Subscribe(name, func(e events.Event) {
			select {
			case ch <- e:
			default:
				log.Warnf("page %s: listener full, dropped %s", p.ID, e.Name)
			}
		}))
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			for _, u := range unsubs {
				u()
			}
		})
	}
}

func (p *Page) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close unmounts the page: trackers detach, bus subscriptions end and every
// pending timer stops. It is safe to call more than once.
func (p *Page) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.stopModalTimerLocked()
	if p.scheduleTimer != nil {
		p.scheduleTimer.Stop()
		p.scheduleTimer = nil
	}
	trackers := p.trackers
	unsubs := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	for _, tr := range trackers {
		tr.Detach()
	}
	for _, u := range unsubs {
		u()
	}
	p.contact.Close()
	p.interview.Close()
}
