// Package form holds the UI-facing state of one form instance:
// idle -> submitting -> success|error -> idle.
package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dilipdevops/portfolio/internal/submission"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// ErrBusy is returned while a submission is in flight; the inputs are locked.
var ErrBusy = errors.New("form: submission in flight")

// Clock schedules the status decay.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SubmitFunc runs the pipeline for one set of values.
type SubmitFunc[T any] func(ctx context.Context, values T) submission.Result

// Snapshot is a consistent copy of the form state for rendering.
type Snapshot[T any] struct {
	Status  Status
	Message string
	Values  T
}

// Locked reports whether inputs should be disabled.
func (s Snapshot[T]) Locked() bool {
	return s.Status == StatusSubmitting
}

type Form[T any] struct {
	submit    SubmitFunc[T]
	empty     T
	decay     time.Duration
	clock     Clock
	onSuccess func()

	mu      sync.Mutex
	status  Status
	message string
	values  T
	timer   Timer
	gen     uint64
	closed  bool
}

type Option[T any] func(*Form[T])

func WithClock[T any](c Clock) Option[T] {
	return func(f *Form[T]) { f.clock = c }
}

// WithOnSuccess runs fn, outside the form lock, after each successful submit.
func WithOnSuccess[T any](fn func()) Option[T] {
	return func(f *Form[T]) { f.onSuccess = fn }
}

// New returns an idle form holding empty. After a success or error the
// status returns to idle once decay has passed.
func New[T any](empty T, decay time.Duration, submit SubmitFunc[T], opts ...Option[T]) *Form[T] {
	f := &Form[T]{
		submit: submit,
		empty:  empty,
		decay:  decay,
		clock:  systemClock{},
		status: StatusIdle,
		values: empty,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Form[T]) Snapshot() Snapshot[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Form[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{Status: f.status, Message: f.message, Values: f.values}
}

// Edit replaces the current field values without submitting.
func (f *Form[T]) Edit(values T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusSubmitting {
		return ErrBusy
	}
	f.values = values
	return nil
}

// Submit runs the pipeline synchronously. On success the fields reset; on
// error they are kept so the user can resubmit without retyping.
func (f *Form[T]) Submit(ctx context.Context, values T) (Snapshot[T], error) {
	f.mu.Lock()
	if f.status == StatusSubmitting {
		snap := f.snapshotLocked()
		f.mu.Unlock()
		return snap, ErrBusy
	}
	f.stopTimerLocked()
	f.status = StatusSubmitting
	f.message = ""
	f.values = values
	f.mu.Unlock()

	res := f.submit(ctx, values)

	f.mu.Lock()
	if res.Success {
		f.status = StatusSuccess
		f.values = f.empty
	} else {
		f.status = StatusError
	}
	f.message = res.Message
	if !f.closed {
		gen := f.gen
		f.timer = f.clock.AfterFunc(f.decay, func() { f.expire(gen) })
	}
	snap := f.snapshotLocked()
	onSuccess := f.onSuccess
	f.mu.Unlock()

	if res.Success && onSuccess != nil {
		onSuccess()
	}
	return snap, nil
}

// Reset returns the form to idle immediately, keeping the field values.
func (f *Form[T]) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusSubmitting {
		return
	}
	f.stopTimerLocked()
	f.status = StatusIdle
	f.message = ""
}

// Close stops any pending decay. The form keeps answering Snapshot.
func (f *Form[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.stopTimerLocked()
}

func (f *Form[T]) stopTimerLocked() {
	f.gen++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Form[T]) expire(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return
	}
	if f.status == StatusSuccess || f.status == StatusError {
		f.status = StatusIdle
		f.message = ""
	}
	f.timer = nil
}
