// Package events is a named publish/subscribe bus. Sections that share no
// state talk through it instead of calling each other.
package events

import (
	"sort"
	"sync"
	"time"
)

// OpenInterviewModal is emitted by the About section's schedule action.
const OpenInterviewModal = "openInterviewModal"

type Event struct {
	Name    string
	Payload any
	At      time.Time
}

type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches synchronously, in subscription order. Handlers run without
// the bus lock held and may subscribe or unsubscribe.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers h for name. The returned func removes it and is safe
// to call more than once.
func (b *Bus) Subscribe(name string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

func (b *Bus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[name]
	for i, s := range subs {
		if s.id == id {
			b.subs[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}

// Emit delivers to every current subscriber of name and returns how many
// handlers ran.
func (b *Bus) Emit(name string, payload any) int {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[name]...)
	b.mu.RUnlock()

	ev := Event{Name: name, Payload: payload, At: time.Now()}
	for _, s := range subs {
		s.handler(ev)
	}
	return len(subs)
}

// Subscribers is the handler count for name.
func (b *Bus) Subscribers(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Names lists event names with at least one subscriber.
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subs))
	for name := range b.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
