package events

import (
	"fmt"
	"sync"

	"digital.vasic.automation/pkg/logging"
)

// DefaultRetention is the number of events kept for replay
// when no explicit capacity is configured.
const DefaultRetention = 100

// Listener receives events synchronously as they are
// published. A listener that panics is isolated: the panic is
// logged and delivery continues to the remaining listeners.
type Listener func(Event)

// SubscriptionID identifies a registered listener so it can be
// removed later.
type SubscriptionID int

// Bus is a bounded multi-producer/multi-consumer event
// channel. Published events are fanned out to listeners and
// retained in a fixed-size ring buffer; once full, the oldest
// retained event is evicted. Publish never blocks.
type Bus struct {
	mu        sync.RWMutex
	retained  []Event
	start     int
	count     int
	listeners map[SubscriptionID]Listener
	nextID    SubscriptionID
	logger    logging.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used to report listener panics.
func WithLogger(l logging.Logger) BusOption {
	return func(b *Bus) { b.logger = l }
}

// NewBus creates a Bus retaining up to capacity events for
// replay. A non-positive capacity falls back to
// DefaultRetention.
func NewBus(capacity int, opts ...BusOption) *Bus {
	if capacity <= 0 {
		capacity = DefaultRetention
	}
	b := &Bus{
		retained:  make([]Event, capacity),
		listeners: make(map[SubscriptionID]Listener),
		logger:    logging.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a listener and returns its subscription
// ID for later removal.
func (b *Bus) Subscribe(l Listener) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.listeners[id] = l
	return id
}

// Unsubscribe removes a listener. Returns false if the ID is
// unknown.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[id]; !ok {
		return false
	}
	delete(b.listeners, id)
	return true
}

// Publish retains the event, evicting the oldest retained
// event if the buffer is full, then delivers it synchronously
// to every listener. Listener panics are contained and logged;
// one failing listener never prevents delivery to the others.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	size := len(b.retained)
	if b.count < size {
		b.retained[(b.start+b.count)%size] = e
		b.count++
	} else {
		b.retained[b.start] = e
		b.start = (b.start + 1) % size
	}
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.Unlock()

	for _, l := range listeners {
		b.deliver(l, e)
	}
}

// deliver invokes one listener, recovering from panics.
func (b *Bus) deliver(l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(
				"event listener panicked",
				logging.StringField(
					"event_type", string(e.Type),
				),
				logging.StringField(
					"panic", fmt.Sprint(r),
				),
			)
		}
	}()
	l(e)
}

// Recent returns up to n retained events, newest first. A
// non-positive n returns all retained events.
func (b *Bus) Recent(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > b.count {
		n = b.count
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		// Walk backwards from the newest retained event.
		idx := (b.start + b.count - 1 - i) % len(b.retained)
		out = append(out, b.retained[idx])
	}
	return out
}

// Len returns the number of retained events.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}
