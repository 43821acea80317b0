package watch

import (
	"sync"
	"sync/atomic"

	"github.com/antigravity-dev/maestro/internal/events"
)

// Subscription is a live handle to a bounded event queue. Callers range
// over Events() and must call Close() when done to free the slot.
type Subscription struct {
	id      uint64
	ch      chan events.Event
	bus     *Bus
	dropped *int64
}

// Events returns the channel of delivered events.
func (s *Subscription) Events() <-chan events.Event { return s.ch }

// Dropped returns the number of events dropped for this subscriber due
// to backpressure (queue-full, oldest-drop).
func (s *Subscription) Dropped() int64 { return atomic.LoadInt64(s.dropped) }

// Close unsubscribes without affecting other subscribers.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
}

// Bus is the in-process pub/sub fanning events out to subscribers with
// bounded, drop-oldest queues.
type Bus struct {
	mu       sync.Mutex
	nextID   uint64
	queueLen int
	subs     map[uint64]*subEntry
}

type subEntry struct {
	ch      chan events.Event
	dropped *int64
}

// DefaultQueueDepth matches the runtime's default per-subscriber bound.
const DefaultQueueDepth = 256

// NewBus constructs a bus with the given per-subscriber queue depth.
func NewBus(queueDepth int) *Bus {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	return &Bus{queueLen: queueDepth, subs: make(map[uint64]*subEntry)}
}

// Subscribe registers a new subscriber with its own bounded queue.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	dropped := new(int64)
	entry := &subEntry{ch: make(chan events.Event, b.queueLen), dropped: dropped}
	b.subs[id] = entry
	return &Subscription{id: id, ch: entry.ch, bus: b, dropped: dropped}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if entry, ok := b.subs[id]; ok {
		close(entry.ch)
		delete(b.subs, id)
	}
}

// Publish fans evt out to every subscriber. A subscriber whose queue is
// full has its oldest buffered event dropped to make room; the event
// itself is never dropped at the publisher.
func (b *Bus) Publish(evt events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range b.subs {
		select {
		case entry.ch <- evt:
		default:
			select {
			case <-entry.ch:
				atomic.AddInt64(entry.dropped, 1)
			default:
			}
			select {
			case entry.ch <- evt:
			default:
			}
		}
	}
}

// SubscriberCount reports the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
