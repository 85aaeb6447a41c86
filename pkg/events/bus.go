package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// subscriberBuffer is the channel depth given to each subscriber. Events
// beyond a full buffer are dropped for that subscriber only.
const subscriberBuffer = 64

// Bus fans events out to the subscribers of one session. Publish never
// blocks.
type Bus struct {
	mu        sync.RWMutex
	sessionID string
	logger    *slog.Logger
	subs      map[int]chan Event
	nextID    int
	closed    bool

	dropped atomic.Int64
}

// NewBus creates a bus for one session.
func NewBus(sessionID string, logger *slog.Logger) *Bus {
	return &Bus{
		sessionID: sessionID,
		logger:    logger,
		subs:      make(map[int]chan Event),
	}
}

// Subscribe registers a listener. The returned cancel function must be
// called to release the subscription; the channel is closed by cancel or
// by Close.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber. Full subscriber buffers
// drop the event; the engine never waits on a reader.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
			b.logger.Debug("event dropped for slow subscriber",
				"session_id", b.sessionID, "type", ev.Type)
		}
	}
}

// Dropped returns how many events were discarded for slow subscribers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close terminates the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
