// Package events fans dashboard filter changes out to every open view.
package events

import (
	"sync"

	"github.com/covercompare/membergate/internal/metrics"
	"github.com/covercompare/membergate/pkg/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 16

// Subscription receives filter changes until it is cancelled.
type Subscription struct {
	ID uuid.UUID
	C  <-chan schema.FilterChanged

	ch  chan schema.FilterChanged
	bus *Bus
}

// Cancel detaches the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Cancel() {
	s.bus.unsubscribe(s.ID)
}

// Bus is an in-process broadcast of schema.FilterChanged.
// A slow subscriber drops events instead of blocking the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]chan schema.FilterChanged
	last *schema.FilterChanged
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uuid.UUID]chan schema.FilterChanged)}
}

// Subscribe registers a new listener.
// The most recent filter, if any, is delivered first so late joiners render the same view.
func (b *Bus) Subscribe() *Subscription {
	ch := make(chan schema.FilterChanged, subscriberBuffer)
	id := uuid.New()

	b.mu.Lock()
	b.subs[id] = ch
	if b.last != nil {
		ch <- *b.last
	}
	b.mu.Unlock()

	return &Subscription{ID: id, C: ch, ch: ch, bus: b}
}

func (b *Bus) unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers ev to every subscriber and returns how many received it.
func (b *Bus) Publish(ev schema.FilterChanged) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = &ev
	delivered := 0
	for id, ch := range b.subs {
		select {
		case ch <- ev:
			delivered++
		default:
			log.Warn().Str("subscriber", id.String()).Msg("Dropping filter change for slow subscriber")
		}
	}
	metrics.RecordFilterBroadcast()
	return delivered
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
