package events

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// Sink receives every emitted event. Implementations must not block the
// resolver's write path; slow consumers drop rather than stall a room.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Bus is an in-process fan-out sink. The gateway subscribes to it to
// feed websocket clients; tests subscribe to assert on emissions.
type Bus struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a buffered channel receiving every future event.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 256)
	b.subs = append(b.subs, ch)
	return ch
}

// Publish fans the event out to all subscribers. A subscriber whose
// buffer is full misses the event; readers resync from a snapshot, so
// dropping beats blocking a room's timer or resolver.
func (b *Bus) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			log.Warn().
				Str("room_id", event.RoomID).
				Str("event_type", string(event.Type)).
				Msg("subscriber buffer full, dropping event")
		}
	}
	return nil
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }

// Tee publishes to every sink, e.g. the in-process bus plus JetStream.
type Tee []Sink

func (t Tee) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range t {
		if err := s.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
