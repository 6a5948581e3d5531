package eventbus

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 256

// InProc is a process-local Bus. Each subscriber gets its own buffered
// channel drained by a dedicated goroutine, so a slow handler never blocks
// the publishing path; a full buffer drops events for that subscriber only.
type InProc struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*inprocSub // roomID -> subID -> sub
	closed bool
}

type inprocSub struct {
	ch   chan Event
	done chan struct{}
}

// NewInProc creates an empty in-process bus.
func NewInProc() *InProc {
	return &InProc{subs: make(map[string]map[string]*inprocSub)}
}

func (b *InProc) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs[event.RoomID] {
		select {
		case sub.ch <- event:
		default:
			log.Warn().
				Str("room_id", event.RoomID).
				Str("subscriber", id).
				Str("event_type", event.Type).
				Msg("subscriber buffer full, dropping event")
		}
	}
	return nil
}

func (b *InProc) Subscribe(roomID string, fn Handler) (func(), error) {
	sub := &inprocSub{
		ch:   make(chan Event, subscriberBuffer),
		done: make(chan struct{}),
	}
	subID := uuid.New().String()

	b.mu.Lock()
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[string]*inprocSub)
	}
	b.subs[roomID][subID] = sub
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case event := <-sub.ch:
				fn(event)
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.subs[roomID]; ok {
				delete(subs, subID)
				if len(subs) == 0 {
					delete(b.subs, roomID)
				}
			}
			b.mu.Unlock()
			close(sub.done)
		})
	}
	return unsubscribe, nil
}

func (b *InProc) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			close(sub.done)
		}
	}
	b.subs = make(map[string]map[string]*inprocSub)
	return nil
}
