package realtime

import (
	"sync"
)

// Published is one call recorded by MemoryBus.
type Published struct {
	Room    string
	Type    string
	Payload any
}

// MemoryBus records every published event. It is the bus of single-process tools
// and tests, where no socket clients are attached.
type MemoryBus struct {
	mu     sync.Mutex
	events []Published
	err    error
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(room, eventType string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, Published{Room: room, Type: eventType, Payload: payload})
	return nil
}

// FailWith makes every following Publish return err. A nil err restores delivery.
func (b *MemoryBus) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

// Events returns a copy of everything published so far.
func (b *MemoryBus) Events() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Published(nil), b.events...)
}

// InRoom filters the recorded events by room.
func (b *MemoryBus) InRoom(room string) []Published {
	var out []Published
	for _, e := range b.Events() {
		if e.Room == room {
			out = append(out, e)
		}
	}
	return out
}

func (b *MemoryBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}
