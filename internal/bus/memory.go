package bus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/parcelworks/eventgate/internal/domain"
)

// MemoryBus captures published events in memory. It backs tests and local
// runs that have no Redis.
type MemoryBus struct {
	mu     sync.Mutex
	events []domain.CanonicalEvent

	// FailWith, when set, makes every Publish return that error.
	FailWith error
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(_ context.Context, ev domain.CanonicalEvent) error {
	if b.FailWith != nil {
		return b.FailWith
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

// Events returns a snapshot of everything published so far.
func (b *MemoryBus) Events() []domain.CanonicalEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.CanonicalEvent, len(b.events))
	copy(out, b.events)
	return out
}

// MemoryDeadLetter captures dead letters in memory.
type MemoryDeadLetter struct {
	mu      sync.Mutex
	letters []domain.DeadLetter

	FailWith error
}

func NewMemoryDeadLetter() *MemoryDeadLetter {
	return &MemoryDeadLetter{}
}

func (d *MemoryDeadLetter) Send(_ context.Context, reason string, original json.RawMessage) error {
	if d.FailWith != nil {
		return d.FailWith
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.letters = append(d.letters, domain.DeadLetter{Reason: reason, Event: original})
	return nil
}

// Letters returns a snapshot of everything dead-lettered so far.
func (d *MemoryDeadLetter) Letters() []domain.DeadLetter {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.DeadLetter, len(d.letters))
	copy(out, d.letters)
	return out
}
