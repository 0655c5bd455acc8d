// Package notify provides the change-notification port between storage
// writers and library views. A write in one view publishes a change; every
// subscribed view reloads its merged library on receipt. Delivery is
// best-effort and at-least-once; duplicate reloads are harmless because
// reads are idempotent.
package notify

import "sync"

// Kind classifies a change event.
type Kind string

const (
	KindSaved    Kind = "saved"
	KindUpdated  Kind = "updated"
	KindDeleted  Kind = "deleted"
	KindExternal Kind = "external"
	KindSynced   Kind = "synced"
)

// Change is one library mutation announcement.
type Change struct {
	Kind    Kind
	EntryID string
	// Notice carries a human-readable message for external-change events.
	Notice string
}

// Bus is the pub/sub notification port. Cross-process deployments can back
// it with a broadcast channel; a single process uses the in-memory bus.
type Bus interface {
	// Publish announces a change to all current subscribers without blocking.
	Publish(c Change)

	// Subscribe registers a new subscriber and returns its channel plus a
	// cancel func that must be called to release it.
	Subscribe() (<-chan Change, func())
}

// MemoryBus is the in-process Bus implementation.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[int]chan Change
	next int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]chan Change)}
}

// Publish delivers c to every subscriber. A subscriber whose buffer is full
// is skipped: it will still converge on its next reload.
func (b *MemoryBus) Publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (b *MemoryBus) Subscribe() (<-chan Change, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Change, 16)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
