// Package syncer implements the durable upload queue and the background
// sync engine that drains it against a cloud provider.
package syncer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/models"
	"github.com/dmitrijs2005/videodiary/internal/statestore"
)

// Queue is the durable sync queue: an in-memory list mirrored into the
// state store as a JSON array after every mutation, so pending work
// survives restarts even when the entry itself lives in a non-persistent
// backend.
type Queue struct {
	state statestore.Store
	log   logging.Logger

	mu    sync.Mutex
	items []models.SyncQueueItem
}

// NewQueue rehydrates the queue from the state store. A corrupt snapshot is
// logged and replaced with an empty queue rather than blocking startup.
func NewQueue(ctx context.Context, state statestore.Store, log logging.Logger) (*Queue, error) {
	q := &Queue{state: state, log: log}

	data, err := state.Get(ctx, statestore.KeySyncQueue)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &q.items); err != nil {
			log.Warn(ctx, "sync queue snapshot is corrupt, starting empty", "error", err)
			q.items = nil
		}
	}
	return q, nil
}

// Enqueue adds the entry id unless it is already queued. Reports whether a
// new item was added.
func (q *Queue) Enqueue(ctx context.Context, entryID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, it := range q.items {
		if it.EntryID == entryID {
			return false, nil
		}
	}
	q.items = append(q.items, models.SyncQueueItem{EntryID: entryID, QueuedAt: time.Now()})
	return true, q.persistLocked(ctx)
}

// Dequeue removes the entry id. Removing an absent id is a no-op.
func (q *Queue) Dequeue(ctx context.Context, entryID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	for _, it := range q.items {
		if it.EntryID != entryID {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(q.items) {
		return nil
	}
	q.items = kept
	return q.persistLocked(ctx)
}

// Update replaces the stored item for item.EntryID.
func (q *Queue) Update(ctx context.Context, item models.SyncQueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.items {
		if q.items[i].EntryID == item.EntryID {
			q.items[i] = item
			return q.persistLocked(ctx)
		}
	}
	return nil
}

// Snapshot returns a copy of the queued items in order.
func (q *Queue) Snapshot() []models.SyncQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.SyncQueueItem, len(q.items))
	copy(out, q.items)
	return out
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(q.items)
	if err != nil {
		return err
	}
	return q.state.Set(ctx, statestore.KeySyncQueue, data)
}
