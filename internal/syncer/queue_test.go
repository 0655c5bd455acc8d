package syncer

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/models"
	"github.com/dmitrijs2005/videodiary/internal/statestore"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

// memState is an in-memory statestore.Store for tests.
type memState struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemState() *memState { return &memState{m: make(map[string][]byte)} }

func (s *memState) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key], nil
}

func (s *memState) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *memState) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *memState) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[string][]byte)
	return nil
}

func TestQueue_EnqueueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	q, err := NewQueue(ctx, newMemState(), testLogger())
	require.NoError(t, err)

	added, err := q.Enqueue(ctx, "app-1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = q.Enqueue(ctx, "app-1")
	require.NoError(t, err)
	assert.False(t, added)

	assert.Equal(t, 1, q.Len())
}

func TestQueue_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	state := newMemState()

	q, err := NewQueue(ctx, state, testLogger())
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "app-1")
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "app-2")
	require.NoError(t, err)

	// A second session over the same state store sees the same queue.
	q2, err := NewQueue(ctx, state, testLogger())
	require.NoError(t, err)
	items := q2.Snapshot()
	require.Len(t, items, 2)
	assert.Equal(t, "app-1", items[0].EntryID)
	assert.Equal(t, "app-2", items[1].EntryID)
}

func TestQueue_DequeuePersists(t *testing.T) {
	ctx := context.Background()
	state := newMemState()

	q, err := NewQueue(ctx, state, testLogger())
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "app-1")
	require.NoError(t, err)
	require.NoError(t, q.Dequeue(ctx, "app-1"))
	require.NoError(t, q.Dequeue(ctx, "missing"), "removing an absent id is a no-op")

	q2, err := NewQueue(ctx, state, testLogger())
	require.NoError(t, err)
	assert.Zero(t, q2.Len())
}

func TestQueue_UpdateReplacesItem(t *testing.T) {
	ctx := context.Background()
	q, err := NewQueue(ctx, newMemState(), testLogger())
	require.NoError(t, err)

	_, err = q.Enqueue(ctx, "app-1")
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, q.Update(ctx, models.SyncQueueItem{EntryID: "app-1", RetryCount: 2, LastAttemptAt: now}))

	items := q.Snapshot()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].RetryCount)
	assert.WithinDuration(t, now, items[0].LastAttemptAt, time.Second)
}

func TestQueue_CorruptSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	state := newMemState()
	require.NoError(t, state.Set(ctx, statestore.KeySyncQueue, []byte("{not json")))

	q, err := NewQueue(ctx, state, testLogger())
	require.NoError(t, err)
	assert.Zero(t, q.Len())
}

func TestQueue_SnapshotFormatIsJSONArray(t *testing.T) {
	ctx := context.Background()
	state := newMemState()

	q, err := NewQueue(ctx, state, testLogger())
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "app-1")
	require.NoError(t, err)

	raw, err := state.Get(ctx, statestore.KeySyncQueue)
	require.NoError(t, err)

	var items []models.SyncQueueItem
	require.NoError(t, json.Unmarshal(raw, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "app-1", items[0].EntryID)
}
