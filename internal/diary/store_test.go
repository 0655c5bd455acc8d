package diary

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/videodiary/internal/cloud"
	"github.com/dmitrijs2005/videodiary/internal/common"
	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/models"
	"github.com/dmitrijs2005/videodiary/internal/notify"
	"github.com/dmitrijs2005/videodiary/internal/statestore"
	"github.com/dmitrijs2005/videodiary/internal/storage"
	"github.com/dmitrijs2005/videodiary/internal/syncer"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

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

// stubCloud is the minimal cloud.Provider for facade tests.
type stubCloud struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newStubCloud() *stubCloud { return &stubCloud{objects: make(map[string][]byte)} }

func (f *stubCloud) Name() string { return "stub" }

func (f *stubCloud) UploadVideo(ctx context.Context, entryID, mimeType string, data []byte, progress cloud.ProgressFunc) (*models.CloudFileRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects["v-"+entryID] = data
	return &models.CloudFileRef{Provider: "stub", FileID: "v-" + entryID, MimeType: mimeType}, nil
}

func (f *stubCloud) UploadMeta(ctx context.Context, entryID string, meta []byte) (*models.CloudFileRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects["m-"+entryID] = meta
	return &models.CloudFileRef{Provider: "stub", FileID: "m-" + entryID, MimeType: "application/json"}, nil
}

func (f *stubCloud) ListMetas(ctx context.Context) ([]cloud.RemoteObject, error) { return nil, nil }

func (f *stubCloud) Download(ctx context.Context, ref *models.CloudFileRef) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[ref.FileID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return data, nil
}

func (f *stubCloud) Delete(ctx context.Context, ref *models.CloudFileRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, ref.FileID)
	f.deleted = append(f.deleted, ref.FileID)
	return nil
}

type fixture struct {
	store *Store
	sync  *syncer.Manager
	cloud *stubCloud
	state *memState
	bus   *notify.MemoryBus
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := testLogger()

	bus := notify.NewMemoryBus()
	state := newMemState()
	storageMgr := storage.NewManager(bus, log)
	registry := storage.NewRegistry(state, nil, filepath.Join(t.TempDir(), "sandbox"), 0, log)

	fc := newStubCloud()
	q, err := syncer.NewQueue(ctx, state, log)
	require.NoError(t, err)
	syncMgr, err := syncer.NewManager(ctx, storageMgr, fc, q, state, bus, syncer.Config{MaxRetries: 3, BaseDelay: time.Millisecond}, log)
	require.NoError(t, err)
	t.Cleanup(syncMgr.Close)

	return &fixture{
		store: NewStore(storageMgr, registry, syncMgr, state, bus, log),
		sync:  syncMgr,
		cloud: fc,
		state: state,
		bus:   bus,
	}
}

func TestStore_SaveCapture(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	e, err := fx.store.SaveCapture(ctx, Capture{
		Title:     "first take",
		MimeType:  "video/webm",
		Duration:  42 * time.Second,
		Finalize:  func(ctx context.Context) ([]byte, error) { return []byte("container"), nil },
		Thumbnail: func(ctx context.Context) ([]byte, error) { return []byte("poster"), nil },
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, []byte("poster"), e.Thumbnail)

	got, err := fx.store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "first take", got.Title)
}

func TestStore_SaveCaptureFinalizeFailureAbortsSave(t *testing.T) {
	fx := setup(t)

	_, err := fx.store.SaveCapture(context.Background(), Capture{
		Title:    "broken",
		MimeType: "video/webm",
		Finalize: func(ctx context.Context) ([]byte, error) { return nil, errors.New("recorder died") },
	})
	require.Error(t, err)

	all, err := fx.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all, "a failed finalize never commits an entry")
}

func TestStore_SaveCaptureDegradesWithoutThumbnail(t *testing.T) {
	fx := setup(t)
	fx.store.thumbnailTimeout = 20 * time.Millisecond

	e, err := fx.store.SaveCapture(context.Background(), Capture{
		Title:    "slow poster",
		MimeType: "video/webm",
		Finalize: func(ctx context.Context) ([]byte, error) { return []byte("v"), nil },
		Thumbnail: func(ctx context.Context) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	require.NoError(t, err, "a slow thumbnail degrades, it never fails the save")
	assert.Nil(t, e.Thumbnail)
}

func TestStore_SaveQueuesOnlyWhenAutoSyncOn(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	e1 := &models.Entry{Title: "offline", MimeType: "video/webm", Video: []byte("v")}
	require.NoError(t, fx.store.SaveEntry(ctx, e1))
	assert.Empty(t, fx.store.PendingUploads())

	require.NoError(t, fx.sync.Enable(ctx))
	e2 := &models.Entry{Title: "online", MimeType: "video/webm", Video: []byte("v")}
	require.NoError(t, fx.store.SaveEntry(ctx, e2))

	// The background drain may already have uploaded it; either way it was
	// queued and converges to synced.
	require.Eventually(t, func() bool {
		got, err := fx.store.Get(ctx, e2.ID)
		return err == nil && got.CloudSync != nil && got.CloudSync.Status == models.SyncStatusSynced
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStore_EnableAutoSyncQueuesBacklog(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	e := &models.Entry{Title: "recorded offline", MimeType: "video/webm", Video: []byte("v")}
	require.NoError(t, fx.store.SaveEntry(ctx, e))

	require.NoError(t, fx.store.EnableAutoSync(ctx))

	require.Eventually(t, func() bool {
		got, err := fx.store.Get(ctx, e.ID)
		return err == nil && got.CloudSync != nil && got.CloudSync.Status == models.SyncStatusSynced
	}, 2*time.Second, 10*time.Millisecond, "backlog converges after enabling sync")
}

func TestStore_DeleteRemovesBothCopies(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	e := &models.Entry{Title: "both sides", MimeType: "video/webm", Video: []byte("v")}
	require.NoError(t, fx.store.SaveEntry(ctx, e))
	require.NoError(t, fx.sync.Enqueue(ctx, e.ID))
	require.NoError(t, fx.store.SyncNow(ctx))

	got, err := fx.store.Get(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CloudSync)

	require.NoError(t, fx.store.DeleteEntry(ctx, got))

	_, err = fx.store.Get(ctx, e.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Contains(t, fx.cloud.deleted, "v-"+e.ID)
	assert.Contains(t, fx.cloud.deleted, "m-"+e.ID)
	assert.Empty(t, fx.store.PendingUploads())
}

func TestStore_LoadVideoFetchesCloudOnlyRemotely(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	fx.cloud.objects["v-app-r"] = []byte("remote payload")
	e := &models.Entry{
		ID:       "app-r",
		Provider: storage.ProviderNameMemory,
		CloudSync: &models.CloudSyncInfo{
			Status:   models.SyncStatusCloudOnly,
			VideoRef: &models.CloudFileRef{Provider: "stub", FileID: "v-app-r"},
		},
	}

	data, err := fx.store.LoadVideo(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, []byte("remote payload"), data)
}

func TestStore_SwitchProviderPersistsChoice(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	require.NoError(t, fx.store.SwitchProvider(ctx, storage.ProviderNameSandbox))
	assert.Equal(t, storage.ProviderNameSandbox, fx.store.ActiveProvider())

	data, err := fx.state.Get(ctx, statestore.KeyActiveProvider)
	require.NoError(t, err)
	assert.Equal(t, storage.ProviderNameSandbox, string(data))
}

func TestStore_RestoreSessionDegradesToEphemeral(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	// A persisted folder choice with no valid grant must not block startup.
	require.NoError(t, fx.state.Set(ctx, statestore.KeyActiveProvider, []byte(storage.ProviderNameFolder)))
	fx.store.RestoreSession(ctx)
	assert.Equal(t, storage.ProviderNameMemory, fx.store.ActiveProvider())
}

func TestStore_RestoreSessionReactivatesSandbox(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	require.NoError(t, fx.state.Set(ctx, statestore.KeyActiveProvider, []byte(storage.ProviderNameSandbox)))
	fx.store.RestoreSession(ctx)
	assert.Equal(t, storage.ProviderNameSandbox, fx.store.ActiveProvider())
}

func TestStore_RetrySyncUnknownEntry(t *testing.T) {
	fx := setup(t)
	err := fx.store.RetrySync(context.Background(), "app-missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStore_QuotaUnavailableForEphemeral(t *testing.T) {
	fx := setup(t)
	_, err := fx.store.Quota(context.Background())
	assert.ErrorIs(t, err, common.ErrUnavailable)
}
