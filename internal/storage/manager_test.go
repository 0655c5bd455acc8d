package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/videodiary/internal/common"
	"github.com/dmitrijs2005/videodiary/internal/models"
	"github.com/dmitrijs2005/videodiary/internal/notify"
)

// brokenProvider always fails its listing; used to prove a single
// provider's failure never aborts the merged read.
type brokenProvider struct {
	MemoryProvider
}

func (p *brokenProvider) Name() string { return "broken" }
func (p *brokenProvider) GetAll(ctx context.Context) ([]*models.Entry, error) {
	return nil, errors.New("disk on fire")
}

func setupManager(t *testing.T) (*Manager, *notify.MemoryBus) {
	t.Helper()
	bus := notify.NewMemoryBus()
	return NewManager(bus, testLogger()), bus
}

func TestManager_MergedViewSortedAndDeduplicated(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	sandbox := setupSandbox(t, 0)
	m.Register(sandbox)

	base := time.Now().Add(-time.Hour)

	// One entry in each provider, interleaved creation times.
	memE := &models.Entry{ID: models.NewID(models.FamilyMemory), Title: "mem", CreatedAt: base.Add(2 * time.Minute), MimeType: "video/webm"}
	require.NoError(t, m.Active().Save(ctx, memE))

	appE := &models.Entry{ID: models.NewID(models.FamilySandbox), Title: "app", CreatedAt: base.Add(4 * time.Minute), MimeType: "video/webm", Video: []byte("v")}
	require.NoError(t, sandbox.Save(ctx, appE))

	appE2 := &models.Entry{ID: models.NewID(models.FamilySandbox), Title: "app2", CreatedAt: base.Add(1 * time.Minute), MimeType: "video/webm", Video: []byte("v")}
	require.NoError(t, sandbox.Save(ctx, appE2))

	all, err := m.GetAllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "app", all[0].Title)
	assert.Equal(t, "mem", all[1].Title)
	assert.Equal(t, "app2", all[2].Title)
}

func TestManager_DuplicateIDsCollapse(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	// Pathological overlap: two registered providers claim the same id.
	a := NewMemoryProvider()
	dup := &models.Entry{ID: "mem-dup", Title: "copy", MimeType: "video/webm"}
	require.NoError(t, a.Save(ctx, dup))

	require.NoError(t, m.Active().Save(ctx, &models.Entry{ID: "mem-dup", Title: "orig", MimeType: "video/webm"}))

	// Second provider registered under a distinct name.
	m.mu.Lock()
	m.providers["shadow"] = a
	m.mu.Unlock()

	all, err := m.GetAllEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "no duplicate ids even under pathological overlap")
}

func TestManager_ProviderFailureExcludedNotFatal(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	m.Register(&brokenProvider{})
	require.NoError(t, m.SaveEntry(ctx, &models.Entry{Title: "fine", MimeType: "video/webm"}))

	all, err := m.GetAllEntries(ctx)
	require.NoError(t, err, "one provider's failure never aborts the aggregate read")
	assert.Len(t, all, 1)
}

func TestManager_UpdateRoutesToOwnerNotActive(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	sandbox := setupSandbox(t, 0)
	m.Register(sandbox)

	e := &models.Entry{ID: models.NewID(models.FamilySandbox), Title: "owned", MimeType: "video/webm", Video: []byte("v")}
	require.NoError(t, sandbox.Save(ctx, e))

	// Active provider is memory; the update must still land in the sandbox.
	require.Equal(t, ProviderNameMemory, m.ActiveName())

	title := "edited"
	require.NoError(t, m.UpdateEntry(ctx, e, UpdateFields{Title: &title}))

	got, err := sandbox.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Title)

	memAll, err := m.Active().GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, memAll, "editing never migrates an entry between backends")
}

func TestManager_SetActiveUnknownFails(t *testing.T) {
	m, _ := setupManager(t)
	assert.ErrorIs(t, m.SetActive("nope"), common.ErrUnavailable)
	require.NoError(t, m.SetActive(ProviderNameMemory))
}

func TestManager_SaveMintsFamilyID(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	e := &models.Entry{Title: "fresh", MimeType: "video/webm"}
	require.NoError(t, m.SaveEntry(ctx, e))
	assert.Contains(t, e.ID, "mem-")
}

// Scenario: two independent views; one saves, the other reflects the new
// entry through the change notification without manual refresh.
func TestManager_CrossViewNotification(t *testing.T) {
	m, bus := setupManager(t)
	ctx := context.Background()

	viewCh, cancel := bus.Subscribe()
	defer cancel()

	require.NoError(t, m.SaveEntry(ctx, &models.Entry{Title: "from other view", MimeType: "video/webm"}))

	select {
	case c := <-viewCh:
		assert.Equal(t, notify.KindSaved, c.Kind)
		// The receiving view reloads its merged library on receipt.
		all, err := m.GetAllEntries(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	case <-time.After(time.Second):
		t.Fatal("subscribed view never saw the change")
	}
}

func TestManager_DeletePublishes(t *testing.T) {
	m, bus := setupManager(t)
	ctx := context.Background()

	e := &models.Entry{Title: "bye", MimeType: "video/webm"}
	require.NoError(t, m.SaveEntry(ctx, e))

	ch, cancel := bus.Subscribe()
	defer cancel()

	require.NoError(t, m.DeleteEntry(ctx, e))

	select {
	case c := <-ch:
		assert.Equal(t, notify.KindDeleted, c.Kind)
		assert.Equal(t, e.ID, c.EntryID)
	case <-time.After(time.Second):
		t.Fatal("no delete notification")
	}
}
