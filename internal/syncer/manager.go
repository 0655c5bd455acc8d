package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/videodiary/internal/cloud"
	"github.com/dmitrijs2005/videodiary/internal/common"
	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/models"
	"github.com/dmitrijs2005/videodiary/internal/notify"
	"github.com/dmitrijs2005/videodiary/internal/statestore"
	"github.com/dmitrijs2005/videodiary/internal/storage"
)

// Config tunes the sync engine.
type Config struct {
	// MaxRetries is the attempt cap per item before it is finalized failed.
	MaxRetries int
	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration
}

func DefaultConfig() Config {
	return Config{MaxRetries: 3, BaseDelay: 2 * time.Second}
}

// Manager drains the durable queue against a cloud provider. Uploads are
// serialized; one drain pass runs at a time and a pass started while
// another is in flight returns immediately.
//
// Failure handling per item:
//   - quota exceeded: the whole pass aborts without touching retry counts,
//     and a blocking notice is raised so the user can free space first;
//   - authorization expired: the pass aborts, items preserved for after
//     re-authentication;
//   - anything else: the item's retry count is bumped and the item waits
//     out an exponential backoff; at the cap it is finalized failed and
//     dropped from the queue.
type Manager struct {
	store *storage.Manager
	cloud cloud.Provider
	queue *Queue
	state statestore.Store
	bus   notify.Bus
	log   logging.Logger
	cfg   Config

	// onBlockingNotice is invoked for conditions that need the user's
	// attention before sync can make progress. Defaults to a log line.
	onBlockingNotice func(msg string)

	mu         sync.Mutex
	inProgress bool
	enabled    bool
	retryTimer *time.Timer
}

func NewManager(ctx context.Context, store *storage.Manager, cloudProvider cloud.Provider, queue *Queue, state statestore.Store, bus notify.Bus, cfg Config, log logging.Logger) (*Manager, error) {
	m := &Manager{
		store: store,
		cloud: cloudProvider,
		queue: queue,
		state: state,
		bus:   bus,
		log:   log,
		cfg:   cfg,
	}
	m.onBlockingNotice = func(msg string) { log.Warn(ctx, "sync blocked", "reason", msg) }

	data, err := state.Get(ctx, statestore.KeyAutoSync)
	if err != nil {
		return nil, err
	}
	m.enabled = string(data) == "1"
	return m, nil
}

// SetBlockingNoticeHandler routes blocking notices to the UI layer.
func (m *Manager) SetBlockingNoticeHandler(fn func(msg string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onBlockingNotice = fn
}

// Enabled reports whether automatic sync is on.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Enable turns automatic sync on, persists the setting and kicks off a
// drain of anything already queued.
func (m *Manager) Enable(ctx context.Context) error {
	m.mu.Lock()
	m.enabled = true
	m.mu.Unlock()
	if err := m.state.Set(ctx, statestore.KeyAutoSync, []byte("1")); err != nil {
		return err
	}
	go func() { _ = m.SyncNow(context.Background()) }()
	return nil
}

// Disable turns automatic sync off. Queued items stay queued.
func (m *Manager) Disable(ctx context.Context) error {
	m.mu.Lock()
	m.enabled = false
	m.mu.Unlock()
	return m.state.Set(ctx, statestore.KeyAutoSync, []byte("0"))
}

// Enqueue records the entry for upload and, when automatic sync is on,
// starts a drain in the background.
func (m *Manager) Enqueue(ctx context.Context, entryID string) error {
	added, err := m.queue.Enqueue(ctx, entryID)
	if err != nil {
		return err
	}
	if added {
		m.log.Debug(ctx, "entry queued for sync", "entry", entryID)
	}
	if m.Enabled() {
		go func() { _ = m.SyncNow(context.Background()) }()
	}
	return nil
}

// Retry resets the item's attempt history and drains immediately. Used for
// the manual retry action on a failed entry.
func (m *Manager) Retry(ctx context.Context, entryID string) error {
	if _, err := m.queue.Enqueue(ctx, entryID); err != nil {
		return err
	}
	if err := m.queue.Update(ctx, models.SyncQueueItem{EntryID: entryID, QueuedAt: time.Now()}); err != nil {
		return err
	}
	return m.SyncNow(ctx)
}

// Pending returns a snapshot of queued work.
func (m *Manager) Pending() []models.SyncQueueItem {
	return m.queue.Snapshot()
}

// Close stops any scheduled follow-up pass.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

// SyncNow drains the queue once. Items still inside their backoff window
// are skipped and a follow-up pass is scheduled for them.
func (m *Manager) SyncNow(ctx context.Context) error {
	m.mu.Lock()
	if m.inProgress {
		m.mu.Unlock()
		return nil
	}
	m.inProgress = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inProgress = false
		m.mu.Unlock()
	}()

	deferred := false
	for _, item := range m.queue.Snapshot() {
		if wait := m.backoffRemaining(item, time.Now()); wait > 0 {
			m.log.Debug(ctx, "item inside backoff window, skipping", "entry", item.EntryID, "wait", wait)
			deferred = true
			continue
		}

		err := m.processItem(ctx, item)
		switch {
		case err == nil:
			continue
		case common.IsQuota(err):
			// No retry-count bump: the user must free space, not wait.
			m.mu.Lock()
			notice := m.onBlockingNotice
			m.mu.Unlock()
			notice("cloud storage is full; free up space and retry")
			return err
		case common.IsAuth(err):
			m.log.Warn(ctx, "sync pass aborted, re-authentication required")
			return err
		default:
			if handled := m.recordFailure(ctx, item, err); !handled {
				deferred = true
			}
		}
	}

	if deferred {
		m.scheduleNextPass()
	}
	return nil
}

// recordFailure bumps the item's attempt history; at the cap it finalizes
// the entry as failed and drops the item. Reports whether the item was
// finalized.
func (m *Manager) recordFailure(ctx context.Context, item models.SyncQueueItem, cause error) bool {
	item.RetryCount++
	item.LastAttemptAt = time.Now()

	if e, err := m.store.GetEntry(ctx, item.EntryID); err == nil {
		m.setStatus(ctx, e, models.SyncStatusFailed, cause.Error())
	}

	if item.RetryCount >= m.cfg.MaxRetries {
		m.log.Warn(ctx, "upload failed permanently, giving up",
			"entry", item.EntryID, "attempts", item.RetryCount, "error", cause)
		if err := m.queue.Dequeue(ctx, item.EntryID); err != nil {
			m.log.Error(ctx, "failed to drop exhausted queue item", "entry", item.EntryID, "error", err)
		}
		return true
	}

	m.log.Warn(ctx, "upload failed, will retry",
		"entry", item.EntryID, "attempt", item.RetryCount, "error", cause)
	if err := m.queue.Update(ctx, item); err != nil {
		m.log.Error(ctx, "failed to persist retry state", "entry", item.EntryID, "error", err)
	}
	return false
}

// processItem uploads one entry: payload first, then the metadata document
// carrying the payload's remote ref.
func (m *Manager) processItem(ctx context.Context, item models.SyncQueueItem) error {
	e, err := m.store.GetEntry(ctx, item.EntryID)
	if errors.Is(err, common.ErrNotFound) {
		// Entry deleted while queued: drop the work silently.
		return m.queue.Dequeue(ctx, item.EntryID)
	}
	if err != nil {
		return err
	}

	m.setStatus(ctx, e, models.SyncStatusUploading, "")

	video, err := m.store.LoadVideo(ctx, e)
	if err != nil {
		return fmt.Errorf("loading payload: %w", err)
	}

	videoRef, err := m.cloud.UploadVideo(ctx, e.ID, e.MimeType, video, nil)
	if err != nil {
		return err
	}

	info := &models.CloudSyncInfo{
		Provider: m.cloud.Name(),
		VideoRef: videoRef,
		Status:   models.SyncStatusSynced,
		SyncedAt: time.Now(),
	}

	// The uploaded metadata document already names the payload's remote ref
	// so a later reconciliation can rebuild the link from the document
	// alone.
	snapshot := *e
	snapshot.CloudSync = info
	metaBytes, err := models.ToMeta(&snapshot).Serialize()
	if err != nil {
		return err
	}

	metaRef, err := m.cloud.UploadMeta(ctx, e.ID, metaBytes)
	if err != nil {
		return err
	}
	info.MetaRef = metaRef

	if err := m.store.UpdateEntry(ctx, e, storage.UpdateFields{CloudSync: info}); err != nil {
		return err
	}
	if err := m.queue.Dequeue(ctx, e.ID); err != nil {
		return err
	}

	m.bus.Publish(notify.Change{Kind: notify.KindSynced, EntryID: e.ID})
	m.log.Info(ctx, "entry synced", "entry", e.ID)
	return nil
}

// setStatus writes a new sync status onto the entry, preserving existing
// refs. Off-lattice steps are logged but still applied: the persisted
// record must reflect reality even after a crash left it mid-transition.
func (m *Manager) setStatus(ctx context.Context, e *models.Entry, status models.SyncStatus, lastError string) {
	current := models.SyncStatusPending
	info := &models.CloudSyncInfo{Provider: m.cloud.Name()}
	if e.CloudSync != nil {
		current = e.CloudSync.Status
		copied := *e.CloudSync
		info = &copied
	}
	if current != status && !current.CanTransition(status) {
		m.log.Debug(ctx, "irregular sync status step", "entry", e.ID, "from", current, "to", status)
	}

	info.Status = status
	info.LastError = lastError
	if err := m.store.UpdateEntry(ctx, e, storage.UpdateFields{CloudSync: info}); err != nil {
		m.log.Warn(ctx, "failed to persist sync status", "entry", e.ID, "error", err)
	}
}

func (m *Manager) backoffRemaining(item models.SyncQueueItem, now time.Time) time.Duration {
	if item.RetryCount == 0 || item.LastAttemptAt.IsZero() {
		return 0
	}
	delay := m.cfg.BaseDelay * (1 << item.RetryCount)
	ready := item.LastAttemptAt.Add(delay)
	if now.Before(ready) {
		return ready.Sub(now)
	}
	return 0
}

func (m *Manager) scheduleNextPass() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	m.retryTimer = time.AfterFunc(m.cfg.BaseDelay, func() {
		_ = m.SyncNow(context.Background())
	})
}

// FetchCloudEntries reconciles the local library with the remote store. It
// backfills sync records on entries that exist both places and
// materializes metadata-only placeholders for entries that exist only
// remotely. It never deletes anything and is safe to run repeatedly.
func (m *Manager) FetchCloudEntries(ctx context.Context) error {
	remotes, err := m.cloud.ListMetas(ctx)
	if err != nil {
		return err
	}

	for _, remote := range remotes {
		if remote.EntryID == "" {
			continue
		}

		local, err := m.store.GetEntry(ctx, remote.EntryID)
		if err == nil {
			m.backfill(ctx, local, remote)
			continue
		}
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		if err := m.materialize(ctx, remote); err != nil {
			m.log.Warn(ctx, "failed to materialize remote entry", "entry", remote.EntryID, "error", err)
		}
	}
	return nil
}

// backfill attaches the remote refs to a local entry that predates sync or
// was written by a session that crashed before recording them.
func (m *Manager) backfill(ctx context.Context, e *models.Entry, remote cloud.RemoteObject) {
	if e.CloudSync != nil && e.CloudSync.MetaRef != nil {
		return
	}

	info := &models.CloudSyncInfo{
		Provider: m.cloud.Name(),
		MetaRef:  &remote.Ref,
		Status:   models.SyncStatusSynced,
		SyncedAt: time.Now(),
	}
	if full := m.downloadRemoteEntry(ctx, remote); full != nil && full.CloudSync != nil {
		info.VideoRef = full.CloudSync.VideoRef
	}

	if err := m.store.UpdateEntry(ctx, e, storage.UpdateFields{CloudSync: info}); err != nil {
		m.log.Warn(ctx, "failed to backfill sync record", "entry", e.ID, "error", err)
	}
}

// materialize creates a local metadata-only placeholder for an entry that
// exists only remotely. Its payload stays in the cloud until requested.
func (m *Manager) materialize(ctx context.Context, remote cloud.RemoteObject) error {
	e := m.downloadRemoteEntry(ctx, remote)
	if e == nil {
		return fmt.Errorf("remote metadata for %s unreadable", remote.EntryID)
	}

	info := &models.CloudSyncInfo{
		Provider: m.cloud.Name(),
		MetaRef:  &remote.Ref,
		Status:   models.SyncStatusCloudOnly,
	}
	if e.CloudSync != nil {
		info.VideoRef = e.CloudSync.VideoRef
		info.SyncedAt = e.CloudSync.SyncedAt
	}
	e.CloudSync = info
	e.Video = nil

	if err := m.store.SaveEntry(ctx, e); err != nil {
		return err
	}
	m.log.Info(ctx, "materialized cloud-only entry", "entry", e.ID)
	return nil
}

func (m *Manager) downloadRemoteEntry(ctx context.Context, remote cloud.RemoteObject) *models.Entry {
	data, err := m.cloud.Download(ctx, &remote.Ref)
	if err != nil {
		m.log.Warn(ctx, "failed to download remote metadata", "entry", remote.EntryID, "error", err)
		return nil
	}
	meta, err := models.DeserializeMeta(data)
	if err != nil {
		m.log.Warn(ctx, "remote metadata is corrupt", "entry", remote.EntryID, "error", err)
		return nil
	}
	return meta.ToEntry()
}

// DeleteRemote is the explicit two-copy delete flow: drop any queued work
// for the entry and remove its remote objects. Absent remote objects are
// fine.
func (m *Manager) DeleteRemote(ctx context.Context, e *models.Entry) error {
	if err := m.queue.Dequeue(ctx, e.ID); err != nil {
		return err
	}
	if e.CloudSync == nil {
		return nil
	}
	if ref := e.CloudSync.VideoRef; ref != nil {
		if err := m.cloud.Delete(ctx, ref); err != nil {
			return err
		}
	}
	if ref := e.CloudSync.MetaRef; ref != nil {
		if err := m.cloud.Delete(ctx, ref); err != nil {
			return err
		}
	}
	return nil
}

// DownloadVideo fetches the payload of a cloud-only entry.
func (m *Manager) DownloadVideo(ctx context.Context, e *models.Entry) ([]byte, error) {
	if e.CloudSync == nil || e.CloudSync.VideoRef == nil {
		return nil, common.ErrNotFound
	}
	return m.cloud.Download(ctx, e.CloudSync.VideoRef)
}
