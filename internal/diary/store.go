// Package diary exposes the consumer facade of the video diary: one store
// that orchestrates local persistence and cloud sync per entry lifecycle
// event, so callers never talk to providers or the queue directly.
package diary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/videodiary/internal/common"
	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/models"
	"github.com/dmitrijs2005/videodiary/internal/notify"
	"github.com/dmitrijs2005/videodiary/internal/statestore"
	"github.com/dmitrijs2005/videodiary/internal/storage"
	"github.com/dmitrijs2005/videodiary/internal/syncer"
)

// Bounded waits on the two capture pipeline steps. Expiry degrades, it
// never loses the recording: a slow finalize fails the save explicitly,
// a slow thumbnail is simply skipped.
const (
	DefaultFinalizeTimeout  = 30 * time.Second
	DefaultThumbnailTimeout = 5 * time.Second
)

// Capture is a finished recording being committed to the library.
// Finalize hands over the container bytes once the recorder flushes;
// Thumbnail optionally produces a poster frame.
type Capture struct {
	Title      string
	MimeType   string
	Duration   time.Duration
	Tags       []string
	TemplateID string

	Finalize  func(ctx context.Context) ([]byte, error)
	Thumbnail func(ctx context.Context) ([]byte, error)
}

// Store is the entry-lifecycle facade over the storage manager, the
// provider registry and the sync engine.
type Store struct {
	storage  *storage.Manager
	registry *storage.Registry
	sync     *syncer.Manager
	state    statestore.Store
	bus      notify.Bus
	log      logging.Logger

	finalizeTimeout  time.Duration
	thumbnailTimeout time.Duration
}

func NewStore(storageMgr *storage.Manager, registry *storage.Registry, syncMgr *syncer.Manager, state statestore.Store, bus notify.Bus, log logging.Logger) *Store {
	return &Store{
		storage:          storageMgr,
		registry:         registry,
		sync:             syncMgr,
		state:            state,
		bus:              bus,
		log:              log,
		finalizeTimeout:  DefaultFinalizeTimeout,
		thumbnailTimeout: DefaultThumbnailTimeout,
	}
}

// RestoreSession re-activates the provider persisted from the previous
// session. Any failure degrades to the ephemeral baseline instead of
// blocking startup.
func (s *Store) RestoreSession(ctx context.Context) {
	data, err := s.state.Get(ctx, statestore.KeyActiveProvider)
	if err != nil || len(data) == 0 {
		return
	}
	name := string(data)
	if name == storage.ProviderNameMemory {
		return
	}

	if err := s.activate(ctx, name); err != nil {
		s.log.Warn(ctx, "could not restore previous provider, staying ephemeral",
			"provider", name, "error", err)
	}
}

// MountAvailable registers every named provider that probes successfully
// into the merged view without changing the active one, so entries written
// by earlier sessions stay visible regardless of where new writes go.
func (s *Store) MountAvailable(ctx context.Context, names ...string) {
	for _, name := range names {
		if err := s.registry.Probe(ctx, name); err != nil {
			s.log.Debug(ctx, "provider not mountable", "provider", name, "error", err)
			continue
		}
		p, err := s.registry.Provider(ctx, name)
		if err != nil {
			s.log.Warn(ctx, "provider probe passed but construction failed", "provider", name, "error", err)
			continue
		}
		s.register(ctx, p)
	}
}

// SwitchProvider makes the named backend the target for new writes and
// persists the choice. For the folder backend without a valid grant this
// fails with permission denied; use GrantFolder for the interactive flow.
func (s *Store) SwitchProvider(ctx context.Context, name string) error {
	if err := s.activate(ctx, name); err != nil {
		return err
	}
	return s.state.Set(ctx, statestore.KeyActiveProvider, []byte(name))
}

// GrantFolder runs the interactive folder pick, activates the granted
// folder backend and persists the choice.
func (s *Store) GrantFolder(ctx context.Context) error {
	p, err := s.registry.GrantFolder(ctx)
	if err != nil {
		return err
	}
	s.register(ctx, p)
	if err := s.storage.SetActive(p.Name()); err != nil {
		return err
	}
	return s.state.Set(ctx, statestore.KeyActiveProvider, []byte(p.Name()))
}

func (s *Store) activate(ctx context.Context, name string) error {
	p, err := s.registry.Provider(ctx, name)
	if err != nil {
		return err
	}
	s.register(ctx, p)
	return s.storage.SetActive(name)
}

// register adds the provider to the merged view and, when it watches
// user-visible files, wires external-change reports onto the notification
// bus.
func (s *Store) register(ctx context.Context, p storage.Provider) {
	s.storage.Register(p)

	if !p.Capabilities().UserVisibleFiles {
		return
	}
	err := p.StartObserving(ctx, func(sum models.ChangeSummary) {
		s.log.Info(ctx, "external folder change", "summary", sum.String())
		s.bus.Publish(notify.Change{Kind: notify.KindExternal, Notice: sum.String()})
	})
	if err != nil {
		// Degrade silently: external edits surface on the next reload.
		s.log.Warn(ctx, "change observation unavailable", "provider", p.Name(), "error", err)
	}
}

// ActiveProvider returns the name of the backend receiving new writes.
func (s *Store) ActiveProvider() string { return s.storage.ActiveName() }

// Providers returns the registered backend names.
func (s *Store) Providers() []string { return s.storage.Names() }

// SaveCapture finalizes a recording and commits it as a new entry. The
// finalize step is a hard bounded wait; the thumbnail step degrades to no
// thumbnail on expiry.
func (s *Store) SaveCapture(ctx context.Context, c Capture) (*models.Entry, error) {
	if c.Finalize == nil {
		return nil, errors.New("capture has no payload source")
	}

	fctx, cancel := context.WithTimeout(ctx, s.finalizeTimeout)
	video, err := c.Finalize(fctx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("finalizing capture: %w", err)
	}

	var thumb []byte
	if c.Thumbnail != nil {
		tctx, cancel := context.WithTimeout(ctx, s.thumbnailTimeout)
		thumb, err = c.Thumbnail(tctx)
		cancel()
		if err != nil {
			s.log.Warn(ctx, "thumbnail generation failed, saving without one", "error", err)
			thumb = nil
		}
	}

	now := time.Now()
	e := &models.Entry{
		Title:      c.Title,
		MimeType:   c.MimeType,
		Duration:   c.Duration,
		Tags:       c.Tags,
		TemplateID: c.TemplateID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Video:      video,
		Thumbnail:  thumb,
	}
	if err := s.SaveEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SaveEntry persists a new entry through the active provider and, when
// automatic sync is on, queues it for upload.
func (s *Store) SaveEntry(ctx context.Context, e *models.Entry) error {
	if err := s.storage.SaveEntry(ctx, e); err != nil {
		return err
	}
	return s.maybeEnqueue(ctx, e.ID)
}

// UpdateEntry applies a partial update and re-queues the entry so the
// remote copy converges.
func (s *Store) UpdateEntry(ctx context.Context, e *models.Entry, fields storage.UpdateFields) error {
	if err := s.storage.UpdateEntry(ctx, e, fields); err != nil {
		return err
	}
	return s.maybeEnqueue(ctx, e.ID)
}

func (s *Store) maybeEnqueue(ctx context.Context, entryID string) error {
	if !s.sync.Enabled() {
		return nil
	}
	return s.sync.Enqueue(ctx, entryID)
}

// List returns the merged library across all registered providers.
func (s *Store) List(ctx context.Context) ([]*models.Entry, error) {
	return s.storage.GetAllEntries(ctx)
}

// Get looks one entry up across providers.
func (s *Store) Get(ctx context.Context, id string) (*models.Entry, error) {
	return s.storage.GetEntry(ctx, id)
}

// LoadVideo returns the entry's payload, fetching it from the cloud for
// entries that exist only remotely.
func (s *Store) LoadVideo(ctx context.Context, e *models.Entry) ([]byte, error) {
	if e.IsCloudOnly() {
		return s.sync.DownloadVideo(ctx, e)
	}
	return s.storage.LoadVideo(ctx, e)
}

// DeleteEntry is the explicit delete flow removing both copies: remote
// objects and queued work first, then the local canonical copy.
func (s *Store) DeleteEntry(ctx context.Context, e *models.Entry) error {
	if err := s.sync.DeleteRemote(ctx, e); err != nil {
		return err
	}
	return s.storage.DeleteEntry(ctx, e)
}

// RetrySync re-queues a failed entry and drains immediately.
func (s *Store) RetrySync(ctx context.Context, entryID string) error {
	if _, err := s.storage.GetEntry(ctx, entryID); err != nil {
		return err
	}
	return s.sync.Retry(ctx, entryID)
}

// SyncNow drains the upload queue once.
func (s *Store) SyncNow(ctx context.Context) error { return s.sync.SyncNow(ctx) }

// EnableAutoSync turns background sync on and queues every entry not yet
// synced, so enabling after the fact converges the whole library.
func (s *Store) EnableAutoSync(ctx context.Context) error {
	if err := s.sync.Enable(ctx); err != nil {
		return err
	}

	entries, err := s.storage.GetAllEntries(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.CloudSync != nil && (e.CloudSync.Status == models.SyncStatusSynced || e.CloudSync.Status == models.SyncStatusCloudOnly) {
			continue
		}
		if err := s.sync.Enqueue(ctx, e.ID); err != nil {
			return err
		}
	}
	return nil
}

// DisableAutoSync stops future drain passes; an upload already in flight
// runs to completion.
func (s *Store) DisableAutoSync(ctx context.Context) error { return s.sync.Disable(ctx) }

// AutoSyncEnabled reports the persisted auto-sync setting.
func (s *Store) AutoSyncEnabled() bool { return s.sync.Enabled() }

// PendingUploads returns a snapshot of the queued work.
func (s *Store) PendingUploads() []models.SyncQueueItem { return s.sync.Pending() }

// FetchCloudEntries reconciles the local library with the remote store.
func (s *Store) FetchCloudEntries(ctx context.Context) error {
	return s.sync.FetchCloudEntries(ctx)
}

// Quota reports usage for the active provider, or unavailable when it has
// no quota introspection.
func (s *Store) Quota(ctx context.Context) (storage.QuotaInfo, error) {
	p := s.storage.Active()
	if !p.Capabilities().QuotaIntrospection {
		return storage.QuotaInfo{}, common.ErrUnavailable
	}
	return p.Quota(ctx)
}
