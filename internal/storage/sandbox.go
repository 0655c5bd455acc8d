package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/videodiary/internal/common"
	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/models"
)

// ProviderNameSandbox is the app-private persistent backend.
const ProviderNameSandbox = "sandbox"

// SandboxProvider stores entries in an app-private directory tree. It is
// persistent, lazy and quota-introspectable; no user permission is needed
// beyond creating the directory.
type SandboxProvider struct {
	fs    *fileStore
	log   logging.Logger
	limit int64
}

// NewSandboxProvider opens the app-private store rooted at root. limit is
// the soft quota in bytes; 0 disables quota checks. Init requests a
// best-effort persistence grant: denial is logged, never fatal.
func NewSandboxProvider(ctx context.Context, root string, limit int64, log logging.Logger) (*SandboxProvider, error) {
	fs, err := newFileStore(root, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open sandbox store: %w", err)
	}

	p := &SandboxProvider{fs: fs, log: log, limit: limit}
	p.requestPersistenceGrant(ctx)

	if n, err := fs.cleanupOrphans(ctx); err != nil {
		log.Warn(ctx, "orphan cleanup failed", "error", err)
	} else if n > 0 {
		log.Info(ctx, "orphan cleanup removed payloads", "count", n)
	}
	return p, nil
}

// requestPersistenceGrant probes that the root is durably writable by
// writing and syncing a marker file. A failed probe only means the
// environment may evict the data; the provider keeps working.
func (p *SandboxProvider) requestPersistenceGrant(ctx context.Context) {
	marker := filepath.Join(p.fs.root, ".persisted")
	f, err := os.OpenFile(marker, os.O_CREATE|os.O_WRONLY, 0o660)
	if err == nil {
		err = f.Sync()
		_ = f.Close()
	}
	if err != nil {
		p.log.Warn(ctx, "persistence grant denied, storage may be evicted", "error", err)
		return
	}
	p.log.Debug(ctx, "persistence grant acquired", "root", p.fs.root)
}

func (p *SandboxProvider) Name() string            { return ProviderNameSandbox }
func (p *SandboxProvider) Family() models.IDFamily { return models.FamilySandbox }

func (p *SandboxProvider) Capabilities() Capabilities {
	return Capabilities{
		Persistent:         true,
		LazyBlobs:          true,
		QuotaIntrospection: true,
	}
}

func (p *SandboxProvider) Save(ctx context.Context, e *models.Entry) error {
	if err := p.checkQuota(e); err != nil {
		return err
	}

	e.Provider = ProviderNameSandbox
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.UpdatedAt = time.Now()

	if err := p.fs.save(ctx, e); err != nil {
		return fmt.Errorf("sandbox save: %w", err)
	}
	// Lazy backend: release the in-memory copy once written.
	e.Video = nil
	return nil
}

// checkQuota rejects a write that would push usage past the limit, so the
// caller sees ErrQuotaExceeded before any bytes land.
func (p *SandboxProvider) checkQuota(e *models.Entry) error {
	if p.limit <= 0 || !e.HasVideo() {
		return nil
	}
	used, err := p.fs.usage()
	if err != nil {
		return nil // introspection failure must not block writes
	}
	if used+int64(len(e.Video)) > p.limit {
		return fmt.Errorf("%w: %d of %d bytes used", common.ErrQuotaExceeded, used, p.limit)
	}
	return nil
}

func (p *SandboxProvider) Get(ctx context.Context, id string) (*models.Entry, error) {
	return p.fs.get(ctx, id)
}

func (p *SandboxProvider) GetAll(ctx context.Context) ([]*models.Entry, error) {
	return p.fs.getAll(ctx)
}

func (p *SandboxProvider) Update(ctx context.Context, e *models.Entry, fields UpdateFields) error {
	stored, err := p.fs.get(ctx, e.ID)
	if err != nil {
		return err
	}
	fields.Apply(stored)
	if err := p.fs.save(ctx, stored); err != nil {
		return fmt.Errorf("sandbox update: %w", err)
	}
	fields.Apply(e)
	return nil
}

func (p *SandboxProvider) Delete(ctx context.Context, e *models.Entry) error {
	return p.fs.delete(ctx, e)
}

func (p *SandboxProvider) LoadVideo(ctx context.Context, id string) ([]byte, error) {
	return p.fs.loadVideo(ctx, id)
}

func (p *SandboxProvider) Quota(ctx context.Context) (QuotaInfo, error) {
	used, err := p.fs.usage()
	if err != nil {
		return QuotaInfo{}, err
	}
	return QuotaInfo{Used: used, Limit: p.limit}, nil
}

func (p *SandboxProvider) StartObserving(ctx context.Context, cb func(models.ChangeSummary)) error {
	return common.ErrUnavailable
}

func (p *SandboxProvider) StopObserving() {}

// CleanupOrphans removes payload files with no matching metadata.
func (p *SandboxProvider) CleanupOrphans(ctx context.Context) (int, error) {
	return p.fs.cleanupOrphans(ctx)
}
