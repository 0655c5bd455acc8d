package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/videodiary/internal/common"
	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/models"
)

// ProviderNameFolder is the user-visible-folder backend.
const ProviderNameFolder = "folder"

// grantMarkerName is the marker file inside a granted folder holding the
// grant token. A session re-validates the persisted grant against it.
const grantMarkerName = ".videodiary-grant"

// FolderGrant is the persisted record of a user-granted diary folder.
type FolderGrant struct {
	Path      string    `json:"path"`
	Token     string    `json:"token"`
	GrantedAt time.Time `json:"grantedAt"`
}

// EncodeGrant serializes a grant for the state store.
func EncodeGrant(g FolderGrant) ([]byte, error) { return json.Marshal(g) }

// DecodeGrant parses a persisted grant record.
func DecodeGrant(data []byte) (FolderGrant, error) {
	var g FolderGrant
	if err := json.Unmarshal(data, &g); err != nil {
		return FolderGrant{}, fmt.Errorf("failed to decode folder grant: %w", err)
	}
	return g, nil
}

// WriteGrantMarker stamps the folder with the grant token.
func WriteGrantMarker(g FolderGrant) error {
	return os.WriteFile(filepath.Join(g.Path, grantMarkerName), []byte(g.Token), 0o660)
}

// ValidateGrant re-checks a persisted grant: the folder must exist, carry a
// matching marker token, and be writable. Any failure maps to
// ErrPermissionDenied so the caller can fall back to the ephemeral backend.
func ValidateGrant(g FolderGrant) error {
	info, err := os.Stat(g.Path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: folder %s not accessible", common.ErrPermissionDenied, g.Path)
	}

	marker, err := os.ReadFile(filepath.Join(g.Path, grantMarkerName))
	if err != nil || string(marker) != g.Token {
		return fmt.Errorf("%w: grant marker missing or stale", common.ErrPermissionDenied)
	}

	probe := filepath.Join(g.Path, ".videodiary-probe")
	if err := os.WriteFile(probe, nil, 0o660); err != nil {
		return fmt.Errorf("%w: folder not writable", common.ErrPermissionDenied)
	}
	_ = os.Remove(probe)
	return nil
}

// FolderProvider stores entries in a user-picked OS folder, where external
// tools may edit them. It owns a change observer whose subscription and
// debounce timer are torn down when observation stops or the provider is
// replaced.
type FolderProvider struct {
	fs       *fileStore
	log      logging.Logger
	observer *Observer
}

// NewFolderProvider opens the store inside an already-validated grant.
func NewFolderProvider(ctx context.Context, grant FolderGrant, log logging.Logger) (*FolderProvider, error) {
	if err := ValidateGrant(grant); err != nil {
		return nil, err
	}

	fs, err := newFileStore(grant.Path, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open folder store: %w", err)
	}

	p := &FolderProvider{fs: fs, log: log}
	p.observer = newObserver(fs, log)

	if n, err := fs.cleanupOrphans(ctx); err != nil {
		log.Warn(ctx, "orphan cleanup failed", "error", err)
	} else if n > 0 {
		log.Info(ctx, "orphan cleanup removed payloads", "count", n)
	}
	return p, nil
}

func (p *FolderProvider) Name() string            { return ProviderNameFolder }
func (p *FolderProvider) Family() models.IDFamily { return models.FamilyFolder }

func (p *FolderProvider) Capabilities() Capabilities {
	return Capabilities{
		Persistent:         true,
		LazyBlobs:          true,
		RequiresPermission: true,
		UserVisibleFiles:   true,
	}
}

func (p *FolderProvider) Save(ctx context.Context, e *models.Entry) error {
	e.Provider = ProviderNameFolder
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.UpdatedAt = time.Now()

	// Marked before I/O so the observer never mistakes this write for an
	// external change.
	p.observer.MarkOwnWrite(e.ID)

	if err := p.fs.save(ctx, e); err != nil {
		return fmt.Errorf("folder save: %w", err)
	}
	e.Video = nil
	return nil
}

func (p *FolderProvider) Get(ctx context.Context, id string) (*models.Entry, error) {
	return p.fs.get(ctx, id)
}

func (p *FolderProvider) GetAll(ctx context.Context) ([]*models.Entry, error) {
	return p.fs.getAll(ctx)
}

func (p *FolderProvider) Update(ctx context.Context, e *models.Entry, fields UpdateFields) error {
	stored, err := p.fs.get(ctx, e.ID)
	if err != nil {
		return err
	}
	fields.Apply(stored)

	p.observer.MarkOwnWrite(e.ID)
	if err := p.fs.save(ctx, stored); err != nil {
		return fmt.Errorf("folder update: %w", err)
	}
	fields.Apply(e)
	return nil
}

func (p *FolderProvider) Delete(ctx context.Context, e *models.Entry) error {
	p.observer.MarkOwnWrite(e.ID)
	return p.fs.delete(ctx, e)
}

func (p *FolderProvider) LoadVideo(ctx context.Context, id string) ([]byte, error) {
	return p.fs.loadVideo(ctx, id)
}

func (p *FolderProvider) Quota(ctx context.Context) (QuotaInfo, error) {
	return QuotaInfo{}, common.ErrUnavailable
}

func (p *FolderProvider) StartObserving(ctx context.Context, cb func(models.ChangeSummary)) error {
	return p.observer.Start(ctx, cb)
}

func (p *FolderProvider) StopObserving() {
	p.observer.Stop()
}

// CleanupOrphans removes payload files with no matching metadata.
func (p *FolderProvider) CleanupOrphans(ctx context.Context) (int, error) {
	return p.fs.cleanupOrphans(ctx)
}
