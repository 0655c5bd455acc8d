// Package storage implements the persistence layer of the video diary: the
// provider contract, its three backends (in-memory, sandboxed app
// directory, user-visible folder), the registry that probes and constructs
// them, and the manager that merges their views.
package storage

import (
	"context"
	"time"

	"github.com/dmitrijs2005/videodiary/internal/models"
)

// Capabilities declares what a provider supports. Callers gate optional
// operations on these flags; providers return common.ErrUnavailable from
// operations their flags exclude, so there is never a need for runtime
// method-presence probing.
type Capabilities struct {
	// Persistent: entries survive a restart.
	Persistent bool
	// LazyBlobs: GetAll returns entries without payloads; LoadVideo reloads
	// them on demand.
	LazyBlobs bool
	// QuotaIntrospection: Quota reports usage against a limit.
	QuotaIntrospection bool
	// RequiresPermission: the provider needs a user grant before use.
	RequiresPermission bool
	// UserVisibleFiles: files live where external tools can edit them.
	UserVisibleFiles bool
}

// QuotaInfo reports storage usage. Limit == 0 means unbounded.
type QuotaInfo struct {
	Used  int64
	Limit int64
}

// UpdateFields is a partial update applied to an existing entry. Nil
// pointers leave the field untouched.
type UpdateFields struct {
	Title             *string
	Tags              *[]string
	Duration          *time.Duration
	TemplateID        *string
	LegacyCloudStatus *string
	// CloudSync replaces the whole sync record when non-nil.
	CloudSync *models.CloudSyncInfo
}

// Apply mutates e in place and bumps UpdatedAt.
func (f UpdateFields) Apply(e *models.Entry) {
	if f.Title != nil {
		e.Title = *f.Title
	}
	if f.Tags != nil {
		e.Tags = *f.Tags
	}
	if f.Duration != nil {
		e.Duration = *f.Duration
	}
	if f.TemplateID != nil {
		e.TemplateID = *f.TemplateID
	}
	if f.LegacyCloudStatus != nil {
		e.LegacyCloudStatus = *f.LegacyCloudStatus
	}
	if f.CloudSync != nil {
		e.CloudSync = f.CloudSync
	}
	e.UpdatedAt = time.Now()
}

// Provider is the uniform persistence contract all backends implement.
//
// Contract:
//   - Save is an idempotent upsert. The binary payload is written before
//     the metadata, so a crash can never leave metadata referencing a
//     missing blob.
//   - GetAll returns entries sorted by creation time descending; lazy
//     backends leave payload fields empty.
//   - Update and Delete operate on the entry's canonical copy; Delete
//     releases any transient handle the provider created for it.
//   - Operations outside the provider's capabilities return
//     common.ErrUnavailable.
type Provider interface {
	Name() string
	Family() models.IDFamily
	Capabilities() Capabilities

	Save(ctx context.Context, e *models.Entry) error
	Get(ctx context.Context, id string) (*models.Entry, error)
	GetAll(ctx context.Context) ([]*models.Entry, error)
	Update(ctx context.Context, e *models.Entry, fields UpdateFields) error
	Delete(ctx context.Context, e *models.Entry) error

	// LoadVideo returns the binary payload for lazy backends.
	LoadVideo(ctx context.Context, id string) ([]byte, error)

	// Quota reports usage for quota-introspectable backends.
	Quota(ctx context.Context) (QuotaInfo, error)

	// StartObserving begins reporting externally made changes for backends
	// with user-visible files. The callback receives only non-empty
	// summaries. StopObserving tears down the subscription and is safe to
	// call when observation never started.
	StartObserving(ctx context.Context, cb func(models.ChangeSummary)) error
	StopObserving()
}
