// Package models defines the diary entry types shared by the storage,
// sync and cloud layers.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IDFamily is the id-prefix family of a storage backend. Each provider
// family mints ids with its own prefix, so an id can never collide across
// providers.
type IDFamily string

const (
	FamilyMemory  IDFamily = "mem"
	FamilySandbox IDFamily = "app"
	FamilyFolder  IDFamily = "dir"
)

// NewID mints a new entry id in the given family.
func NewID(family IDFamily) string {
	return fmt.Sprintf("%s-%s", family, uuid.NewString())
}

// Entry is one recorded artifact in the library: metadata plus an optional
// in-memory video payload. The payload is transient; lazy backends return
// entries with Video == nil and reload it on demand.
type Entry struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	Duration   time.Duration  `json:"duration"`
	Tags       []string       `json:"tags,omitempty"`
	TemplateID string         `json:"templateId,omitempty"`
	MimeType   string         `json:"mimeType"`

	// Provider is the name of the backend holding the canonical copy.
	// Updates and deletes route on this tag, never on the active provider.
	Provider string `json:"provider"`

	// LegacyCloudStatus is kept so metadata written by older releases still
	// parses. New code reads CloudSync.Status.
	LegacyCloudStatus string `json:"cloudStatus,omitempty"`

	CloudSync *CloudSyncInfo `json:"cloudSync,omitempty"`

	// Transient fields, never serialized.
	Video     []byte `json:"-"`
	Thumbnail []byte `json:"-"`
}

// HasVideo reports whether the in-memory payload is present.
func (e *Entry) HasVideo() bool { return len(e.Video) > 0 }

// IsCloudOnly reports whether the entry exists only remotely.
func (e *Entry) IsCloudOnly() bool {
	return e.CloudSync != nil && e.CloudSync.Status == SyncStatusCloudOnly
}

// SyncStatus is one point in the entry sync lattice.
type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "pending"
	SyncStatusUploading SyncStatus = "uploading"
	SyncStatusSynced    SyncStatus = "synced"
	SyncStatusCloudOnly SyncStatus = "cloud-only"
	SyncStatusFailed    SyncStatus = "failed"
)

// CanTransition reports whether moving from s to next is a legal lattice
// step: pending→uploading→{synced|failed}, failed→uploading on retry.
func (s SyncStatus) CanTransition(next SyncStatus) bool {
	switch s {
	case SyncStatusPending:
		return next == SyncStatusUploading
	case SyncStatusUploading:
		return next == SyncStatusSynced || next == SyncStatusFailed
	case SyncStatusFailed:
		return next == SyncStatusUploading
	default:
		return false
	}
}

// CloudFileRef is an opaque handle to one remote object.
type CloudFileRef struct {
	Provider string `json:"provider"`
	FileID   string `json:"fileId"`
	MimeType string `json:"mimeType"`
}

// CloudSyncInfo records the remote state of an entry. Status synced
// requires both refs present; cloud-only marks entries discovered remotely
// with no local payload.
type CloudSyncInfo struct {
	Provider  string        `json:"provider"`
	VideoRef  *CloudFileRef `json:"videoRef,omitempty"`
	MetaRef   *CloudFileRef `json:"metaRef,omitempty"`
	SyncedAt  time.Time     `json:"syncedAt,omitzero"`
	Status    SyncStatus    `json:"status"`
	LastError string        `json:"lastError,omitempty"`
}

// SyncQueueItem is one unit of pending upload work. The queue array is
// persisted independently of the storage providers so it survives reloads
// even for entries held in a non-persistent backend.
type SyncQueueItem struct {
	EntryID       string    `json:"entryId"`
	QueuedAt      time.Time `json:"queuedAt"`
	RetryCount    int       `json:"retryCount"`
	LastAttemptAt time.Time `json:"lastAttemptAt,omitzero"`
}

// ChangeSummary is the transient diff produced by the folder observer.
// It drives a reload plus a notice and is never persisted.
type ChangeSummary struct {
	Added    int
	Removed  int
	Modified int
}

// Empty reports whether the summary carries no changes.
func (s ChangeSummary) Empty() bool {
	return s.Added == 0 && s.Removed == 0 && s.Modified == 0
}

// String renders the human-readable notice shown after an external edit.
func (s ChangeSummary) String() string {
	switch {
	case s.Added > 0 && s.Removed > 0:
		return fmt.Sprintf("%d entries added, %d removed from folder", s.Added, s.Removed)
	case s.Added > 0:
		return fmt.Sprintf("%d entries added to folder", s.Added)
	case s.Removed > 0:
		return fmt.Sprintf("%d entries removed from folder", s.Removed)
	case s.Modified > 0:
		return "entries in folder were modified"
	default:
		return "no changes"
	}
}
