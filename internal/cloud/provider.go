// Package cloud adapts the sync layer to a user-owned remote object store.
// Two adapters exist: an HTTP bucket API with bearer-token auth and
// resumable uploads, and an S3-compatible bucket via the AWS SDK.
package cloud

import (
	"context"

	"github.com/dmitrijs2005/videodiary/internal/models"
)

// Remote object tags. Every uploaded object carries {type, entryId} so a
// lookup by tag and name can find it again before creating a duplicate.
const (
	TagVideo     = "video"
	TagEntryMeta = "entry-meta"
)

// RemoteObject is one listed remote file.
type RemoteObject struct {
	Ref     models.CloudFileRef
	Name    string
	EntryID string
	Kind    string
}

// ProgressFunc reports upload progress. Adapters report a single jump to
// completion rather than incremental bytes.
type ProgressFunc func(done, total int64)

// Provider is the remote object-store contract.
//
// Uploads establish file identity by a lookup-by-tag-and-name step before
// create, so re-uploading an entry updates the remote object in place.
type Provider interface {
	Name() string

	// UploadVideo stores the binary payload as video_{entryID}.{ext}.
	UploadVideo(ctx context.Context, entryID, mimeType string, data []byte, progress ProgressFunc) (*models.CloudFileRef, error)

	// UploadMeta stores the metadata document as entry_{entryID}.json.
	UploadMeta(ctx context.Context, entryID string, meta []byte) (*models.CloudFileRef, error)

	// ListMetas lists all remote entry-meta objects.
	ListMetas(ctx context.Context) ([]RemoteObject, error)

	// Download fetches an object's content.
	Download(ctx context.Context, ref *models.CloudFileRef) ([]byte, error)

	// Delete removes a remote object. Deleting an absent object is not an
	// error.
	Delete(ctx context.Context, ref *models.CloudFileRef) error
}
