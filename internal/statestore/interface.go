package statestore

import "context"

// Store is a small durable key-value store for application state that must
// survive restarts independently of any storage provider: the sync queue
// snapshot, the granted folder record, persisted settings.
type Store interface {
	// Get returns the value for key, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set inserts or replaces the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes all keys.
	Clear(ctx context.Context) error
}

// Well-known keys.
const (
	KeySyncQueue      = "sync_queue"
	KeyFolderGrant    = "folder_grant"
	KeyActiveProvider = "active_provider"
	KeyAutoSync       = "auto_sync"
)
