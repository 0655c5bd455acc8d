package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/videodiary/internal/common"
	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/mimex"
	"github.com/dmitrijs2005/videodiary/internal/models"
)

const (
	entriesDirName = "entries"
	videosDirName  = "videos"
)

// fileStore implements the shared on-disk layout used by both the sandbox
// and the folder provider:
//
//	<root>/entries/{id}.json  -- EntryMeta, UTF-8 JSON
//	<root>/videos/{id}.<ext>  -- raw payload, ext derived from mime type
//
// All writes go through a tmp file plus rename so a reader never sees a
// half-written file. The payload is always written before the metadata.
type fileStore struct {
	root string
	log  logging.Logger
}

func newFileStore(root string, log logging.Logger) (*fileStore, error) {
	for _, dir := range []string{root, filepath.Join(root, entriesDirName), filepath.Join(root, videosDirName)} {
		if err := os.MkdirAll(dir, 0o770); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return &fileStore{root: root, log: log}, nil
}

func (fs *fileStore) metaPath(id string) string {
	return filepath.Join(fs.root, entriesDirName, id+".json")
}

func (fs *fileStore) videoPath(id, mimeType string) string {
	return filepath.Join(fs.root, videosDirName, id+"."+mimex.Extension(mimeType))
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o660); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// save upserts an entry. The payload, when present, lands on disk before
// the metadata that references it. Metadata-only saves (updates, cloud-only
// materialization) skip the payload step.
func (fs *fileStore) save(ctx context.Context, e *models.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if e.HasVideo() {
		if err := writeAtomic(fs.videoPath(e.ID, e.MimeType), e.Video); err != nil {
			return fs.mapWriteError(err)
		}
	}

	data, err := models.ToMeta(e).Serialize()
	if err != nil {
		return err
	}
	if err := writeAtomic(fs.metaPath(e.ID), data); err != nil {
		return fs.mapWriteError(err)
	}
	return nil
}

// mapWriteError lifts OS errors into the shared taxonomy so callers can
// surface user-actionable failures.
func (fs *fileStore) mapWriteError(err error) error {
	switch {
	case os.IsPermission(err):
		return fmt.Errorf("%w: %v", common.ErrPermissionDenied, err)
	case isNoSpace(err):
		return fmt.Errorf("%w: %v", common.ErrQuotaExceeded, err)
	default:
		return err
	}
}

func (fs *fileStore) get(ctx context.Context, id string) (*models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fs.metaPath(id))
	if os.IsNotExist(err) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	m, err := models.DeserializeMeta(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrCorrupt, id, err)
	}
	return m.ToEntry(), nil
}

// getAll lists every entry, payloads left empty. A corrupt metadata file is
// logged and skipped, never fatal to the listing.
func (fs *fileStore) getAll(ctx context.Context) ([]*models.Entry, error) {
	ids, err := fs.listMetaIDs()
	if err != nil {
		return nil, err
	}

	result := make([]*models.Entry, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := fs.get(ctx, id)
		if err != nil {
			fs.log.Warn(ctx, "skipping unreadable entry", "id", id, "error", err)
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (fs *fileStore) loadVideo(ctx context.Context, id string) ([]byte, error) {
	e, err := fs.get(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fs.videoPath(id, e.MimeType))
	if os.IsNotExist(err) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (fs *fileStore) delete(ctx context.Context, e *models.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	metaErr := os.Remove(fs.metaPath(e.ID))
	if metaErr != nil && !os.IsNotExist(metaErr) {
		return fs.mapWriteError(metaErr)
	}

	// The payload may legitimately be absent (cloud-only entries).
	if err := os.Remove(fs.videoPath(e.ID, e.MimeType)); err != nil && !os.IsNotExist(err) {
		fs.log.Warn(ctx, "failed to remove payload", "id", e.ID, "error", err)
	}

	if os.IsNotExist(metaErr) {
		return common.ErrNotFound
	}
	return nil
}

// listMetaIDs returns the ids of all metadata files, the observer's rescan
// primitive.
func (fs *fileStore) listMetaIDs() ([]string, error) {
	dirents, err := os.ReadDir(filepath.Join(fs.root, entriesDirName))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(dirents))
	for _, d := range dirents {
		name := d.Name()
		if d.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// cleanupOrphans removes payload files whose metadata is missing — the
// residue of a crash between the two write steps.
func (fs *fileStore) cleanupOrphans(ctx context.Context) (int, error) {
	dirents, err := os.ReadDir(filepath.Join(fs.root, videosDirName))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, d := range dirents {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		name := d.Name()
		if d.IsDir() || strings.HasSuffix(name, ".tmp") {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if _, err := os.Stat(fs.metaPath(id)); err == nil {
			continue
		}
		path := filepath.Join(fs.root, videosDirName, name)
		if err := os.Remove(path); err != nil {
			fs.log.Warn(ctx, "failed to remove orphan payload", "file", name, "error", err)
			continue
		}
		fs.log.Info(ctx, "removed orphan payload", "file", name)
		removed++
	}
	return removed, nil
}

func isNoSpace(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}

// usage walks both directories and sums file sizes.
func (fs *fileStore) usage() (int64, error) {
	var total int64
	err := filepath.WalkDir(fs.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
