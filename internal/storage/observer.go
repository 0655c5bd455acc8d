package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/models"
)

const (
	// observerDebounce coalesces a burst of native events into one rescan.
	observerDebounce = time.Second
	// ownWriteLinger keeps an id in the own-write set long enough to cover
	// the debounce window of events the write itself produced.
	ownWriteLinger = 2 * time.Second
)

// Observer watches the metadata directory of a folder-backed store and
// reports externally made mutations. It keeps a knownIDs snapshot and a set
// of ids the provider itself is writing, so the provider's own I/O never
// surfaces as an external change. No content hashing is performed: when an
// event fired but the id set is unchanged, exactly one "modified" is
// reported.
type Observer struct {
	fs  *fileStore
	log logging.Logger

	debounce time.Duration
	linger   time.Duration

	mu        sync.Mutex
	knownIDs  map[string]struct{}
	ownWrites map[string]time.Time
	timer     *time.Timer
	watcher   *fsnotify.Watcher
	cb        func(models.ChangeSummary)
	done      chan struct{}
}

func newObserver(fs *fileStore, log logging.Logger) *Observer {
	return &Observer{
		fs:        fs,
		log:       log,
		debounce:  observerDebounce,
		linger:    ownWriteLinger,
		knownIDs:  make(map[string]struct{}),
		ownWrites: make(map[string]time.Time),
	}
}

// Start snapshots the current id set, subscribes to native directory
// notifications and begins delivering non-empty summaries to cb. When the
// platform lacks change notifications the caller degrades silently.
func (o *Observer) Start(ctx context.Context, cb func(models.ChangeSummary)) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.watcher != nil {
		return nil
	}

	ids, err := o.fs.listMetaIDs()
	if err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	o.knownIDs = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		o.knownIDs[id] = struct{}{}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher init: %w", err)
	}
	if err := w.Add(filepath.Join(o.fs.root, entriesDirName)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", entriesDirName, err)
	}

	o.watcher = w
	o.cb = cb
	o.done = make(chan struct{})
	go o.loop(ctx, w, o.done)
	return nil
}

// Stop tears down the debounce timer and the native subscription. Safe to
// call repeatedly.
func (o *Observer) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.watcher == nil {
		return
	}
	close(o.done)
	_ = o.watcher.Close()
	o.watcher = nil
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.cb = nil
}

// MarkOwnWrite records that the provider is about to write or delete id.
// The mark expires after the linger window.
func (o *Observer) MarkOwnWrite(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ownWrites[id] = time.Now()
}

func (o *Observer) loop(ctx context.Context, w *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case _, ok := <-w.Events:
			if !ok {
				return
			}
			o.scheduleRescan(ctx)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			o.log.Warn(ctx, "folder watcher error", "error", err)
		}
	}
}

// scheduleRescan arms (or re-arms) the debounce timer.
func (o *Observer) scheduleRescan(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.watcher == nil {
		return
	}
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(o.debounce, func() { o.rescan(ctx) })
}

func (o *Observer) rescan(ctx context.Context) {
	o.mu.Lock()
	if o.watcher == nil {
		o.mu.Unlock()
		return
	}

	ids, err := o.fs.listMetaIDs()
	if err != nil {
		o.mu.Unlock()
		o.log.Warn(ctx, "folder rescan failed", "error", err)
		return
	}

	fresh := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		fresh[id] = struct{}{}
	}

	o.expireOwnWritesLocked()

	var summary models.ChangeSummary
	for id := range fresh {
		if _, known := o.knownIDs[id]; !known {
			if _, own := o.ownWrites[id]; !own {
				summary.Added++
			}
		}
	}
	for id := range o.knownIDs {
		if _, still := fresh[id]; !still {
			if _, own := o.ownWrites[id]; !own {
				summary.Removed++
			}
		}
	}
	// An event fired but the id set is unchanged: report one modification,
	// unless one of our own writes explains the event.
	if summary.Added == 0 && summary.Removed == 0 && len(o.ownWrites) == 0 {
		summary.Modified = 1
	}

	o.knownIDs = fresh
	cb := o.cb
	o.mu.Unlock()

	if summary.Empty() || cb == nil {
		return
	}
	o.log.Info(ctx, "external folder change detected",
		"added", summary.Added, "removed", summary.Removed, "modified", summary.Modified)
	cb(summary)
}

func (o *Observer) expireOwnWritesLocked() {
	cutoff := time.Now().Add(-o.linger)
	for id, at := range o.ownWrites {
		if at.Before(cutoff) {
			delete(o.ownWrites, id)
		}
	}
}
