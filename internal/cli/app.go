// Package cli implements the interactive terminal front end of the video
// diary: a small REPL over the diary store plus terminal implementations of
// the folder-picker and sign-in capabilities.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/videodiary/internal/cloud"
	"github.com/dmitrijs2005/videodiary/internal/config"
	"github.com/dmitrijs2005/videodiary/internal/diary"
	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/notify"
	"github.com/dmitrijs2005/videodiary/internal/statestore"
	"github.com/dmitrijs2005/videodiary/internal/storage"
	"github.com/dmitrijs2005/videodiary/internal/syncer"

	_ "modernc.org/sqlite"
)

type App struct {
	config *config.Config
	store  *diary.Store
	sync   *syncer.Manager
	tokens *cloud.TokenSource
	bus    notify.Bus
	log    logging.Logger
	reader *bufio.Reader

	closeFns []func()
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	reader := bufio.NewReader(os.Stdin)

	if err := os.MkdirAll(c.DataDir, 0o770); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := statestore.Open(ctx, c.StateDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}
	state := statestore.NewSQLiteStore(db)

	bus := notify.NewMemoryBus()
	storageMgr := storage.NewManager(bus, log)
	registry := storage.NewRegistry(state, NewTerminalPicker(reader), c.SandboxRoot(), c.SandboxQuotaLimit, log)

	tokens := cloud.NewTokenSource(NewTerminalAuthenticator(reader), log)

	var cloudProvider cloud.Provider
	switch c.CloudProvider {
	case "s3":
		cloudProvider, err = cloud.NewS3Client(ctx, cloud.S3Config{
			Endpoint:  c.S3Endpoint,
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		}, log)
		if err != nil {
			return nil, err
		}
	default:
		cloudProvider = cloud.NewBucketClient(c.BucketBaseURL, tokens, nil, log)
	}

	queue, err := syncer.NewQueue(ctx, state, log)
	if err != nil {
		return nil, fmt.Errorf("rehydrating sync queue: %w", err)
	}
	syncMgr, err := syncer.NewManager(ctx, storageMgr, cloudProvider, queue, state, bus,
		syncer.Config{MaxRetries: c.SyncMaxRetries, BaseDelay: c.SyncBaseDelay}, log)
	if err != nil {
		return nil, err
	}
	syncMgr.SetBlockingNoticeHandler(func(msg string) {
		fmt.Printf("\n!! %s\n", msg)
	})

	store := diary.NewStore(storageMgr, registry, syncMgr, state, bus, log)

	app := &App{
		config: c,
		store:  store,
		sync:   syncMgr,
		tokens: tokens,
		bus:    bus,
		log:    log,
		reader: reader,
	}
	app.closeFns = append(app.closeFns, syncMgr.Close, func() { _ = db.Close() })
	return app, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()

	a.store.MountAvailable(ctx, storage.ProviderNameSandbox, storage.ProviderNameFolder)
	a.store.RestoreSession(ctx)

	// Change notifications print as notices between prompts.
	ch, cancel := a.bus.Subscribe()
	a.closeFns = append(a.closeFns, cancel)
	go func() {
		for c := range ch {
			if c.Kind == notify.KindExternal {
				fmt.Printf("\n* %s\n", c.Notice)
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func (a *App) status() string {
	s := a.store.ActiveProvider()
	if a.store.AutoSyncEnabled() {
		s += " sync:on"
	}
	if n := len(a.store.PendingUploads()); n > 0 {
		s += fmt.Sprintf(" pending:%d", n)
	}
	return s
}
