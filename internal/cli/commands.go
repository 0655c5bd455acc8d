package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/videodiary/internal/diary"
	"github.com/dmitrijs2005/videodiary/internal/mimex"
	"github.com/dmitrijs2005/videodiary/internal/models"
)

// List prints the merged library, newest first.
func (a *App) List(ctx context.Context) error {
	entries, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No entries yet.")
		return nil
	}
	for _, e := range entries {
		fmt.Println(formatEntryLine(e))
	}
	return nil
}

func formatEntryLine(e *models.Entry) string {
	status := "local"
	if e.CloudSync != nil {
		status = string(e.CloudSync.Status)
	}
	return fmt.Sprintf("%s  %-30s  %s  [%s, %s]",
		e.CreatedAt.Format("2006-01-02 15:04"), e.Title, e.ID, e.Provider, status)
}

// Show prints one entry in detail.
func (a *App) Show(ctx context.Context, id string) error {
	e, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("ID:       %s\n", e.ID)
	fmt.Printf("Title:    %s\n", e.Title)
	fmt.Printf("Created:  %s\n", e.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Duration: %s\n", e.Duration)
	fmt.Printf("Mime:     %s\n", e.MimeType)
	fmt.Printf("Provider: %s\n", e.Provider)
	if len(e.Tags) > 0 {
		fmt.Printf("Tags:     %s\n", strings.Join(e.Tags, ", "))
	}
	if e.CloudSync != nil {
		fmt.Printf("Sync:     %s", e.CloudSync.Status)
		if !e.CloudSync.SyncedAt.IsZero() {
			fmt.Printf(" (at %s)", e.CloudSync.SyncedAt.Format(time.RFC3339))
		}
		fmt.Println()
		if e.CloudSync.LastError != "" {
			fmt.Printf("Last error: %s\n", e.CloudSync.LastError)
		}
	}

	video, err := a.store.LoadVideo(ctx, e)
	if err != nil {
		return fmt.Errorf("loading payload: %w", err)
	}
	fmt.Printf("Payload:  %d bytes\n", len(video))
	return nil
}

// Add records a new entry from a video file on disk.
func (a *App) Add(ctx context.Context) error {
	title, err := getSimpleText(a.reader, "Title", os.Stdout)
	if err != nil {
		return err
	}

	path, err := getSimpleText(a.reader, "Path to video file", os.Stdout)
	if err != nil {
		return err
	}

	tagsLine, err := getSimpleText(a.reader, "Tags (comma-separated, optional)", os.Stdout)
	if err != nil {
		return err
	}
	var tags []string
	for _, t := range strings.Split(tagsLine, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading video file: %w", err)
	}

	e, err := a.store.SaveCapture(ctx, diary.Capture{
		Title:    title,
		MimeType: mimex.Detect(data, mimex.DefaultVideoMime),
		Tags:     tags,
		Finalize: func(ctx context.Context) ([]byte, error) { return data, nil },
	})
	if err != nil {
		return err
	}

	fmt.Printf("Saved %s (%d bytes)\n", e.ID, len(data))
	return nil
}

// Delete removes an entry's local and remote copies.
func (a *App) Delete(ctx context.Context, id string) error {
	e, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.store.DeleteEntry(ctx, e); err != nil {
		return err
	}
	fmt.Println("Deleted", id)
	return nil
}

// Sync drains the upload queue once.
func (a *App) Sync(ctx context.Context) error {
	if err := a.store.SyncNow(ctx); err != nil {
		return err
	}
	if n := len(a.store.PendingUploads()); n > 0 {
		fmt.Printf("%d entries still pending\n", n)
	} else {
		fmt.Println("Everything synced.")
	}
	return nil
}

// Retry re-queues a failed entry and drains immediately.
func (a *App) Retry(ctx context.Context, id string) error {
	return a.store.RetrySync(ctx, id)
}

// Fetch reconciles the library with the remote store.
func (a *App) Fetch(ctx context.Context) error {
	if err := a.store.FetchCloudEntries(ctx); err != nil {
		return err
	}
	return a.List(ctx)
}

// AutoSync toggles background sync.
func (a *App) AutoSync(ctx context.Context, arg string) error {
	if arg == "on" {
		return a.store.EnableAutoSync(ctx)
	}
	return a.store.DisableAutoSync(ctx)
}

// Provider switches the backend for new writes.
func (a *App) Provider(ctx context.Context, name string) error {
	if err := a.store.SwitchProvider(ctx, name); err != nil {
		return err
	}
	fmt.Println("New entries go to", name)
	return nil
}

// Folder runs the interactive folder grant flow and activates the folder
// backend.
func (a *App) Folder(ctx context.Context) error {
	if err := a.store.GrantFolder(ctx); err != nil {
		return err
	}
	fmt.Println("Folder granted; new entries go to", a.store.ActiveProvider())
	return nil
}

// Status prints the provider and sync state.
func (a *App) Status(ctx context.Context) error {
	fmt.Println("Providers:", strings.Join(a.store.Providers(), ", "))
	fmt.Println("Active:   ", a.store.ActiveProvider())
	fmt.Println("Auto-sync:", a.store.AutoSyncEnabled())

	if quota, err := a.store.Quota(ctx); err == nil {
		fmt.Printf("Quota:     %d", quota.Used)
		if quota.Limit > 0 {
			fmt.Printf(" / %d", quota.Limit)
		}
		fmt.Println(" bytes")
	}

	pending := a.store.PendingUploads()
	fmt.Println("Pending uploads:", len(pending))
	for _, item := range pending {
		fmt.Printf("  %s (attempts: %d)\n", item.EntryID, item.RetryCount)
	}
	return nil
}

// Login obtains a cloud token now instead of waiting for the first upload
// to prompt for one.
func (a *App) Login(ctx context.Context) error {
	if _, err := a.tokens.Token(ctx); err != nil {
		return err
	}
	fmt.Println("Signed in.")
	return nil
}

// Logout revokes the cloud token.
func (a *App) Logout(ctx context.Context) error {
	return a.tokens.SignOut(ctx)
}
