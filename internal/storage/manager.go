package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/videodiary/internal/common"
	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/models"
	"github.com/dmitrijs2005/videodiary/internal/notify"
)

// Manager is the single authority for which provider receives new writes
// and for the merged library view. New entries go to the active provider;
// mutations of an existing entry route to the provider named on the entry
// itself, so editing never migrates an entry between backends implicitly.
type Manager struct {
	log logging.Logger
	bus notify.Bus

	mu        sync.RWMutex
	providers map[string]Provider
	active    string
}

func NewManager(bus notify.Bus, log logging.Logger) *Manager {
	m := &Manager{
		log:       log,
		bus:       bus,
		providers: make(map[string]Provider),
		active:    ProviderNameMemory,
	}
	// The ephemeral baseline is always present.
	m.providers[ProviderNameMemory] = NewMemoryProvider()
	return m
}

// Register adds a provider to the merged view.
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.Name()] = p
}

// SetActive designates the backend for new writes. The previous active
// provider stays registered so its entries remain visible.
func (m *Manager) SetActive(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[name]; !ok {
		return fmt.Errorf("%w: provider %q not registered", common.ErrUnavailable, name)
	}
	m.active = name
	return nil
}

// Active returns the provider currently receiving new writes.
func (m *Manager) Active() Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[m.active]
}

// ActiveName returns the name of the active provider.
func (m *Manager) ActiveName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Provider returns a registered provider by name.
func (m *Manager) Provider(name string) (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q not registered", common.ErrUnavailable, name)
	}
	return p, nil
}

// Names returns the registered provider names.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for n := range m.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetAllEntries fans out GetAll to every registered provider concurrently
// and merges the results: concatenated, de-duplicated by id, re-sorted by
// creation time descending. A single provider's failure is logged and its
// entries excluded; it never aborts the aggregate read.
func (m *Manager) GetAllEntries(ctx context.Context) ([]*models.Entry, error) {
	m.mu.RLock()
	providers := make([]Provider, 0, len(m.providers))
	for _, p := range m.providers {
		providers = append(providers, p)
	}
	m.mu.RUnlock()

	type result struct {
		name    string
		entries []*models.Entry
		err     error
	}

	results := make([]result, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			entries, err := p.GetAll(ctx)
			results[i] = result{name: p.Name(), entries: entries, err: err}
		}(i, p)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	var merged []*models.Entry
	for _, r := range results {
		if r.err != nil {
			m.log.Warn(ctx, "provider listing failed, excluded from merge", "provider", r.name, "error", r.err)
			continue
		}
		for _, e := range r.entries {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			merged = append(merged, e)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged, nil
}

// GetEntry looks the entry up across registered providers.
func (m *Manager) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	m.mu.RLock()
	providers := make([]Provider, 0, len(m.providers))
	for _, p := range m.providers {
		providers = append(providers, p)
	}
	m.mu.RUnlock()

	for _, p := range providers {
		e, err := p.Get(ctx, id)
		if err == nil {
			return e, nil
		}
	}
	return nil, common.ErrNotFound
}

// SaveEntry writes a new entry through the active provider and broadcasts
// the change.
func (m *Manager) SaveEntry(ctx context.Context, e *models.Entry) error {
	p := m.Active()
	if e.ID == "" {
		e.ID = models.NewID(p.Family())
	}
	if err := p.Save(ctx, e); err != nil {
		return err
	}
	m.bus.Publish(notify.Change{Kind: notify.KindSaved, EntryID: e.ID})
	return nil
}

// UpdateEntry applies a partial update through the entry's owning provider.
func (m *Manager) UpdateEntry(ctx context.Context, e *models.Entry, fields UpdateFields) error {
	p, err := m.owner(e)
	if err != nil {
		return err
	}
	if err := p.Update(ctx, e, fields); err != nil {
		return err
	}
	m.bus.Publish(notify.Change{Kind: notify.KindUpdated, EntryID: e.ID})
	return nil
}

// DeleteEntry removes the entry from its owning provider.
func (m *Manager) DeleteEntry(ctx context.Context, e *models.Entry) error {
	p, err := m.owner(e)
	if err != nil {
		return err
	}
	if err := p.Delete(ctx, e); err != nil {
		return err
	}
	m.bus.Publish(notify.Change{Kind: notify.KindDeleted, EntryID: e.ID})
	return nil
}

// LoadVideo fetches the payload from the entry's owning provider.
func (m *Manager) LoadVideo(ctx context.Context, e *models.Entry) ([]byte, error) {
	if e.HasVideo() {
		return e.Video, nil
	}
	p, err := m.owner(e)
	if err != nil {
		return nil, err
	}
	return p.LoadVideo(ctx, e.ID)
}

func (m *Manager) owner(e *models.Entry) (Provider, error) {
	if e.Provider == "" {
		return nil, fmt.Errorf("entry %s has no owning provider", e.ID)
	}
	return m.Provider(e.Provider)
}
