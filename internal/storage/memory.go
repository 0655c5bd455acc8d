package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/videodiary/internal/common"
	"github.com/dmitrijs2005/videodiary/internal/models"
)

// ProviderNameMemory is the always-available ephemeral baseline.
const ProviderNameMemory = "memory"

// MemoryProvider keeps entries in a map. Nothing survives a restart and
// every capability flag is false; it is the fallback when no persistent
// backend is available or permitted.
type MemoryProvider struct {
	mu      sync.RWMutex
	entries map[string]*models.Entry
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{entries: make(map[string]*models.Entry)}
}

func (p *MemoryProvider) Name() string            { return ProviderNameMemory }
func (p *MemoryProvider) Family() models.IDFamily { return models.FamilyMemory }

func (p *MemoryProvider) Capabilities() Capabilities { return Capabilities{} }

func (p *MemoryProvider) Save(ctx context.Context, e *models.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := *e
	cp.Provider = ProviderNameMemory
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	p.entries[cp.ID] = &cp

	e.Provider = cp.Provider
	e.UpdatedAt = cp.UpdatedAt
	return nil
}

func (p *MemoryProvider) Get(ctx context.Context, id string) (*models.Entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.entries[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (p *MemoryProvider) GetAll(ctx context.Context) ([]*models.Entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*models.Entry, 0, len(p.entries))
	for _, e := range p.entries {
		cp := *e
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (p *MemoryProvider) Update(ctx context.Context, e *models.Entry, fields UpdateFields) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored, ok := p.entries[e.ID]
	if !ok {
		return common.ErrNotFound
	}
	fields.Apply(stored)
	fields.Apply(e)
	return nil
}

func (p *MemoryProvider) Delete(ctx context.Context, e *models.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[e.ID]; !ok {
		return common.ErrNotFound
	}
	delete(p.entries, e.ID)
	return nil
}

// LoadVideo returns the payload held in memory. The provider is not lazy,
// so the payload is whatever Save stored.
func (p *MemoryProvider) LoadVideo(ctx context.Context, id string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.entries[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return e.Video, nil
}

func (p *MemoryProvider) Quota(ctx context.Context) (QuotaInfo, error) {
	return QuotaInfo{}, common.ErrUnavailable
}

func (p *MemoryProvider) StartObserving(ctx context.Context, cb func(models.ChangeSummary)) error {
	return common.ErrUnavailable
}

func (p *MemoryProvider) StopObserving() {}
