package storage

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/videodiary/internal/common"
	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/statestore"
)

// FolderPicker is the capability to ask the user for a diary folder. The
// returned path is the opaque directory handle the platform granted.
type FolderPicker interface {
	Pick(ctx context.Context) (string, error)
}

// Registry probes provider availability, constructs providers lazily and
// negotiates permissions. Construction failures never cascade: a provider
// that cannot be built simply stays unregistered and the ephemeral baseline
// remains.
type Registry struct {
	log    logging.Logger
	state  statestore.Store
	picker FolderPicker

	sandboxRoot  string
	sandboxLimit int64

	mu        sync.Mutex
	providers map[string]Provider
}

func NewRegistry(state statestore.Store, picker FolderPicker, sandboxRoot string, sandboxLimit int64, log logging.Logger) *Registry {
	return &Registry{
		log:          log,
		state:        state,
		picker:       picker,
		sandboxRoot:  sandboxRoot,
		sandboxLimit: sandboxLimit,
		providers:    make(map[string]Provider),
	}
}

// Probe reports whether a provider could be constructed in this
// environment, without constructing it.
func (r *Registry) Probe(ctx context.Context, name string) error {
	switch name {
	case ProviderNameMemory:
		return nil
	case ProviderNameSandbox:
		if r.sandboxRoot == "" {
			return common.ErrUnavailable
		}
		if err := os.MkdirAll(r.sandboxRoot, 0o770); err != nil {
			return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
		}
		return nil
	case ProviderNameFolder:
		grant, err := r.persistedGrant(ctx)
		if err != nil {
			return err
		}
		return ValidateGrant(grant)
	default:
		return fmt.Errorf("%w: unknown provider %q", common.ErrUnavailable, name)
	}
}

// Provider returns the named provider, constructing it on first use.
func (r *Registry) Provider(ctx context.Context, name string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[name]; ok {
		return p, nil
	}

	p, err := r.construct(ctx, name)
	if err != nil {
		return nil, err
	}
	r.providers[name] = p
	return p, nil
}

func (r *Registry) construct(ctx context.Context, name string) (Provider, error) {
	switch name {
	case ProviderNameMemory:
		return NewMemoryProvider(), nil

	case ProviderNameSandbox:
		if err := r.Probe(ctx, name); err != nil {
			return nil, err
		}
		return NewSandboxProvider(ctx, r.sandboxRoot, r.sandboxLimit, r.log)

	case ProviderNameFolder:
		grant, err := r.persistedGrant(ctx)
		if err != nil {
			return nil, err
		}
		return NewFolderProvider(ctx, grant, r.log)

	default:
		return nil, fmt.Errorf("%w: unknown provider %q", common.ErrUnavailable, name)
	}
}

// GrantFolder runs the interactive picker flow: obtain a folder, mint a
// grant token, stamp the folder, persist the grant, and construct the
// provider. Replaces any previously constructed folder provider, tearing
// down its observer first.
func (r *Registry) GrantFolder(ctx context.Context) (Provider, error) {
	if r.picker == nil {
		return nil, common.ErrUnavailable
	}

	path, err := r.picker.Pick(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrPermissionDenied, err)
	}

	grant := FolderGrant{Path: path, Token: uuid.NewString(), GrantedAt: time.Now()}
	if err := WriteGrantMarker(grant); err != nil {
		return nil, fmt.Errorf("%w: cannot stamp folder: %v", common.ErrPermissionDenied, err)
	}

	data, err := EncodeGrant(grant)
	if err != nil {
		return nil, err
	}
	if err := r.state.Set(ctx, statestore.KeyFolderGrant, data); err != nil {
		return nil, fmt.Errorf("failed to persist folder grant: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.providers[ProviderNameFolder]; ok {
		old.StopObserving()
		delete(r.providers, ProviderNameFolder)
	}

	p, err := NewFolderProvider(ctx, grant, r.log)
	if err != nil {
		return nil, err
	}
	r.providers[ProviderNameFolder] = p
	r.log.Info(ctx, "folder granted", "path", path)
	return p, nil
}

func (r *Registry) persistedGrant(ctx context.Context) (FolderGrant, error) {
	data, err := r.state.Get(ctx, statestore.KeyFolderGrant)
	if err != nil {
		return FolderGrant{}, err
	}
	if data == nil {
		return FolderGrant{}, fmt.Errorf("%w: no folder granted", common.ErrPermissionDenied)
	}
	return DecodeGrant(data)
}
