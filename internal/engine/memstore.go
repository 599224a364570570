package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/covercompare/membergate/pkg/schema"
	"github.com/google/uuid"
)

// MemStore is a thread-safe in-process ProfileStore.
// With a Persistence attached every write reaches disk before it becomes visible.
type MemStore struct {
	mu        sync.RWMutex
	data      map[uuid.UUID]schema.Profile
	persister *Persistence
}

// NewMemStore initializes a store.
// It accepts existing data (from LoadAll) and an optional persister.
func NewMemStore(initialData map[uuid.UUID]schema.Profile, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[uuid.UUID]schema.Profile)
	}
	return &MemStore{
		data:      initialData,
		persister: p,
	}
}

// Len returns the number of stored profiles.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemStore) Get(ctx context.Context, id uuid.UUID) (schema.Profile, error) {
	if err := ctx.Err(); err != nil {
		return schema.Profile{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.data[id]
	if !ok {
		return schema.Profile{}, ErrProfileNotFound
	}
	// Return a copy to prevent external mutation of stored pointers
	return p.Clone(), nil
}

func (m *MemStore) Create(ctx context.Context, p schema.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[p.AccountID]; ok {
		return ErrProfileExists
	}
	return m.write(p)
}

func (m *MemStore) Update(ctx context.Context, p schema.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[p.AccountID]; !ok {
		return ErrProfileNotFound
	}
	return m.write(p)
}

// write stores p. It MUST be called while holding m.mu.Lock.
func (m *MemStore) write(p schema.Profile) error {
	p = p.Clone()
	if m.persister != nil {
		if err := m.persister.SaveProfile(p); err != nil {
			return err
		}
	}
	m.data[p.AccountID] = p
	return nil
}

func (m *MemStore) List(ctx context.Context, status schema.Status) ([]schema.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	list := make([]schema.Profile, 0, len(m.data))
	for _, p := range m.data {
		if status != "" && p.Status != status {
			continue
		}
		list = append(list, p.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Username == list[j].Username {
			return list[i].AccountID.String() < list[j].AccountID.String()
		}
		return list[i].Username < list[j].Username
	})
	return list, nil
}
