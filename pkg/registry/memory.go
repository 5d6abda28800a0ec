package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stormsure/marketplace/pkg/model"
)

// MemoryStore is a thread-safe in-memory Store. A write set is validated and
// committed under a single lock, so applies are atomic and reads always see
// a consistent snapshot.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[model.Kind]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[model.Kind]map[string][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, kind model.Kind, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, ok := m.data[kind][id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (m *MemoryStore) List(ctx context.Context, kind model.Kind) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.data[kind]))
	for id := range m.data[kind] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		raw := m.data[kind][id]
		cp := make([]byte, len(raw))
		copy(cp, raw)
		out = append(out, cp)
	}
	return out, nil
}

func (m *MemoryStore) Apply(ctx context.Context, set *WriteSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate the whole set before touching anything.
	for _, w := range set.Writes() {
		_, exists := m.data[w.Kind][w.ID]
		switch w.Op {
		case OpAdd:
			if exists {
				return fmt.Errorf("%s %s: %w", w.Kind, w.ID, ErrConflict)
			}
		case OpUpdate:
			if !exists {
				return fmt.Errorf("%s %s: %w", w.Kind, w.ID, ErrNotFound)
			}
		default:
			return fmt.Errorf("unknown write op %q", w.Op)
		}
	}

	for _, w := range set.Writes() {
		if m.data[w.Kind] == nil {
			m.data[w.Kind] = make(map[string][]byte)
		}
		cp := make([]byte, len(w.Data))
		copy(cp, w.Data)
		m.data[w.Kind][w.ID] = cp
	}
	return nil
}
