package metastore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/server/models"
)

// MemoryStore is an in-memory Store used by tests and by setups without a
// database. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[models.OwnerID]map[string]json.RawMessage
	singletons  map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[models.OwnerID]map[string]json.RawMessage),
		singletons:  make(map[string]json.RawMessage),
	}
}

func (s *MemoryStore) GetCollection(ctx context.Context, owner models.OwnerID, name string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.collections[owner][name]
	if !ok {
		return nil, common.ErrNotFound
	}
	return raw, nil
}

func (s *MemoryStore) ReplaceCollection(ctx context.Context, owner models.OwnerID, name string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collections[owner] == nil {
		s.collections[owner] = make(map[string]json.RawMessage)
	}
	s.collections[owner][name] = append(json.RawMessage(nil), value...)
	return nil
}

func (s *MemoryStore) GetSingleton(ctx context.Context, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.singletons[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return raw, nil
}

func (s *MemoryStore) SetSingleton(ctx context.Context, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.singletons[key] = append(json.RawMessage(nil), value...)
	return nil
}

func (s *MemoryStore) OwnersWithCollection(ctx context.Context, name string) ([]models.OwnerID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.OwnerID
	for owner, byName := range s.collections {
		if _, ok := byName[name]; ok {
			result = append(result, owner)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}
