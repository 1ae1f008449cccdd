package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chessmate/internal/domain"
)

// memoryStore is a development and test implementation used when no
// external database is configured.
type memoryStore struct {
	mu    sync.RWMutex
	games map[string]*domain.Game
}

// NewMemoryStore returns an in-process GameStore.
func NewMemoryStore() GameStore {
	return &memoryStore{games: make(map[string]*domain.Game)}
}

func (m *memoryStore) Create(_ context.Context, game *domain.Game) error {
	if game == nil || game.ID == "" {
		return fmt.Errorf("nil or unidentified game")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.games[game.ID]; exists {
		return fmt.Errorf("game %s already exists", game.ID)
	}
	m.games[game.ID] = game.Clone()
	return nil
}

func (m *memoryStore) Get(_ context.Context, id, ownerID string) (*domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok || g.OwnerID != ownerID {
		return nil, nil
	}
	return g.Clone(), nil
}

func (m *memoryStore) ListByOwner(_ context.Context, ownerID string, limit int) ([]*domain.Game, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]*domain.Game, 0)
	for _, g := range m.games {
		if g.OwnerID == ownerID {
			items = append(items, g.Clone())
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].ID > items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memoryStore) UpdateVersioned(_ context.Context, game *domain.Game, expectedVersion int64) (bool, error) {
	if game == nil || game.ID == "" {
		return false, fmt.Errorf("nil or unidentified game")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.games[game.ID]
	if !ok || stored.OwnerID != game.OwnerID || stored.Version != expectedVersion {
		return false, nil
	}

	game.Version = expectedVersion + 1
	game.UpdatedAt = time.Now()
	m.games[game.ID] = game.Clone()
	return true, nil
}

func (m *memoryStore) Close() error { return nil }
