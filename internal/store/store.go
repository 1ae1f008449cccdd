// Package store persists game records behind an optimistic-concurrency
// contract: every mutation is a compare-and-swap on the record version,
// so racing requests never take long-lived locks and lost updates are
// impossible by construction.
package store

import (
	"context"

	"chessmate/internal/domain"
)

// GameStore is the versioned persistence contract.
//
// UpdateVersioned atomically applies the new state only when the stored
// version still equals expectedVersion, bumping the version by one. A
// mismatch is reported as ok=false, not as an error: the caller decides
// whether a conflict is fatal. On success the passed record's Version
// and UpdatedAt are refreshed in place.
type GameStore interface {
	Create(ctx context.Context, game *domain.Game) error
	Get(ctx context.Context, id, ownerID string) (*domain.Game, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.Game, error)
	UpdateVersioned(ctx context.Context, game *domain.Game, expectedVersion int64) (bool, error)
	Close() error
}

// DefaultListLimit caps ListByOwner when the caller passes no limit.
const DefaultListLimit = 20
