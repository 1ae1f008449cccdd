// Package engine turns "it is the engine's move" into a concrete UCI
// move. It owns the adapter pool, provider selection, play styles and
// the opening book short-circuit.
package engine

import (
	"context"
	"time"
)

// SearchConfig bounds one engine search.
type SearchConfig struct {
	Depth      int
	MoveTime   time.Duration
	SkillLevel int
}

// Adapter is one exclusive engine worker. Implementations must make
// Initialize and Dispose idempotent; BestMove is only valid between
// the two.
type Adapter interface {
	Initialize(ctx context.Context) error
	BestMove(ctx context.Context, fen string, history []string, cfg SearchConfig) (string, int, error)
	Dispose() error
}

// Move is the orchestrator's answer: the chosen move plus where it
// came from.
type Move struct {
	UCI      string
	Depth    int
	Book     bool
	Duration time.Duration
}

// Provider builds adapters for one engine backend.
type Provider interface {
	Name() string
	NewAdapter() (Adapter, error)
}
