package store

import (
	"context"
	"testing"
	"time"

	"chessmate/internal/domain"
)

func newTestGame(id, owner string) *domain.Game {
	now := time.Now()
	return &domain.Game{
		ID:               id,
		OwnerID:          owner,
		Status:           domain.StatusActive,
		Difficulty:       3,
		TimeControl:      domain.TimeControlBlitz5,
		CurrentFEN:       domain.StartFEN,
		MovesUCI:         []string{},
		MovesSAN:         []string{},
		TimeLeftUserMs:   300000,
		TimeLeftEngineMs: 300000,
		TurnStartedAt:    &now,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestMemoryCreateGetOwnership(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	g := newTestGame("g1", "alice")
	if err := s.Create(ctx, g); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, g); err == nil {
		t.Fatal("duplicate create should fail")
	}

	got, err := s.Get(ctx, "g1", "alice")
	if err != nil || got == nil {
		t.Fatalf("Get: %v %v", got, err)
	}
	if got.Version != 1 {
		t.Fatalf("expected version 1, got %d", got.Version)
	}

	// Another owner must not see the game.
	got, err = s.Get(ctx, "g1", "bob")
	if err != nil || got != nil {
		t.Fatalf("expected nil for wrong owner, got %v %v", got, err)
	}
}

func TestMemoryVersionedUpdate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	g := newTestGame("g1", "alice")
	if err := s.Create(ctx, g); err != nil {
		t.Fatalf("Create: %v", err)
	}

	g.MovesUCI = append(g.MovesUCI, "e2e4")
	g.MovesSAN = append(g.MovesSAN, "e4")
	ok, err := s.UpdateVersioned(ctx, g, 1)
	if err != nil || !ok {
		t.Fatalf("UpdateVersioned: ok=%v err=%v", ok, err)
	}
	if g.Version != 2 {
		t.Fatalf("expected in-place version bump to 2, got %d", g.Version)
	}

	// Stale version must be rejected without error.
	ok, err = s.UpdateVersioned(ctx, g, 1)
	if err != nil {
		t.Fatalf("stale update errored: %v", err)
	}
	if ok {
		t.Fatal("stale update must report ok=false")
	}

	got, _ := s.Get(ctx, "g1", "alice")
	if got.Version != 2 || len(got.MovesUCI) != 1 {
		t.Fatalf("unexpected stored state: version=%d moves=%v", got.Version, got.MovesUCI)
	}
}

func TestMemoryRacersOneWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Create(ctx, newTestGame("g1", "alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	a, _ := s.Get(ctx, "g1", "alice")
	b, _ := s.Get(ctx, "g1", "alice")

	a.MovesUCI = append(a.MovesUCI, "e2e4")
	b.MovesUCI = append(b.MovesUCI, "d2d4")

	okA, _ := s.UpdateVersioned(ctx, a, a.Version)
	okB, _ := s.UpdateVersioned(ctx, b, b.Version)
	if okA == okB {
		t.Fatalf("exactly one racer must win: okA=%v okB=%v", okA, okB)
	}
}

func TestMemoryListByOwner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"g1", "g2", "g3"} {
		g := newTestGame(id, "alice")
		if err := s.Create(ctx, g); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	if err := s.Create(ctx, newTestGame("g9", "bob")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	games, err := s.ListByOwner(ctx, "alice", 2)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected limit applied, got %d games", len(games))
	}
	for _, g := range games {
		if g.OwnerID != "alice" {
			t.Fatalf("leaked foreign game %s", g.ID)
		}
	}
}
