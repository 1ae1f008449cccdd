package rules

import "testing"

func TestReplayAndTurn(t *testing.T) {
	g, err := Replay(nil)
	if err != nil {
		t.Fatalf("Replay empty: %v", err)
	}
	if g.Turn() != White {
		t.Fatalf("expected white to move, got %s", g.Turn())
	}

	g, err = Replay([]string{"e2e4"})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if g.Turn() != Black {
		t.Fatalf("expected black to move after e4, got %s", g.Turn())
	}
}

func TestReplayRejectsIllegalHistory(t *testing.T) {
	if _, err := Replay([]string{"e2e5"}); err == nil {
		t.Fatal("expected error replaying illegal move")
	}
}

func TestApplyAcceptsSANAndUCI(t *testing.T) {
	g, _ := Replay(nil)

	info, err := g.Apply("e4")
	if err != nil {
		t.Fatalf("Apply SAN: %v", err)
	}
	if info.SAN != "e4" || info.UCI != "e2e4" {
		t.Fatalf("unexpected move info: %+v", info)
	}

	info, err = g.Apply("e7e5")
	if err != nil {
		t.Fatalf("Apply UCI: %v", err)
	}
	if info.SAN != "e5" {
		t.Fatalf("expected SAN e5, got %s", info.SAN)
	}

	if _, err := g.Apply("Ke8"); err == nil {
		t.Fatal("expected illegal move to be rejected")
	}
	if len(g.History()) != 2 {
		t.Fatalf("rejected move must not change history, got %v", g.History())
	}
}

func TestCheckmateOutcome(t *testing.T) {
	// Fool's mate.
	g, err := Replay([]string{"f2f3", "e7e5", "g2g4", "d8h4"})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	outcome, done := g.Terminal()
	if !done {
		t.Fatal("expected terminal position")
	}
	if outcome.Winner != Black || outcome.Reason != ReasonCheckmate {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestThreefoldRepetitionClaimedAutomatically(t *testing.T) {
	// Shuffle knights until the initial position occurs three times.
	moves := []string{
		"g1f3", "g8f6", "f3g1", "f6g8",
		"g1f3", "g8f6", "f3g1", "f6g8",
	}
	g, err := Replay(moves)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	outcome, done := g.Terminal()
	if !done {
		t.Fatal("expected threefold repetition to end the game")
	}
	if outcome.Winner != "" || outcome.Reason != ReasonThreefoldRepetition {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestResign(t *testing.T) {
	g, _ := Replay([]string{"e2e4"})
	g.Resign(White)
	outcome, done := g.Terminal()
	if !done || outcome.Winner != Black || outcome.Reason != ReasonResignation {
		t.Fatalf("unexpected outcome after resignation: %+v done=%v", outcome, done)
	}
}

func TestValidFEN(t *testing.T) {
	if !ValidFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1") {
		t.Fatal("start position should be valid")
	}
	if ValidFEN("") || ValidFEN("not a position") {
		t.Fatal("garbage should be rejected")
	}
}
