package openingbook

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultBookAnswersMainLines(t *testing.T) {
	b := Default()

	mv, ok := b.Lookup([]string{"e2e4"})
	if !ok {
		t.Fatal("expected a book reply to 1.e4")
	}
	valid := map[string]bool{"e7e5": true, "c7c5": true, "e7e6": true, "c7c6": true}
	if !valid[mv] {
		t.Fatalf("unexpected reply to 1.e4: %s", mv)
	}

	if _, ok := b.Lookup([]string{"a2a3"}); ok {
		t.Fatal("1.a3 must be out of book")
	}
}

func TestLookupRespectsMaxPly(t *testing.T) {
	b := Default()
	long := make([]string, b.MaxPly())
	for i := range long {
		long[i] = "e2e4"
	}
	if _, ok := b.Lookup(long); ok {
		t.Fatal("history at max ply must be out of book")
	}
}

func TestWeightedPickCoversAllReplies(t *testing.T) {
	b := Default()
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		mv, ok := b.Lookup([]string{"d2d4", "d7d5", "c2c4"})
		if !ok {
			t.Fatal("expected book reply")
		}
		seen[mv] = true
	}
	if !seen["e7e6"] || !seen["c7c6"] {
		t.Fatalf("weighted pick never produced both replies: %v", seen)
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.yaml")
	data := `max_ply: 4
lines:
  - history: "e2e4"
    replies:
      - {move: E7E5, weight: 3}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mv, ok := b.Lookup([]string{"E2E4"})
	if !ok || mv != "e7e5" {
		t.Fatalf("expected normalized e7e5 reply, got %q ok=%v", mv, ok)
	}
}

func TestLoadRejectsEmptyMove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.yaml")
	data := `lines:
  - history: "e2e4"
    replies:
      - {move: "", weight: 1}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty move")
	}
}
