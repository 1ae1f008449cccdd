package engine

import (
	"fmt"
	"strings"

	"chessmate/internal/engine/openingbook"
)

// PlayStyle shapes how the engine searches at a given difficulty.
type PlayStyle interface {
	Name() string
	ModifyConfig(cfg SearchConfig, difficulty int) SearchConfig
}

// OpeningMover is an optional PlayStyle capability: styles that carry
// an opening repertoire answer book positions without a search.
type OpeningMover interface {
	OpeningMove(fen string, history []string) (string, bool)
}

// NewStyle resolves a style by name. The book style needs a repertoire;
// pass nil to use the built-in one.
func NewStyle(name string, book *openingbook.Book) (PlayStyle, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return defaultStyle{}, nil
	case "book":
		if book == nil {
			book = openingbook.Default()
		}
		return &bookStyle{book: book}, nil
	case "aggressive":
		return aggressiveStyle{}, nil
	default:
		return nil, fmt.Errorf("engine: unknown play style %q", name)
	}
}

type defaultStyle struct{}

func (defaultStyle) Name() string { return "default" }

func (defaultStyle) ModifyConfig(cfg SearchConfig, _ int) SearchConfig { return cfg }

// bookStyle plays known opening lines from the repertoire and falls
// back to an unmodified search once out of book.
type bookStyle struct {
	book *openingbook.Book
}

func (*bookStyle) Name() string { return "book" }

func (*bookStyle) ModifyConfig(cfg SearchConfig, _ int) SearchConfig { return cfg }

func (s *bookStyle) OpeningMove(_ string, history []string) (string, bool) {
	return s.book.Lookup(history)
}

// aggressiveStyle searches deeper at the cost of a longer move time.
type aggressiveStyle struct{}

func (aggressiveStyle) Name() string { return "aggressive" }

func (aggressiveStyle) ModifyConfig(cfg SearchConfig, _ int) SearchConfig {
	cfg.Depth += 2
	if cfg.Depth > 30 {
		cfg.Depth = 30
	}
	cfg.MoveTime += cfg.MoveTime / 2
	return cfg
}
