package engine

import (
	"context"
	"fmt"
	"strings"

	"chessmate/internal/engine/uci"
)

// StockfishProvider builds adapters backed by a local Stockfish binary.
type StockfishProvider struct {
	binaryPath string
}

// NewStockfishProvider validates nothing up front; a bad path surfaces
// when the first adapter initializes.
func NewStockfishProvider(binaryPath string) (*StockfishProvider, error) {
	if strings.TrimSpace(binaryPath) == "" {
		return nil, fmt.Errorf("engine: stockfish binary path is required")
	}
	return &StockfishProvider{binaryPath: binaryPath}, nil
}

func (p *StockfishProvider) Name() string { return "stockfish" }

func (p *StockfishProvider) NewAdapter() (Adapter, error) {
	return &stockfishAdapter{session: uci.NewSession(p.binaryPath)}, nil
}

// stockfishAdapter adapts a uci.Session to the pool's Adapter shape.
type stockfishAdapter struct {
	session *uci.Session
}

func (a *stockfishAdapter) Initialize(ctx context.Context) error {
	return a.session.Initialize(ctx)
}

func (a *stockfishAdapter) BestMove(ctx context.Context, fen string, history []string, cfg SearchConfig) (string, int, error) {
	res, err := a.session.Search(ctx, uci.SearchRequest{
		FEN:        fen,
		Moves:      history,
		Depth:      cfg.Depth,
		MoveTime:   cfg.MoveTime,
		SkillLevel: cfg.SkillLevel,
	})
	if err != nil {
		return "", 0, err
	}
	return res.BestMove, res.Depth, nil
}

func (a *stockfishAdapter) Dispose() error {
	return a.session.Close()
}
