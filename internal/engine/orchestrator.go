package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"chessmate/internal/domain"
	"chessmate/internal/obslog"
)

// ErrUnknownProvider is returned by SwitchProvider for a name no
// registered provider carries.
var ErrUnknownProvider = errors.New("engine: unknown provider")

const defaultMoveTime = 4 * time.Second

// difficulty 1..5 mapped to search depth and engine skill. Depth grows
// steeply so level 5 actually punishes mistakes.
var (
	depthByDifficulty = map[int]int{1: 2, 2: 5, 3: 9, 4: 14, 5: 18}
	skillByDifficulty = map[int]int{1: 2, 2: 6, 3: 11, 4: 16, 5: 20}
)

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	PoolSize int
	MoveTime time.Duration
	Style    PlayStyle
}

// Orchestrator routes move requests to the active provider's pool.
// The pool is built lazily on the first request; concurrent first
// requests share one initialization instead of racing to build
// duplicate pools.
type Orchestrator struct {
	poolSize int
	moveTime time.Duration
	style    PlayStyle

	mu        sync.Mutex
	providers map[string]Provider
	active    Provider
	pool      *Pool
	initDone  chan struct{} // non-nil while a pool build is in flight
	// generation advances on every provider switch; an in-flight pool
	// build carries the generation it started under and is discarded on
	// completion if a switch happened meanwhile.
	generation uint64
	disposed   bool
}

// NewOrchestrator creates an orchestrator with no providers registered.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 2
	}
	if cfg.MoveTime <= 0 {
		cfg.MoveTime = defaultMoveTime
	}
	style := cfg.Style
	if style == nil {
		style = defaultStyle{}
	}
	return &Orchestrator{
		poolSize:  cfg.PoolSize,
		moveTime:  cfg.MoveTime,
		style:     style,
		providers: make(map[string]Provider),
	}
}

// RegisterProvider adds a provider; the first registration becomes the
// active one.
func (o *Orchestrator) RegisterProvider(p Provider) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.providers[p.Name()] = p
	if o.active == nil {
		o.active = p
	}
}

// SwitchProvider makes the named provider active and disposes the
// current pool; the next request builds a fresh pool on the new
// provider. Switching to the already-active provider is a no-op.
func (o *Orchestrator) SwitchProvider(name string) error {
	o.mu.Lock()
	next, ok := o.providers[name]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	if o.active == next {
		o.mu.Unlock()
		return nil
	}
	o.active = next
	o.generation++
	pool := o.pool
	o.pool = nil
	o.mu.Unlock()

	if pool != nil {
		_ = pool.DisposeAll()
	}
	obslog.L().Info("engine provider switched", zap.String("provider", name))
	return nil
}

// GetEngineMove produces the engine's reply for the given position.
// Book hits skip the pool entirely and report depth 0.
func (o *Orchestrator) GetEngineMove(ctx context.Context, fen string, difficulty int, history []string) (Move, error) {
	start := time.Now()
	if err := domain.ValidateDifficulty(difficulty); err != nil {
		return Move{}, err
	}

	if om, ok := o.style.(OpeningMover); ok {
		if mv, hit := om.OpeningMove(fen, history); hit {
			obslog.L().Debug("opening book hit",
				zap.String("move", mv),
				zap.Int("ply", len(history)))
			return Move{UCI: mv, Depth: 0, Book: true, Duration: time.Since(start)}, nil
		}
	}

	pool, err := o.ensurePool(ctx)
	if err != nil {
		return Move{}, err
	}

	cfg := o.style.ModifyConfig(SearchConfig{
		Depth:      depthByDifficulty[difficulty],
		MoveTime:   o.moveTime,
		SkillLevel: skillByDifficulty[difficulty],
	}, difficulty)

	adapter, err := pool.Acquire(ctx)
	if err != nil {
		return Move{}, fmt.Errorf("acquire engine: %w", err)
	}
	defer pool.Release(adapter)

	// Histories recorded from the initial position replay through
	// "position startpos moves", so the engine keeps repetition context.
	searchFEN := fen
	if len(history) > 0 {
		searchFEN = "startpos"
	}
	mv, depth, err := adapter.BestMove(ctx, searchFEN, history, cfg)
	if err != nil {
		return Move{}, fmt.Errorf("engine search: %w", err)
	}
	elapsed := time.Since(start)
	obslog.L().Debug("engine move",
		zap.String("move", mv),
		zap.Int("depth", depth),
		zap.Duration("elapsed", elapsed))
	return Move{UCI: mv, Depth: depth, Duration: elapsed}, nil
}

// ensurePool returns the active pool, building it once even under
// concurrent first callers. Losers of the build race wait for the
// winner and share its result.
func (o *Orchestrator) ensurePool(ctx context.Context) (*Pool, error) {
	for {
		o.mu.Lock()
		if o.disposed {
			o.mu.Unlock()
			return nil, ErrPoolDisposed
		}
		if o.pool != nil {
			pool := o.pool
			o.mu.Unlock()
			return pool, nil
		}
		if o.initDone != nil {
			done := o.initDone
			o.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		provider := o.active
		gen := o.generation
		done := make(chan struct{})
		o.initDone = done
		o.mu.Unlock()

		if provider == nil {
			o.finishInit(nil, gen, done)
			return nil, fmt.Errorf("engine: no provider registered")
		}
		pool, err := NewPool(ctx, o.poolSize, provider.NewAdapter)
		installed := o.finishInit(pool, gen, done)
		if err != nil {
			return nil, err
		}
		if !installed {
			// Provider switched (or orchestrator disposed) mid-build;
			// retry against the current state.
			continue
		}
		return pool, nil
	}
}

// finishInit publishes a completed build and wakes waiters. A pool
// built for a superseded generation is torn down instead of installed,
// so a racing SwitchProvider never ends up serving the old provider.
func (o *Orchestrator) finishInit(pool *Pool, gen uint64, done chan struct{}) bool {
	o.mu.Lock()
	stale := o.disposed || gen != o.generation
	if !stale {
		o.pool = pool
	}
	o.initDone = nil
	o.mu.Unlock()
	close(done)

	if stale {
		if pool != nil {
			_ = pool.DisposeAll()
		}
		return false
	}
	return pool != nil
}

// Stats reports the active pool's occupancy, or zeroes before the pool
// exists.
func (o *Orchestrator) Stats() PoolStats {
	o.mu.Lock()
	pool := o.pool
	o.mu.Unlock()
	if pool == nil {
		return PoolStats{}
	}
	return pool.Stats()
}

// Dispose shuts the active pool down. Idempotent.
func (o *Orchestrator) Dispose() error {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return nil
	}
	o.disposed = true
	pool := o.pool
	o.pool = nil
	o.mu.Unlock()

	if pool == nil {
		return nil
	}
	return pool.DisposeAll()
}
