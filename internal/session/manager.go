// Package session is the move state machine for human-versus-engine
// games. The user always plays White; every mutation goes through the
// store's version-checked update, so racing requests on one game can
// never produce a lost update.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chessmate/internal/domain"
	"chessmate/internal/engine"
	"chessmate/internal/obslog"
	"chessmate/internal/rules"
	"chessmate/internal/store"
)

var (
	ErrInvalidArgument        = errors.New("session: invalid argument")
	ErrNotFound               = errors.New("session: game not found")
	ErrNotActive              = errors.New("session: game is not active")
	ErrNotYourTurn            = errors.New("session: not your turn")
	ErrInvalidMove            = errors.New("session: invalid move")
	ErrCannotSaveFinished     = errors.New("session: cannot save a finished game")
	ErrCannotResignFinished   = errors.New("session: cannot resign a finished game")
	ErrConcurrentModification = errors.New("session: game was modified concurrently")
)

// EngineMover is the orchestrator surface the manager needs.
type EngineMover interface {
	GetEngineMove(ctx context.Context, fen string, difficulty int, history []string) (engine.Move, error)
}

// Notifier receives a snapshot after every committed mutation.
// Implementations must not block.
type Notifier interface {
	GameUpdated(game *domain.Game)
}

// EngineReply summarizes the engine's half of a move exchange.
type EngineReply struct {
	UCI      string
	SAN      string
	Depth    int
	Book     bool
	Duration time.Duration
}

// MoveResult is the outcome of one MakeMove call. Engine is nil when
// the game ended on the user's move, when the game is untimed out by
// the pre-check, or when the engine path failed; EngineFailed marks
// the last case so callers can tell it apart.
type MoveResult struct {
	Game         *domain.Game
	UserUCI      string
	UserSAN      string
	Engine       *EngineReply
	EngineFailed bool
	Finished     bool
}

// Config wires a Manager. Engine and Notifier are optional.
type Config struct {
	Store    store.GameStore
	Engine   EngineMover
	Notifier Notifier
	Now      func() time.Time
}

// Manager owns the game lifecycle operations.
type Manager struct {
	store    store.GameStore
	engine   EngineMover
	notifier Notifier
	now      func() time.Time
}

func NewManager(cfg Config) *Manager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store:    cfg.Store,
		engine:   cfg.Engine,
		notifier: cfg.Notifier,
		now:      now,
	}
}

// CreateGame starts a new active game for the owner. Timed games arm
// the user's clock immediately.
func (m *Manager) CreateGame(ctx context.Context, ownerID string, difficulty int, timeControl string) (*domain.Game, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidArgument)
	}
	if err := domain.ValidateDifficulty(difficulty); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	tc, err := domain.ParseTimeControl(timeControl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	now := m.now()
	g := &domain.Game{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Status:      domain.StatusActive,
		Difficulty:  difficulty,
		TimeControl: tc,
		CurrentFEN:  domain.StartFEN,
		MovesUCI:    []string{},
		MovesSAN:    []string{},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if tc.Timed() {
		g.TimeLeftUserMs = tc.BaseMillis()
		g.TimeLeftEngineMs = tc.BaseMillis()
		start := now
		g.TurnStartedAt = &start
	}

	if err := m.store.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	obslog.L().Info("game created",
		zap.String("game_id", g.ID),
		zap.Int("difficulty", difficulty),
		zap.String("time_control", string(tc)))
	m.notify(g)
	return g, nil
}

// GetGame loads a game scoped to its owner. A stale timeout on an
// active timed game is resolved here, so reads never show a flagged
// clock as still running.
func (m *Manager) GetGame(ctx context.Context, ownerID, gameID string) (*domain.Game, error) {
	g, err := m.load(ctx, ownerID, gameID)
	if err != nil {
		return nil, err
	}

	if g.Status == domain.StatusActive && g.TimeControl.Timed() && g.TurnStartedAt != nil {
		now := m.now()
		elapsed := elapsedMillis(g.TurnStartedAt, now)
		if engineToMove(g) {
			if flagged(g.TimeLeftEngineMs, elapsed) {
				g.TimeLeftEngineMs = 0
				m.finish(g, domain.ResultTimeoutEngine)
				return m.persistTimeout(ctx, ownerID, g)
			}
		} else if flagged(g.TimeLeftUserMs, elapsed) {
			g.TimeLeftUserMs = 0
			m.finish(g, domain.ResultTimeoutUser)
			return m.persistTimeout(ctx, ownerID, g)
		}
	}
	return g, nil
}

// ListGames returns the owner's games, most recently touched first.
func (m *Manager) ListGames(ctx context.Context, ownerID string, limit int) ([]*domain.Game, error) {
	games, err := m.store.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

// MakeMove runs one full move exchange: validate, clock, apply, persist
// the user's move, then request and persist the engine's reply. Every
// persist is version-checked; a conflict anywhere aborts the whole call.
func (m *Manager) MakeMove(ctx context.Context, ownerID, gameID, moveText string) (*MoveResult, error) {
	g, err := m.load(ctx, ownerID, gameID)
	if err != nil {
		return nil, err
	}
	if g.Finished() {
		return nil, ErrNotActive
	}

	replay, err := rules.Replay(g.MovesUCI)
	if err != nil {
		return nil, fmt.Errorf("replay game %s: %w", g.ID, err)
	}
	if replay.Turn() != rules.White {
		return nil, ErrNotYourTurn
	}

	now := m.now()
	timed := g.TimeControl.Timed()
	elapsed := elapsedMillis(g.TurnStartedAt, now)

	// A clock that ran out before the move arrived loses the game; the
	// submitted move is discarded.
	if timed && flagged(g.TimeLeftUserMs, elapsed) {
		g.TimeLeftUserMs = 0
		m.finish(g, domain.ResultTimeoutUser)
		if err := m.persist(ctx, g); err != nil {
			return nil, err
		}
		obslog.L().Info("game lost on time",
			zap.String("game_id", g.ID),
			zap.String("side", "user"))
		return &MoveResult{Game: g, Finished: true}, nil
	}

	info, err := replay.Apply(moveText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMove, err)
	}

	g.MovesUCI = append(g.MovesUCI, info.UCI)
	g.MovesSAN = append(g.MovesSAN, info.SAN)
	g.CurrentFEN = info.FEN
	if timed {
		g.TimeLeftUserMs = spend(g.TimeLeftUserMs, elapsed) + g.TimeControl.IncrementMillis()
	}

	if outcome, done := replay.Terminal(); done {
		m.finish(g, resultFromOutcome(outcome))
		if err := m.persist(ctx, g); err != nil {
			return nil, err
		}
		return &MoveResult{Game: g, UserUCI: info.UCI, UserSAN: info.SAN, Finished: true}, nil
	}

	// Commit the user's move and arm the engine's clock before any
	// engine work; a failing engine must not lose the user's move.
	if timed {
		engineTurnStart := now
		g.TurnStartedAt = &engineTurnStart
	}
	if err := m.persist(ctx, g); err != nil {
		return nil, err
	}

	result := &MoveResult{Game: g, UserUCI: info.UCI, UserSAN: info.SAN}
	if m.engine == nil {
		return result, nil
	}
	return m.engineTurn(ctx, g, replay, result)
}

// engineTurn requests, clocks and persists the engine's reply. Any
// failure here is isolated: the user's committed move stands, the
// user's clock is rearmed and the call still succeeds.
func (m *Manager) engineTurn(ctx context.Context, g *domain.Game, replay *rules.Game, result *MoveResult) (*MoveResult, error) {
	timed := g.TimeControl.Timed()

	searchStart := m.now()
	mv, err := m.engine.GetEngineMove(ctx, g.CurrentFEN, g.Difficulty, g.MovesUCI)
	engineElapsed := m.now().Sub(searchStart).Milliseconds()
	if err != nil {
		return m.engineFailed(ctx, g, result, err)
	}

	// The engine is charged its wall time. Exhausting the clock on the
	// search loses the game and the produced move is discarded.
	if timed && flagged(g.TimeLeftEngineMs, engineElapsed) {
		g.TimeLeftEngineMs = 0
		m.finish(g, domain.ResultTimeoutEngine)
		if err := m.persist(ctx, g); err != nil {
			return nil, err
		}
		obslog.L().Info("game lost on time",
			zap.String("game_id", g.ID),
			zap.String("side", "engine"))
		result.Game = g
		result.Finished = true
		return result, nil
	}

	info, err := replay.Apply(mv.UCI)
	if err != nil {
		// A protocol violation counts as "no engine move".
		return m.engineFailed(ctx, g, result, fmt.Errorf("engine reply %q: %w", mv.UCI, err))
	}

	g.MovesUCI = append(g.MovesUCI, info.UCI)
	g.MovesSAN = append(g.MovesSAN, info.SAN)
	g.CurrentFEN = info.FEN
	if timed {
		g.TimeLeftEngineMs = spend(g.TimeLeftEngineMs, engineElapsed) + g.TimeControl.IncrementMillis()
	}

	if outcome, done := replay.Terminal(); done {
		m.finish(g, resultFromOutcome(outcome))
	} else if timed {
		userTurnStart := m.now()
		g.TurnStartedAt = &userTurnStart
	}
	if err := m.persist(ctx, g); err != nil {
		return nil, err
	}

	result.Game = g
	result.Finished = g.Finished()
	result.Engine = &EngineReply{
		UCI:      info.UCI,
		SAN:      info.SAN,
		Depth:    mv.Depth,
		Book:     mv.Book,
		Duration: mv.Duration,
	}
	return result, nil
}

// engineFailed rearms the user's clock and reports the user move as
// successful with no engine reply. The rearm persist is best effort:
// losing it only costs clock accuracy, never the user's move.
func (m *Manager) engineFailed(ctx context.Context, g *domain.Game, result *MoveResult, cause error) (*MoveResult, error) {
	obslog.L().Warn("engine turn failed, user move stands",
		zap.String("game_id", g.ID),
		zap.Error(cause))

	if g.TimeControl.Timed() {
		rearm := m.now()
		g.TurnStartedAt = &rearm
		if err := m.persist(ctx, g); err != nil {
			obslog.L().Warn("clock rearm not persisted",
				zap.String("game_id", g.ID),
				zap.Error(err))
		}
	}
	result.Game = g
	result.EngineFailed = true
	return result, nil
}

// SaveGame syncs the running clock into the record without making a
// move: the mover is charged the elapsed time and the turn timer
// restarts. A flagged clock resolves as a timeout instead.
func (m *Manager) SaveGame(ctx context.Context, ownerID, gameID string) (*domain.Game, error) {
	g, err := m.load(ctx, ownerID, gameID)
	if err != nil {
		return nil, err
	}
	if g.Finished() {
		return nil, ErrCannotSaveFinished
	}

	if g.TimeControl.Timed() && g.TurnStartedAt != nil {
		now := m.now()
		elapsed := elapsedMillis(g.TurnStartedAt, now)
		if engineToMove(g) {
			if flagged(g.TimeLeftEngineMs, elapsed) {
				g.TimeLeftEngineMs = 0
				m.finish(g, domain.ResultTimeoutEngine)
			} else {
				g.TimeLeftEngineMs = spend(g.TimeLeftEngineMs, elapsed)
			}
		} else {
			if flagged(g.TimeLeftUserMs, elapsed) {
				g.TimeLeftUserMs = 0
				m.finish(g, domain.ResultTimeoutUser)
			} else {
				g.TimeLeftUserMs = spend(g.TimeLeftUserMs, elapsed)
			}
		}
		if !g.Finished() {
			restart := now
			g.TurnStartedAt = &restart
		}
	}

	if err := m.persist(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// ResignGame ends an active game in the engine's favor.
func (m *Manager) ResignGame(ctx context.Context, ownerID, gameID string) (*domain.Game, error) {
	g, err := m.load(ctx, ownerID, gameID)
	if err != nil {
		return nil, err
	}
	if g.Finished() {
		return nil, ErrCannotResignFinished
	}

	if g.TimeControl.Timed() && g.TurnStartedAt != nil && !engineToMove(g) {
		g.TimeLeftUserMs = spend(g.TimeLeftUserMs, elapsedMillis(g.TurnStartedAt, m.now()))
	}
	m.finish(g, domain.ResultResignation)
	if err := m.persist(ctx, g); err != nil {
		return nil, err
	}
	obslog.L().Info("game resigned", zap.String("game_id", g.ID))
	return g, nil
}

func (m *Manager) load(ctx context.Context, ownerID, gameID string) (*domain.Game, error) {
	g, err := m.store.Get(ctx, gameID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}
	if g == nil {
		return nil, ErrNotFound
	}
	return g, nil
}

func (m *Manager) persist(ctx context.Context, g *domain.Game) error {
	ok, err := m.store.UpdateVersioned(ctx, g, g.Version)
	if err != nil {
		return fmt.Errorf("persist game %s: %w", g.ID, err)
	}
	if !ok {
		return ErrConcurrentModification
	}
	m.notify(g)
	return nil
}

// persistTimeout commits a lazily detected timeout. Losing the race to
// another writer is fine; the fresh record is returned instead.
func (m *Manager) persistTimeout(ctx context.Context, ownerID string, g *domain.Game) (*domain.Game, error) {
	err := m.persist(ctx, g)
	if err == nil {
		obslog.L().Info("stale timeout resolved on read", zap.String("game_id", g.ID))
		return g, nil
	}
	if errors.Is(err, ErrConcurrentModification) {
		return m.load(ctx, ownerID, g.ID)
	}
	return nil, err
}

func (m *Manager) finish(g *domain.Game, result domain.Result) {
	g.Status = domain.StatusFinished
	r := result
	g.Result = &r
	g.TurnStartedAt = nil
}

func (m *Manager) notify(g *domain.Game) {
	if m.notifier != nil {
		m.notifier.GameUpdated(g.Clone())
	}
}

// engineToMove derives the side to move from history parity; the user
// opens every game as White.
func engineToMove(g *domain.Game) bool {
	return len(g.MovesUCI)%2 == 1
}

func resultFromOutcome(o rules.Outcome) domain.Result {
	switch o.Reason {
	case rules.ReasonCheckmate:
		if o.Winner == rules.White {
			return domain.ResultWhiteCheckmate
		}
		return domain.ResultBlackCheckmate
	case rules.ReasonStalemate:
		return domain.ResultStalemate
	case rules.ReasonThreefoldRepetition:
		return domain.ResultThreefoldRepetition
	case rules.ReasonFiftyMoveRule:
		return domain.ResultFiftyMoveRule
	case rules.ReasonInsufficientMaterial:
		return domain.ResultInsufficientMaterial
	case rules.ReasonResignation:
		return domain.ResultResignation
	default:
		return domain.ResultDraw
	}
}
