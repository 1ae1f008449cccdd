package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a game record.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusFinished  Status = "FINISHED"
	StatusAbandoned Status = "ABANDONED"
)

// Result tags a finished game with its terminal reason.
type Result string

const (
	ResultWhiteCheckmate       Result = "WHITE_CHECKMATE"
	ResultBlackCheckmate       Result = "BLACK_CHECKMATE"
	ResultStalemate            Result = "STALEMATE"
	ResultThreefoldRepetition  Result = "THREEFOLD_REPETITION"
	ResultFiftyMoveRule        Result = "FIFTY_MOVE_RULE"
	ResultInsufficientMaterial Result = "INSUFFICIENT_MATERIAL"
	ResultTimeoutUser          Result = "TIMEOUT_USER"
	ResultTimeoutEngine        Result = "TIMEOUT_ENGINE"
	ResultResignation          Result = "RESIGNATION"
	ResultDraw                 Result = "DRAW"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// TimeControl names a clock preset. The user always plays White against
// the engine, so each side gets the same base and increment.
type TimeControl string

const (
	TimeControlNone      TimeControl = "none"
	TimeControlBullet1   TimeControl = "bullet_1min"
	TimeControlBlitz3    TimeControl = "blitz_3min"
	TimeControlBlitz5    TimeControl = "blitz_5min"
	TimeControlRapid10   TimeControl = "rapid_10min"
	TimeControlClassic30 TimeControl = "classical_30min"
)

type clockPreset struct {
	base      time.Duration
	increment time.Duration
}

var clockPresets = map[TimeControl]clockPreset{
	TimeControlNone:      {},
	TimeControlBullet1:   {base: 1 * time.Minute},
	TimeControlBlitz3:    {base: 3 * time.Minute, increment: 2 * time.Second},
	TimeControlBlitz5:    {base: 5 * time.Minute, increment: 3 * time.Second},
	TimeControlRapid10:   {base: 10 * time.Minute, increment: 5 * time.Second},
	TimeControlClassic30: {base: 30 * time.Minute, increment: 20 * time.Second},
}

// ParseTimeControl validates a time control name.
func ParseTimeControl(name string) (TimeControl, error) {
	tc := TimeControl(name)
	if name == "" {
		return TimeControlNone, nil
	}
	if _, ok := clockPresets[tc]; !ok {
		return "", fmt.Errorf("unknown time control %q", name)
	}
	return tc, nil
}

// Timed reports whether the control uses a clock at all.
func (tc TimeControl) Timed() bool {
	return clockPresets[tc].base > 0
}

// BaseMillis is the per-side starting budget in milliseconds.
func (tc TimeControl) BaseMillis() int64 {
	return clockPresets[tc].base.Milliseconds()
}

// IncrementMillis is the per-move bonus in milliseconds.
func (tc TimeControl) IncrementMillis() int64 {
	return clockPresets[tc].increment.Milliseconds()
}

// Game is the persisted state of one human-versus-engine game. Version
// is the optimistic-concurrency counter: it starts at 1 and increases by
// exactly one per committed mutation.
type Game struct {
	ID          string
	OwnerID     string
	Status      Status
	Difficulty  int
	TimeControl TimeControl

	CurrentFEN string
	MovesUCI   []string
	MovesSAN   []string

	TimeLeftUserMs   int64
	TimeLeftEngineMs int64
	TurnStartedAt    *time.Time

	Result  *Result
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so store implementations can hand out
// records without aliasing the caller's slices.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	cp := *g
	cp.MovesUCI = append([]string(nil), g.MovesUCI...)
	cp.MovesSAN = append([]string(nil), g.MovesSAN...)
	if g.TurnStartedAt != nil {
		t := *g.TurnStartedAt
		cp.TurnStartedAt = &t
	}
	if g.Result != nil {
		r := *g.Result
		cp.Result = &r
	}
	return &cp
}

// Finished reports whether the game reached a terminal state.
func (g *Game) Finished() bool {
	return g.Status != StatusActive
}

// ValidateDifficulty bounds the engine strength selector.
func ValidateDifficulty(d int) error {
	if d < MinDifficulty || d > MaxDifficulty {
		return fmt.Errorf("difficulty %d out of range %d-%d", d, MinDifficulty, MaxDifficulty)
	}
	return nil
}
