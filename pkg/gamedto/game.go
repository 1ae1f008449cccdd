// Package gamedto holds the JSON shapes exchanged with API clients.
package gamedto

import "time"

// GameView is the client-facing projection of one game.
type GameView struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	Difficulty       int        `json:"difficulty"`
	TimeControl      string     `json:"time_control"`
	FEN              string     `json:"fen"`
	MovesUCI         []string   `json:"moves_uci"`
	MovesSAN         []string   `json:"moves_san"`
	TimeLeftUserMs   int64      `json:"time_left_user_ms"`
	TimeLeftEngineMs int64      `json:"time_left_engine_ms"`
	TurnStartedAt    *time.Time `json:"turn_started_at,omitempty"`
	Result           string     `json:"result,omitempty"`
	Version          int64      `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EngineMoveView describes the engine's reply within a move response.
type EngineMoveView struct {
	UCI        string `json:"uci"`
	SAN        string `json:"san"`
	Depth      int    `json:"depth"`
	Book       bool   `json:"book"`
	DurationMs int64  `json:"duration_ms"`
}

// MoveResponse reports the outcome of one move request: the user's
// move as interpreted, the engine's reply when one was produced, and
// the resulting game state. EngineError is set when the user's move
// was committed but the engine could not reply; the request itself
// still succeeds.
type MoveResponse struct {
	Game        *GameView       `json:"game"`
	UserUCI     string          `json:"user_uci,omitempty"`
	UserSAN     string          `json:"user_san,omitempty"`
	EngineMove  *EngineMoveView `json:"engine_move,omitempty"`
	EngineError *DomainError    `json:"engine_error,omitempty"`
	Finished    bool            `json:"finished"`
}

// CreateGameRequest starts a new game for the requesting owner.
type CreateGameRequest struct {
	Difficulty  int    `json:"difficulty"`
	TimeControl string `json:"time_control"`
}

// MoveRequest submits one move in SAN or UCI.
type MoveRequest struct {
	Move string `json:"move"`
}

// GameListResponse wraps ListGames.
type GameListResponse struct {
	Games []*GameView `json:"games"`
}
