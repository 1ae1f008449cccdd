package httpapi

import (
	"chessmate/internal/domain"
	"chessmate/internal/session"
	"chessmate/pkg/gamedto"
)

func toView(g *domain.Game) *gamedto.GameView {
	v := &gamedto.GameView{
		ID:               g.ID,
		Status:           string(g.Status),
		Difficulty:       g.Difficulty,
		TimeControl:      string(g.TimeControl),
		FEN:              g.CurrentFEN,
		MovesUCI:         append([]string{}, g.MovesUCI...),
		MovesSAN:         append([]string{}, g.MovesSAN...),
		TimeLeftUserMs:   g.TimeLeftUserMs,
		TimeLeftEngineMs: g.TimeLeftEngineMs,
		TurnStartedAt:    g.TurnStartedAt,
		Version:          g.Version,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
	if g.Result != nil {
		v.Result = string(*g.Result)
	}
	return v
}

func toMoveResponse(res *session.MoveResult) *gamedto.MoveResponse {
	out := &gamedto.MoveResponse{
		Game:     toView(res.Game),
		UserUCI:  res.UserUCI,
		UserSAN:  res.UserSAN,
		Finished: res.Finished,
	}
	if res.Engine != nil {
		out.EngineMove = &gamedto.EngineMoveView{
			UCI:        res.Engine.UCI,
			SAN:        res.Engine.SAN,
			Depth:      res.Engine.Depth,
			Book:       res.Engine.Book,
			DurationMs: res.Engine.Duration.Milliseconds(),
		}
	}
	if res.EngineFailed {
		out.EngineError = &gamedto.DomainError{
			Code:      gamedto.CodeEngineFailure,
			Message:   "engine reply unavailable, your move stands",
			Retryable: true,
		}
	}
	return out
}
