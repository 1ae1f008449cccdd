// Package httpapi exposes the game session operations as a JSON API.
// The owner identity comes from the X-Owner-ID header; authenticating
// that identity is the proxy's job, not this layer's.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"chessmate/internal/domain"
	"chessmate/internal/obslog"
	"chessmate/internal/session"
	"chessmate/pkg/gamedto"
)

const ownerHeader = "X-Owner-ID"

// GameService is the session-manager surface the handlers need.
type GameService interface {
	CreateGame(ctx context.Context, ownerID string, difficulty int, timeControl string) (*domain.Game, error)
	GetGame(ctx context.Context, ownerID, gameID string) (*domain.Game, error)
	ListGames(ctx context.Context, ownerID string, limit int) ([]*domain.Game, error)
	MakeMove(ctx context.Context, ownerID, gameID, moveText string) (*session.MoveResult, error)
	SaveGame(ctx context.Context, ownerID, gameID string) (*domain.Game, error)
	ResignGame(ctx context.Context, ownerID, gameID string) (*domain.Game, error)
}

// Server routes /api/games requests to the game service.
type Server struct {
	games     GameService
	listLimit int
}

func NewServer(games GameService, listLimit int) *Server {
	if listLimit <= 0 {
		listLimit = 20
	}
	return &Server{games: games, listLimit: listLimit}
}

// Handler returns the fasthttp entry point.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		owner := strings.TrimSpace(string(ctx.Request.Header.Peek(ownerHeader)))
		if owner == "" {
			writeError(ctx, fasthttp.StatusUnauthorized, gamedto.DomainError{
				Code:    gamedto.CodeInvalidRequest,
				Message: "missing " + ownerHeader + " header",
			})
			return
		}

		path := string(ctx.Path())
		method := string(ctx.Method())
		rest, ok := strings.CutPrefix(path, "/api/games")
		if !ok {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}

		switch {
		case rest == "" || rest == "/":
			switch method {
			case fasthttp.MethodPost:
				s.handleCreate(ctx, owner)
			case fasthttp.MethodGet:
				s.handleList(ctx, owner)
			default:
				ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
			}
			return
		default:
			parts := strings.Split(strings.Trim(rest, "/"), "/")
			switch {
			case len(parts) == 1 && method == fasthttp.MethodGet:
				s.handleGet(ctx, owner, parts[0])
			case len(parts) == 2 && method == fasthttp.MethodPost && parts[1] == "moves":
				s.handleMove(ctx, owner, parts[0])
			case len(parts) == 2 && method == fasthttp.MethodPost && parts[1] == "save":
				s.handleSave(ctx, owner, parts[0])
			case len(parts) == 2 && method == fasthttp.MethodPost && parts[1] == "resign":
				s.handleResign(ctx, owner, parts[0])
			default:
				ctx.SetStatusCode(fasthttp.StatusNotFound)
			}
		}
	}
}

func (s *Server) handleCreate(ctx *fasthttp.RequestCtx, owner string) {
	var req gamedto.CreateGameRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, gamedto.DomainError{
			Code:    gamedto.CodeInvalidRequest,
			Message: "malformed request body",
		})
		return
	}
	g, err := s.games.CreateGame(ctx, owner, req.Difficulty, req.TimeControl)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, toView(g))
}

func (s *Server) handleList(ctx *fasthttp.RequestCtx, owner string) {
	games, err := s.games.ListGames(ctx, owner, s.listLimit)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	views := make([]*gamedto.GameView, 0, len(games))
	for _, g := range games {
		views = append(views, toView(g))
	}
	writeJSON(ctx, fasthttp.StatusOK, gamedto.GameListResponse{Games: views})
}

func (s *Server) handleGet(ctx *fasthttp.RequestCtx, owner, gameID string) {
	g, err := s.games.GetGame(ctx, owner, gameID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toView(g))
}

func (s *Server) handleMove(ctx *fasthttp.RequestCtx, owner, gameID string) {
	var req gamedto.MoveRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || strings.TrimSpace(req.Move) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, gamedto.DomainError{
			Code:    gamedto.CodeInvalidRequest,
			Message: "move is required",
		})
		return
	}
	res, err := s.games.MakeMove(ctx, owner, gameID, req.Move)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toMoveResponse(res))
}

func (s *Server) handleSave(ctx *fasthttp.RequestCtx, owner, gameID string) {
	g, err := s.games.SaveGame(ctx, owner, gameID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toView(g))
}

func (s *Server) handleResign(ctx *fasthttp.RequestCtx, owner, gameID string) {
	g, err := s.games.ResignGame(ctx, owner, gameID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toView(g))
}

func writeServiceError(ctx *fasthttp.RequestCtx, err error) {
	status, derr := mapError(err)
	if status == fasthttp.StatusInternalServerError {
		obslog.L().Error("request failed", zap.Error(err))
	}
	writeError(ctx, status, derr)
}

// mapError translates session errors into transport codes.
func mapError(err error) (int, gamedto.DomainError) {
	switch {
	case errors.Is(err, session.ErrInvalidArgument):
		return fasthttp.StatusBadRequest, gamedto.DomainError{
			Code: gamedto.CodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, session.ErrNotFound):
		return fasthttp.StatusNotFound, gamedto.DomainError{
			Code: gamedto.CodeGameNotFound, Message: "game not found"}
	case errors.Is(err, session.ErrNotActive):
		return fasthttp.StatusConflict, gamedto.DomainError{
			Code: gamedto.CodeGameNotActive, Message: "game is not active"}
	case errors.Is(err, session.ErrNotYourTurn):
		return fasthttp.StatusConflict, gamedto.DomainError{
			Code: gamedto.CodeNotYourTurn, Message: "it is not your turn"}
	case errors.Is(err, session.ErrInvalidMove):
		return fasthttp.StatusBadRequest, gamedto.DomainError{
			Code: gamedto.CodeInvalidMove, Message: "move is not legal in this position"}
	case errors.Is(err, session.ErrCannotSaveFinished):
		return fasthttp.StatusConflict, gamedto.DomainError{
			Code: gamedto.CodeGameNotActive, Message: "cannot save a finished game"}
	case errors.Is(err, session.ErrCannotResignFinished):
		return fasthttp.StatusConflict, gamedto.DomainError{
			Code: gamedto.CodeGameNotActive, Message: "cannot resign a finished game"}
	case errors.Is(err, session.ErrConcurrentModification):
		return fasthttp.StatusConflict, gamedto.DomainError{
			Code: gamedto.CodeConflict, Message: "game was modified concurrently, reload and retry", Retryable: true}
	default:
		return fasthttp.StatusInternalServerError, gamedto.DomainError{
			Code: gamedto.CodeInternal, Message: "internal error"}
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBody(raw)
}

func writeError(ctx *fasthttp.RequestCtx, status int, derr gamedto.DomainError) {
	writeJSON(ctx, status, struct {
		Error gamedto.DomainError `json:"error"`
	}{Error: derr})
}
