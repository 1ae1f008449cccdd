package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"chessmate/internal/obslog"
)

const watchWriteTimeout = 10 * time.Second

// WatchServer streams committed game updates over websockets. It runs
// on its own net/http listener; the JSON API stays on fasthttp.
type WatchServer struct {
	games GameService
	hub   *Hub
}

func NewWatchServer(games GameService, hub *Hub) *WatchServer {
	return &WatchServer{games: games, hub: hub}
}

// ServeHTTP handles GET /api/games/{id}/watch; WatchServer is mounted
// directly as the listener's handler.
func (s *WatchServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.Header.Get(ownerHeader))
	if owner == "" {
		http.Error(w, "missing "+ownerHeader+" header", http.StatusUnauthorized)
		return
	}
	gameID, ok := watchGameID(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	// Ownership check before upgrading; also resolves stale timeouts.
	g, err := s.games.GetGame(r.Context(), owner, gameID)
	if err != nil {
		status, derr := mapError(err)
		http.Error(w, derr.Message, status)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	updates, cancel := s.hub.Subscribe(gameID)
	defer cancel()

	ctx := r.Context()
	if err := writeView(ctx, conn, toView(g)); err != nil {
		return
	}
	obslog.L().Debug("watcher attached", zap.String("game_id", gameID))

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutdown")
			return
		case view, open := <-updates:
			if !open {
				conn.Close(websocket.StatusNormalClosure, "subscription closed")
				return
			}
			if err := writeView(ctx, conn, view); err != nil {
				return
			}
		}
	}
}

func writeView(ctx context.Context, conn *websocket.Conn, view any) error {
	wctx, cancel := context.WithTimeout(ctx, watchWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, view)
}

// watchGameID parses /api/games/{id}/watch.
func watchGameID(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/api/games/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/watch")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
