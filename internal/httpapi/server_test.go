package httpapi

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/valyala/fasthttp"

	"chessmate/internal/session"
	"chessmate/internal/store"
	"chessmate/pkg/gamedto"
)

func newTestServer(t *testing.T) (*Server, *session.Manager) {
	t.Helper()
	mgr := session.NewManager(session.Config{Store: store.NewMemoryStore()})
	return NewServer(mgr, 20), mgr
}

func doRequest(t *testing.T, s *Server, method, uri, owner, body string) *fasthttp.RequestCtx {
	t.Helper()
	var req fasthttp.Request
	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	if body != "" {
		req.SetBodyString(body)
	}
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	s.Handler()(ctx)
	return ctx
}

func TestMissingOwnerHeader(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := doRequest(t, s, "GET", "/api/games", "", "")
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", ctx.Response.StatusCode())
	}
}

func TestCreateAndGetGame(t *testing.T) {
	s, _ := newTestServer(t)

	ctx := doRequest(t, s, "POST", "/api/games", "alice", `{"difficulty":3,"time_control":"blitz_5min"}`)
	if ctx.Response.StatusCode() != fasthttp.StatusCreated {
		t.Fatalf("create: %d %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	var created gamedto.GameView
	if err := json.Unmarshal(ctx.Response.Body(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != "ACTIVE" || created.Version != 1 || created.TimeLeftUserMs != 300000 {
		t.Fatalf("unexpected view: %+v", created)
	}

	ctx = doRequest(t, s, "GET", "/api/games/"+created.ID, "alice", "")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("get: %d", ctx.Response.StatusCode())
	}

	// Foreign owners see 404, not 403, so game IDs leak nothing.
	ctx = doRequest(t, s, "GET", "/api/games/"+created.ID, "mallory", "")
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("foreign get: %d", ctx.Response.StatusCode())
	}
}

func TestCreateGameValidationError(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := doRequest(t, s, "POST", "/api/games", "alice", `{"difficulty":42}`)
	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d", ctx.Response.StatusCode())
	}
	var body struct {
		Error gamedto.DomainError `json:"error"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != gamedto.CodeInvalidRequest {
		t.Fatalf("unexpected code: %+v", body.Error)
	}
}

func TestMoveRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	ctx := doRequest(t, s, "POST", "/api/games", "alice", `{"difficulty":2,"time_control":"none"}`)
	var created gamedto.GameView
	if err := json.Unmarshal(ctx.Response.Body(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	uri := fmt.Sprintf("/api/games/%s/moves", created.ID)
	ctx = doRequest(t, s, "POST", uri, "alice", `{"move":"e4"}`)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("move: %d %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	var res gamedto.MoveResponse
	if err := json.Unmarshal(ctx.Response.Body(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.UserSAN != "e4" || res.Game.Version != 2 {
		t.Fatalf("unexpected move response: %+v", res)
	}

	// Illegal move is a 400 with INVALID_MOVE.
	ctx = doRequest(t, s, "POST", uri, "alice", `{"move":"Ke5"}`)
	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("illegal move: %d", ctx.Response.StatusCode())
	}
}

func TestResignThenMoveConflict(t *testing.T) {
	s, _ := newTestServer(t)

	ctx := doRequest(t, s, "POST", "/api/games", "alice", `{"difficulty":2,"time_control":"none"}`)
	var created gamedto.GameView
	if err := json.Unmarshal(ctx.Response.Body(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	ctx = doRequest(t, s, "POST", "/api/games/"+created.ID+"/resign", "alice", "")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("resign: %d", ctx.Response.StatusCode())
	}
	var resigned gamedto.GameView
	if err := json.Unmarshal(ctx.Response.Body(), &resigned); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resigned.Status != "FINISHED" || resigned.Result != "RESIGNATION" {
		t.Fatalf("unexpected resign view: %+v", resigned)
	}

	ctx = doRequest(t, s, "POST", "/api/games/"+created.ID+"/moves", "alice", `{"move":"e4"}`)
	if ctx.Response.StatusCode() != fasthttp.StatusConflict {
		t.Fatalf("move on finished game: %d", ctx.Response.StatusCode())
	}
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := doRequest(t, s, "GET", "/api/other", "alice", "")
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", ctx.Response.StatusCode())
	}
	ctx = doRequest(t, s, "DELETE", "/api/games", "alice", "")
	if ctx.Response.StatusCode() != fasthttp.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", ctx.Response.StatusCode())
	}
}
