// Package uci drives one engine process over the UCI text protocol.
// The protocol is strictly sequential (one search per process at a
// time), so every Search runs inside a FIFO critical section.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"chessmate/internal/rules"
	"chessmate/internal/syncx"
)

const (
	defaultReadyTimeout = 4 * time.Second
	searchTimeoutBuffer = 2 * time.Second

	// MinDepth and MaxDepth bound the search depth accepted from callers.
	MinDepth = 1
	MaxDepth = 30
)

var (
	// ErrNotReady is returned by Search before a successful Initialize
	// or after Close.
	ErrNotReady = errors.New("uci: session not initialized")
	// ErrNoMove is returned when the engine reports no legal move.
	ErrNoMove = errors.New("uci: engine returned no move")
	// ErrAnalysisTimeout is returned when the wall-clock budget elapses
	// before a bestmove token arrives. The in-flight search is stopped.
	ErrAnalysisTimeout = errors.New("uci: analysis timed out")
)

// SearchRequest describes one best-move query. Either Depth or MoveTime
// (or both) must be set.
type SearchRequest struct {
	FEN        string
	Moves      []string
	Depth      int
	MoveTime   time.Duration
	SkillLevel int // 0-20, applied per search; <0 leaves the engine default
}

// SearchResult carries the terminal bestmove token.
type SearchResult struct {
	BestMove string
	Depth    int
}

// Session owns one engine subprocess. Initialize and Close are
// idempotent; Search is serialized in FIFO order.
//
// A single goroutine owns the process stdout for its whole lifetime and
// feeds lines into the lines channel. A caller that gives up on a
// search abandons the line, never the reader, so the process stays
// usable after a timeout.
type Session struct {
	binaryPath string

	// search serializes protocol exchanges; the process cannot handle
	// more than one request/response pair at once.
	search syncx.Mutex

	mu          sync.Mutex
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	lines       chan string
	initialized bool
	closed      bool
	// bestmove tokens owed by aborted searches, skipped by the next
	// reader instead of being mistaken for its answer.
	staleBestmoves int
}

// NewSession prepares a session without spawning the process; the
// handshake happens in Initialize.
func NewSession(binaryPath string) *Session {
	return &Session{binaryPath: binaryPath}
}

// Initialize spawns the engine process and completes the uci/isready
// handshake. Calling it on an initialized session is a no-op.
func (s *Session) Initialize(ctx context.Context) error {
	s.search.Lock()
	defer s.search.Unlock()

	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("initialize engine: session closed")
	}
	s.mu.Unlock()

	if _, err := os.Stat(s.binaryPath); err != nil {
		return fmt.Errorf("initialize engine: binary check: %w", err)
	}

	cmd := exec.Command(s.binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("initialize engine: stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("initialize engine: stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return fmt.Errorf("initialize engine: start: %w", err)
	}

	lines := make(chan string, 64)
	go readLoop(bufio.NewReader(stdoutPipe), lines)

	s.mu.Lock()
	s.cmd = cmd
	s.stdin = stdin
	s.lines = lines
	s.mu.Unlock()

	if err := s.handshake(ctx); err != nil {
		s.teardown()
		return fmt.Errorf("initialize engine: %w", err)
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	return nil
}

func (s *Session) handshake(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	if err := s.send("setoption name Threads value 1\nsetoption name Move Overhead value 100\n"); err != nil {
		return fmt.Errorf("apply options: %w", err)
	}
	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// Search runs one best-move query. Requests are answered in the order
// they arrive; a request that times out stops the search and leaves the
// process usable for the next caller.
func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if err := validateRequest(req); err != nil {
		return SearchResult{}, err
	}

	s.search.Lock()
	defer s.search.Unlock()

	s.mu.Lock()
	ready := s.initialized && !s.closed
	s.mu.Unlock()
	if !ready {
		return SearchResult{}, ErrNotReady
	}

	s.flushPending()

	if req.SkillLevel >= 0 {
		if err := s.send(fmt.Sprintf("setoption name Skill Level value %d\n", req.SkillLevel)); err != nil {
			return SearchResult{}, fmt.Errorf("set skill: %w", err)
		}
	}
	if err := s.send(buildPositionCommand(req.FEN, req.Moves)); err != nil {
		return SearchResult{}, fmt.Errorf("send position: %w", err)
	}
	goCmd := buildGoCommand(req)
	if err := s.send(goCmd + "\n"); err != nil {
		return SearchResult{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchBudget(req))
	defer cancel()

	depthSeen := 0
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			// Abort the in-flight search so the process is reusable.
			// The bestmove the engine still owes for this search is
			// accounted for and skipped by the next reader.
			_ = s.send("stop\n")
			s.mu.Lock()
			s.staleBestmoves++
			s.mu.Unlock()
			if errors.Is(err, context.DeadlineExceeded) {
				return SearchResult{}, fmt.Errorf("%w after %s", ErrAnalysisTimeout, searchBudget(req))
			}
			return SearchResult{}, fmt.Errorf("read engine output: %w", err)
		}
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "info "):
			if d, ok := parseDepth(line); ok && d > depthSeen {
				depthSeen = d
			}
		case strings.HasPrefix(line, "bestmove"):
			if s.skipStale() {
				depthSeen = 0
				continue
			}
			parts := strings.Fields(line)
			if len(parts) < 2 || parts[1] == "(none)" {
				return SearchResult{}, ErrNoMove
			}
			return SearchResult{BestMove: strings.ToLower(parts[1]), Depth: depthSeen}, nil
		}
	}
}

// Close tears the process down. Safe to call repeatedly and before
// Initialize.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.initialized = false
	s.mu.Unlock()

	s.teardown()
	return nil
}

func (s *Session) teardown() {
	s.mu.Lock()
	stdin := s.stdin
	cmd := s.cmd
	lines := s.lines
	s.stdin = nil
	s.cmd = nil
	s.lines = nil
	s.initialized = false
	s.staleBestmoves = 0
	s.mu.Unlock()

	if stdin != nil {
		_, _ = io.WriteString(stdin, "quit\n")
		stdin.Close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	// Unblock the reader so it can observe the closed pipe and exit.
	if lines != nil {
		go func() {
			for range lines {
			}
		}()
	}
}

func validateRequest(req SearchRequest) error {
	if fen := strings.TrimSpace(req.FEN); fen != "" && fen != "startpos" && !rules.ValidFEN(fen) {
		return fmt.Errorf("invalid position %q", req.FEN)
	}
	if req.Depth == 0 && req.MoveTime <= 0 {
		return fmt.Errorf("no search limits specified")
	}
	if req.Depth != 0 && (req.Depth < MinDepth || req.Depth > MaxDepth) {
		return fmt.Errorf("depth %d out of range %d-%d", req.Depth, MinDepth, MaxDepth)
	}
	if req.SkillLevel > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", req.SkillLevel)
	}
	return nil
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

func buildGoCommand(req SearchRequest) string {
	args := []string{"go"}
	if req.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(req.Depth))
	}
	if req.MoveTime > 0 {
		args = append(args, "movetime", strconv.Itoa(int(req.MoveTime.Milliseconds())))
	}
	return strings.Join(args, " ")
}

func searchBudget(req SearchRequest) time.Duration {
	if req.MoveTime > 0 {
		return req.MoveTime + searchTimeoutBuffer
	}
	base := time.Duration(req.Depth) * 300 * time.Millisecond
	if base < 6*time.Second {
		base = 6 * time.Second
	}
	if base > 20*time.Second {
		base = 20 * time.Second
	}
	return base
}

func parseDepth(line string) (int, bool) {
	parts := strings.Fields(line)
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "depth" {
			if v, err := strconv.Atoi(parts[i+1]); err == nil {
				return v, true
			}
			return 0, false
		}
	}
	return 0, false
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()
	if stdin == nil {
		return ErrNotReady
	}
	_, err := io.WriteString(stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

// readLoop is the only reader of the process stdout. It runs from
// Initialize until the pipe closes and closes lines on exit.
func readLoop(r *bufio.Reader, lines chan<- string) {
	defer close(lines)
	for {
		line, err := r.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines <- trimmed
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	s.mu.Lock()
	lines := s.lines
	s.mu.Unlock()
	if lines == nil {
		return "", ErrNotReady
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

// flushPending discards output already buffered from earlier,
// abandoned exchanges so a fresh search starts from a clean stream.
func (s *Session) flushPending() {
	s.mu.Lock()
	lines := s.lines
	s.mu.Unlock()
	if lines == nil {
		return
	}
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.HasPrefix(line, "bestmove") {
				s.skipStale()
			}
		default:
			return
		}
	}
}

// skipStale reports whether a bestmove token belongs to an aborted
// search and consumes one owed token if so.
func (s *Session) skipStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleBestmoves > 0 {
		s.staleBestmoves--
		return true
	}
	return false
}
