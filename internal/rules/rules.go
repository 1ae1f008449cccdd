// Package rules adapts the corentings/chess library to the narrow
// surface the session manager needs: replaying a stored move list,
// applying one move, and answering turn/terminal queries. Chess
// legality itself is fully delegated to the library.
package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Color identifies a side to move.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// TerminalReason mirrors the library's outcome methods in a transport
// friendly form.
type TerminalReason string

const (
	ReasonCheckmate            TerminalReason = "checkmate"
	ReasonStalemate            TerminalReason = "stalemate"
	ReasonThreefoldRepetition  TerminalReason = "threefold_repetition"
	ReasonFiftyMoveRule        TerminalReason = "fifty_move_rule"
	ReasonInsufficientMaterial TerminalReason = "insufficient_material"
	ReasonResignation          TerminalReason = "resignation"
	ReasonDraw                 TerminalReason = "draw"
)

// Outcome describes a finished position.
type Outcome struct {
	Winner Color // empty on draws
	Reason TerminalReason
}

// MoveInfo reports one applied move in both notations plus the
// resulting position.
type MoveInfo struct {
	SAN string
	UCI string
	FEN string
}

// Game wraps a replayed position. It is not safe for concurrent use;
// the session manager builds one per request.
type Game struct {
	inner *nchess.Game
}

// Replay reconstructs a game from the stored UCI move history, always
// starting from the initial position. Stored FEN is presentation state
// only; replaying from the start keeps repetition and fifty-move
// counters correct.
func Replay(history []string) (*Game, error) {
	game := nchess.NewGame()
	notation := nchess.UCINotation{}
	for _, mv := range history {
		move, err := notation.Decode(game.Position(), strings.ToLower(strings.TrimSpace(mv)))
		if err != nil {
			return nil, fmt.Errorf("decode move %s: %w", mv, err)
		}
		if err := game.Move(move, nil); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", mv, err)
		}
	}
	return &Game{inner: game}, nil
}

// ValidFEN reports whether the text parses as a position.
func ValidFEN(fen string) bool {
	if strings.TrimSpace(fen) == "" {
		return false
	}
	_, err := nchess.FEN(fen)
	return err == nil
}

// Turn returns the side to move.
func (g *Game) Turn() Color {
	if g.inner.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

// FEN renders the current position.
func (g *Game) FEN() string {
	return g.inner.FEN()
}

// History returns the applied moves in UCI form.
func (g *Game) History() []string {
	moves := g.inner.Moves()
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		out = append(out, mv.String())
	}
	return out
}

// Apply decodes the input as SAN first and lowercase UCI second, the
// same acceptance order the move commands have always had, and plays it.
func (g *Game) Apply(input string) (MoveInfo, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return MoveInfo{}, fmt.Errorf("empty move")
	}

	pos := g.inner.Position()
	notationSAN := nchess.AlgebraicNotation{}
	notationUCI := nchess.UCINotation{}

	move, err := notationSAN.Decode(pos, text)
	if err != nil {
		move, err = notationUCI.Decode(pos, strings.ToLower(text))
		if err != nil {
			return MoveInfo{}, fmt.Errorf("move %q not legal in position: %w", input, err)
		}
	}
	if err := g.inner.Move(move, nil); err != nil {
		return MoveInfo{}, fmt.Errorf("move %q rejected: %w", input, err)
	}

	return MoveInfo{
		SAN: notationSAN.Encode(pos, move),
		UCI: strings.ToLower(notationUCI.Encode(pos, move)),
		FEN: g.inner.FEN(),
	}, nil
}

// Resign ends the game in favor of the opponent of the given side.
func (g *Game) Resign(side Color) {
	if side == White {
		g.inner.Resign(nchess.White)
		return
	}
	g.inner.Resign(nchess.Black)
}

// Terminal reports whether the position has ended and why. Claimable
// draws (threefold repetition, fifty-move rule) are claimed on behalf
// of both players; the server ends such games rather than waiting for
// a claim.
func (g *Game) Terminal() (Outcome, bool) {
	if g.inner.Outcome() == nchess.NoOutcome {
		for _, method := range g.inner.EligibleDraws() {
			if method == nchess.ThreefoldRepetition || method == nchess.FiftyMoveRule {
				if err := g.inner.Draw(method); err == nil {
					break
				}
			}
		}
	}

	outcome := g.inner.Outcome()
	if outcome == nchess.NoOutcome {
		return Outcome{}, false
	}

	result := Outcome{Reason: mapMethod(g.inner.Method())}
	switch outcome {
	case nchess.WhiteWon:
		result.Winner = White
	case nchess.BlackWon:
		result.Winner = Black
	}
	return result, true
}

func mapMethod(method nchess.Method) TerminalReason {
	switch method {
	case nchess.Checkmate:
		return ReasonCheckmate
	case nchess.Stalemate:
		return ReasonStalemate
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return ReasonThreefoldRepetition
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		return ReasonFiftyMoveRule
	case nchess.InsufficientMaterial:
		return ReasonInsufficientMaterial
	case nchess.Resignation:
		return ReasonResignation
	default:
		return ReasonDraw
	}
}
