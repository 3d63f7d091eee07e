// Package position wraps the chess rules library behind the narrow
// contract the move coordinator needs: parse, legality, application,
// notation and terminal classification. All results are derived from
// immutable Position values; nothing here mutates shared state.
package position

import (
	"fmt"

	chess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"chesskit/internal/core"
)

// Terminal classifies a position that ends the game on its own,
// before repetition and move-count rules are layered on top.
type Terminal int

const (
	TerminalNone Terminal = iota
	TerminalCheckmate
	TerminalStalemate
	TerminalInsufficientMaterial
)

// Position is an immutable snapshot: the full FEN, the derived turn
// color and the legal moves of the side to move. Values are cheap to
// copy; the parsed library position is shared and never written to.
type Position struct {
	fen   string
	turn  core.Color
	pos   *chess.Position
	moves []chess.Move
}

func (p Position) FEN() string {
	return p.fen
}

func (p Position) Turn() core.Color {
	return p.turn
}

// HalfmoveClock returns the position's halfmove clock, the number of
// plies since the last capture or pawn move.
func (p Position) HalfmoveClock() int {
	if p.pos == nil {
		return 0
	}
	return p.pos.HalfMoveClock()
}

// LegalDestinations maps each origin square to its legal destination
// squares. The returned map is freshly built on every call.
func (p Position) LegalDestinations() map[string][]string {
	dests := make(map[string][]string)
	for i := range p.moves {
		m := p.moves[i]
		from := m.S1().String()
		to := m.S2().String()
		if !contains(dests[from], to) {
			dests[from] = append(dests[from], to)
		}
	}
	return dests
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Engine adapts github.com/corentings/chess/v2 to the coordinator's
// contract. It is stateless apart from the injected logger.
type Engine struct {
	log *zap.SugaredLogger
}

func NewEngine(log *zap.SugaredLogger) *Engine {
	return &Engine{log: log}
}

// Parse decodes a FEN string into a Position. Malformed input yields
// an error; the caller decides the fallback.
func (e *Engine) Parse(fen string) (Position, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return Position{}, fmt.Errorf("invalid FEN %q: %w", fen, err)
	}
	g := chess.NewGame(opt)
	pos := g.Position()
	return e.wrap(pos), nil
}

func (e *Engine) wrap(pos *chess.Position) Position {
	turn := core.ColorWhite
	if pos.Turn() == chess.Black {
		turn = core.ColorBlack
	}
	return Position{
		fen:   pos.String(),
		turn:  turn,
		pos:   pos,
		moves: pos.ValidMoves(),
	}
}

// moveForUCI returns the legal move matching the UCI string, or nil.
func (p Position) moveForUCI(uci string) *chess.Move {
	for i := range p.moves {
		m := p.moves[i]
		if (chess.UCINotation{}).Encode(p.pos, &m) == uci {
			return &m
		}
	}
	return nil
}

// IsLegal reports whether the UCI move is legal in the position.
func (e *Engine) IsLegal(p Position, uci string) bool {
	return p.moveForUCI(uci) != nil
}

// Apply plays a legal UCI move and returns the resulting Position.
// The caller must have checked IsLegal first.
func (e *Engine) Apply(p Position, uci string) (Position, error) {
	m := p.moveForUCI(uci)
	if m == nil {
		return Position{}, fmt.Errorf("move %q is not legal in %q", uci, p.fen)
	}
	next := p.pos.Update(m)
	if next == nil {
		return Position{}, fmt.Errorf("move %q could not be applied to %q", uci, p.fen)
	}
	return e.wrap(next), nil
}

// SAN renders the UCI move in algebraic notation. Notation failures
// are recovered by substituting the UCI string; the move still plays.
func (e *Engine) SAN(p Position, uci string) string {
	m := p.moveForUCI(uci)
	if m == nil {
		return uci
	}
	san := e.encodeSAN(p, m)
	if san == "" {
		if e.log != nil {
			e.log.Warnw("san encoding produced no output, using uci",
				"uci", uci, "fen", p.fen)
		}
		return uci
	}
	return san
}

func (e *Engine) encodeSAN(p Position, m *chess.Move) (san string) {
	defer func() {
		if r := recover(); r != nil {
			if e.log != nil {
				e.log.Warnw("san encoding failed, using uci",
					"fen", p.fen, "panic", r)
			}
			san = ""
		}
	}()
	return chess.AlgebraicNotation{}.Encode(p.pos, m)
}

// TerminalStatus classifies checkmate, stalemate and insufficient
// material. Draw rules that depend on game history (repetition,
// fifty-move) live in the coordinator.
func (e *Engine) TerminalStatus(p Position) Terminal {
	switch p.pos.Status() {
	case chess.Checkmate:
		return TerminalCheckmate
	case chess.Stalemate:
		return TerminalStalemate
	}
	if insufficientMaterial(p.pos) {
		return TerminalInsufficientMaterial
	}
	return TerminalNone
}

// InCheck reports whether the side to move is in check. The library
// keeps its check flag private, so this scans attacks on the mover's
// king square directly. A legal-move scan would miss pinned attackers:
// a pinned piece cannot move, but it still gives check.
func (e *Engine) InCheck(p Position) bool {
	mover := chess.White
	attacker := chess.Black
	if p.turn == core.ColorBlack {
		mover = chess.Black
		attacker = chess.White
	}
	kingSq, ok := kingSquare(p.pos, mover)
	if !ok {
		return false
	}
	return squareAttacked(p.pos, kingSq, attacker)
}

// squareAttacked reports whether any piece of the given color attacks
// the square. Board indexing: a1 = 0, file = sq%8, rank = sq/8.
func squareAttacked(pos *chess.Position, sq chess.Square, by chess.Color) bool {
	file := int(sq) % 8
	rank := int(sq) / 8

	pieceAt := func(f, r int) chess.Piece {
		if f < 0 || f > 7 || r < 0 || r > 7 {
			return chess.NoPiece
		}
		return pos.Board().Piece(chess.Square(r*8 + f))
	}
	isAttacker := func(piece chess.Piece, types ...chess.PieceType) bool {
		if piece == chess.NoPiece || piece.Color() != by {
			return false
		}
		for _, t := range types {
			if piece.Type() == t {
				return true
			}
		}
		return false
	}

	// Pawns capture toward the enemy: white from below, black from above.
	pawnRank := rank - 1
	if by == chess.Black {
		pawnRank = rank + 1
	}
	if isAttacker(pieceAt(file-1, pawnRank), chess.Pawn) ||
		isAttacker(pieceAt(file+1, pawnRank), chess.Pawn) {
		return true
	}

	knightJumps := [8][2]int{
		{1, 2}, {2, 1}, {2, -1}, {1, -2},
		{-1, -2}, {-2, -1}, {-2, 1}, {-1, 2},
	}
	for _, d := range knightJumps {
		if isAttacker(pieceAt(file+d[0], rank+d[1]), chess.Knight) {
			return true
		}
	}

	kingSteps := [8][2]int{
		{1, 0}, {1, 1}, {0, 1}, {-1, 1},
		{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	}
	for _, d := range kingSteps {
		if isAttacker(pieceAt(file+d[0], rank+d[1]), chess.King) {
			return true
		}
	}

	straight := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for _, d := range straight {
		for f, r := file+d[0], rank+d[1]; f >= 0 && f <= 7 && r >= 0 && r <= 7; f, r = f+d[0], r+d[1] {
			piece := pieceAt(f, r)
			if piece == chess.NoPiece {
				continue
			}
			if isAttacker(piece, chess.Rook, chess.Queen) {
				return true
			}
			break
		}
	}

	diagonal := [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	for _, d := range diagonal {
		for f, r := file+d[0], rank+d[1]; f >= 0 && f <= 7 && r >= 0 && r <= 7; f, r = f+d[0], r+d[1] {
			piece := pieceAt(f, r)
			if piece == chess.NoPiece {
				continue
			}
			if isAttacker(piece, chess.Bishop, chess.Queen) {
				return true
			}
			break
		}
	}

	return false
}

func kingSquare(pos *chess.Position, color chess.Color) (chess.Square, bool) {
	for i := 0; i < 64; i++ {
		sq := chess.Square(i)
		piece := pos.Board().Piece(sq)
		if piece != chess.NoPiece && piece.Type() == chess.King && piece.Color() == color {
			return sq, true
		}
	}
	return 0, false
}

// insufficientMaterial holds for K vs K, K+minor vs K, and bishops
// only with every bishop on the same square color.
func insufficientMaterial(pos *chess.Position) bool {
	knights := 0
	bishops := 0
	bishopSquareColor := -1
	sameColorBishops := true

	for i := 0; i < 64; i++ {
		sq := chess.Square(i)
		piece := pos.Board().Piece(sq)
		if piece == chess.NoPiece {
			continue
		}
		switch piece.Type() {
		case chess.King:
		case chess.Knight:
			knights++
		case chess.Bishop:
			bishops++
			sc := (i/8 + i%8) % 2
			if bishopSquareColor == -1 {
				bishopSquareColor = sc
			} else if sc != bishopSquareColor {
				sameColorBishops = false
			}
		default:
			// pawn, rook or queen: mate remains possible
			return false
		}
	}

	if knights+bishops <= 1 {
		return true
	}
	return knights == 0 && sameColorBishops
}

// RequiresPromotionChoice reports whether a move from origin to dest
// needs a promotion role before it can be played: true iff some legal
// move between the squares carries a promotion piece.
func (e *Engine) RequiresPromotionChoice(p Position, origin, dest string) bool {
	for i := range p.moves {
		m := p.moves[i]
		if m.S1().String() != origin || m.S2().String() != dest {
			continue
		}
		if len(chess.UCINotation{}.Encode(p.pos, &m)) == 5 {
			return true
		}
	}
	return false
}
