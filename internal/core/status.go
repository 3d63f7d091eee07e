package core

// Reason explains why a game ended.
type Reason string

const (
	ReasonCheckmate            Reason = "checkmate"
	ReasonStalemate            Reason = "stalemate"
	ReasonInsufficientMaterial Reason = "insufficient_material"
	ReasonThreefoldRepetition  Reason = "threefold_repetition"
	ReasonFiftyMoveRule        Reason = "fifty_move_rule"
)

// Outcome is present on GameStatus only when the game is over.
// Winner is empty for draws.
type Outcome struct {
	Winner string `json:"winner,omitempty"` // "w" or "b"
	Reason Reason `json:"reason"`
}

// GameStatus is derived from the live position and the current line;
// it is recomputed on demand and never stored in the tree.
type GameStatus struct {
	IsGameOver bool     `json:"isGameOver"`
	Outcome    *Outcome `json:"outcome,omitempty"`
	IsCheck    bool     `json:"isCheck"`
	Turn       string   `json:"turn"` // "w" or "b"
}

// ResultToken maps a terminal status to its PGN result token.
func (s GameStatus) ResultToken() Result {
	if !s.IsGameOver || s.Outcome == nil {
		return ResultOngoing
	}
	switch s.Outcome.Winner {
	case ColorWhite.String():
		return ResultWhiteWins
	case ColorBlack.String():
		return ResultBlackWins
	}
	return ResultDraw
}
