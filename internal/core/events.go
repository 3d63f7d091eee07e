package core

// Event is published by a move coordinator after a structural change
// (MoveMade) or a cursor change (PgnNavigated). Subscribers receive
// snapshots only; they never get access to the tree itself.
type Event interface {
	Kind() string
}

// MoveMade is published after a move commits to the game tree.
type MoveMade struct {
	NewNodePath string     `json:"newNodePath"`
	NewFEN      string     `json:"newFen"`
	UCIMove     string     `json:"uciMove"`
	SANMove     string     `json:"sanMove"`
	IsVariation bool       `json:"isVariation"`
	Status      GameStatus `json:"status"`
}

func (MoveMade) Kind() string { return "move_made" }

// PgnNavigated is published on any cursor movement without structural change.
type PgnNavigated struct {
	CurrentNodePath string `json:"currentNodePath"`
	CurrentFEN      string `json:"currentFen"`
	Ply             int    `json:"ply"`
}

func (PgnNavigated) Kind() string { return "pgn_navigated" }
