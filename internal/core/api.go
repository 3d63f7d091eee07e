package core

// Request types

type CreateSessionRequest struct {
	FEN          string `json:"fen,omitempty" validate:"omitempty,max=100"`
	FreeAnalysis bool   `json:"freeAnalysis,omitempty"`
}

type MoveRequest struct {
	Origin string `json:"origin" validate:"required,len=2"`
	Dest   string `json:"dest" validate:"required,len=2"`
}

type SystemMoveRequest struct {
	UCI string `json:"uci" validate:"required,min=4,max=5"`
}

type PromotionRequest struct {
	Role   string `json:"role,omitempty" validate:"omitempty,len=1,oneof=q r b n"`
	Cancel bool   `json:"cancel,omitempty"`
}

type NavigateRequest struct {
	Target    string `json:"target" validate:"required,oneof=path ply back forward start end"`
	Path      string `json:"path,omitempty" validate:"omitempty,max=200"`
	Ply       int    `json:"ply,omitempty" validate:"omitempty,min=0,max=1000"`
	Variation int    `json:"variation,omitempty" validate:"omitempty,min=0,max=50"`
}

type PromoteVariationRequest struct {
	NodeID int `json:"nodeId" validate:"min=1"`
}

type ResultRequest struct {
	Result string `json:"result" validate:"required,oneof=1-0 0-1 1/2-1/2 *"`
}

// Response types

type VariationInfo struct {
	NodeID     int    `json:"nodeId"`
	SAN        string `json:"san"`
	UCI        string `json:"uci"`
	IsMainline bool   `json:"isMainline"`
}

type SessionResponse struct {
	SessionID    string              `json:"sessionId"`
	FEN          string              `json:"fen"`
	Path         string              `json:"path"`
	Ply          int                 `json:"ply"`
	Status       GameStatus          `json:"status"`
	Result       string              `json:"result"`
	CanForward   bool                `json:"canForward"`
	CanBackward  bool                `json:"canBackward"`
	LegalMoves   map[string][]string `json:"legalMoves"`
	Variations   []VariationInfo     `json:"variations,omitempty"`
	FreeAnalysis bool                `json:"freeAnalysis,omitempty"`
	LastMove     *MoveInfo           `json:"lastMove,omitempty"`
}

type MoveInfo struct {
	UCI         string `json:"uci"`
	SAN         string `json:"san"`
	IsVariation bool   `json:"isVariation"`
}

type PGNResponse struct {
	SessionID string `json:"sessionId"`
	PGN       string `json:"pgn"`
}

type BoardResponse struct {
	FEN   string `json:"fen"`
	Board string `json:"board"` // ASCII representation
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
