package core

// Error codes returned to API clients
const (
	ErrSessionNotFound   = "SESSION_NOT_FOUND"
	ErrIllegalMove       = "ILLEGAL_MOVE"
	ErrGameOver          = "GAME_OVER"
	ErrPromotionPending  = "PROMOTION_PENDING"
	ErrNoPromotion       = "NO_PROMOTION_PENDING"
	ErrInvalidNavigation = "INVALID_NAVIGATION"
	ErrRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrInvalidContent    = "INVALID_CONTENT_TYPE"
	ErrInvalidRequest    = "INVALID_REQUEST"
	ErrInvalidFEN        = "INVALID_FEN"
	ErrInternalError     = "INTERNAL_ERROR"
)
