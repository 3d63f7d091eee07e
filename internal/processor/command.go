package processor

import (
	"chesskit/internal/core"
)

// CommandType defines the type of command being executed
type CommandType int

const (
	CmdCreateSession CommandType = iota
	CmdGetSession
	CmdDeleteSession
	CmdMove
	CmdSystemMove
	CmdResolvePromotion
	CmdNavigate
	CmdUndo
	CmdPromoteVariation
	CmdSetResult
	CmdGetPGN
	CmdGetBoard
)

// Command is a unified structure for all processor operations
type Command struct {
	Type      CommandType
	SessionID string // For session-specific commands
	Args      any    // Command-specific arguments
}

// ProcessorResponse wraps the response with metadata. Pending means
// the command suspended rather than committed: the session is waiting
// for a promotion choice.
type ProcessorResponse struct {
	Success bool                `json:"success"`
	Pending bool                `json:"pending,omitempty"`
	Data    any                 `json:"data,omitempty"`
	Error   *core.ErrorResponse `json:"error,omitempty"`
}

func NewCreateSessionCommand(req core.CreateSessionRequest) Command {
	return Command{
		Type: CmdCreateSession,
		Args: req,
	}
}

func NewGetSessionCommand(sessionID string) Command {
	return Command{
		Type:      CmdGetSession,
		SessionID: sessionID,
	}
}

func NewDeleteSessionCommand(sessionID string) Command {
	return Command{
		Type:      CmdDeleteSession,
		SessionID: sessionID,
	}
}

func NewMoveCommand(sessionID string, req core.MoveRequest) Command {
	return Command{
		Type:      CmdMove,
		SessionID: sessionID,
		Args:      req,
	}
}

func NewSystemMoveCommand(sessionID string, req core.SystemMoveRequest) Command {
	return Command{
		Type:      CmdSystemMove,
		SessionID: sessionID,
		Args:      req,
	}
}

func NewResolvePromotionCommand(sessionID string, req core.PromotionRequest) Command {
	return Command{
		Type:      CmdResolvePromotion,
		SessionID: sessionID,
		Args:      req,
	}
}

func NewNavigateCommand(sessionID string, req core.NavigateRequest) Command {
	return Command{
		Type:      CmdNavigate,
		SessionID: sessionID,
		Args:      req,
	}
}

func NewUndoCommand(sessionID string) Command {
	return Command{
		Type:      CmdUndo,
		SessionID: sessionID,
	}
}

func NewPromoteVariationCommand(sessionID string, req core.PromoteVariationRequest) Command {
	return Command{
		Type:      CmdPromoteVariation,
		SessionID: sessionID,
		Args:      req,
	}
}

func NewSetResultCommand(sessionID string, req core.ResultRequest) Command {
	return Command{
		Type:      CmdSetResult,
		SessionID: sessionID,
		Args:      req,
	}
}

func NewGetPGNCommand(sessionID string) Command {
	return Command{
		Type:      CmdGetPGN,
		SessionID: sessionID,
	}
}

func NewGetBoardCommand(sessionID string) Command {
	return Command{
		Type:      CmdGetBoard,
		SessionID: sessionID,
	}
}
