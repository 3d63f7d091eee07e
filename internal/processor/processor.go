// Package processor translates transport-agnostic commands into
// coordinator calls. Every frontend (HTTP, websocket, CLI) funnels
// through Execute, so input sanitation and outcome-to-error mapping
// live here in one place.
package processor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"chesskit/internal/board"
	"chesskit/internal/core"
	"chesskit/internal/service"
	"chesskit/internal/session"
	"chesskit/internal/tree"
)

// FEN validation regex
var fenPattern = regexp.MustCompile(`^[rnbqkpRNBQKP1-8/]+ [wb] [KQkq-]+ [a-h1-8-]+ \d+ \d+$`)

// Processor handles command execution against the session service
type Processor struct {
	svc *service.Service
	log *zap.SugaredLogger
}

// New creates a processor
func New(log *zap.SugaredLogger, svc *service.Service) *Processor {
	return &Processor{
		svc: svc,
		log: log,
	}
}

func (p *Processor) Execute(cmd Command) ProcessorResponse {
	switch cmd.Type {
	case CmdCreateSession:
		return p.handleCreateSession(cmd)
	case CmdGetSession:
		return p.handleGetSession(cmd)
	case CmdDeleteSession:
		return p.handleDeleteSession(cmd)
	case CmdMove:
		return p.handleMove(cmd)
	case CmdSystemMove:
		return p.handleSystemMove(cmd)
	case CmdResolvePromotion:
		return p.handleResolvePromotion(cmd)
	case CmdNavigate:
		return p.handleNavigate(cmd)
	case CmdUndo:
		return p.handleUndo(cmd)
	case CmdPromoteVariation:
		return p.handlePromoteVariation(cmd)
	case CmdSetResult:
		return p.handleSetResult(cmd)
	case CmdGetPGN:
		return p.handleGetPGN(cmd)
	case CmdGetBoard:
		return p.handleGetBoard(cmd)
	default:
		return p.errorResponse("unknown command", core.ErrInvalidRequest)
	}
}

// isFENSafe checks for control characters and FEN pattern match
func (p *Processor) isFENSafe(fen string) bool {
	for _, r := range fen {
		if unicode.IsControl(r) && r != ' ' {
			return false
		}
	}
	return fenPattern.MatchString(fen)
}

// isSquareSafe validates a board coordinate like "e2"
func (p *Processor) isSquareSafe(sq string) bool {
	if len(sq) != 2 {
		return false
	}
	return sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}

// isMoveSafe validates a UCI move string
func (p *Processor) isMoveSafe(move string) bool {
	for _, r := range move {
		if unicode.IsControl(r) {
			return false
		}
	}

	// UCI moves: [a-h][1-8][a-h][1-8][qrbn]?
	// Examples: e2e4 / e1g1 (castle) / a7a8q (promotion)
	if len(move) < 4 || len(move) > 5 {
		return false
	}

	if !p.isSquareSafe(move[:2]) || !p.isSquareSafe(move[2:4]) {
		return false
	}

	if len(move) == 5 {
		promotion := move[4]
		if promotion != 'q' && promotion != 'r' && promotion != 'b' && promotion != 'n' {
			return false
		}
	}

	return true
}

// handleCreateSession starts a new session
func (p *Processor) handleCreateSession(cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.CreateSessionRequest)
	if !ok {
		return p.errorResponse("invalid arguments", core.ErrInvalidRequest)
	}

	if args.FEN != "" && !p.isFENSafe(args.FEN) {
		return p.errorResponse("invalid FEN format or characters", core.ErrInvalidFEN)
	}

	sess := p.svc.CreateSession(args.FEN, args.FreeAnalysis)

	return ProcessorResponse{
		Success: true,
		Data:    p.buildSessionResponse(sess, nil),
	}
}

// handleGetSession retrieves session state
func (p *Processor) handleGetSession(cmd Command) ProcessorResponse {
	sess, err := p.svc.GetSession(cmd.SessionID)
	if err != nil {
		return p.errorResponse("session not found", core.ErrSessionNotFound)
	}

	return ProcessorResponse{
		Success: true,
		Data:    p.buildSessionResponse(sess, nil),
	}
}

// handleDeleteSession removes a session
func (p *Processor) handleDeleteSession(cmd Command) ProcessorResponse {
	if err := p.svc.DeleteSession(cmd.SessionID); err != nil {
		return p.errorResponse("session not found", core.ErrSessionNotFound)
	}

	return ProcessorResponse{
		Success: true,
	}
}

// handleMove processes a user move intent between two squares
func (p *Processor) handleMove(cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.MoveRequest)
	if !ok {
		return p.errorResponse("invalid arguments", core.ErrInvalidRequest)
	}

	sess, err := p.svc.GetSession(cmd.SessionID)
	if err != nil {
		return p.errorResponse("session not found", core.ErrSessionNotFound)
	}

	origin := strings.ToLower(strings.TrimSpace(args.Origin))
	dest := strings.ToLower(strings.TrimSpace(args.Dest))
	if !p.isSquareSafe(origin) || !p.isSquareSafe(dest) {
		return p.errorResponse("invalid square coordinates", core.ErrInvalidRequest)
	}

	out := sess.Coord.AttemptMove(origin, dest)
	return p.moveOutcomeResponse(sess, out)
}

// handleSystemMove applies a full UCI move, bypassing promotion choice
func (p *Processor) handleSystemMove(cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.SystemMoveRequest)
	if !ok {
		return p.errorResponse("invalid arguments", core.ErrInvalidRequest)
	}

	sess, err := p.svc.GetSession(cmd.SessionID)
	if err != nil {
		return p.errorResponse("session not found", core.ErrSessionNotFound)
	}

	move := strings.ToLower(strings.TrimSpace(args.UCI))
	if !p.isMoveSafe(move) {
		return p.errorResponse("invalid move format", core.ErrInvalidRequest)
	}

	out := sess.Coord.ApplySystemMove(move)
	return p.moveOutcomeResponse(sess, out)
}

// handleResolvePromotion completes or cancels a suspended promotion
func (p *Processor) handleResolvePromotion(cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.PromotionRequest)
	if !ok {
		return p.errorResponse("invalid arguments", core.ErrInvalidRequest)
	}

	sess, err := p.svc.GetSession(cmd.SessionID)
	if err != nil {
		return p.errorResponse("session not found", core.ErrSessionNotFound)
	}

	if args.Cancel {
		out, err := sess.Coord.CancelPromotion()
		if err != nil {
			return p.errorResponse("no promotion pending", core.ErrNoPromotion)
		}
		resp := p.buildSessionResponse(sess, &out)
		return ProcessorResponse{
			Success: true,
			Data:    resp,
		}
	}

	role, err := core.ParsePromotionRole(args.Role)
	if err != nil {
		return p.errorResponse("invalid promotion role", core.ErrInvalidRequest)
	}

	out, err := sess.Coord.ChoosePromotion(role)
	if err != nil {
		return p.errorResponse("no promotion pending", core.ErrNoPromotion)
	}
	return p.moveOutcomeResponse(sess, out)
}

// handleNavigate moves the cursor through the game tree
func (p *Processor) handleNavigate(cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.NavigateRequest)
	if !ok {
		return p.errorResponse("invalid arguments", core.ErrInvalidRequest)
	}

	sess, err := p.svc.GetSession(cmd.SessionID)
	if err != nil {
		return p.errorResponse("session not found", core.ErrSessionNotFound)
	}

	var moved bool
	switch args.Target {
	case "path":
		path, perr := tree.ParsePath(args.Path)
		if perr != nil {
			return p.errorResponse("invalid path", core.ErrInvalidNavigation)
		}
		moved = sess.Coord.NavigateToPath(path)
	case "ply":
		moved = sess.Coord.NavigateToPly(args.Ply)
	case "back":
		moved = sess.Coord.NavigateBackward()
	case "forward":
		moved = sess.Coord.NavigateForward(args.Variation)
	case "start":
		moved = sess.Coord.NavigateToStart()
	case "end":
		moved = sess.Coord.NavigateToEnd()
	default:
		return p.errorResponse("unknown navigation target", core.ErrInvalidRequest)
	}

	if !moved {
		return p.errorResponse("navigation target not reachable", core.ErrInvalidNavigation)
	}

	return ProcessorResponse{
		Success: true,
		Data:    p.buildSessionResponse(sess, nil),
	}
}

// handleUndo removes the current node and its subtree
func (p *Processor) handleUndo(cmd Command) ProcessorResponse {
	sess, err := p.svc.GetSession(cmd.SessionID)
	if err != nil {
		return p.errorResponse("session not found", core.ErrSessionNotFound)
	}

	if err := sess.Coord.UndoLastMove(); err != nil {
		return p.errorResponse(err.Error(), core.ErrInvalidNavigation)
	}

	return ProcessorResponse{
		Success: true,
		Data:    p.buildSessionResponse(sess, nil),
	}
}

// handlePromoteVariation makes the given node's line the mainline
func (p *Processor) handlePromoteVariation(cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.PromoteVariationRequest)
	if !ok {
		return p.errorResponse("invalid arguments", core.ErrInvalidRequest)
	}

	sess, err := p.svc.GetSession(cmd.SessionID)
	if err != nil {
		return p.errorResponse("session not found", core.ErrSessionNotFound)
	}

	if err := sess.Coord.PromoteVariation(tree.NodeID(args.NodeID)); err != nil {
		return p.errorResponse(err.Error(), core.ErrInvalidNavigation)
	}

	return ProcessorResponse{
		Success: true,
		Data:    p.buildSessionResponse(sess, nil),
	}
}

// handleSetResult records a manual game result
func (p *Processor) handleSetResult(cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.ResultRequest)
	if !ok {
		return p.errorResponse("invalid arguments", core.ErrInvalidRequest)
	}

	sess, err := p.svc.GetSession(cmd.SessionID)
	if err != nil {
		return p.errorResponse("session not found", core.ErrSessionNotFound)
	}

	result, err := core.ParseResult(args.Result)
	if err != nil {
		return p.errorResponse("invalid result token", core.ErrInvalidRequest)
	}

	sess.Coord.SetResult(result)

	return ProcessorResponse{
		Success: true,
		Data:    p.buildSessionResponse(sess, nil),
	}
}

// handleGetPGN exports the session's game tree as PGN movetext
func (p *Processor) handleGetPGN(cmd Command) ProcessorResponse {
	sess, err := p.svc.GetSession(cmd.SessionID)
	if err != nil {
		return p.errorResponse("session not found", core.ErrSessionNotFound)
	}

	pgn := sess.Coord.PGN(tree.PGNOptions{ShowResult: true, ShowVariations: true})

	return ProcessorResponse{
		Success: true,
		Data: core.PGNResponse{
			SessionID: sess.ID,
			PGN:       pgn,
		},
	}
}

// handleGetBoard returns board visualization
func (p *Processor) handleGetBoard(cmd Command) ProcessorResponse {
	sess, err := p.svc.GetSession(cmd.SessionID)
	if err != nil {
		return p.errorResponse("session not found", core.ErrSessionNotFound)
	}

	fen := sess.Coord.FEN()
	b, err := board.ParseFEN(fen)
	if err != nil {
		return p.errorResponse("error parsing FEN", core.ErrInvalidFEN)
	}

	return ProcessorResponse{
		Success: true,
		Data: core.BoardResponse{
			FEN:   fen,
			Board: b.ToASCII(),
		},
	}
}

// moveOutcomeResponse maps a MoveOutcome onto the wire contract:
// committed and cancelled outcomes succeed, suspension is pending,
// rejection picks the most specific error code.
func (p *Processor) moveOutcomeResponse(sess *service.Session, out session.MoveOutcome) ProcessorResponse {
	switch {
	case out.AwaitingPromotion:
		return ProcessorResponse{
			Success: true,
			Pending: true,
			Data:    p.buildSessionResponse(sess, &out),
		}
	case out.Committed:
		return ProcessorResponse{
			Success: true,
			Data:    p.buildSessionResponse(sess, &out),
		}
	case out.PromotionCancelled:
		return ProcessorResponse{
			Success: true,
			Data:    p.buildSessionResponse(sess, &out),
		}
	default:
		if sess.Coord.State() == session.StateAwaitingPromotionChoice {
			return p.errorResponse("promotion choice pending", core.ErrPromotionPending)
		}
		if st := sess.Coord.Status(); st.IsGameOver && !sess.Coord.FreeAnalysis() {
			return p.errorResponse(fmt.Sprintf("game is over: %s", st.Outcome.Reason), core.ErrGameOver)
		}
		return p.errorResponse("illegal move", core.ErrIllegalMove)
	}
}

// buildSessionResponse constructs the standard session response
func (p *Processor) buildSessionResponse(sess *service.Session, out *session.MoveOutcome) core.SessionResponse {
	coord := sess.Coord

	resp := core.SessionResponse{
		SessionID:    sess.ID,
		FEN:          coord.FEN(),
		Path:         coord.Path(),
		Ply:          coord.Ply(),
		Status:       coord.Status(),
		Result:       string(coord.Result()),
		CanForward:   coord.CanNavigateForward(),
		CanBackward:  coord.CanNavigateBackward(),
		LegalMoves:   coord.LegalDestinations(),
		FreeAnalysis: coord.FreeAnalysis(),
	}

	for i, sib := range coord.Siblings() {
		resp.Variations = append(resp.Variations, core.VariationInfo{
			NodeID:     int(sib.ID),
			SAN:        sib.SAN,
			UCI:        sib.UCI,
			IsMainline: i == 0,
		})
	}

	if out != nil && out.Committed {
		resp.LastMove = &core.MoveInfo{
			UCI:         out.UCI,
			SAN:         out.SAN,
			IsVariation: out.IsVariation,
		}
	}

	return resp
}

// errorResponse creates error response
func (p *Processor) errorResponse(message, code string) ProcessorResponse {
	return ProcessorResponse{
		Success: false,
		Error: &core.ErrorResponse{
			Error: message,
			Code:  code,
		},
	}
}
