package http

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"chesskit/internal/core"
	"chesskit/internal/processor"
	"chesskit/internal/service"
)

const rateLimitRate = 10 // req/sec

// HTTPHandler handles HTTP requests and routes them to the processor
type HTTPHandler struct {
	proc *processor.Processor
	svc  *service.Service
}

func NewHTTPHandler(proc *processor.Processor, svc *service.Service) *HTTPHandler {
	return &HTTPHandler{proc: proc, svc: svc}
}

func NewFiberApp(proc *processor.Processor, svc *service.Service, devMode bool) *fiber.App {
	h := NewHTTPHandler(proc, svc)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	// Global middleware (order matters)
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check (no rate limit)
	app.Get("/health", h.Health)

	// Websocket event stream
	registerWebsocket(app, svc)

	// API v1 routes
	api := app.Group("/api/v1")

	maxReq := rateLimitRate
	if devMode {
		maxReq = rateLimitRate * 2
	}
	api.Use(limiter.New(limiter.Config{
		Max:        maxReq,
		Expiration: 1 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			if xff := c.Get("X-Forwarded-For"); xff != "" {
				if idx := strings.Index(xff, ","); idx != -1 {
					return strings.TrimSpace(xff[:idx])
				}
				return xff
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.ErrRateLimitExceeded,
				Details: fmt.Sprintf("%d requests per second allowed", maxReq),
			})
		},
	}))

	// Content-Type validation for POST and PUT requests
	api.Use(contentTypeValidator)

	// Middleware validation for sanitization
	api.Use(validationMiddleware)

	api.Post("/sessions", h.CreateSession)
	api.Get("/sessions/:sessionId", h.GetSession)
	api.Delete("/sessions/:sessionId", h.DeleteSession)
	api.Post("/sessions/:sessionId/moves", h.MakeMove)
	api.Post("/sessions/:sessionId/system-moves", h.SystemMove)
	api.Post("/sessions/:sessionId/promotion", h.ResolvePromotion)
	api.Post("/sessions/:sessionId/navigate", h.Navigate)
	api.Post("/sessions/:sessionId/undo", h.Undo)
	api.Post("/sessions/:sessionId/variations/promote", h.PromoteVariation)
	api.Put("/sessions/:sessionId/result", h.SetResult)
	api.Get("/sessions/:sessionId/pgn", h.GetPGN)
	api.Get("/sessions/:sessionId/board", h.GetBoard)

	return app
}

// contentTypeValidator ensures POST and PUT requests have application/json
func contentTypeValidator(c *fiber.Ctx) error {
	method := c.Method()
	if method == fiber.MethodPost || method == fiber.MethodPut {
		contentType := c.Get("Content-Type")
		if contentType != "application/json" && contentType != "" {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(core.ErrorResponse{
				Error:   "unsupported media type",
				Code:    core.ErrInvalidContent,
				Details: "Content-Type must be application/json",
			})
		}
	}
	return c.Next()
}

// customErrorHandler provides consistent error responses
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.ErrInternalError,
	}

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		response.Error = e.Message

		switch code {
		case fiber.StatusNotFound:
			response.Code = core.ErrSessionNotFound
		case fiber.StatusBadRequest:
			response.Code = core.ErrInvalidRequest
		case fiber.StatusTooManyRequests:
			response.Code = core.ErrRateLimitExceeded
		}
	}

	return c.Status(code).JSON(response)
}

// errorStatus maps processor error codes to HTTP status codes
func errorStatus(code string) int {
	switch code {
	case core.ErrSessionNotFound:
		return fiber.StatusNotFound
	case core.ErrGameOver, core.ErrPromotionPending, core.ErrNoPromotion:
		return fiber.StatusConflict
	default:
		return fiber.StatusBadRequest
	}
}

// Health check endpoint with storage status
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"time":     time.Now().Unix(),
		"sessions": h.svc.SessionCount(),
		"storage":  h.svc.StorageHealth(),
	})
}

// CreateSession starts a new game session
func (h *HTTPHandler) CreateSession(c *fiber.Ctx) error {
	req, err := validatedBody[core.CreateSessionRequest](c)
	if err != nil {
		return err
	}

	resp := h.proc.Execute(processor.NewCreateSessionCommand(req))
	if !resp.Success {
		return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
	}

	return c.Status(fiber.StatusCreated).JSON(resp.Data)
}

// GetSession retrieves current session state, optionally long-polling
// until the event sequence advances past ?seq=N.
func (h *HTTPHandler) GetSession(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if !isValidUUID(sessionID) {
		return invalidSessionID(c)
	}

	// Non-wait path
	if c.Query("wait", "false") != "true" {
		resp := h.proc.Execute(processor.NewGetSessionCommand(sessionID))
		if !resp.Success {
			return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
		}
		return c.JSON(resp.Data)
	}

	// Long-polling path
	seq, err := strconv.ParseInt(c.Query("seq", "-1"), 10, 64)
	if err != nil {
		seq = -1
	}

	sess, err := h.svc.GetSession(sessionID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(core.ErrorResponse{
			Error: "session not found",
			Code:  core.ErrSessionNotFound,
		})
	}

	// If the sequence already advanced, return immediately
	if seq != sess.Seq() {
		resp := h.proc.Execute(processor.NewGetSessionCommand(sessionID))
		if !resp.Success {
			return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
		}
		return c.JSON(resp.Data)
	}

	ctx := c.Context()
	notify := h.svc.Waiter().RegisterWait(sessionID, seq, ctx)

	select {
	case <-notify:
		// State changed or timeout, get fresh session state
		resp := h.proc.Execute(processor.NewGetSessionCommand(sessionID))
		if !resp.Success {
			return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
		}
		return c.JSON(resp.Data)

	case <-ctx.Done():
		// Client disconnected
		return nil
	}
}

// DeleteSession ends and cleans up a session
func (h *HTTPHandler) DeleteSession(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if !isValidUUID(sessionID) {
		return invalidSessionID(c)
	}

	resp := h.proc.Execute(processor.NewDeleteSessionCommand(sessionID))
	if !resp.Success {
		return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// MakeMove submits a move intent between two squares
func (h *HTTPHandler) MakeMove(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if !isValidUUID(sessionID) {
		return invalidSessionID(c)
	}

	req, err := validatedBody[core.MoveRequest](c)
	if err != nil {
		return err
	}

	resp := h.proc.Execute(processor.NewMoveCommand(sessionID, req))
	if !resp.Success {
		return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
	}

	// Pending means a promotion choice is required before commit
	if resp.Pending {
		return c.Status(fiber.StatusAccepted).JSON(resp.Data)
	}

	return c.JSON(resp.Data)
}

// SystemMove applies a full UCI move
func (h *HTTPHandler) SystemMove(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if !isValidUUID(sessionID) {
		return invalidSessionID(c)
	}

	req, err := validatedBody[core.SystemMoveRequest](c)
	if err != nil {
		return err
	}

	resp := h.proc.Execute(processor.NewSystemMoveCommand(sessionID, req))
	if !resp.Success {
		return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
	}

	return c.JSON(resp.Data)
}

// ResolvePromotion completes or cancels a pending promotion choice
func (h *HTTPHandler) ResolvePromotion(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if !isValidUUID(sessionID) {
		return invalidSessionID(c)
	}

	req, err := validatedBody[core.PromotionRequest](c)
	if err != nil {
		return err
	}

	resp := h.proc.Execute(processor.NewResolvePromotionCommand(sessionID, req))
	if !resp.Success {
		return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
	}

	return c.JSON(resp.Data)
}

// Navigate moves the cursor through the game tree
func (h *HTTPHandler) Navigate(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if !isValidUUID(sessionID) {
		return invalidSessionID(c)
	}

	req, err := validatedBody[core.NavigateRequest](c)
	if err != nil {
		return err
	}

	resp := h.proc.Execute(processor.NewNavigateCommand(sessionID, req))
	if !resp.Success {
		return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
	}

	return c.JSON(resp.Data)
}

// Undo removes the current move and its continuations
func (h *HTTPHandler) Undo(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if !isValidUUID(sessionID) {
		return invalidSessionID(c)
	}

	resp := h.proc.Execute(processor.NewUndoCommand(sessionID))
	if !resp.Success {
		return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
	}

	return c.JSON(resp.Data)
}

// PromoteVariation makes the given node's line the mainline
func (h *HTTPHandler) PromoteVariation(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if !isValidUUID(sessionID) {
		return invalidSessionID(c)
	}

	req, err := validatedBody[core.PromoteVariationRequest](c)
	if err != nil {
		return err
	}

	resp := h.proc.Execute(processor.NewPromoteVariationCommand(sessionID, req))
	if !resp.Success {
		return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
	}

	return c.JSON(resp.Data)
}

// SetResult records a manual game result
func (h *HTTPHandler) SetResult(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if !isValidUUID(sessionID) {
		return invalidSessionID(c)
	}

	req, err := validatedBody[core.ResultRequest](c)
	if err != nil {
		return err
	}

	resp := h.proc.Execute(processor.NewSetResultCommand(sessionID, req))
	if !resp.Success {
		return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
	}

	return c.JSON(resp.Data)
}

// GetPGN exports the game tree as PGN movetext
func (h *HTTPHandler) GetPGN(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if !isValidUUID(sessionID) {
		return invalidSessionID(c)
	}

	resp := h.proc.Execute(processor.NewGetPGNCommand(sessionID))
	if !resp.Success {
		return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
	}

	return c.JSON(resp.Data)
}

// GetBoard returns ASCII representation of the board
func (h *HTTPHandler) GetBoard(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if !isValidUUID(sessionID) {
		return invalidSessionID(c)
	}

	resp := h.proc.Execute(processor.NewGetBoardCommand(sessionID))
	if !resp.Success {
		return c.Status(errorStatus(resp.Error.Code)).JSON(resp.Error)
	}

	return c.JSON(resp.Data)
}

func invalidSessionID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
		Error:   "invalid session ID format",
		Code:    core.ErrInvalidRequest,
		Details: "session ID must be a valid UUID",
	})
}
