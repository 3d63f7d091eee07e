package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"chesskit/internal/core"
	"chesskit/internal/service"
)

// envelope frames every websocket message with the event kind
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// wsEventBuffer bounds the per-client event queue; slow clients drop
// events rather than stalling the coordinator.
const wsEventBuffer = 16

// registerWebsocket mounts the event stream: one connection per
// session, pushing MoveMade and PgnNavigated events as they happen.
func registerWebsocket(app *fiber.App, svc *service.Service) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/:sessionId", websocket.New(func(conn *websocket.Conn) {
		defer conn.Close()

		sessionID := conn.Params("sessionId")
		sess, err := svc.GetSession(sessionID)
		if err != nil {
			conn.WriteJSON(envelope{
				Type: "error",
				Data: core.ErrorResponse{
					Error: "session not found",
					Code:  core.ErrSessionNotFound,
				},
			})
			return
		}

		events := make(chan core.Event, wsEventBuffer)
		sub := sess.Coord.Events().Subscribe(func(ev core.Event) {
			select {
			case events <- ev:
			default:
				// Queue full, drop event for this client
			}
		})
		defer sub.Unsubscribe()

		// Reader goroutine only detects close/errors; clients do not
		// send commands over the socket.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev := <-events:
				if err := conn.WriteJSON(envelope{Type: ev.Kind(), Data: ev}); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}))
}
