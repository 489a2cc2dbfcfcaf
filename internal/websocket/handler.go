package websocket

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/relay/internal/auth"
)

// Handler returns the echo handler that authenticates and upgrades incoming
// WebSocket requests. A request without a valid credential is refused before
// the upgrade; there is no anonymous connection.
func (b *Bridge) Handler(authenticator *auth.Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := authenticator.Authenticate(c.Request().Context(), c.Request())
		if err != nil {
			return c.String(http.StatusUnauthorized, "authentication required")
		}

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // In production, check origin.
		})
		if err != nil {
			b.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		client := &Client{
			ID:     uuid.NewString(),
			UserID: user.ID,
			conn:   conn,
			send:   make(chan []byte, 256),
			bridge: b,
		}
		b.register <- client

		go client.writePump()
		go client.readPump()

		return nil
	}
}
