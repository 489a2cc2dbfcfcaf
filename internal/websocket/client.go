package websocket

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

// Client represents a single connected WebSocket client. A user can have
// several clients at once (browser tab, mobile); each carries its own
// connection ID and send buffer.
type Client struct {
	// ID uniquely identifies this connection.
	ID string
	// UserID is the authenticated user behind the connection.
	UserID string

	conn   *websocket.Conn
	send   chan []byte
	bridge *Bridge
}

// readPump pumps frames from the WebSocket connection into the bridge until
// the connection dies, then triggers the disconnect cleanup.
func (c *Client) readPump() {
	defer func() {
		c.bridge.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "Client disconnected")
	}()

	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || websocket.CloseStatus(err) == websocket.StatusGoingAway {
				slog.Info("WebSocket closed normally by client", "user_id", c.UserID, "conn_id", c.ID)
			} else if err != io.EOF {
				slog.Error("WebSocket read error", "user_id", c.UserID, "conn_id", c.ID, "error", err)
			}
			break
		}

		c.bridge.handleIncoming(c, data)
	}
}

// writePump pumps frames from the client's send channel to the WebSocket
// connection. It exits when the bridge closes the channel.
func (c *Client) writePump() {
	defer func() {
		c.conn.Close(websocket.StatusNormalClosure, "Server-side cleanup")
	}()

	for {
		data, ok := <-c.send
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Error("WebSocket write error", "user_id", c.UserID, "conn_id", c.ID, "error", err)
			return
		}
	}
}

// deliver queues a frame for the client, dropping it if the client cannot
// keep up. A slow consumer must never stall the broadcast path.
func (c *Client) deliver(data []byte) {
	select {
	case c.send <- data:
	default:
		slog.Warn("Client send channel full, dropping message", "user_id", c.UserID, "conn_id", c.ID)
	}
}
