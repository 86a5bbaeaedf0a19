package websocket

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/nfrund/chatline/internal/middleware"
)

// Handler upgrades the request to a WebSocket and serves it until the peer
// goes away. The first text frame names the user; later frames carry no
// meaning because notifications only flow from server to client.
func (h *Hub) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		socket, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			OriginPatterns: h.allowedOrigins,
		})
		if err != nil {
			middleware.FromContext(c.Request().Context()).Error("Failed to upgrade connection to WebSocket", "error", err)
			// Accept has already written the HTTP error response.
			return nil
		}

		h.Serve(c.Request().Context(), socket)
		return nil
	}
}

// Serve runs the dispatch loop of an accepted socket and returns when it
// closes. It is exported for servers that do not use echo.
func (h *Hub) Serve(ctx context.Context, socket *websocket.Conn) {
	conn := newSocketConn(socket, h.logger)
	h.live.Store(conn.ID(), conn)
	conn.logger.InfoContext(ctx, "WebSocket connection opened")

	go conn.writePump()

	h.readPump(ctx, conn)

	h.Unbind(context.WithoutCancel(ctx), conn)
	_ = conn.Close("connection closed")
	<-conn.done
	h.live.Delete(conn.ID())
}

// readPump reads frames until the connection fails, is rejected or ctx ends.
func (h *Hub) readPump(ctx context.Context, conn *socketConn) {
	limiter := rate.NewLimiter(rate.Limit(h.inboundRate), h.inboundBurst)

	for {
		typ, data, err := conn.socket.Read(ctx)
		if err != nil {
			logClose(conn, err)
			return
		}

		if !limiter.Allow() {
			conn.logger.WarnContext(ctx, "Inbound frame rate exceeded, dropping frame")
			continue
		}
		if typ != websocket.MessageText {
			conn.logger.DebugContext(ctx, "Ignoring non-text frame")
			continue
		}

		if entry, bound := h.registry.Lookup(conn.ID()); bound {
			conn.logger.DebugContext(ctx, "Ignoring frame from bound connection", "user_id", entry.UserID, "bytes", len(data))
			continue
		}
		if _, err := h.Bind(ctx, conn, string(data)); err != nil {
			return
		}
	}
}

func logClose(conn *socketConn, err error) {
	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		conn.logger.Info("WebSocket closed by client", "status", status)
	case errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		conn.logger.Info("WebSocket connection ended", "error", err)
	default:
		conn.logger.Error("WebSocket read error", "error", err)
	}
}

// StatusHandler reports the number of bound and live connections.
func (h *Hub) StatusHandler(c echo.Context) error {
	live := 0
	h.live.Range(func(_, _ any) bool {
		live++
		return true
	})
	return c.JSON(http.StatusOK, map[string]int{
		"bound": h.registry.Len(),
		"live":  live,
	})
}
