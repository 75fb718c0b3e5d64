package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const socketWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleSocket upgrades the connection and forwards every broadcast event to
// the client. Delivery is unconditional; clients filter the events they care
// about. No client-to-server messages are processed: the read loop exists
// only to notice the peer going away.
func (h *httpHandler) handleSocket(c *gin.Context) {
	token := c.Query("access_token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access_token is required"})
		return
	}
	username, err := h.sessions.ValidateToken(token)
	if err != nil {
		h.logger.Warn("socket token validation failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("socket client connected", zap.String("username", username))

	stream, cleanup := h.broadcaster.Subscribe(c.Request.Context())
	defer cleanup()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-stream:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Info("socket client disconnected", zap.String("username", username), zap.Error(err))
				return
			}
		case <-closed:
			h.logger.Info("socket client disconnected", zap.String("username", username))
			return
		}
	}
}
