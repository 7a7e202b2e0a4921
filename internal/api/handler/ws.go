package handler

import (
	"net/http"

	"shelterlink/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if h.OriginAllowed == nil {
				return true
			}
			return h.OriginAllowed(r)
		},
	}
}

// ServeWebSocket verifies the token before upgrading, so a bad handshake
// never reaches the registry.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	raw := bearerToken(c)
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}
	userID, err := h.Tokens.UserID(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, userID)
	h.Hub.Register(client)
	client.Run()
}

// UserOnline reports whether the user currently holds a realtime session.
func (h *Handler) UserOnline(c *gin.Context) {
	userID := c.Param("id")
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "online": h.Hub.IsOnline(c.Request.Context(), userID)})
}
