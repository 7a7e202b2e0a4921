package handler

import (
	"net/http"

	"shelterlink/backend/internal/auth"
	"shelterlink/backend/internal/chathub"
	"shelterlink/backend/internal/connection"
	"shelterlink/backend/internal/logging"
	"shelterlink/backend/internal/matching"
	"shelterlink/backend/internal/messaging"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler містить посилання на хаб і сервіси ядра.
type Handler struct {
	Hub         *chathub.ManagerService
	Matching    *matching.Service
	Connections *connection.Service
	Messages    *messaging.Service
	Tokens      *auth.Tokens

	// OriginAllowed gates the websocket handshake; nil accepts any origin.
	OriginAllowed func(*http.Request) bool

	logger *zap.Logger
}

func NewHandler(
	hub *chathub.ManagerService,
	matchSvc *matching.Service,
	connSvc *connection.Service,
	msgSvc *messaging.Service,
	tokens *auth.Tokens,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Hub:         hub,
		Matching:    matchSvc,
		Connections: connSvc,
		Messages:    msgSvc,
		Tokens:      tokens,
		logger:      logging.OrNop(logger).Named("http"),
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Health)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api", h.RequireAuth())

	api.POST("/shelters", h.CreateShelter)
	api.POST("/requests", h.CreateRequest)

	api.GET("/matches", h.SeekerMatches)
	api.GET("/matches/host", h.HostMatches)
	api.GET("/matches/request/:requestId", h.RequestMatches)
	api.GET("/matches/shelter/:shelterId", h.ShelterMatches)

	api.POST("/connections", h.RequestConnection)
	api.GET("/connections", h.ListConnections)
	api.GET("/connections/requests", h.IncomingRequests)
	api.GET("/connections/statuses", h.ConnectionStatuses)
	api.GET("/connections/check/:userId", h.CheckConnection)
	api.PUT("/connections/:id/approve", h.ApproveConnection)
	api.PUT("/connections/:id/reject", h.RejectConnection)

	api.POST("/messages", h.SendMessage)
	api.GET("/messages/conversations", h.ListConversations)
	api.GET("/messages/unread/count", h.UnreadCount)
	api.GET("/messages/:id", h.ListMessages)
	api.PUT("/messages/:id/read", h.MarkRead)

	api.GET("/conversations/id/:userId", h.ConversationID)
	api.GET("/users/:id/online", h.UserOnline)
}

// Health reports liveness and the local session count.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.Hub.LocalCount()})
}
