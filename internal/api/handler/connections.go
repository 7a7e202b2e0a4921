package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type connectionBody struct {
	RecipientID string  `json:"recipientId" binding:"required"`
	Message     *string `json:"message" binding:"omitempty,max=500"`
}

func (h *Handler) RequestConnection(c *gin.Context) {
	var body connectionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.bindError(c, err)
		return
	}
	conn, err := h.Connections.RequestConnection(c.Request.Context(), currentUser(c), body.RecipientID, body.Message)
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, conn)
}

func (h *Handler) ApproveConnection(c *gin.Context) {
	conn, err := h.Connections.Approve(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, conn)
}

func (h *Handler) RejectConnection(c *gin.Context) {
	conn, err := h.Connections.Reject(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, conn)
}

func (h *Handler) IncomingRequests(c *gin.Context) {
	conns, err := h.Connections.IncomingRequests(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, conns)
}

func (h *Handler) ListConnections(c *gin.Context) {
	peers, err := h.Connections.Connections(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, peers)
}

func (h *Handler) ConnectionStatuses(c *gin.Context) {
	statuses, err := h.Connections.StatusesForUser(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func (h *Handler) CheckConnection(c *gin.Context) {
	status, err := h.Connections.CheckStatus(c.Request.Context(), currentUser(c), c.Param("userId"))
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, status)
}
