package handler

import (
	"net/http"

	"shelterlink/backend/internal/apperr"
	"shelterlink/backend/internal/messaging"

	"github.com/gin-gonic/gin"
)

type messageBody struct {
	RecipientID    string `json:"recipientId"`
	ConversationID string `json:"conversationId"`
	Text           string `json:"text" binding:"max=4000"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var body messageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.bindError(c, err)
		return
	}
	msg, err := h.Messages.Send(c.Request.Context(), currentUser(c), messaging.SendInput{
		RecipientID:    body.RecipientID,
		ConversationID: body.ConversationID,
		Text:           body.Text,
	})
	if err != nil {
		var extra gin.H
		if apperr.KindOf(err) == apperr.KindForbidden {
			extra = gin.H{"recipient_id": body.RecipientID}
		}
		h.respondError(c, err, extra)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) ListConversations(c *gin.Context) {
	convs, err := h.Messages.ListConversations(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.Messages.ListMessages(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) MarkRead(c *gin.Context) {
	msg, err := h.Messages.MarkRead(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.Messages.UnreadCount(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": n})
}

func (h *Handler) ConversationID(c *gin.Context) {
	other := c.Param("userId")
	c.JSON(http.StatusOK, gin.H{"conversation_id": h.Messages.ConversationIDFor(currentUser(c), other)})
}
