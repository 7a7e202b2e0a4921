package handler

import (
	"errors"
	"net/http"

	"shelterlink/backend/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:       http.StatusBadRequest,
	apperr.KindInvalidParameter: http.StatusBadRequest,
	apperr.KindNotFound:         http.StatusNotFound,
	apperr.KindForbidden:        http.StatusForbidden,
	apperr.KindConflict:         http.StatusConflict,
	apperr.KindInvalidState:     http.StatusConflict,
	apperr.KindTimeout:          http.StatusGatewayTimeout,
}

// respondError writes err as JSON. extra is merged into the body of
// application errors.
func (h *Handler) respondError(c *gin.Context, err error, extra gin.H) {
	e, ok := apperr.As(err)
	if !ok {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("user_id", currentUser(c)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	status, known := kindStatus[e.Kind]
	if !known {
		status = http.StatusInternalServerError
	}
	body := gin.H{"error": e.Message, "kind": e.Kind}
	if e.Hint != "" {
		body["hint"] = e.Hint
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// bindError answers 400 for a body that failed gin binding.
func (h *Handler) bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": apperr.KindValidation, "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": apperr.KindValidation})
}
