package webhook

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mmo-mn/olympiad-api/internal/handler"
	"github.com/mmo-mn/olympiad-api/internal/service/mailer"
)

// snsMessageTypeHeader is set by SNS on every delivery attempt.
const snsMessageTypeHeader = "x-amz-sns-message-type"

type Handler struct {
	svc *mailer.Service
}

func NewHandler(svc *mailer.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/ses", h.Notification)
}

// Notification ingests SNS bounce and complaint notifications. The
// endpoint must always answer quickly; SNS retries on non-2xx.
func (h *Handler) Notification(c *gin.Context) {
	messageType := c.GetHeader(snsMessageTypeHeader)
	if messageType == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("missing message type header"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("unreadable body"))
		return
	}

	status, err := h.svc.HandleNotification(c.Request.Context(), messageType, body)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}
