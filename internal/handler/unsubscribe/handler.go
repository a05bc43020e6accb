package unsubscribe

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mmo-mn/olympiad-api/internal/handler"
	"github.com/mmo-mn/olympiad-api/internal/service/mailer"
)

type Handler struct {
	svc *mailer.Service
}

func NewHandler(svc *mailer.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/unsubscribe/:token", h.Show)
	r.POST("/unsubscribe/:token", h.Confirm)
}

// Show resolves the token so the confirmation page can display the
// address. A tampered token gets a generic failure with no detail.
func (h *Handler) Show(c *gin.Context) {
	_, email, err := h.svc.ResolveUnsubscribeToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid unsubscribe link"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"email": email}))
}

func (h *Handler) Confirm(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	email, err := h.svc.Unsubscribe(c.Request.Context(), c.Param("token"), req.Reason)
	if err != nil {
		if errors.Is(err, mailer.ErrNoAccount) {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse("no account found for this address"))
			return
		}
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid unsubscribe link"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"email":   email,
		"message": "you have been unsubscribed",
	}))
}
