package olympiad

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/handler"
	"github.com/mmo-mn/olympiad-api/internal/middleware"
	"github.com/mmo-mn/olympiad-api/internal/service/olympiad"
)

type Handler struct {
	svc olympiad.Service
}

func NewHandler(svc olympiad.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.GET("/olympiads/:id/standings", h.Standings)
	authed.POST("/olympiads/:id/results", h.SubmitResult)
}

func (h *Handler) Standings(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid olympiad id"))
		return
	}

	results, err := h.svc.Standings(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(results))
}

func (h *Handler) SubmitResult(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid olympiad id"))
		return
	}

	var req struct {
		Scores []int `json:"scores" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	result, err := h.svc.SubmitResult(c.Request.Context(), id, userID, req.Scores)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(result))
}
