package campaign

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/handler"
	"github.com/mmo-mn/olympiad-api/internal/middleware"
	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/service/campaign"
)

type Handler struct {
	svc campaign.Service
}

func NewHandler(svc campaign.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	campaigns := r.Group("/campaigns")
	{
		campaigns.POST("", h.Create)
		campaigns.GET("", h.List)
		campaigns.GET("/:id", h.Get)
		campaigns.POST("/:id/send", h.Send)
		campaigns.POST("/:id/pause", h.Pause)
		campaigns.POST("/:id/resume", h.Resume)
		campaigns.GET("/:id/status", h.Status)
		campaigns.POST("/:id/test", h.SendTest)
	}
}

func (h *Handler) Create(c *gin.Context) {
	operatorID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("authentication required"))
		return
	}

	var req model.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.svc.Create(c.Request.Context(), operatorID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) List(c *gin.Context) {
	operatorID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("authentication required"))
		return
	}

	campaigns, err := h.svc.List(c.Request.Context(), operatorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(campaigns))
}

func (h *Handler) Get(c *gin.Context) {
	operatorID, id, ok := h.operatorAndID(c)
	if !ok {
		return
	}

	found, err := h.svc.Get(c.Request.Context(), id, operatorID)
	if err != nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("campaign not found"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(found))
}

func (h *Handler) Send(c *gin.Context) {
	operatorID, id, ok := h.operatorAndID(c)
	if !ok {
		return
	}

	if err := h.svc.Send(c.Request.Context(), id, operatorID); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse("campaign queued for sending"))
}

func (h *Handler) Pause(c *gin.Context) {
	operatorID, id, ok := h.operatorAndID(c)
	if !ok {
		return
	}

	if err := h.svc.Pause(c.Request.Context(), id, operatorID); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse("campaign paused"))
}

func (h *Handler) Resume(c *gin.Context) {
	operatorID, id, ok := h.operatorAndID(c)
	if !ok {
		return
	}

	if err := h.svc.Resume(c.Request.Context(), id, operatorID); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse("campaign resumed"))
}

func (h *Handler) Status(c *gin.Context) {
	operatorID, id, ok := h.operatorAndID(c)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), id, operatorID)
	if err != nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("campaign not found"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

func (h *Handler) SendTest(c *gin.Context) {
	operatorID, id, ok := h.operatorAndID(c)
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.svc.QueueTestEmail(c.Request.Context(), id, operatorID, req.Email); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse("test email queued"))
}

func (h *Handler) operatorAndID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	operatorID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("authentication required"))
		return uuid.Nil, uuid.Nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign id"))
		return uuid.Nil, uuid.Nil, false
	}
	return operatorID, id, true
}
