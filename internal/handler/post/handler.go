package post

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/middleware"
	"github.com/mmo-mn/olympiad-api/internal/model"
	"github.com/mmo-mn/olympiad-api/internal/service/post"
	"github.com/mmo-mn/olympiad-api/pkg/errors"
	"github.com/mmo-mn/olympiad-api/pkg/httputil"
)

type Handler struct {
	svc post.Service
}

func NewHandler(svc post.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.GET("/posts", h.List)
	public.GET("/posts/:id", h.Get)
	authed.POST("/posts", h.Create)
	authed.POST("/posts/:id/publish", h.Publish)
}

func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	posts, err := h.svc.ListPublished(c.Request.Context(), model.Pagination{
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		httputil.RespondWithError(c, errors.Internal(err))
		return
	}

	httputil.RespondWithPagination(c, posts, page, pageSize, len(posts))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid post id", err))
		return
	}

	found, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, errors.NotFound("post", err))
		return
	}

	httputil.RespondWithSuccess(c, found)
}

func (h *Handler) Create(c *gin.Context) {
	authorID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return
	}

	var req model.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	created, err := h.svc.Create(c.Request.Context(), authorID, &req)
	if err != nil {
		httputil.RespondWithError(c, errors.Internal(err))
		return
	}

	c.JSON(http.StatusCreated, httputil.Response{Success: true, Data: created})
}

func (h *Handler) Publish(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid post id", err))
		return
	}

	if err := h.svc.Publish(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, errors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, "post published")
}
