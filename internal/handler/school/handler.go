package school

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mmo-mn/olympiad-api/internal/service/school"
	"github.com/mmo-mn/olympiad-api/pkg/errors"
	"github.com/mmo-mn/olympiad-api/pkg/httputil"
)

type Handler struct {
	svc school.Service
}

func NewHandler(svc school.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/provinces", h.ListProvinces)
	r.GET("/schools", h.ListSchools)
}

func (h *Handler) ListProvinces(c *gin.Context) {
	provinces, err := h.svc.ListProvinces(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, errors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, provinces)
}

func (h *Handler) ListSchools(c *gin.Context) {
	var provinceID *uuid.UUID
	if raw := c.Query("province_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid province id", err))
			return
		}
		provinceID = &id
	}

	schools, err := h.svc.ListSchools(c.Request.Context(), provinceID)
	if err != nil {
		httputil.RespondWithError(c, errors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, schools)
}
