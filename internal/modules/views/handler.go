package views

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/vitrine/core/internal/pkg/response"
)

// Handler exposes the public view beacon.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/public/posts/:slug/views", h.register)
}

func (h *Handler) register(c *gin.Context) {
	var dto registerDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	referrer := dto.Referrer
	if referrer == "" {
		referrer = c.GetHeader("Referer")
	}

	res, err := h.svc.RegisterView(c.Request.Context(), c.Param("slug"), dto.Fingerprint, Meta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  referrer,
	})
	switch {
	case err == nil:
		response.OK(c, res)
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, "post not found")
	case errors.Is(err, ErrInvalidFingerprint):
		response.BadRequest(c, "fingerprint is required and at most 128 characters")
	default:
		response.InternalError(c, err)
	}
}
