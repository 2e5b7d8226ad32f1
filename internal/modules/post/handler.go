package post

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/vitrine/core/internal/modules/media"
	"github.com/vitrine/core/internal/pkg/pagination"
	"github.com/vitrine/core/internal/pkg/response"
)

// Handler handles post HTTP requests.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the admin routes under /posts and the reader routes
// under /public/posts.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	posts := rg.Group("/posts", authMW)
	posts.POST("", h.create)
	posts.GET("", h.list)
	posts.GET("/:id", h.get)
	posts.PUT("/:id", h.save)
	posts.PATCH("/:id/status", h.setStatus)
	posts.DELETE("/:id", h.delete)

	public := rg.Group("/public/posts")
	public.GET("", h.listPublished)
	public.GET("/:slug", h.getPublished)
}

func (h *Handler) create(c *gin.Context) {
	var dto SavePostDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	post, err := h.svc.Create(c.Request.Context(), dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, toResponse(post))
}

func (h *Handler) list(c *gin.Context) {
	var lq ListQuery
	if err := c.ShouldBindQuery(&lq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	posts, pag, err := h.svc.List(c.Request.Context(), pagination.FromContext(c), lq)
	if err != nil {
		writeError(c, err)
		return
	}
	items := make([]postResponse, len(posts))
	for i := range posts {
		items[i] = toResponse(&posts[i])
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	post, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, toResponse(post))
}

func (h *Handler) save(c *gin.Context) {
	var dto SavePostDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	post, err := h.svc.Save(c.Request.Context(), c.Param("id"), dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, toResponse(post))
}

func (h *Handler) setStatus(c *gin.Context) {
	var dto statusDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	post, err := h.svc.SetStatus(c.Request.Context(), c.Param("id"), dto.Action)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, toResponse(post))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) listPublished(c *gin.Context) {
	posts, pag, err := h.svc.ListPublished(c.Request.Context(), pagination.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	items := make([]publicPostResponse, len(posts))
	for i := range posts {
		items[i] = h.svc.Render(c.Request.Context(), &posts[i], false)
	}
	response.Paged(c, items, pag)
}

func (h *Handler) getPublished(c *gin.Context) {
	post, err := h.svc.GetPublishedBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, h.svc.Render(c.Request.Context(), post, true))
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrSlugTaken), errors.Is(err, ErrInvalidTransition), errors.Is(err, media.ErrDiscarded):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidPost):
		response.UnprocessableEntity(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
