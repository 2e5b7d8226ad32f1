package media

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vitrine/core/internal/pkg/pagination"
	"github.com/vitrine/core/internal/pkg/response"
)

const maxCleanupBodyBytes = 64 << 10

// Handler exposes uploads, beacon cleanup and orphan management.
type Handler struct {
	svc     *Service
	sweeper *Sweeper
}

func NewHandler(svc *Service, sweeper *Sweeper) *Handler {
	return &Handler{svc: svc, sweeper: sweeper}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/media")

	g.POST("/upload", authMW, h.upload)
	g.DELETE("/upload", authMW, h.deleteUpload)
	g.GET("/presign", authMW, h.presign)
	g.GET("/orphans", authMW, h.listOrphans)
	g.POST("/orphans/sweep", authMW, h.sweep)

	// Beacons carry no credentials; the service guards every key instead.
	g.POST("/cleanup", h.cleanup)
}

func (h *Handler) upload(c *gin.Context) {
	kind, err := ParseKind(c.Query("kind"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if h.svc.opts.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.svc.opts.MaxBytes+1<<20)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(c, "upload too large")
			return
		}
		response.BadRequest(c, "file is required")
		return
	}
	if err := validateFile(fileHeader.Filename, fileHeader.Size, h.svc.opts.AllowedFormats, h.svc.opts.MaxBytes); err != nil {
		h.writeError(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	defer file.Close()
	payload, err := io.ReadAll(file)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	result, err := h.svc.Upload(c.Request.Context(), UploadInput{
		Kind:        kind,
		FileName:    fileHeader.Filename,
		Payload:     payload,
		ContentType: fileHeader.Header.Get("Content-Type"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, result)
}

func (h *Handler) deleteUpload(c *gin.Context) {
	if err := h.svc.DeleteUpload(c.Request.Context(), c.Query("key")); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"ok": 1})
}

func (h *Handler) presign(c *gin.Context) {
	url, err := h.svc.Presign(c.Request.Context(), c.Query("key"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, presignResponse{URL: url})
}

func (h *Handler) cleanup(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCleanupBodyBytes+1))
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	if len(raw) > maxCleanupBodyBytes {
		response.PayloadTooLarge(c, "cleanup batch too large")
		return
	}
	keys, err := decodeCleanupKeys(raw)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.OK(c, h.svc.Cleanup(c.Request.Context(), keys))
}

func (h *Handler) listOrphans(c *gin.Context) {
	rows, pag, err := h.svc.ListPending(c.Request.Context(), pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	items := make([]uploadItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, uploadItem{
			ID:      row.ID,
			Key:     row.Key,
			Folder:  row.Folder,
			Status:  string(row.Status),
			Size:    row.Size,
			Created: row.CreatedAt,
		})
	}
	response.Paged(c, items, pag)
}

func (h *Handler) sweep(c *gin.Context) {
	report, err := h.sweeper.Run(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, report)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidKey), errors.Is(err, ErrInvalidUpload):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrUploadTooLarge):
		response.PayloadTooLarge(c, err.Error())
	case errors.Is(err, ErrKeyInUse), errors.Is(err, ErrSweepRunning):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

// decodeCleanupKeys accepts {"keys":[...]} or a bare array. sendBeacon
// bodies often arrive as text/plain, so the content type is ignored.
func decodeCleanupKeys(raw []byte) ([]string, error) {
	var dto cleanupDTO
	if err := json.Unmarshal(raw, &dto); err == nil {
		return trimKeys(dto.Keys), nil
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, errors.New("body must be {\"keys\": [...]} or a JSON array")
	}
	return trimKeys(keys), nil
}
