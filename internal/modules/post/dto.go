package post

import (
	"errors"
	"time"

	"github.com/vitrine/core/internal/models"
)

var (
	ErrNotFound          = errors.New("post not found")
	ErrSlugTaken         = errors.New("slug already exists")
	ErrInvalidPost       = errors.New("invalid post")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// SavePostDTO is the full editor payload for create and save.
type SavePostDTO struct {
	Title    string         `json:"title"     binding:"required"`
	Slug     string         `json:"slug"      binding:"required"`
	Body     []models.Block `json:"body"`
	CoverKey string         `json:"cover_key"`
	// Publish is only honoured on create.
	Publish bool `json:"publish"`
}

// StatusAction is a requested status change.
type StatusAction string

const (
	ActionPublish   StatusAction = "publish"
	ActionUnpublish StatusAction = "unpublish"
	ActionArchive   StatusAction = "archive"
)

type statusDTO struct {
	Action StatusAction `json:"action" binding:"required"`
}

// ListQuery holds query params for the admin list.
type ListQuery struct {
	Status string `form:"status"`
}

type postResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Status      models.PostStatus `json:"status"`
	Body        []models.Block    `json:"body"`
	CoverKey    string            `json:"cover_key"`
	ViewCount   int64             `json:"view_count"`
	PublishedAt *time.Time        `json:"published_at"`
	Created     time.Time         `json:"created"`
	Modified    time.Time         `json:"modified"`
}

func toResponse(p *models.PostModel) postResponse {
	body := p.Body
	if body == nil {
		body = []models.Block{}
	}
	return postResponse{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Status:      p.Status,
		Body:        body,
		CoverKey:    p.CoverKey,
		ViewCount:   p.ViewCount,
		PublishedAt: p.PublishedAt,
		Created:     p.CreatedAt,
		Modified:    p.UpdatedAt,
	}
}

// renderedBlock is a body block prepared for readers.
type renderedBlock struct {
	Type     models.BlockType `json:"type"`
	HTML     string           `json:"html,omitempty"`
	Text     string           `json:"text,omitempty"`
	Level    int              `json:"level,omitempty"`
	Language string           `json:"language,omitempty"`
	URL      string           `json:"url,omitempty"`
	Caption  string           `json:"caption,omitempty"`
}

type publicPostResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	CoverURL    string          `json:"cover_url,omitempty"`
	ViewCount   int64           `json:"view_count"`
	PublishedAt *time.Time      `json:"published_at"`
	Body        []renderedBlock `json:"body,omitempty"`
}
