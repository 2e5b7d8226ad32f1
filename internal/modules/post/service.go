package post

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vitrine/core/internal/database"
	"github.com/vitrine/core/internal/models"
	"github.com/vitrine/core/internal/pkg/pagination"
	"github.com/vitrine/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MediaLedger is the slice of the media service posts depend on.
type MediaLedger interface {
	Activate(tx *gorm.DB, refID string, keys []string) error
	Discard(ctx context.Context, exceptPostID string, keys []string) int
	PresignMany(ctx context.Context, keys []string) map[string]string
}

// Service handles post business logic.
type Service struct {
	db     *gorm.DB
	media  MediaLedger
	keys   KeyValidator
	logger *zap.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, media MediaLedger, keys KeyValidator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, media: media, keys: keys, logger: logger, now: time.Now}
}

// Create inserts a post as draft, or published when dto.Publish is set, and
// marks every referenced key active in the same transaction.
func (s *Service) Create(ctx context.Context, dto SavePostDTO) (*models.PostModel, error) {
	if err := normalizePost(&dto, s.keys); err != nil {
		return nil, err
	}

	post := models.PostModel{
		Title:    dto.Title,
		Slug:     dto.Slug,
		Status:   models.PostDraft,
		Body:     dto.Body,
		CoverKey: dto.CoverKey,
	}
	if dto.Publish {
		now := s.now()
		post.Status = models.PostPublished
		post.PublishedAt = &now
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		return s.media.Activate(tx, post.ID, post.ReferencedKeys())
	})
	if err != nil {
		if database.IsDuplicateKey(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return &post, nil
}

// Save replaces title, slug, body and cover. After the commit, blobs the
// post no longer references are deleted on a best-effort basis. A failed
// save changes nothing.
func (s *Service) Save(ctx context.Context, id string, dto SavePostDTO) (*models.PostModel, error) {
	if err := normalizePost(&dto, s.keys); err != nil {
		return nil, err
	}

	var post models.PostModel
	var before []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&post, "id = ?", id).Error; err != nil {
			return err
		}
		before = post.ReferencedKeys()

		post.Title = dto.Title
		post.Slug = dto.Slug
		post.Body = dto.Body
		post.CoverKey = dto.CoverKey
		if err := tx.Model(&post).Select("title", "slug", "body", "cover_key", "updated_at").
			Updates(&post).Error; err != nil {
			return err
		}
		return s.media.Activate(tx, post.ID, post.ReferencedKeys())
	})
	if err != nil {
		return nil, translate(err)
	}

	if dropped := droppedKeys(before, post.ReferencedKeys()); len(dropped) > 0 {
		n := s.media.Discard(ctx, post.ID, dropped)
		s.logger.Info("released replaced media",
			zap.String("post", post.ID),
			zap.Int("dropped", len(dropped)),
			zap.Int("deleted", n),
		)
	}
	return &post, nil
}

// SetStatus applies a status action. published_at is set only the first
// time a post becomes published.
func (s *Service) SetStatus(ctx context.Context, id string, action StatusAction) (*models.PostModel, error) {
	var post models.PostModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&post, "id = ?", id).Error; err != nil {
			return err
		}
		if err := s.transition(&post, action); err != nil {
			return err
		}
		return tx.Model(&post).Select("status", "published_at", "updated_at").Updates(&post).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (s *Service) transition(post *models.PostModel, action StatusAction) error {
	switch action {
	case ActionPublish:
		post.Status = models.PostPublished
		if post.PublishedAt == nil {
			now := s.now()
			post.PublishedAt = &now
		}
	case ActionUnpublish:
		if post.Status != models.PostPublished {
			return fmt.Errorf("%w: %s post cannot be unpublished", ErrInvalidTransition, post.Status)
		}
		post.Status = models.PostDraft
	case ActionArchive:
		post.Status = models.PostArchived
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	return nil
}

// Delete removes the post, then every blob it referenced. Blob failures are
// logged and left to the orphan sweep.
func (s *Service) Delete(ctx context.Context, id string) error {
	var post models.PostModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.PostModel{}, "id = ?", id).Error
	})
	if err != nil {
		return translate(err)
	}

	keys := post.ReferencedKeys()
	if len(keys) > 0 {
		n := s.media.Discard(ctx, post.ID, keys)
		s.logger.Info("post media removed",
			zap.String("post", post.ID),
			zap.Int("referenced", len(keys)),
			zap.Int("deleted", n),
		)
	}
	return nil
}

// Get fetches a post by ID regardless of status.
func (s *Service) Get(ctx context.Context, id string) (*models.PostModel, error) {
	var post models.PostModel
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

// List returns posts newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, q pagination.Query, lq ListQuery) ([]models.PostModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.PostModel{}).Order("created_at DESC")
	if lq.Status != "" {
		if !models.PostStatus(lq.Status).Valid() {
			return nil, response.Pagination{}, fmt.Errorf("%w: unknown status %q", ErrInvalidPost, lq.Status)
		}
		tx = tx.Where("status = ?", lq.Status)
	}
	var posts []models.PostModel
	pag, err := pagination.Paginate(tx, q, &posts)
	return posts, pag, err
}

// GetPublishedBySlug fetches a published post.
func (s *Service) GetPublishedBySlug(ctx context.Context, slug string) (*models.PostModel, error) {
	var post models.PostModel
	if err := s.db.WithContext(ctx).
		Where("slug = ? AND status = ?", slug, models.PostPublished).
		First(&post).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

// ListPublished returns published posts, most recently published first.
func (s *Service) ListPublished(ctx context.Context, q pagination.Query) ([]models.PostModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.PostModel{}).
		Select("id", "title", "slug", "cover_key", "view_count", "published_at", "created_at", "updated_at").
		Where("status = ?", models.PostPublished).
		Order("published_at DESC")
	var posts []models.PostModel
	pag, err := pagination.Paginate(tx, q, &posts)
	return posts, pag, err
}

// Render prepares a post for readers: markdown paragraphs become HTML and
// media keys become presigned URLs.
func (s *Service) Render(ctx context.Context, post *models.PostModel, withBody bool) publicPostResponse {
	keys := []string{}
	if post.CoverKey != "" {
		keys = append(keys, post.CoverKey)
	}
	if withBody {
		keys = post.ReferencedKeys()
	}
	urls := s.media.PresignMany(ctx, keys)

	out := publicPostResponse{
		ID:          post.ID,
		Title:       post.Title,
		Slug:        post.Slug,
		CoverURL:    urls[post.CoverKey],
		ViewCount:   post.ViewCount,
		PublishedAt: post.PublishedAt,
	}
	if !withBody {
		return out
	}

	out.Body = make([]renderedBlock, 0, len(post.Body))
	for _, b := range post.Body {
		rb := renderedBlock{Type: b.Type}
		switch b.Type {
		case models.BlockParagraph:
			rb.HTML = renderMarkdown(b.Text)
		case models.BlockHeading:
			rb.Text, rb.Level = b.Text, b.Level
		case models.BlockQuote:
			rb.Text = b.Text
		case models.BlockCode:
			rb.Text, rb.Language = b.Text, b.Language
		case models.BlockImage:
			url, ok := urls[b.Key]
			if !ok {
				continue
			}
			rb.URL, rb.Caption = url, b.Caption
		}
		out.Body = append(out.Body, rb)
	}
	return out
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case database.IsDuplicateKey(err):
		return ErrSlugTaken
	}
	return err
}
