package views

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vitrine/core/internal/database"
	"github.com/vitrine/core/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service counts each fingerprint at most once per post per day.
type Service struct {
	db      *gorm.DB
	markers Marker
	opts    Options
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService builds the deduplicator. markers and metrics may be nil.
func NewService(db *gorm.DB, markers Marker, opts Options, metrics *Metrics, logger *zap.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MarkerTTL <= 0 {
		opts.MarkerTTL = 48 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:      db,
		markers: markers,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Day returns the dedup day for t in the configured zone.
func (s *Service) Day(t time.Time) string {
	return t.In(s.opts.Location).Format(dayLayout)
}

// RegisterView records a view of the published post identified by slug.
// A repeat from the same fingerprint on the same day is not an error; it
// returns Counted=false and leaves the counter unchanged.
func (s *Service) RegisterView(ctx context.Context, slug, fingerprint string, meta Meta) (Result, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" || len(fingerprint) > maxFingerprintLen {
		return Result{}, ErrInvalidFingerprint
	}

	var post models.PostModel
	err := s.db.WithContext(ctx).Select("id").
		Where("slug = ? AND status = ?", slug, models.PostPublished).
		First(&post).Error
	if err != nil {
		if database.IsNotFound(err) {
			return Result{}, ErrNotFound
		}
		return Result{}, err
	}

	if IsBot(meta.UserAgent) {
		s.metrics.observe(outcomeBot)
		return Result{}, nil
	}

	day := s.Day(s.now())
	marker := ""
	if s.markers != nil {
		key := markerKey(post.ID, fingerprint, day)
		fresh, err := s.markers.SetNX(ctx, key, 1, s.opts.MarkerTTL)
		switch {
		case err != nil:
			s.logger.Warn("view marker unavailable", zap.Error(err))
		case !fresh:
			s.metrics.observe(outcomeMarked)
			return Result{}, nil
		default:
			marker = key
		}
	}

	counted, err := s.record(ctx, post.ID, fingerprint, day, meta)
	if err != nil {
		if marker != "" {
			if delErr := s.markers.Del(context.WithoutCancel(ctx), marker); delErr != nil {
				s.logger.Warn("view marker not released", zap.String("key", marker), zap.Error(delErr))
			}
		}
		return Result{}, err
	}
	if !counted {
		s.metrics.observe(outcomeDuplicate)
		return Result{}, nil
	}
	s.metrics.observe(outcomeCounted)
	return Result{Counted: true}, nil
}

// record inserts the view row and bumps the counter in one transaction.
// The unique index on (post_id, fingerprint, day) decides duplicates.
func (s *Service) record(ctx context.Context, postID, fingerprint, day string, meta Meta) (bool, error) {
	client := Classify(meta.UserAgent)
	rec := models.ViewRecordModel{
		PostID:      postID,
		Fingerprint: fingerprint,
		Day:         day,
		IP:          AnonymizeIP(meta.IP),
		UA:          truncate(meta.UserAgent, maxMetaLen),
		Referrer:    truncate(strings.TrimSpace(meta.Referrer), maxMetaLen),
		Device:      client.Device,
		Browser:     client.Browser,
		OS:          client.OS,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		res := tx.Model(&models.PostModel{}).Where("id = ?", postID).
			UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	switch {
	case err == nil:
		return true, nil
	case database.IsDuplicateKey(err):
		return false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, ErrNotFound
	}
	return false, err
}

func markerKey(postID, fingerprint, day string) string {
	return "view:" + postID + ":" + fingerprint + ":" + day
}
