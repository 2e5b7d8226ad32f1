package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vitrine/core/internal/models"
	"github.com/vitrine/core/internal/pkg/blob"
	"github.com/vitrine/core/internal/pkg/pagination"
	"github.com/vitrine/core/internal/pkg/response"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const presignWorkers = 8

// Service owns uploaded blobs and their ledger rows.
type Service struct {
	db     *gorm.DB
	store  blob.Store
	keys   *Keys
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, store blob.Store, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CleanupLimit <= 0 {
		opts.CleanupLimit = 50
	}
	return &Service{
		db:     db,
		store:  store,
		keys:   NewKeys(opts.Prefix),
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Keys exposes the key scheme to other modules.
func (s *Service) Keys() *Keys { return s.keys }

// Upload validates the image, stores it under a fresh key and records a
// pending ledger row.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if err := validateFile(in.FileName, int64(len(in.Payload)), s.opts.AllowedFormats, s.opts.MaxBytes); err != nil {
		return nil, err
	}
	info, err := inspectImage(in.FileName, in.Payload)
	if err != nil {
		return nil, err
	}

	key := s.keys.New(in.Kind, in.FileName)
	if err := s.store.Put(ctx, key, in.Payload, info.ContentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	row := models.UploadModel{
		Key:         key,
		Folder:      FolderOf(key),
		FileName:    in.FileName,
		ContentType: info.ContentType,
		Status:      models.UploadPending,
		Size:        int64(len(in.Payload)),
		Width:       info.Width,
		Height:      info.Height,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if delErr := s.store.Delete(ctx, key); blob.IgnoreNotFound(delErr) != nil {
			s.logger.Warn("rollback upload failed", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("record upload: %w", err)
	}

	preview, found, err := s.store.Presign(ctx, key, s.opts.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("presign upload: %w", ErrNotFound)
	}

	s.logger.Info("upload stored", zap.String("key", key), zap.Int64("size", row.Size))
	return &UploadResult{
		Key:        key,
		PreviewURL: preview,
		Size:       row.Size,
		Width:      info.Width,
		Height:     info.Height,
	}, nil
}

// DeleteUpload removes an unsaved upload. Keys referenced by saved content
// are refused with ErrKeyInUse.
func (s *Service) DeleteUpload(ctx context.Context, key string) error {
	if err := s.keys.Validate(key); err != nil {
		return err
	}

	row, err := s.findUpload(ctx, key)
	if err != nil {
		return err
	}
	if row != nil && row.Status == models.UploadActive {
		return ErrKeyInUse
	}
	referenced, err := s.ReferencedByAnyPost(ctx, key, "")
	if err != nil {
		return err
	}
	if referenced {
		return ErrKeyInUse
	}

	claimed, err := s.claim(ctx, key, "status = ?", models.UploadPending)
	if err == nil && !claimed && row == nil {
		claimed, err = s.tombstone(ctx, key)
	}
	if err != nil {
		return fmt.Errorf("claim upload: %w", err)
	}
	if !claimed {
		// Lost the race: a save activated it, or another delete owns it.
		if row, err = s.findUpload(ctx, key); err != nil {
			return err
		}
		if row == nil || row.Status != models.UploadDiscarded {
			return ErrKeyInUse
		}
	}

	if err := blob.IgnoreNotFound(s.store.Delete(ctx, key)); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Cleanup is the unauthenticated beacon target. Only keys that are well
// formed, still pending in the ledger and younger than the beacon max age
// are deleted; everything else is skipped. Each delete is attempted once.
func (s *Service) Cleanup(ctx context.Context, keys []string) CleanupResult {
	var result CleanupResult
	seen := make(map[string]struct{}, len(keys))
	cutoff := s.now().Add(-s.opts.BeaconMaxAge)

	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if len(seen) > s.opts.CleanupLimit {
			result.SkippedCount++
			continue
		}
		if err := s.keys.Validate(key); err != nil {
			result.SkippedCount++
			continue
		}

		claimed, err := s.claim(ctx, key, "status = ? AND created_at > ?", models.UploadPending, cutoff)
		if err != nil {
			s.logger.Warn("cleanup claim failed", zap.String("key", key), zap.Error(err))
		}
		if !claimed {
			result.SkippedCount++
			continue
		}

		// The discarded row stays behind; the sweep retries failed deletes.
		if err := blob.IgnoreNotFound(s.store.Delete(ctx, key)); err != nil {
			s.logger.Warn("cleanup delete failed", zap.String("key", key), zap.Error(err))
			continue
		}
		result.DeletedCount++
	}

	if result.DeletedCount > 0 || result.SkippedCount > 0 {
		s.logger.Info("cleanup processed",
			zap.Int("deleted", result.DeletedCount),
			zap.Int("skipped", result.SkippedCount),
		)
	}
	return result
}

// Presign returns a time-limited URL for key.
func (s *Service) Presign(ctx context.Context, key string) (string, error) {
	if err := s.keys.Validate(key); err != nil {
		return "", err
	}
	url, found, err := s.store.Presign(ctx, key, s.opts.PresignTTL)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrNotFound
	}
	return url, nil
}

// PresignMany resolves URLs for keys, skipping keys that are absent or fail.
func (s *Service) PresignMany(ctx context.Context, keys []string) map[string]string {
	urls := make(map[string]string, len(keys))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(presignWorkers)
	for _, key := range keys {
		g.Go(func() error {
			url, err := s.Presign(ctx, key)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					s.logger.Warn("presign failed", zap.String("key", key), zap.Error(err))
				}
				return nil
			}
			mu.Lock()
			urls[key] = url
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return urls
}

// ListPending returns pending ledger rows, newest first.
func (s *Service) ListPending(ctx context.Context, q pagination.Query) ([]models.UploadModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.UploadModel{}).
		Where("status = ?", models.UploadPending).
		Order("created_at DESC")

	var rows []models.UploadModel
	pag, err := pagination.Paginate(tx, q, &rows)
	return rows, pag, err
}

// Activate marks keys as referenced by refID inside tx. Keys without a
// ledger row get one, so the ledger stays authoritative after a crash
// between upload and save. A key that was discarded fails the whole save
// with ErrDiscarded, since its blob is gone or about to be.
func (s *Service) Activate(tx *gorm.DB, refID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	err := tx.Model(&models.UploadModel{}).
		Where("`key` IN ? AND status IN ?", keys, []models.UploadStatus{models.UploadPending, models.UploadActive}).
		Updates(map[string]any{"status": models.UploadActive, "ref_id": refID}).Error
	if err != nil {
		return fmt.Errorf("activate uploads: %w", err)
	}

	rows := make([]models.UploadModel, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, models.UploadModel{
			Key:    key,
			Folder: FolderOf(key),
			Status: models.UploadActive,
			RefID:  refID,
		})
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&rows).Error; err != nil {
		return fmt.Errorf("record uploads: %w", err)
	}

	var discarded []string
	if err := tx.Model(&models.UploadModel{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("`key` IN ? AND status = ?", keys, models.UploadDiscarded).
		Pluck("key", &discarded).Error; err != nil {
		return fmt.Errorf("check discarded uploads: %w", err)
	}
	if len(discarded) > 0 {
		return fmt.Errorf("%w: %s", ErrDiscarded, strings.Join(discarded, ", "))
	}
	return nil
}

// Discard deletes blobs that saved content no longer references. Keys still
// referenced by another post are kept. Failures are logged and swallowed.
// It returns the number of blobs deleted. The deletes outlive ctx so a
// disconnecting client does not leave them half done.
func (s *Service) Discard(ctx context.Context, exceptPostID string, keys []string) int {
	ctx = context.WithoutCancel(ctx)
	deleted := 0
	for _, key := range keys {
		claimed, err := s.claim(ctx, key, "status IN ?", []models.UploadStatus{models.UploadPending, models.UploadActive})
		if err == nil && !claimed {
			var row *models.UploadModel
			if row, err = s.findUpload(ctx, key); err == nil && row == nil {
				claimed, err = s.tombstone(ctx, key)
			}
		}
		if err != nil {
			s.logger.Warn("discard claim failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}

		// Checked after the claim: a save that commits later fails instead.
		referenced, err := s.ReferencedByAnyPost(ctx, key, exceptPostID)
		if err != nil || referenced {
			if err != nil {
				s.logger.Warn("discard lookup failed", zap.String("key", key), zap.Error(err))
			}
			s.unclaim(ctx, key)
			continue
		}
		if err := blob.IgnoreNotFound(s.store.Delete(ctx, key)); err != nil {
			s.logger.Warn("discard delete failed", zap.String("key", key), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted
}

// claim flips the ledger row of key to discarded when it also matches cond.
// Only the caller that claimed a key may delete its blob.
func (s *Service) claim(ctx context.Context, key string, cond string, args ...any) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.UploadModel{}).
		Where("`key` = ?", key).
		Where(cond, args...).
		Update("status", models.UploadDiscarded)
	return res.RowsAffected == 1, res.Error
}

// tombstone claims a key the ledger has never seen.
func (s *Service) tombstone(ctx context.Context, key string) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&models.UploadModel{
		Key:    key,
		Folder: FolderOf(key),
		Status: models.UploadDiscarded,
	})
	return res.RowsAffected == 1, res.Error
}

func (s *Service) unclaim(ctx context.Context, key string) {
	err := s.db.WithContext(ctx).Model(&models.UploadModel{}).
		Where("`key` = ? AND status = ?", key, models.UploadDiscarded).
		Update("status", models.UploadActive).Error
	if err != nil {
		s.logger.Warn("restore ledger row failed", zap.String("key", key), zap.Error(err))
	}
}

// ReferencedByAnyPost reports whether a post other than exceptPostID uses
// key as its cover or in an image block.
func (s *Service) ReferencedByAnyPost(ctx context.Context, key, exceptPostID string) (bool, error) {
	tx := s.db.WithContext(ctx).Model(&models.PostModel{}).
		Where("cover_key = ? OR body LIKE ?", key, "%"+blockKeyNeedle(key)+"%")
	if exceptPostID != "" {
		tx = tx.Where("id <> ?", exceptPostID)
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// blockKeyNeedle is how an image block key appears in the serialized body.
// An underscore in a key is a LIKE wildcard; it can only over-match, which
// keeps a blob rather than deleting it.
func blockKeyNeedle(key string) string {
	return `"key":"` + key + `"`
}

func (s *Service) findUpload(ctx context.Context, key string) (*models.UploadModel, error) {
	var row models.UploadModel
	err := s.db.WithContext(ctx).Where("`key` = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func trimKeys(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
