package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vitrine/core/internal/models"
	"github.com/vitrine/core/internal/pkg/blob"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sweepBatchSize = 200

// Sweeper deletes uploads that were never saved: stale pending ledger rows,
// discarded rows whose blob delete may have failed, and blobs under the
// prefix that neither a post nor the ledger knows about.
// Anything younger than the grace period is left alone.
type Sweeper struct {
	svc    *Service
	logger *zap.Logger
	mu     sync.Mutex
}

func NewSweeper(svc *Service, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{svc: svc, logger: logger}
}

// Run performs one sweep. Concurrent calls return ErrSweepRunning.
func (sw *Sweeper) Run(ctx context.Context) (SweepReport, error) {
	if !sw.mu.TryLock() {
		return SweepReport{}, ErrSweepRunning
	}
	defer sw.mu.Unlock()

	var report SweepReport
	referenced, err := sw.referencedKeys(ctx)
	if err != nil {
		return report, err
	}
	if err := sw.sweepStalePending(ctx, referenced, &report); err != nil {
		return report, err
	}
	if err := sw.sweepUnknownBlobs(ctx, referenced, &report); err != nil {
		return report, err
	}

	sw.logger.Info("orphan sweep finished",
		zap.Int("stale_pending", report.StalePending),
		zap.Int("unreferenced", report.Unreferenced),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Job adapts Run to the cron scheduler signature.
func (sw *Sweeper) Job(ctx context.Context) error {
	_, err := sw.Run(ctx)
	if errors.Is(err, ErrSweepRunning) {
		return nil
	}
	return err
}

func (sw *Sweeper) referencedKeys(ctx context.Context) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	var batch []models.PostModel
	err := sw.svc.db.WithContext(ctx).
		Select("id", "cover_key", "body").
		FindInBatches(&batch, sweepBatchSize, func(tx *gorm.DB, _ int) error {
			for _, post := range batch {
				for _, key := range post.ReferencedKeys() {
					keys[key] = struct{}{}
				}
			}
			return nil
		}).Error
	if err != nil {
		return nil, fmt.Errorf("collect referenced keys: %w", err)
	}
	return keys, nil
}

func (sw *Sweeper) sweepStalePending(ctx context.Context, referenced map[string]struct{}, report *SweepReport) error {
	cutoff := sw.svc.now().Add(-sw.svc.opts.OrphanGrace)

	var rows []models.UploadModel
	if err := sw.svc.db.WithContext(ctx).
		Where("(status = ? AND created_at <= ?) OR (status = ? AND updated_at <= ?)",
			models.UploadPending, cutoff, models.UploadDiscarded, cutoff).
		Find(&rows).Error; err != nil {
		return fmt.Errorf("list stale uploads: %w", err)
	}

	for _, row := range rows {
		if _, ok := referenced[row.Key]; ok {
			if row.Status != models.UploadPending {
				continue
			}
			// Saved content uses it; the ledger missed the activation.
			if err := sw.svc.db.WithContext(ctx).Model(&models.UploadModel{}).
				Where("id = ? AND status = ?", row.ID, models.UploadPending).
				Update("status", models.UploadActive).Error; err != nil {
				sw.logger.Warn("repair ledger row failed", zap.String("key", row.Key), zap.Error(err))
			}
			continue
		}

		if row.Status == models.UploadPending {
			claimed, err := sw.svc.claim(ctx, row.Key, "status = ?", models.UploadPending)
			if err != nil {
				sw.logger.Warn("sweep claim failed", zap.String("key", row.Key), zap.Error(err))
				continue
			}
			if !claimed {
				continue
			}
		}

		if err := blob.IgnoreNotFound(sw.svc.store.Delete(ctx, row.Key)); err != nil {
			report.Failed++
			sw.logger.Warn("sweep delete failed", zap.String("key", row.Key), zap.Error(err))
			continue
		}
		if err := sw.svc.db.WithContext(ctx).
			Delete(&models.UploadModel{}, "id = ? AND status = ?", row.ID, models.UploadDiscarded).Error; err != nil {
			sw.logger.Warn("sweep ledger delete failed", zap.String("key", row.Key), zap.Error(err))
		}
		report.StalePending++
	}
	return nil
}

func (sw *Sweeper) sweepUnknownBlobs(ctx context.Context, referenced map[string]struct{}, report *SweepReport) error {
	objects, err := sw.svc.store.List(ctx, sw.svc.keys.Prefix())
	if err != nil {
		return fmt.Errorf("list blobs: %w", err)
	}

	var ledgerKeys []string
	if err := sw.svc.db.WithContext(ctx).Model(&models.UploadModel{}).
		Pluck("key", &ledgerKeys).Error; err != nil {
		return fmt.Errorf("list ledger keys: %w", err)
	}
	known := make(map[string]struct{}, len(ledgerKeys))
	for _, key := range ledgerKeys {
		known[key] = struct{}{}
	}

	cutoff := sw.svc.now().Add(-sw.svc.opts.OrphanGrace)
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		if _, ok := known[obj.Key]; ok {
			continue
		}
		if obj.LastModified.After(cutoff) {
			continue
		}
		if err := blob.IgnoreNotFound(sw.svc.store.Delete(ctx, obj.Key)); err != nil {
			report.Failed++
			sw.logger.Warn("sweep delete failed", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		report.Unreferenced++
	}
	return nil
}
