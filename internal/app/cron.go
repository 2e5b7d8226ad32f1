package app

import (
	"context"

	"github.com/vitrine/core/internal/config"
	"github.com/vitrine/core/internal/modules/media"
	pkgcron "github.com/vitrine/core/internal/pkg/cron"
	"go.uber.org/zap"
)

const jobSweepOrphanMedia = "sweep_orphan_media"

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, cfg *config.AppConfig, sweeper *media.Sweeper, logger *zap.Logger) {
	if cfg.Media.SweepInterval <= 0 {
		logger.Info("orphan media sweep disabled")
		return
	}
	sched.Register(pkgcron.Job{
		Name:        jobSweepOrphanMedia,
		Description: "Delete uploads never referenced by a saved post",
		Interval:    cfg.Media.SweepInterval,
		Fn: func(ctx context.Context) error {
			return sweeper.Job(ctx)
		},
	})
	logger.Info("orphan media sweep scheduled",
		zap.String("every", humanizeDuration(cfg.Media.SweepInterval)),
		zap.String("grace", humanizeDuration(cfg.Media.OrphanGrace)),
	)
}
