package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vitrine/core/internal/config"
	"github.com/vitrine/core/internal/database"
	"github.com/vitrine/core/internal/middleware"
	"github.com/vitrine/core/internal/modules/auth"
	"github.com/vitrine/core/internal/modules/media"
	"github.com/vitrine/core/internal/modules/post"
	"github.com/vitrine/core/internal/modules/views"
	"github.com/vitrine/core/internal/pkg/blob"
	pkgcron "github.com/vitrine/core/internal/pkg/cron"
	jwtpkg "github.com/vitrine/core/internal/pkg/jwt"
	pkgredis "github.com/vitrine/core/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const metricsNamespace = "vitrine"

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	db       *gorm.DB
	rc       *pkgredis.Client
	registry *prometheus.Registry
	signer   *jwtpkg.Signer
	logger   *zap.Logger
	cancel   context.CancelFunc
	sched    *pkgcron.Scheduler
}

// New initializes the application: DB → Redis → blob store → services → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	secret, err := resolveJWTSecret(cfg, logger)
	if err != nil {
		return nil, err
	}
	signer, err := jwtpkg.NewSigner(secret, cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	// Undone in reverse order when a later step fails.
	var closers []func()
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return nil, err
	}
	closers = append(closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	var rc *pkgredis.Client
	var markers views.Marker
	if cfg.RedisURL != "" {
		rc, err = pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		markers = rc
	} else {
		logger.Info("redis not configured, view dedup uses the database only")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	blobMetrics, err := blob.NewMetrics(metricsNamespace, registry)
	if err != nil {
		return fail(err)
	}
	viewMetrics, err := views.NewMetrics(metricsNamespace, registry)
	if err != nil {
		return fail(err)
	}

	rawStore, err := newBlobStore(cfg)
	if err != nil {
		return fail(fmt.Errorf("blob store: %w", err))
	}
	store := blob.NewObserved(rawStore, blobMetrics)

	authSvc := auth.NewService(db, signer, logger.Named("auth"))
	if cfg.Admin.Username != "" && cfg.Admin.Password != "" {
		created, err := authSvc.EnsureAdmin(cfg.Admin.Username, cfg.Admin.Password)
		if err != nil {
			return fail(fmt.Errorf("bootstrap admin: %w", err))
		}
		if created {
			logger.Info("admin account created", zap.String("username", cfg.Admin.Username))
		}
	}

	mediaSvc := media.NewService(db, store, media.Options{
		Prefix:         cfg.Media.Prefix,
		AllowedFormats: cfg.Media.AllowedFormats,
		MaxBytes:       cfg.MaxUploadBytes(),
		PresignTTL:     cfg.Blob.PresignTTL,
		OrphanGrace:    cfg.Media.OrphanGrace,
		BeaconMaxAge:   cfg.Media.BeaconMaxAge,
		CleanupLimit:   cfg.Media.CleanupBatchLimit,
	}, logger.Named("media"))
	sweeper := media.NewSweeper(mediaSvc, logger.Named("sweep"))
	postSvc := post.NewService(db, mediaSvc, mediaSvc.Keys(), logger.Named("post"))
	viewSvc := views.NewService(db, markers, views.Options{
		Location:  cfg.ViewLocation(),
		MarkerTTL: cfg.Views.RedisTTL,
	}, viewMetrics, logger.Named("views"))

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(newCORS(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	sched := pkgcron.New(logger.Named("cron"))
	registerCronJobs(sched, cfg, sweeper, logger)
	go sched.Start(ctx)

	app := &App{
		cfg:      cfg,
		router:   router,
		db:       db,
		rc:       rc,
		registry: registry,
		signer:   signer,
		logger:   logger,
		cancel:   cancel,
		sched:    sched,
	}
	app.registerRoutes(handlers{
		auth:  auth.NewHandler(authSvc),
		media: media.NewHandler(mediaSvc, sweeper),
		post:  post.NewHandler(postSvc),
		views: views.NewHandler(viewSvc),
	})
	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background jobs and closes connections.
func (a *App) Shutdown() {
	a.cancel()
	if a.rc != nil {
		if err := a.rc.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
