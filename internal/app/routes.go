package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitrine/core/internal/middleware"
	"github.com/vitrine/core/internal/modules/auth"
	"github.com/vitrine/core/internal/modules/media"
	"github.com/vitrine/core/internal/modules/post"
	"github.com/vitrine/core/internal/modules/views"
	pkgcron "github.com/vitrine/core/internal/pkg/cron"
	"github.com/vitrine/core/internal/pkg/response"
)

type handlers struct {
	auth  *auth.Handler
	media *media.Handler
	post  *post.Handler
	views *views.Handler
}

func (a *App) registerRoutes(h handlers) {
	a.router.GET("/healthz", a.healthz)
	a.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	api := a.router.Group("/api/v1")
	authMW := middleware.Auth(a.signer)

	h.auth.RegisterRoutes(api)
	h.media.RegisterRoutes(api, authMW)
	h.post.RegisterRoutes(api, authMW)
	h.views.RegisterRoutes(api)

	jobs := api.Group("/cron", authMW)
	jobs.GET("", a.listJobs)
	jobs.POST("/:name/run", a.runJob)
}

func (a *App) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		response.ServiceUnavailable(c, "database unavailable")
		return
	}
	if a.rc != nil {
		if err := a.rc.Ping(ctx); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *App) listJobs(c *gin.Context) {
	response.OK(c, a.sched.List())
}

func (a *App) runJob(c *gin.Context) {
	err := a.sched.Run(c.Request.Context(), c.Param("name"))
	switch {
	case err == nil:
		response.NoContent(c)
	case errors.Is(err, pkgcron.ErrJobRunning):
		response.Conflict(c, err.Error())
	case errors.Is(err, pkgcron.ErrUnknownJob):
		response.NotFoundMsg(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
