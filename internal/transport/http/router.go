package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/example/court-scheduler/internal/health"
	"github.com/example/court-scheduler/internal/transport/http/handler"
	"github.com/example/court-scheduler/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(
	logger *slog.Logger,
	scheduleHandler *handler.ScheduleHandler,
	statusHandler *handler.StatusHandler,
	tokenHandler *handler.TokenHandler,
	checker *health.Checker,
	hmacKey []byte,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, checker.Liveness(ctx.Request.Context()))
	})
	r.GET("/readyz", func(ctx *gin.Context) {
		result := checker.Readiness(ctx.Request.Context())
		code := http.StatusOK
		if result.Status != "up" {
			code = http.StatusServiceUnavailable
		}
		ctx.JSON(code, result)
	})

	authMW := middleware.Auth(hmacKey)

	api := r.Group("/api/v1")

	schedules := api.Group("/schedules", authMW)
	schedules.POST("", scheduleHandler.Create)
	schedules.GET("", scheduleHandler.List)
	schedules.GET("/:id", scheduleHandler.GetByID)
	schedules.DELETE("/:id", scheduleHandler.Cancel)

	sched := api.Group("/scheduler", authMW)
	sched.GET("/status", statusHandler.SchedulerStatus)
	sched.GET("/actions", statusHandler.Actions)

	token := api.Group("/token", authMW)
	token.GET("/status", tokenHandler.Status)
	token.POST("", tokenHandler.Bootstrap)

	api.GET("/stats", authMW, statusHandler.Stats)
	api.GET("/alerts", authMW, statusHandler.Alerts)

	return r
}
