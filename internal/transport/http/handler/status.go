package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/example/court-scheduler/internal/scheduler"
	"github.com/example/court-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
)

type StatusHandler struct {
	status *usecase.StatusUsecase
	sched  *scheduler.Scheduler
	logger *slog.Logger
}

func NewStatusHandler(status *usecase.StatusUsecase, sched *scheduler.Scheduler, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{status: status, sched: sched, logger: logger.With("component", "status_handler")}
}

func (h *StatusHandler) SchedulerStatus(ctx *gin.Context) {
	next := h.sched.NextByKind()
	nextOut := make(map[string]time.Time, len(next))
	for kind, at := range next {
		nextOut[string(kind)] = at
	}
	ctx.JSON(http.StatusOK, gin.H{
		"running":       h.sched.Running(),
		"armed_actions": len(h.sched.Actions()),
		"next_by_kind":  nextOut,
	})
}

// Actions lists armed actions ordered by fire instant. Optional filters:
// ?kind=booking narrows to one action kind, ?hours=24 keeps only actions
// firing within that horizon.
func (h *StatusHandler) Actions(ctx *gin.Context) {
	actions := h.sched.Actions()

	if kind := ctx.Query("kind"); kind != "" {
		filtered := actions[:0]
		for _, a := range actions {
			if string(a.Kind) == kind {
				filtered = append(filtered, a)
			}
		}
		actions = filtered
	}
	if hoursStr := ctx.Query("hours"); hoursStr != "" {
		hours, err := strconv.Atoi(hoursStr)
		if err != nil || hours < 1 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		horizon := time.Now().Add(time.Duration(hours) * time.Hour)
		filtered := actions[:0]
		for _, a := range actions {
			if a.FireAt.Before(horizon) {
				filtered = append(filtered, a)
			}
		}
		actions = filtered
	}

	if actions == nil {
		actions = []scheduler.ActionView{}
	}
	ctx.JSON(http.StatusOK, gin.H{"actions": actions, "count": len(actions)})
}

func (h *StatusHandler) Stats(ctx *gin.Context) {
	stats, err := h.status.Stats(ctx.Request.Context())
	if err != nil {
		h.logger.Error("stats", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

func (h *StatusHandler) Alerts(ctx *gin.Context) {
	alerts, err := h.status.Alerts(ctx.Request.Context())
	if err != nil {
		h.logger.Error("alerts", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	if alerts == nil {
		alerts = []usecase.Alert{}
	}
	ctx.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}
