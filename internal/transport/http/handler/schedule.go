package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/example/court-scheduler/internal/domain"
	"github.com/example/court-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
)

type ScheduleHandler struct {
	uc     *usecase.ScheduleUsecase
	logger *slog.Logger
}

func NewScheduleHandler(uc *usecase.ScheduleUsecase, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{uc: uc, logger: logger.With("component", "schedule_handler")}
}

type createScheduleRequest struct {
	Kind        domain.Kind `json:"kind"         binding:"required,oneof=one-off recurring"`
	DesiredTime string      `json:"desired_time" binding:"required_if=Kind one-off"`
	Recurrence  string      `json:"recurrence"   binding:"required_if=Kind recurring"`
	Occurrences int         `json:"occurrences"  binding:"omitempty,min=1,max=52"`
	CourtID     *string     `json:"court_id"     binding:"omitempty,oneof=1 2"`
	DurationMin int         `json:"duration_min" binding:"omitempty,min=30,max=180"`
}

type scheduleResponse struct {
	ID          string        `json:"id"`
	Kind        domain.Kind   `json:"kind"`
	DesiredAt   time.Time     `json:"desired_at"`
	TriggerAt   time.Time     `json:"trigger_at"`
	Recurrence  *string       `json:"recurrence,omitempty"`
	CourtID     *string       `json:"court_id,omitempty"`
	DurationMin int           `json:"duration_min"`
	Status      domain.Status `json:"status"`
	BookedCourt *string       `json:"booked_court,omitempty"`
	LastError   *string       `json:"last_error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

func toScheduleResponse(s *domain.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:          s.ID,
		Kind:        s.Kind,
		DesiredAt:   s.DesiredAt,
		TriggerAt:   s.TriggerAt,
		Recurrence:  s.Recurrence,
		CourtID:     s.CourtID,
		DurationMin: s.DurationMin,
		Status:      s.Status,
		BookedCourt: s.BookedCourt,
		LastError:   s.LastError,
		CreatedAt:   s.CreatedAt,
	}
}

func (h *ScheduleHandler) Create(ctx *gin.Context) {
	var req createScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.uc.CreateSchedule(ctx.Request.Context(), usecase.CreateScheduleInput{
		Kind:        req.Kind,
		DesiredTime: req.DesiredTime,
		Recurrence:  req.Recurrence,
		Occurrences: req.Occurrences,
		CourtID:     req.CourtID,
		DurationMin: req.DurationMin,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRecurrence):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidRecurrence})
		case errors.Is(err, domain.ErrInvalidDuration):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidDuration.Error()})
		default:
			h.logger.Error("create schedule", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	items := make([]scheduleResponse, len(created))
	for i, s := range created {
		items[i] = toScheduleResponse(s)
	}
	ctx.JSON(http.StatusCreated, gin.H{"schedules": items})
}

func (h *ScheduleHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	offset, _ := strconv.Atoi(ctx.Query("offset"))
	status := domain.Status(ctx.Query("status"))

	schedules, err := h.uc.ListSchedules(ctx.Request.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("list schedules", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	items := make([]scheduleResponse, len(schedules))
	for i, s := range schedules {
		items[i] = toScheduleResponse(s)
	}
	ctx.JSON(http.StatusOK, gin.H{"schedules": items})
}

func (h *ScheduleHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	s, err := h.uc.GetSchedule(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.Error("get schedule", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, toScheduleResponse(s))
}

func (h *ScheduleHandler) Cancel(ctx *gin.Context) {
	id := ctx.Param("id")

	err := h.uc.CancelSchedule(ctx.Request.Context(), id)
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, gin.H{"message": "schedule cancelled", "schedule_id": id})
	case errors.Is(err, domain.ErrScheduleNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
	case errors.Is(err, domain.ErrScheduleNotPending):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errScheduleNotPending})
	default:
		h.logger.Error("cancel schedule", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}
