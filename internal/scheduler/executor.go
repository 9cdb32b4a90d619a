package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/court-scheduler/internal/booking"
	"github.com/example/court-scheduler/internal/domain"
	"github.com/example/court-scheduler/internal/metrics"
	"github.com/example/court-scheduler/internal/repository"
)

// TokenSource is satisfied by *auth.Manager.
type TokenSource interface {
	EnsureFresh(ctx context.Context) (string, error)
}

// Booker is satisfied by *booking.Client.
type Booker interface {
	Reserve(ctx context.Context, accessToken string, r booking.Reservation) error
}

// Executor performs one booking attempt for one schedule entry. The
// fallback policy is single-level: a failed first attempt reports the
// alternate court back to the scheduler, which arms one retry_booking
// action; a failure on that forced branch is terminal.
type Executor struct {
	repo   repository.ScheduleRepository
	tokens TokenSource
	client Booker
	logger *slog.Logger
}

func NewExecutor(repo repository.ScheduleRepository, tokens TokenSource, client Booker, logger *slog.Logger) *Executor {
	return &Executor{
		repo:   repo,
		tokens: tokens,
		client: client,
		logger: logger.With("component", "booking_executor"),
	}
}

// Outcome reports how a firing ended. A non-empty FallbackCourt asks the
// scheduler to retry once against that court.
type Outcome struct {
	Booked        bool
	FallbackCourt string
}

func (e *Executor) Run(ctx context.Context, scheduleID, forcedCourt string) Outcome {
	entry, err := e.repo.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			e.logger.Error("schedule vanished before booking", "schedule_id", scheduleID)
		} else {
			e.logger.Error("load schedule for booking", "schedule_id", scheduleID, "error", err)
		}
		return Outcome{}
	}
	if entry.Status != domain.StatusPending {
		// Cancelled (or already terminal) after the action fired. Nothing
		// to do; cancellation only prevents future firings.
		e.logger.Info("skipping booking for non-pending schedule",
			"schedule_id", scheduleID, "status", entry.Status)
		return Outcome{}
	}

	court := forcedCourt
	if court == "" {
		court = booking.CourtOne
		if entry.CourtID != nil && *entry.CourtID != "" {
			court = *entry.CourtID
		}
	}

	attempt := "initial"
	if forcedCourt != "" {
		attempt = "retry"
	}
	e.logger.Info("attempting booking",
		"schedule_id", scheduleID, "court", court, "attempt", attempt,
		"desired_at", entry.DesiredAt, "duration_min", entry.DurationMin)

	start := time.Now()
	bookErr := e.book(ctx, entry, court)
	elapsed := time.Since(start).Seconds()

	if bookErr == nil {
		metrics.BookingAttemptDuration.WithLabelValues("success").Observe(elapsed)
		outcome := "success"
		if forcedCourt != "" {
			outcome = "fallback_success"
		}
		metrics.BookingsTotal.WithLabelValues(outcome).Inc()
		if err := e.repo.MarkSuccess(ctx, scheduleID, court); err != nil {
			e.logger.Error("record booking success", "schedule_id", scheduleID, "error", err)
		}
		e.logger.Info("booking succeeded", "schedule_id", scheduleID, "court", court)
		return Outcome{Booked: true}
	}

	metrics.BookingAttemptDuration.WithLabelValues("failure").Observe(elapsed)

	if forcedCourt == "" {
		other := booking.OtherCourt(court)
		e.logger.Warn("booking failed, will retry on the other court",
			"schedule_id", scheduleID, "court", court, "fallback", other, "error", bookErr)
		return Outcome{FallbackCourt: other}
	}

	metrics.BookingsTotal.WithLabelValues("failed").Inc()
	e.logger.Error("booking failed on both courts", "schedule_id", scheduleID, "error", bookErr)
	if err := e.repo.MarkFailure(ctx, scheduleID, bookErr.Error()); err != nil {
		e.logger.Error("record booking failure", "schedule_id", scheduleID, "error", err)
	}
	return Outcome{}
}

func (e *Executor) book(ctx context.Context, entry *domain.Schedule, court string) error {
	token, err := e.tokens.EnsureFresh(ctx)
	if err != nil {
		return err
	}
	return e.client.Reserve(ctx, token, booking.Reservation{
		CourtID: court,
		Start:   entry.DesiredAt,
		End:     entry.End(),
		Guests:  1,
	})
}
