package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/example/court-scheduler/internal/domain"
	"github.com/example/court-scheduler/internal/repository"
	"github.com/example/court-scheduler/internal/timeutil"
	"github.com/robfig/cron/v3"
)

// Inserter is satisfied by *scheduler.Scheduler. Creation arms actions for
// the new rows only; cancellation removes theirs.
type Inserter interface {
	Add(entry *domain.Schedule) error
	CancelActions(scheduleID string) bool
}

type ScheduleUsecase struct {
	repo          repository.ScheduleRepository
	sched         Inserter
	zone          timeutil.Zone
	advanceWindow time.Duration
	now           func() time.Time
}

func NewScheduleUsecase(repo repository.ScheduleRepository, sched Inserter, zone timeutil.Zone, advanceWindow time.Duration) *ScheduleUsecase {
	return &ScheduleUsecase{
		repo:          repo,
		sched:         sched,
		zone:          zone,
		advanceWindow: advanceWindow,
		now:           time.Now,
	}
}

type CreateScheduleInput struct {
	Kind        domain.Kind
	DesiredTime string // one-off: local civil time, ISO-8601, no zone
	Recurrence  string // recurring: standard cron expression
	Occurrences int    // recurring: how many rows to materialize
	CourtID     *string
	DurationMin int
}

// CreateSchedule materializes one row per occurrence. Recurring requests
// are expanded here, once; the stored recurrence string is display-only.
// Every row's trigger is desired minus the provider's advance window —
// entries already inside the window are handled by the scheduler's rescue
// classification, not by special trigger arithmetic.
func (u *ScheduleUsecase) CreateSchedule(ctx context.Context, input CreateScheduleInput) ([]*domain.Schedule, error) {
	if input.DurationMin == 0 {
		input.DurationMin = 60
	}

	var desired []time.Time
	var recurrence *string

	switch input.Kind {
	case domain.KindOneOff:
		t, err := u.zone.ParseCivil(input.DesiredTime)
		if err != nil {
			return nil, fmt.Errorf("parse desired time: %w", err)
		}
		desired = []time.Time{t}

	case domain.KindRecurring:
		sched, err := cron.ParseStandard(input.Recurrence)
		if err != nil {
			return nil, domain.ErrInvalidRecurrence
		}
		n := input.Occurrences
		if n < 1 {
			n = 1
		}
		if n > 52 {
			n = 52
		}
		next := u.now().In(u.zone.Location())
		for i := 0; i < n; i++ {
			next = sched.Next(next)
			desired = append(desired, next)
		}
		recurrence = &input.Recurrence

	default:
		return nil, fmt.Errorf("unknown schedule kind %q", input.Kind)
	}

	var created []*domain.Schedule
	for _, at := range desired {
		entry := &domain.Schedule{
			Kind:        input.Kind,
			DesiredAt:   at,
			TriggerAt:   at.Add(-u.advanceWindow),
			Recurrence:  recurrence,
			CourtID:     input.CourtID,
			DurationMin: input.DurationMin,
			Status:      domain.StatusPending,
		}
		if err := entry.Validate(); err != nil {
			return nil, err
		}
		row, err := u.repo.Create(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("create schedule: %w", err)
		}
		if err := u.sched.Add(row); err != nil {
			return nil, fmt.Errorf("arm schedule %s: %w", row.ID, err)
		}
		created = append(created, row)
	}
	return created, nil
}

func (u *ScheduleUsecase) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	s, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

func (u *ScheduleUsecase) ListSchedules(ctx context.Context, status domain.Status, limit, offset int) ([]*domain.Schedule, error) {
	out, err := u.repo.List(ctx, repository.ListSchedulesInput{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return out, nil
}

// CancelSchedule transitions pending -> cancelled and disarms the entry's
// actions. The repository write happens first: an action that fires in the
// window between the write and the disarm sees a non-pending row and skips.
func (u *ScheduleUsecase) CancelSchedule(ctx context.Context, id string) error {
	if err := u.repo.Cancel(ctx, id); err != nil {
		return err
	}
	u.sched.CancelActions(id)
	return nil
}
