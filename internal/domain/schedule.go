package domain

import (
	"errors"
	"time"
)

var (
	ErrScheduleNotFound   = errors.New("schedule not found")
	ErrScheduleNotPending = errors.New("schedule is not pending")
	ErrInvalidRecurrence  = errors.New("invalid recurrence expression")
	ErrInvalidDuration    = errors.New("duration must be between 30 and 180 minutes")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

type Kind string

const (
	KindOneOff    Kind = "one-off"
	KindRecurring Kind = "recurring"
)

const (
	MinDurationMin = 30
	MaxDurationMin = 180
)

// Schedule is one materialized booking attempt. Recurring requests are
// expanded into individual rows at creation time; the recurrence expression
// is kept for display only and never re-evaluated.
//
// Status is monotonic: pending -> success | failed | cancelled, and an
// entry never re-enters pending. Rows are never deleted.
type Schedule struct {
	ID          string
	Kind        Kind
	DesiredAt   time.Time // instant the court should be reserved for
	TriggerAt   time.Time // instant the booking attempt must fire
	Recurrence  *string   // cron expression, recurring entries only
	CourtID     *string   // nil means default court
	DurationMin int

	Status      Status
	BookedCourt *string // which court actually got booked, set on success
	LastError   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Schedule) Validate() error {
	if s.DurationMin < MinDurationMin || s.DurationMin > MaxDurationMin {
		return ErrInvalidDuration
	}
	return nil
}

// End returns the instant the reservation would end.
func (s *Schedule) End() time.Time {
	return s.DesiredAt.Add(time.Duration(s.DurationMin) * time.Minute)
}
