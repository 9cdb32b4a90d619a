package repository

import (
	"context"
	"time"

	"github.com/example/court-scheduler/internal/domain"
)

type ListSchedulesInput struct {
	Status domain.Status // empty = all statuses
	Limit  int
	Offset int
}

// The scheduler, executor and HTTP layer all depend on this interface, not
// on the pgx implementation, so tests can pass closure-based fakes.
type ScheduleRepository interface {
	Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	GetByID(ctx context.Context, id string) (*domain.Schedule, error)
	List(ctx context.Context, input ListSchedulesInput) ([]*domain.Schedule, error)

	// ListPending feeds startup reconciliation.
	ListPending(ctx context.Context) ([]*domain.Schedule, error)

	// Cancel transitions pending -> cancelled. It distinguishes a row that
	// does not exist (ErrScheduleNotFound) from one that is no longer
	// pending (ErrScheduleNotPending).
	Cancel(ctx context.Context, id string) error

	// Terminal outcomes written by the booking executor. Both are row-level
	// atomic updates guarded on status = 'pending'.
	MarkSuccess(ctx context.Context, id, bookedCourt string) error
	MarkFailure(ctx context.Context, id, lastError string) error

	CountByStatus(ctx context.Context) (map[domain.Status]int, error)
	NextPendingDesired(ctx context.Context) (*time.Time, error)
}
