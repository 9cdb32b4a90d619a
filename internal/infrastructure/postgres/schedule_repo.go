package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/court-scheduler/internal/domain"
	"github.com/example/court-scheduler/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ScheduleRepository struct {
	pool *pgxpool.Pool
}

func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

const scheduleColumns = `id, kind, desired_at, trigger_at, recurrence, court_id,
	duration_min, status, booked_court, last_error, created_at, updated_at`

func (r *ScheduleRepository) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	query := `
		INSERT INTO schedules (kind, desired_at, trigger_at, recurrence, court_id, duration_min, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + scheduleColumns

	row := r.pool.QueryRow(ctx, query,
		s.Kind, s.DesiredAt, s.TriggerAt, s.Recurrence, s.CourtID, s.DurationMin, s.Status,
	)
	return scanSchedule(row)
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id)
	return scanSchedule(row)
}

func (r *ScheduleRepository) List(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	args := []any{}
	if input.Status != "" {
		args = append(args, input.Status)
		query += ` WHERE status = $1`
	}
	args = append(args, limit, input.Offset)
	query += fmt.Sprintf(` ORDER BY desired_at ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func (r *ScheduleRepository) ListPending(ctx context.Context) ([]*domain.Schedule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE status = 'pending' ORDER BY trigger_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func (r *ScheduleRepository) Cancel(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE schedules SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("cancel schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is gone or it already reached a terminal status.
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schedules WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("cancel schedule: %w", err)
		}
		if !exists {
			return domain.ErrScheduleNotFound
		}
		return domain.ErrScheduleNotPending
	}
	return nil
}

func (r *ScheduleRepository) MarkSuccess(ctx context.Context, id, bookedCourt string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE schedules
		SET status = 'success', booked_court = $2, last_error = NULL, updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id, bookedCourt)
	if err != nil {
		return fmt.Errorf("mark schedule success: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) MarkFailure(ctx context.Context, id, lastError string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE schedules
		SET status = 'failed', last_error = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id, lastError)
	if err != nil {
		return fmt.Errorf("mark schedule failure: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM schedules GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count schedules: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status domain.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *ScheduleRepository) NextPendingDesired(ctx context.Context) (*time.Time, error) {
	var next time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT desired_at FROM schedules
		WHERE status = 'pending' AND desired_at > now()
		ORDER BY desired_at ASC LIMIT 1`).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending desired: %w", err)
	}
	return &next, nil
}

func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	err := row.Scan(
		&s.ID, &s.Kind, &s.DesiredAt, &s.TriggerAt, &s.Recurrence, &s.CourtID,
		&s.DurationMin, &s.Status, &s.BookedCourt, &s.LastError, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return &s, nil
}

func scanSchedules(rows pgx.Rows) ([]*domain.Schedule, error) {
	var out []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
