package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/court-scheduler/internal/domain"
	"github.com/example/court-scheduler/internal/repository"
)

// CredentialStatus is what the status surface may see: expiry facts only,
// never the secrets themselves.
type CredentialStatus struct {
	HasRefreshSecret      bool       `json:"has_refresh_secret"`
	AccessValid           bool       `json:"access_valid"`
	AccessExpiry          *time.Time `json:"access_expiry,omitempty"`
	RefreshExpiry         *time.Time `json:"refresh_expiry,omitempty"`
	RefreshExpired        bool       `json:"refresh_expired"`
	DaysUntilRefreshDeath *float64   `json:"days_until_refresh_expires,omitempty"`
}

type Stats struct {
	Total       int        `json:"total_schedules"`
	Pending     int        `json:"pending_schedules"`
	Success     int        `json:"successful_schedules"`
	Failed      int        `json:"failed_schedules"`
	Cancelled   int        `json:"cancelled_schedules"`
	NextBooking *time.Time `json:"next_booking,omitempty"`
}

type Alert struct {
	Type           string `json:"type"` // critical | warning
	Category       string `json:"category"`
	Message        string `json:"message"`
	ActionRequired string `json:"action_required"`
}

type StatusUsecase struct {
	schedules repository.ScheduleRepository
	creds     repository.CredentialRepository
	guard     time.Duration
	now       func() time.Time
}

func NewStatusUsecase(schedules repository.ScheduleRepository, creds repository.CredentialRepository, guard time.Duration) *StatusUsecase {
	return &StatusUsecase{schedules: schedules, creds: creds, guard: guard, now: time.Now}
}

func (u *StatusUsecase) Stats(ctx context.Context) (*Stats, error) {
	counts, err := u.schedules.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	next, err := u.schedules.NextPendingDesired(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return &Stats{
		Total:       total,
		Pending:     counts[domain.StatusPending],
		Success:     counts[domain.StatusSuccess],
		Failed:      counts[domain.StatusFailed],
		Cancelled:   counts[domain.StatusCancelled],
		NextBooking: next,
	}, nil
}

func (u *StatusUsecase) CredentialStatus(ctx context.Context) (*CredentialStatus, error) {
	cred, err := u.creds.Get(ctx)
	if errors.Is(err, domain.ErrCredentialMissing) {
		return &CredentialStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credential status: %w", err)
	}

	now := u.now()
	status := &CredentialStatus{
		HasRefreshSecret: cred.RefreshSecret != "",
		AccessValid:      cred.AccessValid(now, u.guard),
		AccessExpiry:     &cred.AccessExpiry,
		RefreshExpiry:    &cred.RefreshExpiry,
		RefreshExpired:   !cred.RefreshValid(now),
	}
	if cred.RefreshValid(now) {
		days := cred.RefreshExpiry.Sub(now).Hours() / 24
		status.DaysUntilRefreshDeath = &days
	}
	return status, nil
}

// Alerts aggregates the conditions an operator needs to act on. The only
// user-visible outcome signal is the schedule status; alerts exist to warn
// about entries whose window overlaps a broken credential.
func (u *StatusUsecase) Alerts(ctx context.Context) ([]Alert, error) {
	var alerts []Alert
	now := u.now()

	cred, err := u.creds.Get(ctx)
	switch {
	case errors.Is(err, domain.ErrCredentialMissing):
		alerts = append(alerts, Alert{
			Type:           "critical",
			Category:       "authentication",
			Message:        "No credential configured.",
			ActionRequired: "Supply a refresh secret via POST /api/v1/token.",
		})
	case err != nil:
		return nil, fmt.Errorf("alerts: %w", err)
	default:
		if !cred.RefreshValid(now) {
			alerts = append(alerts, Alert{
				Type:           "critical",
				Category:       "authentication",
				Message:        "Refresh secret has expired; scheduled bookings will fail.",
				ActionRequired: "Supply a new refresh secret via POST /api/v1/token.",
			})
		} else if left := cred.RefreshExpiry.Sub(now); left < 7*24*time.Hour {
			alerts = append(alerts, Alert{
				Type:           "warning",
				Category:       "authentication",
				Message:        fmt.Sprintf("Refresh secret expires in %.1f days.", left.Hours()/24),
				ActionRequired: "Plan a token renewal.",
			})
		}
		if !cred.AccessValid(now, u.guard) {
			alerts = append(alerts, Alert{
				Type:           "warning",
				Category:       "authentication",
				Message:        "Access secret is stale; the next attempt depends on a successful refresh.",
				ActionRequired: "Monitor the next booking attempt.",
			})
		}
	}

	// When authentication is broken, say how many pending entries are
	// exposed to it.
	hasCritical := false
	for _, a := range alerts {
		if a.Type == "critical" {
			hasCritical = true
			break
		}
	}
	if hasCritical {
		counts, err := u.schedules.CountByStatus(ctx)
		if err != nil {
			return nil, fmt.Errorf("alerts: %w", err)
		}
		if pending := counts[domain.StatusPending]; pending > 0 {
			alerts = append(alerts, Alert{
				Type:           "warning",
				Category:       "scheduling",
				Message:        fmt.Sprintf("%d pending schedules cannot book while authentication is broken.", pending),
				ActionRequired: "Fix authentication before their trigger times.",
			})
		}
	}
	return alerts, nil
}
