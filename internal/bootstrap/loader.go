// Package bootstrap loads operator-authored seed files at startup. Both
// files are optional; a configured path that cannot be read or parsed
// aborts startup rather than running with half the intended state.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/court-scheduler/internal/domain"
	"github.com/example/court-scheduler/internal/usecase"
)

// TokenInstaller is satisfied by *auth.Manager.
type TokenInstaller interface {
	Bootstrap(ctx context.Context, newRefreshSecret string) error
}

type tokenFile struct {
	RefreshToken string `json:"refresh_token"`
}

type scheduleSeed struct {
	Type        string  `json:"type"`
	DesiredTime string  `json:"desired_time,omitempty"`
	Recurrence  string  `json:"recurrence,omitempty"`
	Occurrences int     `json:"occurrences,omitempty"`
	CourtID     *string `json:"court_id,omitempty"`
	DurationMin int     `json:"duration_min,omitempty"`
}

// LoadTokens installs the refresh secret from the token seed file. The
// secret is exchanged immediately, so the stored credential always carries
// real expiries.
func LoadTokens(ctx context.Context, path string, tokens TokenInstaller, logger *slog.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read token file %s: %w", path, err)
	}
	var tf tokenFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return fmt.Errorf("parse token file %s: %w", path, err)
	}
	if tf.RefreshToken == "" {
		return fmt.Errorf("token file %s has no refresh_token", path)
	}
	if err := tokens.Bootstrap(ctx, tf.RefreshToken); err != nil {
		return err
	}
	logger.Info("token seed installed", "path", path)
	return nil
}

// LoadSchedules creates schedule rows from the seed file through the same
// path the HTTP surface uses, so seeded entries get armed like any other.
func LoadSchedules(ctx context.Context, path string, uc *usecase.ScheduleUsecase, logger *slog.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schedule file %s: %w", path, err)
	}
	var seeds []scheduleSeed
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return fmt.Errorf("parse schedule file %s: %w", path, err)
	}

	created := 0
	for i, s := range seeds {
		rows, err := uc.CreateSchedule(ctx, usecase.CreateScheduleInput{
			Kind:        domain.Kind(s.Type),
			DesiredTime: s.DesiredTime,
			Recurrence:  s.Recurrence,
			Occurrences: s.Occurrences,
			CourtID:     s.CourtID,
			DurationMin: s.DurationMin,
		})
		if err != nil {
			return fmt.Errorf("schedule seed %d in %s: %w", i, path, err)
		}
		created += len(rows)
	}
	logger.Info("schedule seeds loaded", "path", path, "entries", len(seeds), "rows", created)
	return nil
}
