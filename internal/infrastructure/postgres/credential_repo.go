package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/court-scheduler/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CredentialRepository persists the single credential row (id fixed at 1).
type CredentialRepository struct {
	pool *pgxpool.Pool
}

func NewCredentialRepository(pool *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

func (r *CredentialRepository) Get(ctx context.Context) (*domain.Credential, error) {
	var c domain.Credential
	err := r.pool.QueryRow(ctx,
		`SELECT access_secret, refresh_secret, access_expiry, refresh_expiry, session_marker, updated_at
		FROM credentials WHERE id = 1`).
		Scan(&c.AccessSecret, &c.RefreshSecret, &c.AccessExpiry, &c.RefreshExpiry, &c.SessionMarker, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCredentialMissing
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}

func (r *CredentialRepository) Put(ctx context.Context, c *domain.Credential) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO credentials (id, access_secret, refresh_secret, access_expiry, refresh_expiry, session_marker, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			access_secret  = EXCLUDED.access_secret,
			refresh_secret = EXCLUDED.refresh_secret,
			access_expiry  = EXCLUDED.access_expiry,
			refresh_expiry = EXCLUDED.refresh_expiry,
			session_marker = EXCLUDED.session_marker,
			updated_at     = now()`,
		c.AccessSecret, c.RefreshSecret, c.AccessExpiry, c.RefreshExpiry, c.SessionMarker)
	if err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}
