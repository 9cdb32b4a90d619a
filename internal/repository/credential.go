package repository

import (
	"context"

	"github.com/example/court-scheduler/internal/domain"
)

// CredentialRepository stores the single credential row for the external
// account. Get returns domain.ErrCredentialMissing when nothing has been
// loaded yet; Put replaces the whole row atomically — there is no
// partial-field update path.
type CredentialRepository interface {
	Get(ctx context.Context) (*domain.Credential, error)
	Put(ctx context.Context, c *domain.Credential) error
}
