package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/court-scheduler/internal/domain"
	"github.com/example/court-scheduler/internal/metrics"
	"github.com/example/court-scheduler/internal/repository"
	"github.com/example/court-scheduler/internal/secretbox"
)

// Exchanger is satisfied by *Client.
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// Manager implements the token refresh protocol for the single credential.
// All refresh paths run under one mutex: two refreshes can never interleave
// their reads and writes of the credential row.
type Manager struct {
	repo   repository.CredentialRepository
	box    *secretbox.Box
	client Exchanger
	logger *slog.Logger

	guard time.Duration
	now   func() time.Time

	mu          sync.Mutex
	onRefreshed func(accessExpiry, refreshExpiry time.Time)
}

func NewManager(repo repository.CredentialRepository, box *secretbox.Box, client Exchanger, guard time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		repo:   repo,
		box:    box,
		client: client,
		logger: logger.With("component", "token_manager"),
		guard:  guard,
		now:    time.Now,
	}
}

// OnRefreshed registers a hook invoked with the new expiries after every
// successful exchange, whichever path triggered it. The trigger scheduler
// uses it to re-arm the refresh cadence.
func (m *Manager) OnRefreshed(fn func(accessExpiry, refreshExpiry time.Time)) {
	m.mu.Lock()
	m.onRefreshed = fn
	m.mu.Unlock()
}

// EnsureFresh returns a usable plaintext access secret. If the stored one
// is still valid past the guard band, no network call happens. Otherwise it
// performs the refresh exchange. A dead refresh secret yields
// domain.ErrCredentialExpired; a failed exchange leaves the stored values
// untouched (stale but valid until their own expiry).
func (m *Manager) EnsureFresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.repo.Get(ctx)
	if err != nil {
		return "", err
	}

	now := m.now()
	if cred.AccessValid(now, m.guard) {
		return m.box.Open(cred.AccessSecret)
	}
	if !cred.RefreshValid(now) {
		m.logger.Error("refresh secret expired; supply a new one",
			"refresh_expiry", cred.RefreshExpiry)
		metrics.TokenRefreshesTotal.WithLabelValues("expired").Inc()
		return "", domain.ErrCredentialExpired
	}

	return m.refreshLocked(ctx, cred)
}

// ForceRefresh performs the exchange regardless of the access expiry. Token
// prep uses it right before a booking attempt to maximize freshness.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.repo.Get(ctx)
	if err != nil {
		return "", err
	}
	if !cred.RefreshValid(m.now()) {
		m.logger.Error("refresh secret expired; supply a new one",
			"refresh_expiry", cred.RefreshExpiry)
		metrics.TokenRefreshesTotal.WithLabelValues("expired").Inc()
		return "", domain.ErrCredentialExpired
	}
	return m.refreshLocked(ctx, cred)
}

// Bootstrap installs an operator-supplied refresh secret by exchanging it
// immediately. It runs regardless of the stored credential's state and
// overwrites it on success.
func (m *Manager) Bootstrap(ctx context.Context, newRefreshSecret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, err := m.client.Exchange(ctx, newRefreshSecret)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("transport_error").Inc()
		return fmt.Errorf("bootstrap exchange: %w", err)
	}
	if err := m.storeLocked(ctx, tr); err != nil {
		return err
	}
	m.logger.Info("credential bootstrapped from new refresh secret")
	return nil
}

// Status returns the expiry snapshot for the status surface. Secrets stay
// sealed.
func (m *Manager) Status(ctx context.Context) (*domain.Credential, error) {
	return m.repo.Get(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context, cred *domain.Credential) (string, error) {
	refresh, err := m.box.Open(cred.RefreshSecret)
	if err != nil {
		return "", fmt.Errorf("open refresh secret: %w", err)
	}

	tr, err := m.client.Exchange(ctx, refresh)
	if err != nil {
		// Stored credential stays exactly as it was.
		metrics.TokenRefreshesTotal.WithLabelValues("transport_error").Inc()
		return "", fmt.Errorf("refresh exchange: %w", err)
	}
	if err := m.storeLocked(ctx, tr); err != nil {
		return "", err
	}
	return tr.AccessToken, nil
}

func (m *Manager) storeLocked(ctx context.Context, tr *TokenResponse) error {
	sealedAccess, err := m.box.Seal(tr.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access secret: %w", err)
	}
	sealedRefresh, err := m.box.Seal(tr.RefreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh secret: %w", err)
	}

	now := m.now()
	cred := &domain.Credential{
		AccessSecret:  sealedAccess,
		RefreshSecret: sealedRefresh,
		AccessExpiry:  now.Add(time.Duration(tr.ExpiresIn) * time.Second),
		RefreshExpiry: now.Add(time.Duration(tr.RefreshExpiresIn) * time.Second),
		SessionMarker: tr.SessionState,
	}
	if err := m.repo.Put(ctx, cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	m.logger.Info("token refreshed",
		"access_expiry", cred.AccessExpiry,
		"refresh_expiry", cred.RefreshExpiry)

	if m.onRefreshed != nil {
		m.onRefreshed(cred.AccessExpiry, cred.RefreshExpiry)
	}
	return nil
}
