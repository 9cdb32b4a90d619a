package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/court-scheduler/internal/domain"
	"github.com/example/court-scheduler/internal/secretbox"
)

// ---- fakes ----

type fakeCredRepo struct {
	get func(ctx context.Context) (*domain.Credential, error)
	put func(ctx context.Context, c *domain.Credential) error
}

func (r *fakeCredRepo) Get(ctx context.Context) (*domain.Credential, error) { return r.get(ctx) }
func (r *fakeCredRepo) Put(ctx context.Context, c *domain.Credential) error { return r.put(ctx, c) }

type fakeExchanger struct {
	exchange func(ctx context.Context, refreshToken string) (*TokenResponse, error)
	calls    int
}

func (e *fakeExchanger) Exchange(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	e.calls++
	return e.exchange(ctx, refreshToken)
}

// ---- helpers ----

var (
	testNow   = time.Date(2026, 7, 11, 12, 0, 0, 0, time.UTC)
	testGuard = 2 * time.Second
)

func newTestBox(t *testing.T) *secretbox.Box {
	t.Helper()
	box, err := secretbox.New(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	return box
}

func newTestManager(t *testing.T, repo *fakeCredRepo, client Exchanger) (*Manager, *secretbox.Box) {
	t.Helper()
	box := newTestBox(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(repo, box, client, testGuard, logger)
	m.now = func() time.Time { return testNow }
	return m, box
}

func seal(t *testing.T, box *secretbox.Box, s string) string {
	t.Helper()
	sealed, err := box.Seal(s)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	return sealed
}

func validResponse() *TokenResponse {
	return &TokenResponse{
		AccessToken:      "new-access",
		RefreshToken:     "new-refresh",
		ExpiresIn:        300,
		RefreshExpiresIn: 1800,
		SessionState:     "sess-2",
	}
}

// ---- EnsureFresh ----

func TestEnsureFresh_ValidAccess_NoExchange(t *testing.T) {
	box := newTestBox(t)
	client := &fakeExchanger{
		exchange: func(_ context.Context, _ string) (*TokenResponse, error) {
			return nil, errors.New("should not be called")
		},
	}
	repo := &fakeCredRepo{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(repo, box, client, testGuard, logger)
	m.now = func() time.Time { return testNow }

	repo.get = func(_ context.Context) (*domain.Credential, error) {
		return &domain.Credential{
			AccessSecret:  seal(t, box, "stored-access"),
			RefreshSecret: seal(t, box, "stored-refresh"),
			AccessExpiry:  testNow.Add(time.Minute),
			RefreshExpiry: testNow.Add(time.Hour),
		}, nil
	}

	got, err := m.EnsureFresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "stored-access" {
		t.Errorf("access = %q, want stored one", got)
	}
	if client.calls != 0 {
		t.Errorf("exchange called %d times, want 0", client.calls)
	}
}

func TestEnsureFresh_InsideGuardBand_Refreshes(t *testing.T) {
	client := &fakeExchanger{
		exchange: func(_ context.Context, _ string) (*TokenResponse, error) {
			return validResponse(), nil
		},
	}
	repo := &fakeCredRepo{}
	m, box := newTestManager(t, repo, client)

	repo.get = func(_ context.Context) (*domain.Credential, error) {
		return &domain.Credential{
			AccessSecret:  seal(t, box, "stored-access"),
			RefreshSecret: seal(t, box, "stored-refresh"),
			AccessExpiry:  testNow.Add(time.Second), // inside the 2s guard band
			RefreshExpiry: testNow.Add(time.Hour),
		}, nil
	}
	repo.put = func(_ context.Context, _ *domain.Credential) error { return nil }

	got, err := m.EnsureFresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "new-access" {
		t.Errorf("access = %q, want refreshed one", got)
	}
	if client.calls != 1 {
		t.Errorf("exchange called %d times, want 1", client.calls)
	}
}

func TestEnsureFresh_StoresAnchoredExpiries(t *testing.T) {
	client := &fakeExchanger{
		exchange: func(_ context.Context, _ string) (*TokenResponse, error) {
			return validResponse(), nil
		},
	}
	repo := &fakeCredRepo{}
	m, box := newTestManager(t, repo, client)

	var stored *domain.Credential
	repo.get = func(_ context.Context) (*domain.Credential, error) {
		return &domain.Credential{
			AccessSecret:  seal(t, box, "stored-access"),
			RefreshSecret: seal(t, box, "stored-refresh"),
			AccessExpiry:  testNow.Add(-time.Minute),
			RefreshExpiry: testNow.Add(time.Hour),
		}, nil
	}
	repo.put = func(_ context.Context, c *domain.Credential) error {
		stored = c
		return nil
	}

	if _, err := m.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil {
		t.Fatal("nothing stored")
	}

	if want := testNow.Add(300 * time.Second); !stored.AccessExpiry.Equal(want) {
		t.Errorf("access expiry = %v, want %v", stored.AccessExpiry, want)
	}
	if want := testNow.Add(1800 * time.Second); !stored.RefreshExpiry.Equal(want) {
		t.Errorf("refresh expiry = %v, want %v", stored.RefreshExpiry, want)
	}
	if stored.SessionMarker != "sess-2" {
		t.Errorf("session marker = %q", stored.SessionMarker)
	}

	// Both secrets are stored sealed, never as plaintext.
	if stored.AccessSecret == "new-access" || stored.RefreshSecret == "new-refresh" {
		t.Fatal("secrets stored unsealed")
	}
	if got, _ := box.Open(stored.RefreshSecret); got != "new-refresh" {
		t.Errorf("sealed refresh opens to %q", got)
	}
}

func TestEnsureFresh_DeadRefresh_ReturnsExpired(t *testing.T) {
	client := &fakeExchanger{
		exchange: func(_ context.Context, _ string) (*TokenResponse, error) {
			return nil, errors.New("should not be called")
		},
	}
	repo := &fakeCredRepo{}
	m, box := newTestManager(t, repo, client)

	repo.get = func(_ context.Context) (*domain.Credential, error) {
		return &domain.Credential{
			AccessSecret:  seal(t, box, "stored-access"),
			RefreshSecret: seal(t, box, "stored-refresh"),
			AccessExpiry:  testNow.Add(-time.Minute),
			RefreshExpiry: testNow.Add(-time.Second),
		}, nil
	}

	_, err := m.EnsureFresh(context.Background())
	if !errors.Is(err, domain.ErrCredentialExpired) {
		t.Fatalf("want ErrCredentialExpired, got %v", err)
	}
	if client.calls != 0 {
		t.Errorf("exchange called %d times, want 0", client.calls)
	}
}

func TestEnsureFresh_ExchangeFails_StoredUntouched(t *testing.T) {
	client := &fakeExchanger{
		exchange: func(_ context.Context, _ string) (*TokenResponse, error) {
			return nil, errors.New("endpoint down")
		},
	}
	repo := &fakeCredRepo{}
	m, box := newTestManager(t, repo, client)

	putCalls := 0
	repo.get = func(_ context.Context) (*domain.Credential, error) {
		return &domain.Credential{
			AccessSecret:  seal(t, box, "stored-access"),
			RefreshSecret: seal(t, box, "stored-refresh"),
			AccessExpiry:  testNow.Add(-time.Minute),
			RefreshExpiry: testNow.Add(time.Hour),
		}, nil
	}
	repo.put = func(_ context.Context, _ *domain.Credential) error {
		putCalls++
		return nil
	}

	if _, err := m.EnsureFresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if putCalls != 0 {
		t.Errorf("put called %d times after failed exchange, want 0", putCalls)
	}
}

// ---- ForceRefresh ----

func TestForceRefresh_ExchangesDespiteValidAccess(t *testing.T) {
	client := &fakeExchanger{
		exchange: func(_ context.Context, refreshToken string) (*TokenResponse, error) {
			if refreshToken != "stored-refresh" {
				t.Errorf("exchanged %q, want the stored refresh secret", refreshToken)
			}
			return validResponse(), nil
		},
	}
	repo := &fakeCredRepo{}
	m, box := newTestManager(t, repo, client)

	repo.get = func(_ context.Context) (*domain.Credential, error) {
		return &domain.Credential{
			AccessSecret:  seal(t, box, "stored-access"),
			RefreshSecret: seal(t, box, "stored-refresh"),
			AccessExpiry:  testNow.Add(time.Hour), // perfectly valid
			RefreshExpiry: testNow.Add(time.Hour),
		}, nil
	}
	repo.put = func(_ context.Context, _ *domain.Credential) error { return nil }

	got, err := m.ForceRefresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "new-access" {
		t.Errorf("access = %q, want refreshed one", got)
	}
	if client.calls != 1 {
		t.Errorf("exchange called %d times, want 1", client.calls)
	}
}

// ---- Bootstrap ----

func TestBootstrap_ExchangesSuppliedSecret(t *testing.T) {
	client := &fakeExchanger{
		exchange: func(_ context.Context, refreshToken string) (*TokenResponse, error) {
			if refreshToken != "pasted-by-operator" {
				t.Errorf("exchanged %q, want the supplied secret", refreshToken)
			}
			return validResponse(), nil
		},
	}
	repo := &fakeCredRepo{}
	m, box := newTestManager(t, repo, client)

	var stored *domain.Credential
	// Bootstrap never reads the stored credential; only writes.
	repo.get = func(_ context.Context) (*domain.Credential, error) {
		return nil, domain.ErrCredentialMissing
	}
	repo.put = func(_ context.Context, c *domain.Credential) error {
		stored = c
		return nil
	}

	if err := m.Bootstrap(context.Background(), "pasted-by-operator"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil {
		t.Fatal("nothing stored")
	}
	if got, _ := box.Open(stored.AccessSecret); got != "new-access" {
		t.Errorf("sealed access opens to %q", got)
	}
}

func TestBootstrap_BadSecret_NothingStored(t *testing.T) {
	client := &fakeExchanger{
		exchange: func(_ context.Context, _ string) (*TokenResponse, error) {
			return nil, errors.New("invalid_grant")
		},
	}
	repo := &fakeCredRepo{}
	m, _ := newTestManager(t, repo, client)

	putCalls := 0
	repo.put = func(_ context.Context, _ *domain.Credential) error {
		putCalls++
		return nil
	}

	if err := m.Bootstrap(context.Background(), "typo"); err == nil {
		t.Fatal("expected error")
	}
	if putCalls != 0 {
		t.Errorf("put called %d times, want 0", putCalls)
	}
}

// ---- OnRefreshed hook ----

func TestOnRefreshed_FiresWithNewExpiries(t *testing.T) {
	client := &fakeExchanger{
		exchange: func(_ context.Context, _ string) (*TokenResponse, error) {
			return validResponse(), nil
		},
	}
	repo := &fakeCredRepo{}
	m, box := newTestManager(t, repo, client)

	repo.get = func(_ context.Context) (*domain.Credential, error) {
		return &domain.Credential{
			AccessSecret:  seal(t, box, "stored-access"),
			RefreshSecret: seal(t, box, "stored-refresh"),
			AccessExpiry:  testNow.Add(-time.Minute),
			RefreshExpiry: testNow.Add(time.Hour),
		}, nil
	}
	repo.put = func(_ context.Context, _ *domain.Credential) error { return nil }

	var hookAccess, hookRefresh time.Time
	m.OnRefreshed(func(accessExpiry, refreshExpiry time.Time) {
		hookAccess, hookRefresh = accessExpiry, refreshExpiry
	})

	if _, err := m.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := testNow.Add(300 * time.Second); !hookAccess.Equal(want) {
		t.Errorf("hook access expiry = %v, want %v", hookAccess, want)
	}
	if want := testNow.Add(1800 * time.Second); !hookRefresh.Equal(want) {
		t.Errorf("hook refresh expiry = %v, want %v", hookRefresh, want)
	}
}
