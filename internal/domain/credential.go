package domain

import (
	"errors"
	"time"
)

var (
	// ErrCredentialMissing means no credential has ever been loaded.
	// Bookings cannot run until an operator supplies a refresh secret.
	ErrCredentialMissing = errors.New("no credential configured")

	// ErrCredentialExpired means the refresh secret itself is past its
	// expiry. Fatal for bookings, not for the process: an operator must
	// supply a new refresh secret out of band.
	ErrCredentialExpired = errors.New("refresh secret expired")
)

// Credential holds the OAuth secrets for the single external account.
// Both secrets are stored sealed (AES-GCM, base64) and are only opened
// in memory for the duration of a call.
//
// Expiries are monotonically non-decreasing across successful refreshes;
// a failed refresh leaves every field untouched.
type Credential struct {
	AccessSecret  string // sealed
	RefreshSecret string // sealed
	AccessExpiry  time.Time
	RefreshExpiry time.Time
	SessionMarker string

	UpdatedAt time.Time
}

// AccessValid reports whether the access secret is still usable at now,
// leaving the guard band before the hard expiry.
func (c *Credential) AccessValid(now time.Time, guard time.Duration) bool {
	return c.AccessExpiry.After(now.Add(guard))
}

// RefreshValid reports whether the refresh secret can still be exchanged.
func (c *Credential) RefreshValid(now time.Time) bool {
	return c.RefreshExpiry.After(now)
}
