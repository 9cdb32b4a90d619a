// Package timeutil is the single place where civil (wall clock) time and
// absolute instants meet. Every human-facing time in this system lives in
// one fixed local timezone; every comparison and timer computation uses
// absolute instants. Formatting is only done at the provider API edge.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// Zone anchors all civil-time interpretation to one fixed location.
type Zone struct {
	loc *time.Location
}

func Load(name string) (Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return Zone{loc: loc}, nil
}

// MustLoad is for tests.
func MustLoad(name string) Zone {
	z, err := Load(name)
	if err != nil {
		panic(err)
	}
	return z
}

func (z Zone) Location() *time.Location { return z.loc }

// Now returns the current instant expressed in the local zone.
func (z Zone) Now() time.Time { return time.Now().In(z.loc) }

// In converts any instant to its local civil representation. The instant
// is unchanged; only the wall-clock rendering moves.
func (z Zone) In(t time.Time) time.Time { return t.In(z.loc) }

// Civil reinterprets the wall-clock fields of t as local time. This is for
// values that lost their zone on the way through persistence or a config
// file: a zone-less value is by definition already local civil time.
func (z Zone) Civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), z.loc)
}

// ParseCivil parses an ISO-8601 timestamp that carries no usable zone and
// interprets it as local civil time. A trailing "Z" is stripped rather than
// honored: upstream sources emit it on values that were never actually UTC.
func (z Zone) ParseCivil(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimSuffix(s, "Z"))
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, z.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse civil time %q", s)
}

// FormatAPI renders an instant the way the booking provider wants it:
// local civil time, ISO-8601, colon-delimited UTC offset.
func (z Zone) FormatAPI(t time.Time) string {
	return t.In(z.loc).Format("2006-01-02T15:04:05-07:00")
}
