package scheduler

import (
	"sort"
	"time"
)

type ActionKind string

const (
	ActionTokenRefresh ActionKind = "token_refresh"
	ActionTokenPrep    ActionKind = "token_prep"
	ActionBooking      ActionKind = "booking"
	ActionRetryBooking ActionKind = "retry_booking"
)

// TimedAction is one armed timer. Actions live only between arming and
// firing; arming the same key again replaces the previous action and stops
// its timer (idempotent replace-by-key, never additive).
type TimedAction struct {
	ID         string
	Key        string
	Kind       ActionKind
	ScheduleID string // empty for token_refresh
	FireAt     time.Time
	Court      string // forced court, retry_booking only

	timer timerHandle
}

// timerHandle lets tests swap the real timer for an inert one.
type timerHandle interface {
	Stop() bool
}

type newTimerFunc func(d time.Duration, fn func()) timerHandle

func realTimer(d time.Duration, fn func()) timerHandle {
	return time.AfterFunc(d, fn)
}

const refreshKey = "token_refresh"

func prepKey(scheduleID string) string    { return "prep:" + scheduleID }
func bookingKey(scheduleID string) string { return "booking:" + scheduleID }
func retryKey(scheduleID string) string   { return "retry:" + scheduleID }

// ActionView is the read-only shape exposed to the status surface.
type ActionView struct {
	ID         string     `json:"id"`
	Key        string     `json:"key"`
	Kind       ActionKind `json:"kind"`
	ScheduleID string     `json:"schedule_id,omitempty"`
	FireAt     time.Time  `json:"fire_at"`
}

func sortViews(views []ActionView) {
	sort.Slice(views, func(i, j int) bool {
		if views[i].FireAt.Equal(views[j].FireAt) {
			return views[i].Key < views[j].Key
		}
		return views[i].FireAt.Before(views[j].FireAt)
	})
}
