package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/court-scheduler/internal/domain"
	"github.com/example/court-scheduler/internal/metrics"
	"github.com/example/court-scheduler/internal/repository"
	"github.com/google/uuid"
)

// ErrNotReady is returned when an insertion or cancellation arrives before
// startup reconciliation has finished arming the action set.
var ErrNotReady = errors.New("scheduler has not finished reconciliation")

// TokenManager is satisfied by *auth.Manager.
type TokenManager interface {
	ForceRefresh(ctx context.Context) (string, error)
}

// AlertSink receives credential alerts that need an operator.
type AlertSink interface {
	CredentialExpired(ctx context.Context)
}

// Scheduler owns every armed timed action: the token refresh cadence, the
// token-prep actions, and the booking attempts. It is the only component
// that creates or removes timers.
type Scheduler struct {
	repo   repository.ScheduleRepository
	creds  repository.CredentialRepository
	tokens TokenManager
	exec   *Executor
	alerts AlertSink
	logger *slog.Logger

	prepLead     time.Duration
	grace        time.Duration
	safetyMargin time.Duration
	retryBackoff time.Duration

	now      func() time.Time
	newTimer newTimerFunc
	baseCtx  context.Context

	mu      sync.Mutex
	ready   bool
	actions map[string]*TimedAction
	sem     chan struct{}
	wg      sync.WaitGroup
}

type Options struct {
	PrepLead     time.Duration // lead before a booking at which the credential is force-refreshed
	Grace        time.Duration // rescue-path delay between prep and booking
	SafetyMargin time.Duration // subtracted from the refresh expiry for the cadence
	RetryBackoff time.Duration // wait after a failed refresh exchange
	Workers      int
}

func New(
	repo repository.ScheduleRepository,
	creds repository.CredentialRepository,
	tokens TokenManager,
	exec *Executor,
	alerts AlertSink,
	logger *slog.Logger,
	opts Options,
) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 5
	}
	return &Scheduler{
		repo:         repo,
		creds:        creds,
		tokens:       tokens,
		exec:         exec,
		alerts:       alerts,
		logger:       logger.With("component", "trigger_scheduler"),
		prepLead:     opts.PrepLead,
		grace:        opts.Grace,
		safetyMargin: opts.SafetyMargin,
		retryBackoff: opts.RetryBackoff,
		now:          time.Now,
		newTimer:     realTimer,
		baseCtx:      context.Background(),
		actions:      make(map[string]*TimedAction),
		sem:          make(chan struct{}, opts.Workers),
	}
}

// Reconcile rebuilds the armed action set from the repository. It runs
// blocking at startup, before the HTTP surface accepts requests, and is
// idempotent: re-running it with unchanged state replaces every action with
// an identical one.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseCtx = context.WithoutCancel(ctx)

	for _, entry := range pending {
		s.classifyAndArmLocked(entry)
	}

	cred, err := s.creds.Get(ctx)
	switch {
	case errors.Is(err, domain.ErrCredentialMissing):
		s.logger.Warn("no credential configured; bookings will fail until a refresh secret is supplied")
	case err != nil:
		return err
	default:
		s.armRefreshLocked(cred.RefreshExpiry.Add(-s.safetyMargin))
	}

	s.ready = true
	metrics.SchedulerStartTime.SetToCurrentTime()
	s.logger.Info("reconciliation complete", "pending", len(pending), "armed", len(s.actions))
	return nil
}

// Add classifies a single newly created entry and arms its actions. Other
// entries' actions are never touched.
func (s *Scheduler) Add(entry *domain.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return ErrNotReady
	}
	s.classifyAndArmLocked(entry)
	return nil
}

// CancelActions removes any not-yet-fired actions keyed to the entry.
// Removing an already-fired or never-armed action is a no-op, not an error.
func (s *Scheduler) CancelActions(scheduleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := false
	for _, key := range []string{prepKey(scheduleID), bookingKey(scheduleID), retryKey(scheduleID)} {
		if s.removeIfPresentLocked(key) {
			removed = true
		}
	}
	return removed
}

// RearmRefresh replaces the refresh cadence using a new refresh expiry.
// Registered as the token manager's OnRefreshed hook, so every successful
// exchange — scheduled, prep, or booking-time — moves the cadence forward.
func (s *Scheduler) RearmRefresh(refreshExpiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armRefreshLocked(refreshExpiry.Add(-s.safetyMargin))
}

// Running reports whether startup reconciliation has completed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Actions lists the armed actions ordered by fire instant.
func (s *Scheduler) Actions() []ActionView {
	s.mu.Lock()
	views := make([]ActionView, 0, len(s.actions))
	for _, a := range s.actions {
		views = append(views, ActionView{
			ID: a.ID, Key: a.Key, Kind: a.Kind, ScheduleID: a.ScheduleID, FireAt: a.FireAt,
		})
	}
	s.mu.Unlock()
	sortViews(views)
	return views
}

// NextByKind returns the earliest fire instant per action kind.
func (s *Scheduler) NextByKind() map[ActionKind]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[ActionKind]time.Time)
	for _, a := range s.actions {
		if cur, ok := next[a.Kind]; !ok || a.FireAt.Before(cur) {
			next[a.Kind] = a.FireAt
		}
	}
	return next
}

// Stop disarms every timer and waits for in-flight firings to finish.
// In-progress booking calls run to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for key, a := range s.actions {
		a.timer.Stop()
		delete(s.actions, key)
	}
	s.ready = false
	s.updateGaugeLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

// --- classification ---

func (s *Scheduler) classifyAndArmLocked(entry *domain.Schedule) {
	now := s.now()
	switch {
	case entry.TriggerAt.After(now):
		// Normal: booking at the trigger instant, prep shortly before it.
		s.armLocked(bookingKey(entry.ID), ActionBooking, entry.ID, entry.TriggerAt, "")
		if prepAt := entry.TriggerAt.Add(-s.prepLead); prepAt.After(now) {
			s.armLocked(prepKey(entry.ID), ActionTokenPrep, entry.ID, prepAt, "")
		}

	case entry.Kind == domain.KindOneOff && entry.DesiredAt.After(now):
		// Rescue: the advance window already opened but the slot itself is
		// still ahead. Prep immediately, book after the grace delay.
		s.armLocked(prepKey(entry.ID), ActionTokenPrep, entry.ID, now, "")
		s.armLocked(bookingKey(entry.ID), ActionBooking, entry.ID, now.Add(s.grace), "")

	default:
		// Unrecoverable. The entry stays pending with no armed action; the
		// status surface is how a human notices.
		s.logger.Warn("skipping past-due schedule",
			"schedule_id", entry.ID, "kind", entry.Kind,
			"trigger_at", entry.TriggerAt, "desired_at", entry.DesiredAt)
		metrics.PastDueSkippedTotal.Inc()
	}
}

// --- action table ---

func (s *Scheduler) armLocked(key string, kind ActionKind, scheduleID string, at time.Time, court string) {
	if old, ok := s.actions[key]; ok {
		old.timer.Stop()
	}
	a := &TimedAction{
		ID:         uuid.NewString(),
		Key:        key,
		Kind:       kind,
		ScheduleID: scheduleID,
		FireAt:     at,
		Court:      court,
	}
	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	id := a.ID
	a.timer = s.newTimer(delay, func() { s.fire(key, id) })
	s.actions[key] = a
	s.updateGaugeLocked()
}

func (s *Scheduler) armRefreshLocked(at time.Time) {
	if now := s.now(); at.Before(now) {
		at = now
	}
	s.armLocked(refreshKey, ActionTokenRefresh, "", at, "")
}

func (s *Scheduler) removeIfPresentLocked(key string) bool {
	a, ok := s.actions[key]
	if !ok {
		return false
	}
	a.timer.Stop()
	delete(s.actions, key)
	s.updateGaugeLocked()
	return true
}

func (s *Scheduler) updateGaugeLocked() {
	counts := make(map[ActionKind]int)
	for _, a := range s.actions {
		counts[a.Kind]++
	}
	for _, kind := range []ActionKind{ActionTokenRefresh, ActionTokenPrep, ActionBooking, ActionRetryBooking} {
		metrics.ActionsArmed.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}
}

// --- firing ---

// fire runs off the timer goroutine. The action id check makes a stale
// timer — one whose key was re-armed or removed after it was scheduled —
// a no-op: last writer wins, and a timer never fires for a replaced action.
func (s *Scheduler) fire(key, id string) {
	s.mu.Lock()
	a, ok := s.actions[key]
	if !ok || a.ID != id {
		s.mu.Unlock()
		return
	}
	delete(s.actions, key)
	s.updateGaugeLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	// The semaphore bounds concurrent network work; it blocks only this
	// timer's goroutine, never the arming paths.
	s.sem <- struct{}{}
	go func() {
		defer func() { <-s.sem }()
		defer s.wg.Done()
		metrics.ActionsFiredTotal.WithLabelValues(string(a.Kind)).Inc()
		s.run(a)
	}()
}

func (s *Scheduler) run(a *TimedAction) {
	ctx := s.baseCtx
	switch a.Kind {
	case ActionTokenRefresh:
		s.runRefresh(ctx)
	case ActionTokenPrep:
		s.runPrep(ctx, a.ScheduleID)
	case ActionBooking, ActionRetryBooking:
		out := s.exec.Run(ctx, a.ScheduleID, a.Court)
		if out.FallbackCourt != "" {
			s.mu.Lock()
			s.armLocked(retryKey(a.ScheduleID), ActionRetryBooking, a.ScheduleID, s.now(), out.FallbackCourt)
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	_, err := s.tokens.ForceRefresh(ctx)
	switch {
	case err == nil:
		// The OnRefreshed hook has already re-armed the cadence.
	case errors.Is(err, domain.ErrCredentialExpired), errors.Is(err, domain.ErrCredentialMissing):
		s.logger.Error("credential unusable; refresh cadence stopped until bootstrap", "error", err)
		if s.alerts != nil {
			s.alerts.CredentialExpired(ctx)
		}
	default:
		s.logger.Warn("token refresh failed, retrying", "error", err, "backoff", s.retryBackoff)
		s.mu.Lock()
		s.armLocked(refreshKey, ActionTokenRefresh, "", s.now().Add(s.retryBackoff), "")
		s.mu.Unlock()
	}
}

// runPrep force-refreshes right before the paired booking so the attempt
// carries the freshest possible access secret. Failures are logged but do
// not touch the entry: the booking attempt still runs and falls back on
// whatever the store holds.
func (s *Scheduler) runPrep(ctx context.Context, scheduleID string) {
	if _, err := s.tokens.ForceRefresh(ctx); err != nil {
		if errors.Is(err, domain.ErrCredentialExpired) || errors.Is(err, domain.ErrCredentialMissing) {
			s.logger.Error("token prep found unusable credential", "schedule_id", scheduleID, "error", err)
			if s.alerts != nil {
				s.alerts.CredentialExpired(ctx)
			}
			return
		}
		s.logger.Warn("token prep refresh failed", "schedule_id", scheduleID, "error", err)
	}
}
