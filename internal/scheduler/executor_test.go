package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/court-scheduler/internal/booking"
	"github.com/example/court-scheduler/internal/domain"
)

func newExecutorFixture() (*Executor, *fakeScheduleRepo, *fakeTokens, *fakeBooker) {
	repo := &fakeScheduleRepo{}
	tokens := &fakeTokens{
		ensureFresh: func(_ context.Context) (string, error) { return "tok", nil },
	}
	booker := &fakeBooker{
		reserve: func(_ context.Context, _ string, _ booking.Reservation) error { return nil },
	}
	return NewExecutor(repo, tokens, booker, discardLogger()), repo, tokens, booker
}

func TestExecutorRun_Success_MarksSuccessWithDefaultCourt(t *testing.T) {
	exec, repo, _, booker := newExecutorFixture()

	desired := schedNow.Add(time.Hour)
	repo.getByID = func(_ context.Context, id string) (*domain.Schedule, error) {
		e := pendingEntry(id, desired, schedNow)
		e.DurationMin = 90
		return e, nil
	}

	var gotReservation booking.Reservation
	booker.reserve = func(_ context.Context, token string, r booking.Reservation) error {
		if token != "tok" {
			t.Errorf("reserve called with token %q", token)
		}
		gotReservation = r
		return nil
	}

	var markedCourt string
	repo.markSuccess = func(_ context.Context, _, bookedCourt string) error {
		markedCourt = bookedCourt
		return nil
	}

	out := exec.Run(context.Background(), "s1", "")
	if !out.Booked {
		t.Fatal("outcome not booked")
	}
	if out.FallbackCourt != "" {
		t.Errorf("unexpected fallback %q", out.FallbackCourt)
	}

	if gotReservation.CourtID != booking.CourtOne {
		t.Errorf("reserved court %q, want default court one", gotReservation.CourtID)
	}
	if !gotReservation.Start.Equal(desired) {
		t.Errorf("reservation start %v, want %v", gotReservation.Start, desired)
	}
	if want := desired.Add(90 * time.Minute); !gotReservation.End.Equal(want) {
		t.Errorf("reservation end %v, want %v", gotReservation.End, want)
	}
	if markedCourt != booking.CourtOne {
		t.Errorf("marked court %q", markedCourt)
	}
}

func TestExecutorRun_HonorsRequestedCourt(t *testing.T) {
	exec, repo, _, booker := newExecutorFixture()

	courtTwo := booking.CourtTwo
	repo.getByID = func(_ context.Context, id string) (*domain.Schedule, error) {
		e := pendingEntry(id, schedNow.Add(time.Hour), schedNow)
		e.CourtID = &courtTwo
		return e, nil
	}
	repo.markSuccess = func(_ context.Context, _, _ string) error { return nil }

	var gotCourt string
	booker.reserve = func(_ context.Context, _ string, r booking.Reservation) error {
		gotCourt = r.CourtID
		return nil
	}

	exec.Run(context.Background(), "s1", "")
	if gotCourt != booking.CourtTwo {
		t.Errorf("reserved court %q, want the requested court two", gotCourt)
	}
}

func TestExecutorRun_FirstFailure_ReportsFallback(t *testing.T) {
	exec, repo, _, booker := newExecutorFixture()

	repo.getByID = func(_ context.Context, id string) (*domain.Schedule, error) {
		return pendingEntry(id, schedNow.Add(time.Hour), schedNow), nil
	}
	booker.reserve = func(_ context.Context, _ string, _ booking.Reservation) error {
		return errors.New("slot taken")
	}
	repo.markFailure = func(_ context.Context, _, _ string) error {
		t.Error("first failure must not be terminal")
		return nil
	}

	out := exec.Run(context.Background(), "s1", "")
	if out.Booked {
		t.Fatal("outcome booked despite failure")
	}
	if out.FallbackCourt != booking.CourtTwo {
		t.Errorf("fallback = %q, want court two", out.FallbackCourt)
	}
}

func TestExecutorRun_ForcedFailure_IsTerminal(t *testing.T) {
	exec, repo, _, booker := newExecutorFixture()

	repo.getByID = func(_ context.Context, id string) (*domain.Schedule, error) {
		return pendingEntry(id, schedNow.Add(time.Hour), schedNow), nil
	}
	booker.reserve = func(_ context.Context, _ string, _ booking.Reservation) error {
		return errors.New("slot taken")
	}

	var gotErr string
	repo.markFailure = func(_ context.Context, _, lastError string) error {
		gotErr = lastError
		return nil
	}

	out := exec.Run(context.Background(), "s1", booking.CourtTwo)
	if out.Booked || out.FallbackCourt != "" {
		t.Fatalf("forced failure must be terminal, got %+v", out)
	}
	if gotErr == "" {
		t.Error("failure not recorded on the entry")
	}
}

func TestExecutorRun_FallbackSuccess(t *testing.T) {
	exec, repo, _, booker := newExecutorFixture()

	repo.getByID = func(_ context.Context, id string) (*domain.Schedule, error) {
		return pendingEntry(id, schedNow.Add(time.Hour), schedNow), nil
	}

	var markedCourt string
	repo.markSuccess = func(_ context.Context, _, bookedCourt string) error {
		markedCourt = bookedCourt
		return nil
	}
	booker.reserve = func(_ context.Context, _ string, r booking.Reservation) error {
		if r.CourtID != booking.CourtTwo {
			t.Errorf("reserved court %q, want forced court two", r.CourtID)
		}
		return nil
	}

	out := exec.Run(context.Background(), "s1", booking.CourtTwo)
	if !out.Booked {
		t.Fatal("outcome not booked")
	}
	if markedCourt != booking.CourtTwo {
		t.Errorf("marked court %q, want the court that actually booked", markedCourt)
	}
}

func TestExecutorRun_NonPending_Skips(t *testing.T) {
	exec, repo, tokens, booker := newExecutorFixture()

	repo.getByID = func(_ context.Context, id string) (*domain.Schedule, error) {
		e := pendingEntry(id, schedNow.Add(time.Hour), schedNow)
		e.Status = domain.StatusCancelled
		return e, nil
	}
	tokens.ensureFresh = func(_ context.Context) (string, error) {
		t.Error("token fetched for a non-pending entry")
		return "", nil
	}
	booker.reserve = func(_ context.Context, _ string, _ booking.Reservation) error {
		t.Error("reservation attempted for a non-pending entry")
		return nil
	}

	out := exec.Run(context.Background(), "s1", "")
	if out.Booked || out.FallbackCourt != "" {
		t.Errorf("expected empty outcome, got %+v", out)
	}
}

func TestExecutorRun_VanishedSchedule_NoPanic(t *testing.T) {
	exec, repo, _, _ := newExecutorFixture()

	repo.getByID = func(_ context.Context, _ string) (*domain.Schedule, error) {
		return nil, domain.ErrScheduleNotFound
	}

	out := exec.Run(context.Background(), "gone", "")
	if out.Booked || out.FallbackCourt != "" {
		t.Errorf("expected empty outcome, got %+v", out)
	}
}

func TestExecutorRun_TokenFailure_CountsAsAttempt(t *testing.T) {
	exec, repo, tokens, booker := newExecutorFixture()

	repo.getByID = func(_ context.Context, id string) (*domain.Schedule, error) {
		return pendingEntry(id, schedNow.Add(time.Hour), schedNow), nil
	}
	tokens.ensureFresh = func(_ context.Context) (string, error) {
		return "", domain.ErrCredentialExpired
	}
	booker.reserve = func(_ context.Context, _ string, _ booking.Reservation) error {
		t.Error("reserve called without a token")
		return nil
	}

	out := exec.Run(context.Background(), "s1", "")
	if out.FallbackCourt != booking.CourtTwo {
		t.Errorf("token failure on the first attempt should fall back, got %+v", out)
	}
}
