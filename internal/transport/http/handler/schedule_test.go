package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/court-scheduler/internal/domain"
	"github.com/example/court-scheduler/internal/repository"
	"github.com/example/court-scheduler/internal/timeutil"
	"github.com/example/court-scheduler/internal/transport/http/handler"
	"github.com/example/court-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRepo overrides only what a test needs; calling anything else panics,
// which is a test bug, not a production path.
type fakeRepo struct {
	repository.ScheduleRepository

	create  func(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	getByID func(ctx context.Context, id string) (*domain.Schedule, error)
	list    func(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error)
	cancel  func(ctx context.Context, id string) error
}

func (r *fakeRepo) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	return r.create(ctx, s)
}
func (r *fakeRepo) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	return r.getByID(ctx, id)
}
func (r *fakeRepo) List(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error) {
	return r.list(ctx, input)
}
func (r *fakeRepo) Cancel(ctx context.Context, id string) error {
	return r.cancel(ctx, id)
}

type noopInserter struct{}

func (noopInserter) Add(_ *domain.Schedule) error { return nil }
func (noopInserter) CancelActions(_ string) bool  { return true }

func newEngine(repo *fakeRepo) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := usecase.NewScheduleUsecase(repo, noopInserter{}, timeutil.MustLoad("America/New_York"), 168*time.Hour)
	h := handler.NewScheduleHandler(uc, logger)

	r := gin.New()
	r.POST("/api/v1/schedules", h.Create)
	r.GET("/api/v1/schedules", h.List)
	r.GET("/api/v1/schedules/:id", h.GetByID)
	r.DELETE("/api/v1/schedules/:id", h.Cancel)
	return r
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCreate_OneOff_Returns201(t *testing.T) {
	repo := &fakeRepo{
		create: func(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
			row := *s
			row.ID = "sched-1"
			return &row, nil
		},
	}

	w := doJSON(t, newEngine(repo), http.MethodPost, "/api/v1/schedules",
		`{"kind": "one-off", "desired_time": "2026-07-18T18:00:00", "court_id": "2"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}

	var resp struct {
		Schedules []struct {
			ID        string    `json:"id"`
			TriggerAt time.Time `json:"trigger_at"`
			DesiredAt time.Time `json:"desired_at"`
		} `json:"schedules"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Schedules) != 1 || resp.Schedules[0].ID != "sched-1" {
		t.Fatalf("response = %s", w.Body)
	}
	if got := resp.Schedules[0].DesiredAt.Sub(resp.Schedules[0].TriggerAt); got != 168*time.Hour {
		t.Errorf("desired-trigger gap = %v, want 168h", got)
	}
}

func TestCreate_MissingDesiredTime_Returns400(t *testing.T) {
	w := doJSON(t, newEngine(&fakeRepo{}), http.MethodPost, "/api/v1/schedules",
		`{"kind": "one-off"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreate_UnknownCourt_Returns400(t *testing.T) {
	w := doJSON(t, newEngine(&fakeRepo{}), http.MethodPost, "/api/v1/schedules",
		`{"kind": "one-off", "desired_time": "2026-07-18T18:00:00", "court_id": "3"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreate_BadCron_Returns400(t *testing.T) {
	w := doJSON(t, newEngine(&fakeRepo{}), http.MethodPost, "/api/v1/schedules",
		`{"kind": "recurring", "recurrence": "whenever"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetByID_NotFound_Returns404(t *testing.T) {
	repo := &fakeRepo{
		getByID: func(_ context.Context, _ string) (*domain.Schedule, error) {
			return nil, domain.ErrScheduleNotFound
		},
	}
	w := doJSON(t, newEngine(repo), http.MethodGet, "/api/v1/schedules/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestList_PassesFilters(t *testing.T) {
	var gotInput repository.ListSchedulesInput
	repo := &fakeRepo{
		list: func(_ context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error) {
			gotInput = input
			return nil, nil
		},
	}
	w := doJSON(t, newEngine(repo), http.MethodGet, "/api/v1/schedules?status=pending&limit=10&offset=20", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotInput.Status != domain.StatusPending || gotInput.Limit != 10 || gotInput.Offset != 20 {
		t.Errorf("input = %+v", gotInput)
	}
}

func TestCancel_NotPending_Returns400(t *testing.T) {
	repo := &fakeRepo{
		cancel: func(_ context.Context, _ string) error {
			return domain.ErrScheduleNotPending
		},
	}
	w := doJSON(t, newEngine(repo), http.MethodDelete, "/api/v1/schedules/sched-1", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCancel_OK(t *testing.T) {
	repo := &fakeRepo{
		cancel: func(_ context.Context, _ string) error { return nil },
	}
	w := doJSON(t, newEngine(repo), http.MethodDelete, "/api/v1/schedules/sched-1", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
