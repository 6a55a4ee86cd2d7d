package adminapi

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/stratatrack/internal/app/features/errors"
	"github.com/dalemusser/stratatrack/internal/app/system/auth"
	"github.com/dalemusser/stratatrack/internal/app/system/tasks"
	"github.com/dalemusser/stratatrack/internal/testutil"
	"go.uber.org/zap"
)

func newRouter(t *testing.T, runner JobRunner) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	sm, err := auth.NewSessionManager("test-session-key-0123456789abcdef0123", "", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	return Routes(NewHandler(runner, errorsfeature.NewErrorLogger(logger), logger), sm)
}

func newRunner(runs *atomic.Int32) *tasks.Runner {
	r := tasks.New(zap.NewNop())
	r.Register(tasks.Job{Name: "sweep", Interval: time.Hour, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})
	r.Register(tasks.Job{Name: "broken", Interval: time.Hour, Run: func(context.Context) error {
		return errors.New("boom")
	}})
	return r
}

func TestListJobs(t *testing.T) {
	var runs atomic.Int32
	router := newRouter(t, newRunner(&runs))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/jobs", testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)

	var resp JobsResponse
	rec.DecodeJSON(t, &resp)
	if len(resp.Jobs) != 2 || resp.Jobs[0] != "sweep" || resp.Jobs[1] != "broken" {
		t.Errorf("Jobs = %v, want [sweep broken]", resp.Jobs)
	}
}

func TestRunJob(t *testing.T) {
	var runs atomic.Int32
	router := newRouter(t, newRunner(&runs))

	tests := []struct {
		name     string
		job      string
		wantCode int
	}{
		{"registered job", "sweep", http.StatusOK},
		{"failing job", "broken", http.StatusInternalServerError},
		{"unknown job", "nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/jobs/"+tt.job+"/run", testutil.AdminUser()))
			rec.AssertStatus(t, tt.wantCode)
		})
	}

	if got := runs.Load(); got != 1 {
		t.Errorf("sweep ran %d times, want 1", got)
	}
}

func TestRoutes_RequireAdmin(t *testing.T) {
	var runs atomic.Int32
	router := newRouter(t, newRunner(&runs))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/jobs"))
	rec.AssertStatus(t, http.StatusUnauthorized)

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/jobs/sweep/run", testutil.RegularUser()))
	rec.AssertStatus(t, http.StatusForbidden)

	if runs.Load() != 0 {
		t.Error("a non-admin request should not run the job")
	}
}
