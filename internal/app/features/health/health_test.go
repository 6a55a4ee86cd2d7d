package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/stratatrack/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func failing(ctx context.Context) error { return errors.New("connection refused") }

func TestHandler_Check(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewHandler(db.Client(), zap.NewNop())

	rec := testutil.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec.AssertStatus(t, http.StatusOK)
	var resp Response
	rec.DecodeJSON(t, &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Services["mongodb"] != "ok" {
		t.Errorf("mongodb = %q, want ok", resp.Services["mongodb"])
	}
	if resp.Uptime == "" {
		t.Error("uptime should be reported")
	}
}

func TestHandler_Check_Degraded(t *testing.T) {
	h := NewHandlerWithChecks(map[string]Checker{
		"mongodb": CheckerFunc(failing),
	}, zap.NewNop())

	rec := testutil.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec.AssertStatus(t, http.StatusServiceUnavailable)
	var resp Response
	rec.DecodeJSON(t, &resp)
	if resp.Status != "degraded" || resp.Services["mongodb"] != "unavailable" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandler_Ready(t *testing.T) {
	tests := []struct {
		name   string
		check  CheckerFunc
		status int
		want   string
	}{
		{"healthy", func(context.Context) error { return nil }, http.StatusOK, "ready"},
		{"unhealthy", failing, http.StatusServiceUnavailable, "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlerWithChecks(map[string]Checker{"db": tt.check}, zap.NewNop())
			rec := testutil.NewRecorder()
			h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			rec.AssertStatus(t, tt.status)
			var resp Response
			rec.DecodeJSON(t, &resp)
			if resp.Status != tt.want {
				t.Errorf("status = %q, want %q", resp.Status, tt.want)
			}
		})
	}
}

func TestHandler_Live(t *testing.T) {
	// Live needs no dependencies.
	h := NewHandler(nil, zap.NewNop())

	rec := testutil.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"status":"alive"`)
}

func TestRoutesAndRootEndpoints(t *testing.T) {
	h := NewHandlerWithChecks(map[string]Checker{}, zap.NewNop())
	r := chi.NewRouter()
	r.Mount("/health", Routes(h))
	MountRootEndpoints(r, h)

	for _, path := range []string{"/health", "/health/ready", "/health/live", "/ready", "/readyz", "/livez"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("%s status = %d, want %d", path, rec.Code, http.StatusOK)
			}
		})
	}
}
