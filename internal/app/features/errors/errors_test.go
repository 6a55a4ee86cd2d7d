package errors

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/stratatrack/internal/testutil"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewHandler(t *testing.T) {
	h := NewHandler()
	if h == nil {
		t.Fatal("NewHandler() returned nil")
	}
}

func TestNotFound_Returns404(t *testing.T) {
	h := NewHandler()
	rec := testutil.NewRecorder()

	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	rec.AssertStatus(t, http.StatusNotFound)
	var body map[string]string
	rec.DecodeJSON(t, &body)
	if body["error"] == "" {
		t.Error("NotFound() body should carry an error message")
	}
}

func TestMethodNotAllowed_Returns405(t *testing.T) {
	h := NewHandler()
	rec := testutil.NewRecorder()

	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPatch, "/api/indicators", nil))

	rec.AssertStatus(t, http.StatusMethodNotAllowed)
}

func TestErrorLogger_Log(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	el := NewErrorLogger(zap.New(core))

	req := httptest.NewRequest(http.MethodPost, "/api/indicators", nil)
	req = testutil.WithUser(req, testutil.RegularUser())
	el.Log(req, "test error message", stderrors.New("boom"))

	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "test error message" {
		t.Errorf("Message = %q", entry.Message)
	}
	fields := entry.ContextMap()
	if fields["path"] != "/api/indicators" || fields["method"] != http.MethodPost {
		t.Errorf("fields = %v, want path and method", fields)
	}
	if fields["user_id"] != testutil.RegularUser().ID {
		t.Errorf("user_id = %v, want %s", fields["user_id"], testutil.RegularUser().ID)
	}
}

func TestErrorLogger_Log_AnonymousWithExtra(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	el := NewErrorLogger(zap.New(core))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	el.Log(req, "lookup failed", stderrors.New("boom"), zap.String("extra", "x"))

	fields := logs.All()[0].ContextMap()
	if fields["extra"] != "x" {
		t.Errorf("extra field = %v", fields["extra"])
	}
	if _, ok := fields["user_id"]; ok {
		t.Error("anonymous requests should not log a user_id")
	}
}

func TestErrorLogger_Log_RequestID(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	el := NewErrorLogger(zap.New(core))

	var req *http.Request
	chimw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req = r
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/indicators", nil))

	el.Log(req, "failed", stderrors.New("boom"))

	if id, _ := logs.All()[0].ContextMap()["request_id"].(string); id == "" {
		t.Error("request_id should be logged when the RequestID middleware ran")
	}
}

func TestErrorLogger_Internal(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	el := NewErrorLogger(zap.New(core))
	rec := testutil.NewRecorder()

	el.Internal(rec, httptest.NewRequest(http.MethodGet, "/x", nil), "db failed", stderrors.New("secret detail"))

	rec.AssertStatus(t, http.StatusInternalServerError)
	rec.AssertNotContains(t, "secret detail")
	if logs.Len() != 1 {
		t.Errorf("expected 1 log entry, got %d", logs.Len())
	}
}
