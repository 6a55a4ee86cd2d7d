package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCurrentUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if u, ok := CurrentUser(req); ok || u != nil {
		t.Errorf("CurrentUser() = %v, %v on a bare request", u, ok)
	}

	want := &SessionUser{ID: primitive.NewObjectID().Hex(), Username: "tester"}
	got, ok := CurrentUser(WithTestUser(req, want))
	if !ok || got != want {
		t.Errorf("CurrentUser() = %v, %v, want the injected user", got, ok)
	}
}

func TestSessionUser_UserID(t *testing.T) {
	oid := primitive.NewObjectID()
	if got := (&SessionUser{ID: oid.Hex()}).UserID(); got != oid {
		t.Errorf("UserID() = %v, want %v", got, oid)
	}
	for _, bad := range []string{"", "invalid", "123"} {
		if !(&SessionUser{ID: bad}).UserID().IsZero() {
			t.Errorf("UserID() for %q should be zero", bad)
		}
	}
}

func TestRequireSignedIn(t *testing.T) {
	sm := newTestManager(t)
	h := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, WithTestUser(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), &SessionUser{ID: "u"}))
	if rec.Code != http.StatusNoContent {
		t.Errorf("signed-in status = %d, want 204", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	sm := newTestManager(t)
	h := sm.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name string
		user *SessionUser
		want int
	}{
		{"admin", &SessionUser{ID: "a", Role: "admin"}, http.StatusNoContent},
		{"admin with odd case and spacing", &SessionUser{ID: "a", Role: " Admin "}, http.StatusNoContent},
		{"regular user", &SessionUser{ID: "u", Role: "user"}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.user != nil {
				req = WithTestUser(req, tt.user)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
