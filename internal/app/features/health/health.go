// internal/app/features/health/health.go
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/stratatrack/internal/app/system/jsonutil"
	"github.com/dalemusser/stratatrack/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// MongoChecker pings the primary of client.
func MongoChecker(client *mongo.Client) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})
}

// Handler provides health check endpoints.
type Handler struct {
	checks  map[string]Checker
	started time.Time
	logger  *zap.Logger
}

// NewHandler creates a health Handler that checks MongoDB through client.
// A nil client yields a handler with no dependency checks.
func NewHandler(client *mongo.Client, logger *zap.Logger) *Handler {
	checks := map[string]Checker{}
	if client != nil {
		checks["mongodb"] = MongoChecker(client)
	}
	return NewHandlerWithChecks(checks, logger)
}

// NewHandlerWithChecks creates a health Handler over named checks.
func NewHandlerWithChecks(checks map[string]Checker, logger *zap.Logger) *Handler {
	return &Handler{checks: checks, started: time.Now(), logger: logger}
}

// Response represents the health check response.
type Response struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime,omitempty"`
	Services map[string]string `json:"services,omitempty"`
}

// Routes returns a chi.Router with /, /ready and /live.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Check)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
	return r
}

// MountRootEndpoints adds the probe aliases /ready, /readyz and /livez.
func MountRootEndpoints(r chi.Router, h *Handler) {
	r.Get("/ready", h.Ready)
	r.Get("/readyz", h.Ready)
	r.Get("/livez", h.Live)
}

// run executes every check and returns per-service results.
func (h *Handler) run(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()

	services := make(map[string]string, len(h.checks))
	healthy := true
	for name, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			healthy = false
			services[name] = "unavailable"
			h.logger.Warn("health check failed", zap.String("service", name), zap.Error(err))
			continue
		}
		services[name] = "ok"
	}
	return services, healthy
}

// Check runs every dependency check and reports each one.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	services, healthy := h.run(r.Context())
	resp := Response{
		Status:   "ok",
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Services: services,
	}
	if !healthy {
		resp.Status = "degraded"
		jsonutil.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	jsonutil.OK(w, resp)
}

// Ready answers 200 once every dependency is reachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, healthy := h.run(r.Context()); !healthy {
		jsonutil.JSON(w, http.StatusServiceUnavailable, Response{Status: "not ready"})
		return
	}
	jsonutil.OK(w, Response{Status: "ready"})
}

// Live answers 200 while the process is running.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, Response{Status: "alive"})
}
