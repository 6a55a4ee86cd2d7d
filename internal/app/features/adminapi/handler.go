// Package adminapi lets administrators inspect and trigger the background
// maintenance jobs.
package adminapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/stratatrack/internal/app/features/errors"
	"github.com/dalemusser/stratatrack/internal/app/system/auth"
	"github.com/dalemusser/stratatrack/internal/app/system/jsonutil"
	"github.com/dalemusser/stratatrack/internal/app/system/tasks"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// JobRunner is the part of tasks.Runner the handler needs.
type JobRunner interface {
	Jobs() []string
	RunOnce(ctx context.Context, name string) error
}

// Handler serves the admin job endpoints.
type Handler struct {
	runner JobRunner
	errLog *errorsfeature.ErrorLogger
	logger *zap.Logger
}

// NewHandler creates a new adminapi Handler.
func NewHandler(runner JobRunner, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{runner: runner, errLog: errLog, logger: logger}
}

// Routes returns a chi.Router meant to be mounted at /api/admin.
func Routes(h *Handler, sm *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(models.RoleAdmin))
	r.Get("/jobs", h.listJobs)
	r.Post("/jobs/{name}/run", h.runJob)
	return r
}

// JobsResponse lists the enabled jobs.
type JobsResponse struct {
	Jobs []string `json:"jobs"`
}

// RunResponse reports a manual job run.
type RunResponse struct {
	Job        string `json:"job"`
	DurationMs int64  `json:"durationMs"`
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, JobsResponse{Jobs: h.runner.Jobs()})
}

// runJob handles POST /jobs/{name}/run. The job runs on the request
// goroutine, so the caller sees its outcome.
func (h *Handler) runJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cu, _ := auth.CurrentUser(r)

	start := time.Now()
	err := h.runner.RunOnce(r.Context(), name)
	switch {
	case errors.Is(err, tasks.ErrUnknownJob):
		jsonutil.NotFound(w, "Unknown job "+name)
		return
	case err != nil:
		h.errLog.Internal(w, r, "manual job run failed", err)
		return
	}

	elapsed := time.Since(start)
	h.logger.Info("job run by admin",
		zap.String("job", name),
		zap.String("user_id", cu.ID),
		zap.Duration("duration", elapsed))
	jsonutil.OK(w, RunResponse{Job: name, DurationMs: elapsed.Milliseconds()})
}
