// Package errors answers the requests no route handles and logs handler
// failures with their request context.
package errors

import (
	"net/http"

	"github.com/dalemusser/stratatrack/internal/app/system/auth"
	"github.com/dalemusser/stratatrack/internal/app/system/jsonutil"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const msgInternal = "An unexpected error occurred"

// ErrorLogger logs handler failures at error level, tagged with the
// request's method, path, request ID and user.
type ErrorLogger struct {
	logger *zap.Logger
}

func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{logger: logger}
}

// Log records err with the request context and any extra fields.
func (e *ErrorLogger) Log(r *http.Request, msg string, err error, extra ...zap.Field) {
	fields := make([]zap.Field, 0, 5+len(extra))
	fields = append(fields,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	if id := chimw.GetReqID(r.Context()); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if u, ok := auth.CurrentUser(r); ok {
		fields = append(fields, zap.String("user_id", u.ID))
	}
	e.logger.Error(msg, append(fields, extra...)...)
}

// Internal logs err and answers 500 without exposing it.
func (e *ErrorLogger) Internal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	e.Log(r, msg, err)
	jsonutil.InternalError(w, msgInternal)
}

// Handler answers requests the router cannot route.
type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

// NotFound answers 404 for unknown paths.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	jsonutil.NotFound(w, "Resource not found")
}

// MethodNotAllowed answers 405 for known paths with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	jsonutil.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
}
