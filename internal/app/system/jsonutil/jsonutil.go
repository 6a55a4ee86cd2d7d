// Package jsonutil writes the JSON bodies every API endpoint answers with
// and decodes JSON request bodies.
//
// Errors share one shape, {"error": "..."}; validation failures add a
// "fields" object keyed by JSON field name.
package jsonutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// MaxBodyBytes caps the JSON bodies Decode accepts.
const MaxBodyBytes = 1 << 20

// Decode errors.
var (
	ErrEmptyBody    = errors.New("request body is empty")
	ErrBodyTooLarge = errors.New("request body is too large")
	ErrTrailingData = errors.New("request body has data after the JSON value")
)

// ErrorBody is the body of every error response.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// APIResponse is the body of endpoints that only report an outcome, such
// as signup.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// JSON writes data with the given status. A nil data writes no body.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func OK(w http.ResponseWriter, data any)      { JSON(w, http.StatusOK, data) }
func Created(w http.ResponseWriter, data any) { JSON(w, http.StatusCreated, data) }

// NoContent writes a bare 204.
func NoContent(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }

// Error writes {"error": message} with the given status.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}

func BadRequest(w http.ResponseWriter, msg string)      { Error(w, http.StatusBadRequest, msg) }
func Unauthorized(w http.ResponseWriter, msg string)    { Error(w, http.StatusUnauthorized, msg) }
func Forbidden(w http.ResponseWriter, msg string)       { Error(w, http.StatusForbidden, msg) }
func NotFound(w http.ResponseWriter, msg string)        { Error(w, http.StatusNotFound, msg) }
func TooManyRequests(w http.ResponseWriter, msg string) { Error(w, http.StatusTooManyRequests, msg) }

// InternalError writes a 500. Keep msg generic; log the cause separately.
func InternalError(w http.ResponseWriter, msg string) {
	Error(w, http.StatusInternalServerError, msg)
}

// Message writes an APIResponse.
func Message(w http.ResponseWriter, status int, success bool, message string) {
	JSON(w, status, APIResponse{Success: success, Message: message})
}

// ValidationError writes a 400 listing a message per invalid field.
func ValidationError(w http.ResponseWriter, fields map[string]string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: "validation failed", Fields: fields})
}

// Decode reads exactly one JSON value from the request body into v.
// Bodies over MaxBodyBytes, empty bodies and trailing data are rejected.
func Decode(r *http.Request, v any) error {
	lr := &io.LimitedReader{R: r.Body, N: MaxBodyBytes + 1}
	dec := json.NewDecoder(lr)

	if err := dec.Decode(v); err != nil {
		switch {
		case lr.N <= 0:
			return ErrBodyTooLarge
		case errors.Is(err, io.EOF):
			return ErrEmptyBody
		}
		return err
	}
	if dec.More() {
		return ErrTrailingData
	}
	return nil
}
