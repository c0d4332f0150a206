package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Meta carries per-response metadata in the success envelope.
type Meta struct {
	RequestID  string `json:"requestId"`
	Timestamp  string `json:"timestamp"`
	Pagination any    `json:"pagination,omitempty"`
}

// SuccessEnvelope is the wire shape of every successful response.
type SuccessEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Meta    Meta   `json:"meta"`
	Data    any    `json:"data,omitempty"`
}

// ErrorBody is the error payload inside the failure envelope.
type ErrorBody struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	RequestID  string `json:"requestId"`
	Details    any    `json:"details,omitempty"`
	Stack      string `json:"stack,omitempty"`
}

// ErrorEnvelope is the wire shape of every failure response.
type ErrorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// JSON writes a success envelope with the given payload.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeSuccess(w, r, status, "", data, nil)
}

// JSONMessage writes a success envelope with a human message.
func JSONMessage(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	writeSuccess(w, r, status, message, data, nil)
}

// JSONPage writes a success envelope with pagination metadata.
func JSONPage(w http.ResponseWriter, r *http.Request, status int, data any, pagination any) {
	writeSuccess(w, r, status, "", data, pagination)
}

func writeSuccess(w http.ResponseWriter, r *http.Request, status int, message string, data, pagination any) {
	envelope := SuccessEnvelope{
		Success: true,
		Message: message,
		Meta: Meta{
			RequestID:  RequestID(r.Context()),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Pagination: pagination,
		},
		Data: data,
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

// responseWritten reports whether a response has already been committed on
// this writer. It relies on the pipeline installing a WrapResponseWriter at
// the head of the chain.
func responseWritten(w http.ResponseWriter) bool {
	if ww, ok := w.(middleware.WrapResponseWriter); ok {
		return ww.Status() != 0
	}
	return false
}
