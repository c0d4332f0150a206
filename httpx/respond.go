package httpx

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/forgeline/keel"
	"github.com/forgeline/keel/httperr"
)

// Responder is the pipeline's terminal error stage. Every error that
// reaches it is normalized through the taxonomy, logged with severity
// derived from the status code, and written as the failure envelope.
// If a response was already committed the error is only logged.
type Responder struct {
	logger     keel.Logger
	production bool
}

// NewResponder creates a terminal responder. In production mode, internal
// causes and stack traces are withheld from response bodies.
func NewResponder(logger keel.Logger, production bool) *Responder {
	return &Responder{logger: logger, production: production}
}

// Error normalizes err and writes the failure envelope at most once.
func (rsp *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := httperr.Normalize(err)
	requestID := RequestID(r.Context())

	rsp.log(appErr, r, requestID)

	if responseWritten(w) {
		return
	}

	body := ErrorBody{
		Message:    appErr.Message,
		Code:       appErr.Code,
		StatusCode: appErr.StatusCode,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RequestID:  requestID,
		Details:    appErr.Details,
	}

	// The original cause and stack are diagnostic details; production
	// responses carry only the classified message.
	if !rsp.production {
		if body.Details == nil && appErr.Err != nil {
			body.Details = appErr.Err.Error()
		}
		if appErr.StatusCode >= http.StatusInternalServerError {
			body.Stack = string(debug.Stack())
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{Success: false, Error: body})
}

func (rsp *Responder) log(appErr *httperr.Error, r *http.Request, requestID string) {
	args := []any{
		"code", appErr.Code,
		"status", appErr.StatusCode,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestID,
	}
	if appErr.Err != nil {
		args = append(args, "error", appErr.Err.Error())
	}

	switch {
	case appErr.StatusCode >= http.StatusInternalServerError:
		rsp.logger.Error(appErr.Message, args...)
	case appErr.StatusCode >= http.StatusBadRequest:
		rsp.logger.Warn(appErr.Message, args...)
	default:
		rsp.logger.Info(appErr.Message, args...)
	}
}
