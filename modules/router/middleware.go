package router

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/forgeline/keel"
	"github.com/forgeline/keel/httperr"
	"github.com/forgeline/keel/httpx"
)

// RequestIDHeader carries the correlation id on requests and responses.
const RequestIDHeader = "X-Request-Id"

// CorrelationIDHeader is the alternate inbound correlation header honored
// for callers that use the older convention. Responses always answer with
// RequestIDHeader.
const CorrelationIDHeader = "X-Correlation-Id"

// NoCompressionHeader lets a caller opt out of response compression.
const NoCompressionHeader = "X-No-Compression"

// CorrelationID is the pipeline head. It wraps the response writer so later
// stages can tell whether a response has been committed, honors an inbound
// correlation id or mints one, echoes it on the response, and records the
// request start time.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = r.Header.Get(CorrelationIDHeader)
			}
			if id == "" {
				id = newRequestID()
			}
			ww.Header().Set(RequestIDHeader, id)

			ctx := httpx.WithRequestID(r.Context(), id)
			ctx = httpx.WithStartTime(ctx, time.Now())
			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// SecurityHeaders sets hardening headers on every response and rejects
// requests whose declared Content-Length already exceeds the body ceiling,
// before a single body byte is read.
func SecurityHeaders(maxBodyBytes int64, responder *httpx.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			h.Del("X-Powered-By")
			h.Del("Server")

			if r.ContentLength > maxBodyBytes {
				responder.Error(w, r, httperr.PayloadTooLarge(
					fmt.Sprintf("request body exceeds limit of %d bytes", maxBodyBytes)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS applies the configured cross-origin policy.
func CORS(cfg *CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}

// BodyLimit caps the readable request body. Reads past the limit surface as
// http.MaxBytesError, which the taxonomy maps to 413.
func BodyLimit(maxBodyBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// Compression compresses responses unless the caller opts out with the
// X-No-Compression header.
func Compression(level int) func(http.Handler) http.Handler {
	compress := middleware.Compress(level)
	return func(next http.Handler) http.Handler {
		compressed := compress(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(NoCompressionHeader) != "" {
				next.ServeHTTP(w, r)
				return
			}
			compressed.ServeHTTP(w, r)
		})
	}
}

// TimeoutWatchdog bounds handler latency. The handler runs in its own
// goroutine against a guarded writer; if the deadline passes first and no
// response has been committed, the watchdog writes 408 and all later
// handler writes are discarded. The watchdog does not kill the handler
// goroutine, it only guarantees the caller a timely response.
func TimeoutWatchdog(timeout time.Duration, responder *httpx.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{ResponseWriter: w}
			done := make(chan struct{})
			panicChan := make(chan any, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicChan <- p
					}
				}()
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case p := <-panicChan:
				panic(p)
			case <-done:
			case <-ctx.Done():
				if tw.markTimedOut() {
					responder.Error(w, r, httperr.Timeout("request processing exceeded the time limit"))
				}
			}
		})
	}
}

// timeoutWriter serializes the race between the handler goroutine and the
// watchdog. Once markTimedOut wins, handler writes become no-ops; once the
// handler commits a write, markTimedOut reports false and the watchdog
// stays silent. It satisfies middleware.WrapResponseWriter so downstream
// stages keep their view of the response status.
type timeoutWriter struct {
	http.ResponseWriter
	mu       sync.Mutex
	status   int
	bytes    int
	timedOut bool
}

var _ middleware.WrapResponseWriter = (*timeoutWriter)(nil)

func (tw *timeoutWriter) WriteHeader(status int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return
	}
	if tw.status == 0 {
		tw.status = status
	}
	tw.ResponseWriter.WriteHeader(status)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return len(b), nil
	}
	if tw.status == 0 {
		tw.status = http.StatusOK
	}
	n, err := tw.ResponseWriter.Write(b)
	tw.bytes += n
	return n, err
}

func (tw *timeoutWriter) Status() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.status
}

func (tw *timeoutWriter) BytesWritten() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytes
}

func (tw *timeoutWriter) Tee(io.Writer) {}

func (tw *timeoutWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

func (tw *timeoutWriter) Discard() {}

// markTimedOut reports whether the watchdog may write the 408.
func (tw *timeoutWriter) markTimedOut() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.status != 0 {
		return false
	}
	tw.timedOut = true
	return true
}

// RequestLogger emits one structured event per request on completion, and a
// distinct "request aborted" event when the deadline fired before any
// response was committed.
func RequestLogger(logger keel.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := httpx.StartTime(r.Context())
			if start.IsZero() {
				start = time.Now()
			}

			next.ServeHTTP(w, r)

			status := 0
			var written int64
			if ww, ok := w.(middleware.WrapResponseWriter); ok {
				status = ww.Status()
				written = int64(ww.BytesWritten())
			}

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", written,
				"duration", time.Since(start).String(),
				"remote", r.RemoteAddr,
				"request_id", httpx.RequestID(r.Context()),
			}

			if r.Context().Err() != nil && status == 0 {
				logger.Warn("request aborted", args...)
				return
			}
			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("request completed", args...)
			case status >= http.StatusBadRequest:
				logger.Warn("request completed", args...)
			default:
				logger.Info("request completed", args...)
			}
		})
	}
}
