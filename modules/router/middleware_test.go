package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/keel/httpx"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

func testResponder() *httpx.Responder {
	return httpx.NewResponder(nopLogger{}, false)
}

// wrap runs a handler through the correlation stage plus the middleware
// under test, matching the writer setup of the real pipeline.
func wrap(mw func(http.Handler) http.Handler, handler http.Handler) http.Handler {
	return CorrelationID()(mw(handler))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorEnvelope {
	t.Helper()
	var envelope httpx.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestCorrelationID(t *testing.T) {
	t.Run("mints an id and stores it in context", func(t *testing.T) {
		var seen string
		h := CorrelationID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = httpx.RequestID(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("honors an inbound id", func(t *testing.T) {
		h := CorrelationID()(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "caller-supplied")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "caller-supplied", rec.Header().Get(RequestIDHeader))
	})

	t.Run("falls back to the correlation header", func(t *testing.T) {
		h := CorrelationID()(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(CorrelationIDHeader, "legacy-id")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "legacy-id", rec.Header().Get(RequestIDHeader))
	})
}

func TestSecurityHeaders(t *testing.T) {
	h := wrap(SecurityHeaders(1024, testResponder()), okHandler())

	t.Run("sets hardening headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	})

	t.Run("rejects declared oversize body before reading it", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x"))
		req.ContentLength = 4096

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		envelope := errorBody(t, rec)
		assert.Equal(t, "PAYLOAD_TOO_LARGE", envelope.Error.Code)
	})
}

func TestBodyLimit(t *testing.T) {
	h := wrap(BodyLimit(8), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			testResponder().Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"key":"a much longer value"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCompression(t *testing.T) {
	payload := strings.Repeat("compressible ", 200)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(payload))
	})

	t.Run("compresses by default", func(t *testing.T) {
		h := wrap(Compression(5), handler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	})

	t.Run("opt-out header disables compression", func(t *testing.T) {
		h := wrap(Compression(5), handler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		req.Header.Set(NoCompressionHeader, "1")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Content-Encoding"))
		assert.Equal(t, payload, rec.Body.String())
	})
}

func TestTimeoutWatchdog(t *testing.T) {
	t.Run("slow handler gets 408", func(t *testing.T) {
		slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(100 * time.Millisecond):
				w.WriteHeader(http.StatusOK)
			case <-r.Context().Done():
			}
		})
		h := wrap(TimeoutWatchdog(30*time.Millisecond, testResponder()), slow)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusRequestTimeout, rec.Code)
		envelope := errorBody(t, rec)
		assert.Equal(t, "REQUEST_TIMEOUT", envelope.Error.Code)
	})

	t.Run("fast handler passes through", func(t *testing.T) {
		h := wrap(TimeoutWatchdog(100*time.Millisecond, testResponder()), okHandler())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("committed response wins the race", func(t *testing.T) {
		committed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			time.Sleep(80 * time.Millisecond)
		})
		h := wrap(TimeoutWatchdog(30*time.Millisecond, testResponder()), committed)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("late handler writes after timeout are discarded", func(t *testing.T) {
		done := make(chan struct{})
		late := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("too late"))
			close(done)
		})
		h := wrap(TimeoutWatchdog(20*time.Millisecond, testResponder()), late)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		<-done

		assert.Equal(t, http.StatusRequestTimeout, rec.Code)
		assert.NotContains(t, rec.Body.String(), "too late")
	})
}

func TestRequestLoggerDistinguishesAbortedRequests(t *testing.T) {
	logged := make(map[string]int)
	logger := &recordingLogger{calls: logged}

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	chain := CorrelationID()(TimeoutWatchdog(10*time.Millisecond, testResponder())(RequestLogger(logger)(slow)))

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	// The logger stage sits inside the watchdog, so wait for it to observe
	// the cancelled context.
	require.Eventually(t, func() bool { return logger.count("request aborted") > 0 },
		time.Second, 5*time.Millisecond)
}

type recordingLogger struct {
	mu    sync.Mutex
	calls map[string]int
}

func (l *recordingLogger) log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[msg]++
}

func (l *recordingLogger) count(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[msg]
}
func (l *recordingLogger) Info(m string, _ ...any) { l.log(m) }
func (l *recordingLogger) Error(m string, _ ...any) {
	l.log(m)
}
func (l *recordingLogger) Warn(m string, _ ...any)  { l.log(m) }
func (l *recordingLogger) Debug(m string, _ ...any) { l.log(m) }

func TestRateLimit(t *testing.T) {
	cfg := &RateLimitConfig{Window: time.Minute, Max: 2}

	t.Run("allows within budget then rejects", func(t *testing.T) {
		h := wrap(RateLimit(cfg, testResponder(), HealthPath), okHandler())

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/things", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/things", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		envelope := errorBody(t, rec)
		assert.Equal(t, "RATE_LIMIT_EXCEEDED", envelope.Error.Code)
	})

	t.Run("tracks callers independently", func(t *testing.T) {
		h := wrap(RateLimit(cfg, testResponder(), HealthPath), okHandler())

		for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
			for i := 0; i < 2; i++ {
				rec := httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodGet, "/api/things", nil)
				req.RemoteAddr = addr
				h.ServeHTTP(rec, req)
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		}
	})

	t.Run("health path is exempt", func(t *testing.T) {
		h := wrap(RateLimit(cfg, testResponder(), HealthPath), okHandler())

		for i := 0; i < 10; i++ {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, HealthPath, nil)
			req.RemoteAddr = "10.0.0.9:1"
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestTimeoutWriterSatisfiesWrapWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	tw := &timeoutWriter{ResponseWriter: rec}

	var _ middleware.WrapResponseWriter = tw
	tw.WriteHeader(http.StatusTeapot)
	_, _ = tw.Write([]byte("short"))

	assert.Equal(t, http.StatusTeapot, tw.Status())
	assert.Equal(t, 5, tw.BytesWritten())
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RequestTimeout: 30 * time.Second,
			MaxBodyBytes:   1 << 20,
			RateLimit:      RateLimitConfig{Window: time.Minute, Max: 100},
		}
	}

	assert.NoError(t, valid().Validate())

	c := valid()
	c.RequestTimeout = 0
	assert.ErrorIs(t, c.Validate(), ErrInvalidTimeout)

	c = valid()
	c.MaxBodyBytes = -1
	assert.ErrorIs(t, c.Validate(), ErrInvalidBodyLimit)

	c = valid()
	c.RateLimit.Max = 0
	assert.ErrorIs(t, c.Validate(), ErrInvalidRateLimit)
}
