package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/cleanfi/internal/middleware/realip"
)

// testHandler returns a handler that writes a response with the given status and body
func testHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

// serve runs one request through the middleware and decodes the log record
func serve(t *testing.T, h http.Handler, req *http.Request) map[string]any {
	t.Helper()
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	rr := httptest.NewRecorder()
	Middleware(logger)(h).ServeHTTP(rr, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logBuf.Bytes(), &entry))
	return entry
}

func TestMiddleware_LogsRequests(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/actions/vote?cleanupId=1&type=like", nil)
	req.RemoteAddr = "192.168.1.100:12345"

	entry := serve(t, testHandler(http.StatusOK, "hello"), req)

	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/actions/vote", entry["path"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.Equal(t, float64(5), entry["bytes"])
	assert.Equal(t, "192.168.1.100", entry["client_ip"])

	duration, ok := entry["duration"].(string)
	assert.True(t, ok, "duration should be a string")
	assert.NotEmpty(t, duration)
}

func TestMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusTooManyRequests, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
		{http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/actions/vote", nil)
			entry := serve(t, testHandler(tt.status, "{}"), req)
			assert.Equal(t, tt.want, entry["level"])
			assert.Equal(t, float64(tt.status), entry["status"])
		})
	}
}

func TestMiddleware_ProbesLogAtDebug(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	Middleware(logger)(testHandler(http.StatusOK, "ok")).ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, logBuf.String(), "healthy probes are below the default level")

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	Middleware(logger)(testHandler(http.StatusServiceUnavailable, "")).ServeHTTP(httptest.NewRecorder(), req)
	assert.Contains(t, logBuf.String(), `"level":"ERROR"`)
}

func TestMiddleware_IncludesRoutePattern(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	r := chi.NewRouter()
	r.Use(Middleware(logger))
	r.Get("/api/v1/cleanups/{id}", testHandler(http.StatusOK, "{}").ServeHTTP)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cleanups/42", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logBuf.Bytes(), &entry))

	assert.Equal(t, "/api/v1/cleanups/42", entry["path"])
	assert.Equal(t, "/api/v1/cleanups/{id}", entry["route"])
}

func TestMiddleware_NoRouteOutsideRouter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	entry := serve(t, testHandler(http.StatusOK, ""), req)
	assert.NotContains(t, entry, "route")
}

func TestMiddleware_IncludesRequestID(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	handler := middleware.RequestID(Middleware(logger)(testHandler(http.StatusOK, "")))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logBuf.Bytes(), &entry))
	assert.NotEmpty(t, entry["request_id"])
}

func TestMiddleware_HandlesContextWithRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "test-request-id-123"))

	entry := serve(t, testHandler(http.StatusOK, ""), req)
	assert.Equal(t, "test-request-id-123", entry["request_id"])
}

func TestMiddleware_UsesRealIPFromContext(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	handler := realip.Middleware(realip.Config{
		TrustProxy:     true,
		TrustedProxies: []string{"10.0.0.0/8"},
	})(Middleware(logger)(testHandler(http.StatusOK, "")))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.50")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logBuf.Bytes(), &entry))
	assert.Equal(t, "203.0.113.50", entry["client_ip"])
}

func TestMiddleware_DefaultStatus200(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("no explicit status"))
	})

	entry := serve(t, handler, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.Equal(t, float64(len("no explicit status")), entry["bytes"])
}

func TestResponseWriter(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rr, status: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK)
	assert.Equal(t, http.StatusNotFound, rw.status, "second WriteHeader is ignored")

	n, err := rw.Write([]byte("test"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	_, _ = rw.Write([]byte("more"))
	assert.Equal(t, 8, rw.bytes)

	assert.Equal(t, rr, rw.Unwrap())
}
