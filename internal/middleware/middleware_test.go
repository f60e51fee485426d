package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"docbucket/config"
	"docbucket/dataaccess"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimitMiddleware(t *testing.T) {
	var buf bytes.Buffer
	h := RateLimitMiddleware(rate.NewLimiter(rate.Every(time.Hour), 2), testLogger(&buf))(okHandler)

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/docs/a", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Contains(t, buf.String(), "Rate limit exceeded")
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeadersMiddleware(okHandler).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestMaxSizeMiddleware(t *testing.T) {
	var readErr error
	h := MaxSizeMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("PUT", "/docs/a", strings.NewReader(strings.Repeat("x", 32))))
	var tooLarge *http.MaxBytesError
	assert.ErrorAs(t, readErr, &tooLarge)
}

func TestTimeoutMiddleware(t *testing.T) {
	h := TimeoutMiddleware(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/views/d/v", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "request timeout")
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	h := LoggingMiddleware(testLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/docs/x", nil))
	assert.Contains(t, buf.String(), `"method":"DELETE"`)
	assert.Contains(t, buf.String(), `"path":"/docs/x"`)
	assert.Contains(t, buf.String(), `"status_code":418`)
}

func TestErrorHandlerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := testLogger(&buf)

	tests := []struct {
		name   string
		panic  any
		status int
	}{
		{"classified error", dataaccess.New(dataaccess.NotReady, "save", "", nil), http.StatusServiceUnavailable},
		{"plain value", "boom", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ErrorHandlerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic(tt.panic)
			}))
			w := httptest.NewRecorder()
			require.NotPanics(t, func() { h.ServeHTTP(w, httptest.NewRequest("GET", "/docs/a", nil)) })
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"success":false`)
		})
	}
	assert.Contains(t, buf.String(), "Panic recovered")
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"http://app.test"})(okHandler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/docs/a", nil)
	req.Header.Set("Origin", "http://app.test")
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://app.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/docs/a", nil)
	req.Header.Set("Origin", "http://evil.test")
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestDefaultMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := testLogger(&buf)

	minimal := DefaultMiddleware(config.HTTPConfig{MaxBodySize: 1 << 10}, logger)
	assert.Len(t, minimal, 4)

	full := DefaultMiddleware(config.HTTPConfig{
		MaxBodySize: 1 << 10,
		Timeout:     time.Second,
		RateLimit:   10,
		RateBurst:   1,
		CORSOrigins: []string{"http://app.test"},
	}, logger)
	assert.Len(t, full, 7)

	h := ChainMiddleware(full...)(okHandler)
	codes := make([]int, 0, 2)
	for range 2 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/status", nil))
		codes = append(codes, w.Code)
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestChainMiddleware_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	ChainMiddleware(mark("first"), mark("second"))(okHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, []string{"first", "second"}, order)
}
