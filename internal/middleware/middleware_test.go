package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusLog struct {
	mu    sync.Mutex
	codes []int
}

func (s *statusLog) RecordHTTPStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, code)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := chimw.RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/404.html", http.StatusFound)
	})))

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	assert.Contains(t, line, "request completed")
	assert.Contains(t, line, "method=GET")
	assert.Contains(t, line, "path=/missing")
	assert.Contains(t, line, "status=302")
	assert.Contains(t, line, "requestID=")
	assert.Contains(t, line, "level=INFO")
}

func TestLogger_ServerErrorLogsAtError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "status=500")
}

func TestLogger_CountsBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), "bytes=5")
	assert.Contains(t, buf.String(), "status=200")
}

func TestMetrics(t *testing.T) {
	rec := &statusLog{}
	codes := []int{http.StatusOK, http.StatusFound, http.StatusNotFound}

	for _, code := range codes {
		h := Metrics(rec)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
			w.WriteHeader(http.StatusTeapot) // ignored
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	// a handler that never calls WriteHeader is a 200
	Metrics(rec)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Len(t, rec.codes, 4)
	assert.Equal(t, []int{200, 302, 404, 200}, rec.codes)
}

func TestStatusRecorder_Unwrap(t *testing.T) {
	rr := httptest.NewRecorder()
	sr := newStatusRecorder(rr)
	assert.Same(t, rr, sr.Unwrap())
	assert.Equal(t, http.StatusOK, sr.statusCode)
}
