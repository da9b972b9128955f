package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buddydesk/internal/pkg/logger"
)

func bufferLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf})
}

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf)

	router := gin.New()
	router.Use(RequestID(log))
	router.GET("/ping", func(c *gin.Context) {
		log.Info(c.Request.Context(), "inside handler")
		c.String(http.StatusOK, c.GetString(ContextRequestID))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	id := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, id)
	assert.Equal(t, id, w.Body.String())
	assert.Contains(t, buf.String(), `"request_id":"`+id+`"`)
}

func TestRequestID_ReusesIncoming(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(nil))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestErrorLogger_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	router := gin.New()
	router.Use(ErrorLogger(bufferLogger(&buf)))
	router.GET("/boom", func(c *gin.Context) {
		panic("something broke")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
	assert.NotContains(t, w.Body.String(), "something broke")
	assert.Contains(t, buf.String(), "something broke")
	assert.Contains(t, buf.String(), `"type":"panic"`)
}

func TestErrorLogger_LogsAttachedErrors(t *testing.T) {
	var buf bytes.Buffer
	router := gin.New()
	router.Use(ErrorLogger(bufferLogger(&buf)))
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("database unreachable"))
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "database unreachable")
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	router := gin.New()
	router.Use(AccessLog(bufferLogger(&buf)))
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/7", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "request completed", line["message"])
	assert.Equal(t, "/items/:id", line["path"])
	assert.EqualValues(t, http.StatusNoContent, line["status"])
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://buddies.example.com"}, true))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("allowed origin is reflected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "https://buddies.example.com")
		router.ServeHTTP(w, req)
		assert.Equal(t, "https://buddies.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("dev origin rejected in prod", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		router.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		req.Header.Set("Origin", "https://buddies.example.com")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

type fakeWindowStore struct {
	counts map[string]int64
	err    error
}

func (f *fakeWindowStore) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func hitN(router *gin.Engine, n int, ip string) []int {
	codes := make([]int, 0, n)
	for range n {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("{}"))
		req.RemoteAddr = ip + ":5555"
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	return codes
}

func limitedRouter(store WindowStore) *gin.Engine {
	router := gin.New()
	policy := RateLimitPolicy{Name: "buddy-request", Limit: 2, Window: time.Minute}
	router.POST("/submit", RateLimit(policy, store, logger.Nop()), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return router
}

func TestRateLimit_RedisWindow(t *testing.T) {
	store := &fakeWindowStore{}
	router := limitedRouter(store)

	codes := hitN(router, 3, "10.0.0.1")
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.EqualValues(t, 3, store.counts["buddy-request:10.0.0.1"])

	// Other clients have their own window.
	assert.Equal(t, []int{http.StatusCreated}, hitN(router, 1, "10.0.0.2"))
}

func TestRateLimit_LocalFallback(t *testing.T) {
	router := limitedRouter(nil)

	codes := hitN(router, 3, "10.0.0.1")
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_StoreErrorFallsBackToLocal(t *testing.T) {
	router := limitedRouter(&fakeWindowStore{err: errors.New("redis down")})

	codes := hitN(router, 3, "10.0.0.1")
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_BlockedResponse(t *testing.T) {
	router := limitedRouter(nil)
	hitN(router, 2, "10.0.0.9")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestRateLimit_DisabledPolicy(t *testing.T) {
	router := gin.New()
	router.POST("/submit", RateLimit(RateLimitPolicy{}, nil, nil), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	assert.Equal(t, []int{201, 201, 201}, hitN(router, 3, "10.0.0.1"))
}
