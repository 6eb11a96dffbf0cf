package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/pick-engine/shared/pkg/logger"
)

func newRouter(t *testing.T) (*gin.Engine, *test.Hook) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, hook := test.NewNullLogger()
	previous := logger.Logger
	logger.Logger = log
	t.Cleanup(func() { logger.Logger = previous })

	router := gin.New()
	router.Use(RequestID(), RequestLogger("prediction-service"))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return router, hook
}

func TestRequestIDEchoesCallerHeader(t *testing.T) {
	router, hook := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/ok?date=2025-02-14", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "abc-123", entry.Data["correlation_id"])
	assert.Equal(t, "date=2025-02-14", entry.Data["query"])
	assert.Equal(t, "/ok", entry.Data["http_path"])
}

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	router, _ := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRequestLoggerLevelFollowsStatus(t *testing.T) {
	tests := []struct {
		path  string
		level logrus.Level
	}{
		{"/ok", logrus.InfoLevel},
		{"/missing", logrus.WarnLevel},
		{"/boom", logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			router, hook := newRouter(t)
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, tt.level, entry.Level)
		})
	}
}
