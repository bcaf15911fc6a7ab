package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/proxybot/internal/logger"
)

func panicRouter(verbose bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery(verbose))
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})
	return router
}

func TestRecoveryLogsStacktraceVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.Init(true, buf)

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set("Authorization", "Bot secret-token")
	w := httptest.NewRecorder()
	panicRouter(true).ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())

	out := buf.String()
	assert.Contains(t, out, "Recovered from panic")
	assert.Contains(t, out, "test panic")
	assert.Contains(t, out, "stack=")
	assert.Contains(t, out, "request_id")
	assert.Contains(t, out, "<redacted>")
	assert.NotContains(t, out, "secret-token")
}

func TestRecoveryLogsBriefWhenNotVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.Init(false, buf)

	w := httptest.NewRecorder()
	panicRouter(false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), `"panic":"test panic"`)
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestSanitize(t *testing.T) {
	assert.Nil(t, SanitizeHeaders(nil))

	h := http.Header{}
	h.Set("Cookie", "session=abc")
	h.Set("X-Custom", "line1\nline2")
	out := SanitizeHeaders(h)
	assert.Equal(t, []string{"<redacted>"}, out["Cookie"])
	assert.Equal(t, []string{"line1 line2"}, out["X-Custom"])

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, SanitizePath("/"+string(long)+"?q=1"), maxLoggedValue)
	assert.Equal(t, "/interactions", SanitizePath("/interactions?x=y"))
}
