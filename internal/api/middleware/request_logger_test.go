package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/Wikid82/proxybot/internal/logger"
)

func newLoggedRouter(debug bool, buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger.Init(debug, buf)
	router := gin.New()
	router.Use(RequestID())
	router.Use(RequestLogger("/metrics"))
	router.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, "# metrics") })
	router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	return router
}

func TestRequestLoggerIncludesRequestID(t *testing.T) {
	buf := &bytes.Buffer{}
	router := newLoggedRouter(true, buf)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok?token=secret", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	out := buf.String()
	assert.Contains(t, out, "request_id")
	assert.Contains(t, out, "handled request")
	assert.NotContains(t, out, "secret")
}

func TestRequestLoggerQuietPaths(t *testing.T) {
	buf := &bytes.Buffer{}
	router := newLoggedRouter(false, buf)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Empty(t, buf.String())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Contains(t, buf.String(), `"level":"warning"`)
}
