package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Wikid82/proxybot/internal/metrics"
)

// Recovery turns a handler panic into a 500 and counts it. verbose adds the
// stack and sanitized request metadata to the log line.
func Recovery(verbose bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			metrics.IncHTTPPanic()

			fields := logrus.Fields{"panic": fmt.Sprint(r)}
			if verbose {
				fields["method"] = c.Request.Method
				fields["path"] = SanitizePath(c.Request.URL.Path)
				fields["headers"] = SanitizeHeaders(c.Request.Header)
				fields["stack"] = string(debug.Stack())
			}
			GetRequestLogger(c).WithFields(fields).Error("Recovered from panic")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}()
		c.Next()
	}
}
