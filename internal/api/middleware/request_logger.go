package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request. Requests to quiet paths, such as
// health probes and metric scrapes, are logged at debug level.
func RequestLogger(quiet ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := GetRequestLogger(c).WithFields(logrus.Fields{
			"status":  status,
			"method":  c.Request.Method,
			"path":    SanitizePath(c.Request.URL.Path),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		switch _, isQuiet := skip[c.Request.URL.Path]; {
		case status >= http.StatusInternalServerError:
			entry.Warn("handled request")
		case isQuiet:
			entry.Debug("handled request")
		default:
			entry.Info("handled request")
		}
	}
}
