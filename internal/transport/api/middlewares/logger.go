package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger writes one line per request. Private errors attached by the handlers go to the same line.
func Logger(l *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := l.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})

		private := c.Errors.ByType(gin.ErrorTypePrivate)
		switch {
		case len(private) > 0:
			entry.WithField("errors", private.String()).Error("request failed")
		case c.Writer.Status() >= 500: //nolint:mnd
			entry.Error("request failed")
		default:
			entry.Info("request")
		}
	}
}
