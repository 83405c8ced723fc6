package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/schoolhub/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs every request on arrival and completion
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		ip := utils.GetRealIP(c)

		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   path,
			"query":  query,
			"ip":     ip,
		}).Debug("Incoming request")

		c.Next()

		status := c.Writer.Status()
		fields := logrus.Fields{
			"status":     status,
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         ip,
			"latency_ms": time.Since(start).Milliseconds(),
			"device":     utils.ParseUserAgent(c.Request.UserAgent()).Label(),
		}

		// Never log the token itself
		authHeader := c.GetHeader("Authorization")
		fields["has_auth"] = authHeader != ""
		if authHeader != "" {
			fields["auth_type"] = strings.SplitN(authHeader, " ", 2)[0]
		}

		if userCtx, exists := GetUserContext(c); exists {
			fields["user_id"] = userCtx.UserID.String()
			fields["school_id"] = userCtx.SchoolID
			fields["roles"] = userCtx.Roles
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}
