package api

import (
	"strconv"
	"time"

	"notice-push/internal/common/auth"
	"notice-push/internal/common/errors"
	"notice-push/internal/common/logger"
	"notice-push/internal/common/metrics"

	"github.com/gin-gonic/gin"
)

const callerKey = "caller"

// Authenticate resolves the bearer token before the handler runs. Requests
// that fail never reach the store.
func Authenticate(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := authenticator.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

// CallerFrom returns the caller stored by Authenticate, or nil.
func CallerFrom(c *gin.Context) *auth.Caller {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*auth.Caller)
	return caller
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(endpoint, status, method).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(time.Since(start).Seconds())
	}
}

// RequestLogger logs one line per request. Headers are never logged.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
		}
		if caller := CallerFrom(c); caller != nil {
			fields["callerRole"] = string(caller.Role)
		}
		if last := c.Errors.Last(); last != nil {
			stdErr := errors.AsStandardError(last.Err)
			fields["errorCode"] = string(stdErr.Code)
			if stdErr.Details != "" {
				fields["details"] = stdErr.Details
			}
		}

		if c.Writer.Status() >= 500 {
			log.Error("request failed", fields)
			return
		}
		log.Debug("request handled", fields)
	}
}
