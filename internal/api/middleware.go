package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"solarkiosk/pkg/logger"
)

const (
	// RequestIDKey is the gin context key carrying the request ID.
	RequestIDKey = "request_id"
	// RequestIDHeader is the header the ID is read from and echoed to.
	RequestIDHeader = "X-Request-ID"
)

// RequestID assigns a unique ID to each incoming request, honouring one
// supplied by the caller.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// GetRequestID retrieves the request ID from the gin context.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// Logger logs each request with latency and status.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		requestID := GetRequestID(c)

		if status >= 500 {
			logger.Errorf("%s %s -> %d (%v) [%s]", method, path, status, latency, requestID)
		} else if status >= 400 {
			logger.Warnf("%s %s -> %d (%v) [%s]", method, path, status, latency, requestID)
		} else {
			logger.Infof("%s %s -> %d (%v) [%s]", method, path, status, latency, requestID)
		}
	}
}

// CORS allows the kiosk page to be served from a different origin during
// development. The deployed kiosk is same-origin, so the policy stays open.
func CORS() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowHeaders = []string{"Origin", "Content-Type", RequestIDHeader}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}
