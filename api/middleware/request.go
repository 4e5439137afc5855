package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/feichai0017/tender-processor/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

const slowRequestThreshold = 2 * time.Second

// RequestLogger tags every request with an id and logs it when done.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		fields := []logger.Field{
			logger.String("requestId", id),
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", elapsed),
		}
		switch {
		case c.Writer.Status() >= 500:
			log.Error("Request failed", fields...)
		case elapsed > slowRequestThreshold:
			log.Warn("Slow request", fields...)
		default:
			log.Debug("Request completed", fields...)
		}
	}
}
