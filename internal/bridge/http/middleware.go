package http

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tgbridge/internal/observability"
	"tgbridge/internal/shared/logging"
)

const (
	// RequestIDHeader carries the per-request id in both directions.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "tgbridge.request_id"
	loggerKey    = "tgbridge.logger"
	bearerPrefix = "Bearer "
)

// RequestIDMiddleware assigns every request an id (reusing a sane inbound
// X-Request-ID), echoes it, and stores a logger tagged with it.
func RequestIDMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = ulid.Make().String()
		}
		c.Set(requestIDKey, id)
		c.Set(loggerKey, logging.WithLogID(logger, id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestID returns the id assigned by RequestIDMiddleware.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func requestLogger(c *gin.Context) logging.Logger {
	if value, ok := c.Get(loggerKey); ok {
		if logger, ok := value.(logging.Logger); ok {
			return logger
		}
	}
	return logging.Nop()
}

// RecoveryMiddleware converts panics into a JSON 500 and logs them.
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		requestLogger(c).Error("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{OK: false, Error: "Internal server error"})
	})
}

// ObservabilityMiddleware instruments requests with tracing, metrics, and
// latency logging.
func ObservabilityMiddleware(tracer *observability.TracerProvider, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, span := tracer.StartSpan(c.Request.Context(), observability.SpanHTTPServer, RequestID(c),
			attribute.String(observability.AttrHTTPMethod, c.Request.Method),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		status := c.Writer.Status()
		latency := time.Since(start)

		span.SetAttributes(
			attribute.String(observability.AttrHTTPRoute, route),
			attribute.Int(observability.AttrHTTPStatus, status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		span.End()

		metrics.ObserveHTTPRequest(c.Request.Method, route, status, latency)
		requestLogger(c).Info(
			"route=%s method=%s status=%d latency_ms=%.2f bytes=%d",
			routeOrPath(route, c.Request.URL.Path),
			c.Request.Method,
			status,
			float64(latency.Microseconds())/1000.0,
			c.Writer.Size(),
		)
	}
}

func routeOrPath(route, path string) string {
	if route != "" {
		return route
	}
	return path
}

// BearerAuthMiddleware requires "Authorization: Bearer <token>" when token is
// non-empty. An empty token disables the check.
func BearerAuthMiddleware(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	expected := []byte(token)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) ||
			subtle.ConstantTimeCompare([]byte(header[len(bearerPrefix):]), expected) != 1 {
			requestLogger(c).Warn("rejected unauthorized request from %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{OK: false, Error: "Unauthorized"})
			return
		}
		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return fmt.Sprintf("ip:%s", ip)
	}
	return "anonymous"
}
