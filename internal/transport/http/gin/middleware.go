package httpgin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey = "request_id"
	userIDKey    = "user_id"

	maxRequestIDLen = 128
)

// RequestIDMiddleware keeps the caller's X-Request-ID or assigns one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.NewString()
		}

		c.Header("X-Request-ID", reqID)
		c.Set(requestIDKey, reqID)

		c.Next()
	}
}

// UserAuth takes the caller from the X-User-ID header, which the identity
// gateway in front of the service sets after authenticating the request.
func UserAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader("X-User-ID"))
		if err != nil || id == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing or invalid X-User-ID"})
			return
		}

		c.Set(userIDKey, id)
		c.Next()
	}
}

func userID(c *gin.Context) uuid.UUID {
	v, _ := c.Get(userIDKey)
	id, _ := v.(uuid.UUID)
	return id
}

func CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			"GET", "POST", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"X-User-ID",
			"Idempotency-Key",
			"If-None-Match",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"ETag",
			"Cache-Control",
			"Idempotency-Key",
			"Retry-After",
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	return cors.New(cfg)
}

// LoggingMiddleware writes one record per request. Server errors log at
// error level, rejected requests at warn; health probes only when they fail.
// A websocket upgrade is logged when the session ends.
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if c.FullPath() == "/healthz" && status < http.StatusBadRequest {
			return
		}

		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}

		reqID, _ := c.Get(requestIDKey)
		attrs := []any{
			slog.Int("status", status),
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.String("path", path),
			slog.String("ip", c.ClientIP()),
			slog.Any("request_id", reqID),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes_out", c.Writer.Size()),
		}
		if uid := userID(c); uid != uuid.Nil {
			attrs = append(attrs, slog.String("user_id", uid.String()))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		msg := "http"
		if c.IsWebsocket() {
			msg = "websocket session"
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error(msg, slog.Group("http", attrs...))
		case status >= http.StatusBadRequest:
			logger.Warn(msg, slog.Group("http", attrs...))
		default:
			logger.Info(msg, slog.Group("http", attrs...))
		}
	}
}
