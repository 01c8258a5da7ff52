package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequireBearer rejects requests whose bearer token does not equal secret.
// An empty secret rejects everything.
func RequireBearer(secret string) gin.HandlerFunc {
	want := []byte(strings.TrimSpace(secret))
	return func(c *gin.Context) {
		if len(want) == 0 || !bearerMatches(c.GetHeader("Authorization"), want) {
			Error(c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalBearer enforces RequireBearer only when secret is set.
func OptionalBearer(secret string) gin.HandlerFunc {
	if strings.TrimSpace(secret) == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return RequireBearer(secret)
}

func bearerMatches(header string, want []byte) bool {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	got := []byte(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// AccessLog logs API writes and failed requests; reads are logged at debug.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if path == "/healthz" || path == "/readyz" {
			return
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("took", time.Since(start)),
		}
		switch {
		case status >= 500:
			logger.Warn("http request failed", fields...)
		case c.Request.Method == http.MethodGet || status >= 400:
			logger.Debug("http request", fields...)
		default:
			logger.Info("http write", fields...)
		}
	}
}
