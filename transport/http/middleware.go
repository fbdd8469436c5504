package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/storefront/core"
	"github.com/layer-3/storefront/pkg/idx"
	"github.com/layer-3/storefront/pkg/slogx"
	"github.com/layer-3/storefront/service"
)

const identityKey = "identity"

// AuthMiddleware creates middleware that validates access tokens
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get token from Authorization header
		auth := c.GetHeader("Authorization")

		// Check for Bearer token
		if len(auth) < 8 || auth[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		// Verify token
		identity, err := authService.ValidateAccessToken(c.Request.Context(), auth[7:])
		if err != nil {
			if errors.Is(err, core.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			return
		}

		// Set identity in context
		c.Set(identityKey, identity)
		c.Next()
	}
}

func identityFromContext(c *gin.Context) (*core.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*core.Identity)
	return identity, ok
}

// RequestLogger logs each request and attaches a request-scoped logger to its context
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Reuse the caller's request id or mint one
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = idx.New().String()
		}
		c.Header("X-Request-ID", reqID)

		// Attach a request-scoped logger
		logger := base.With(
			"req_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"remote_addr", c.ClientIP(),
		)
		c.Request = c.Request.WithContext(slogx.WithContext(c.Request.Context(), logger))

		c.Next()

		logger.Info("http_request",
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"user_agent", c.Request.UserAgent(),
		)
	}
}
