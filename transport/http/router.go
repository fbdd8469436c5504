package http

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/storefront/service"
)

// RouterConfig holds transport settings
type RouterConfig struct {
	RateLimit RateLimitConfig

	// TrustedProxies lists proxy IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty trusts no proxy, so the client IP is always the socket peer.
	TrustedProxies []string
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, logger *slog.Logger, cfg RouterConfig) (*gin.Engine, error) {
	router := gin.New()

	// Only trusted proxies may override the client IP
	trusted := cfg.TrustedProxies
	if len(trusted) == 0 {
		trusted = nil
	}
	if err := router.SetTrustedProxies(trusted); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router.Use(gin.Recovery(), RequestLogger(logger))

	handlers := NewAuthHandlers(authService)

	// Health checks
	router.GET("/livez", handlers.Livez)
	router.GET("/readyz", handlers.Readyz)

	// Auth routes
	auth := router.Group("/api/auth")
	auth.Use(RateLimit(cfg.RateLimit))
	{
		auth.POST("/wallet", handlers.Wallet)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
	}

	return router, nil
}
