package api

import (
	"github.com/ananyasub/argus/internal/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(cfg *config.Config, handler *Handler) *gin.Engine {
	router := gin.Default()

	// Create rate limiter
	rateLimiter := NewRateLimiter(cfg.RateLimitRPS, int(cfg.RateLimitRPS*2))

	// Middleware
	router.Use(ErrorHandlerMiddleware())

	// Health endpoint (no auth)
	router.GET("/health", handler.Health)

	// API routes (with auth and rate limiting)
	api := router.Group("/api/v1")
	api.Use(JWTAuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer))
	api.Use(RateLimitMiddleware(rateLimiter))
	{
		api.POST("/scans", handler.Scan)
		api.GET("/scans/:id/report", handler.Report)
		api.GET("/documents/:id/similar", handler.Similar)
		api.GET("/stats", handler.Stats)
	}

	return router
}
