package http

import (
	"github.com/gin-gonic/gin"

	"github.com/dealscout/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		deals := v1.Group("/deals")
		{
			deals.POST("/find", handler.FindDeals)
			deals.GET("", handler.ListDeals)
		}

		matches := v1.Group("/matches")
		{
			matches.POST("/best", handler.BestMatch)
			matches.POST("/score", handler.ScoreOffers)
		}

		catalog := v1.Group("/catalog")
		{
			catalog.POST("/ingest", handler.IngestCatalog)
			catalog.POST("/index", handler.IndexDeals)
			catalog.POST("/full-ingest", handler.FullIngest)
			catalog.POST("/link", handler.LinkCatalog)
		}

		v1.POST("/merchants/resolve", handler.ResolveMerchantURL)

		// Debug endpoints
		v1.DELETE("/debug/collections", handler.ClearCollections)
	}

	return router
}
