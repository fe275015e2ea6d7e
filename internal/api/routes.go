package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/traviscua/pricewatch/internal/api/handlers"
	"github.com/traviscua/pricewatch/internal/database"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient) {
	// Health check endpoint
	router.GET("/health", healthCheck(db, redis))

	indexHandler := handlers.NewIndexHandler(database.NewRepository(db.Pool), redis)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		index := v1.Group("/index")
		{
			index.GET("/latest", indexHandler.GetLatestIndex)
			index.GET("/history/:generation", indexHandler.GetGenerationHistory)
			index.GET("/compare/:category/:generation", indexHandler.GetSourceComparison)
		}

		products := v1.Group("/products")
		{
			products.GET("/:id/prices", indexHandler.GetProductPrices)
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		// Check database health
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Database = "error"
			response.Status = "degraded"
		}

		// Check Redis health
		if redis == nil {
			response.Services.Redis = "disabled"
		} else if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Redis = "error"
			response.Status = "degraded"
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}
