package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/traviscua/pricewatch/internal/database"
	"github.com/traviscua/pricewatch/internal/models"
)

// cacheTTL bounds staleness of cached read responses. The underlying data
// changes once per day, so this is generous headroom, not a correctness knob.
const cacheTTL = 60 * time.Second

// latestIndexCacheKey is shared with the crawl command, which drops it after
// a run so the API serves the fresh index without waiting out the TTL.
const latestIndexCacheKey = "index:latest"

// IndexHandler serves read queries over the persisted price index.
type IndexHandler struct {
	repo  *database.Repository
	redis *database.RedisClient
}

// NewIndexHandler creates the read-side handler.
func NewIndexHandler(repo *database.Repository, redis *database.RedisClient) *IndexHandler {
	return &IndexHandler{repo: repo, redis: redis}
}

// LatestIndexResponse is the response for the latest daily index.
type LatestIndexResponse struct {
	Data      []models.DailyAggregate `json:"data"`
	Timestamp time.Time               `json:"timestamp"`
}

// HistoryResponse is the response for a generation's index history.
type HistoryResponse struct {
	Generation string                  `json:"generation"`
	Days       int                     `json:"days"`
	Data       []models.DailyAggregate `json:"data"`
	Timestamp  time.Time               `json:"timestamp"`
}

// ProductPricesResponse is the response for one product's price history.
type ProductPricesResponse struct {
	ProductID int64               `json:"product_id"`
	Data      []models.PricePoint `json:"data"`
	Timestamp time.Time           `json:"timestamp"`
}

// ComparisonResponse is the response for a cross-source comparison.
type ComparisonResponse struct {
	Category   string                      `json:"category"`
	Generation string                      `json:"generation"`
	Data       []database.SourceComparison `json:"data"`
	Timestamp  time.Time                   `json:"timestamp"`
}

// GetLatestIndex returns the daily index rows for the most recent date.
func (h *IndexHandler) GetLatestIndex(c *gin.Context) {
	cacheKey := latestIndexCacheKey
	var cached LatestIndexResponse
	if h.getCached(c.Request.Context(), cacheKey, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	aggregates, err := h.repo.LatestIndex(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to load latest index")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve latest index"})
		return
	}

	response := LatestIndexResponse{Data: aggregates, Timestamp: time.Now()}
	h.cache(c.Request.Context(), cacheKey, response)
	c.JSON(http.StatusOK, response)
}

// GetGenerationHistory returns up to N days of index history for a
// generation (query param days, default 30).
func (h *IndexHandler) GetGenerationHistory(c *gin.Context) {
	generation := c.Param("generation")
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days < 1 || days > 365 {
		days = 30
	}

	cacheKey := fmt.Sprintf("index:history:%s:%d", generation, days)
	var cached HistoryResponse
	if h.getCached(c.Request.Context(), cacheKey, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	aggregates, err := h.repo.GenerationHistory(c.Request.Context(), generation, days)
	if err != nil {
		logrus.WithError(err).Error("Failed to load generation history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve generation history"})
		return
	}

	response := HistoryResponse{
		Generation: generation,
		Days:       days,
		Data:       aggregates,
		Timestamp:  time.Now(),
	}
	h.cache(c.Request.Context(), cacheKey, response)
	c.JSON(http.StatusOK, response)
}

// GetProductPrices returns the price history for one product (query param
// days, default 90).
func (h *IndexHandler) GetProductPrices(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "90"))
	if days < 1 || days > 365 {
		days = 90
	}

	cacheKey := fmt.Sprintf("products:%d:prices:%d", productID, days)
	var cached ProductPricesResponse
	if h.getCached(c.Request.Context(), cacheKey, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	points, err := h.repo.ProductPriceHistory(c.Request.Context(), productID, days)
	if err != nil {
		logrus.WithError(err).Error("Failed to load product price history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve product prices"})
		return
	}

	response := ProductPricesResponse{ProductID: productID, Data: points, Timestamp: time.Now()}
	h.cache(c.Request.Context(), cacheKey, response)
	c.JSON(http.StatusOK, response)
}

// GetSourceComparison returns per-source statistics for a matching category
// and generation on the latest crawl date.
func (h *IndexHandler) GetSourceComparison(c *gin.Context) {
	category := c.Param("category")
	generation := c.Param("generation")

	cacheKey := fmt.Sprintf("index:compare:%s:%s", category, generation)
	var cached ComparisonResponse
	if h.getCached(c.Request.Context(), cacheKey, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	comparisons, err := h.repo.CompareSources(c.Request.Context(), category, generation)
	if err != nil {
		logrus.WithError(err).Error("Failed to load source comparison")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve source comparison"})
		return
	}

	response := ComparisonResponse{
		Category:   category,
		Generation: generation,
		Data:       comparisons,
		Timestamp:  time.Now(),
	}
	h.cache(c.Request.Context(), cacheKey, response)
	c.JSON(http.StatusOK, response)
}

// InvalidateLatestIndex drops the cached latest-index response after an
// ingestion run. A nil redis client is a no-op.
func InvalidateLatestIndex(ctx context.Context, redis *database.RedisClient) error {
	if redis == nil {
		return nil
	}
	return redis.Delete(ctx, latestIndexCacheKey)
}

func (h *IndexHandler) cache(ctx context.Context, key string, value interface{}) {
	if h.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		logrus.WithError(err).Warnf("Failed to marshal %s for caching", key)
		return
	}
	if err := h.redis.Set(ctx, key, string(data), cacheTTL); err != nil {
		logrus.WithError(err).Warnf("Failed to cache %s", key)
	}
}

func (h *IndexHandler) getCached(ctx context.Context, key string, out interface{}) bool {
	if h.redis == nil {
		return false
	}
	data, err := h.redis.Get(ctx, key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		logrus.WithError(err).Warnf("Failed to unmarshal cached %s", key)
		return false
	}
	return true
}
