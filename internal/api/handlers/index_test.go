package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/pashagolub/pgxmock/v4"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traviscua/pricewatch/internal/database"
)

func newTestHandler(t *testing.T) (*IndexHandler, pgxmock.PgxPoolIface, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mr := miniredis.RunT(t)
	cache := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	return NewIndexHandler(database.NewRepository(mock), cache), mock, mr
}

func newRouter(h *IndexHandler) *gin.Engine {
	router := gin.New()
	router.GET("/api/v1/index/latest", h.GetLatestIndex)
	router.GET("/api/v1/index/history/:generation", h.GetGenerationHistory)
	router.GET("/api/v1/index/compare/:category/:generation", h.GetSourceComparison)
	router.GET("/api/v1/products/:id/prices", h.GetProductPrices)
	return router
}

func serve(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func indexRows(date time.Time) *pgxmock.Rows {
	price := func(f float64) decimal.Decimal { return decimal.NewFromFloat(f).Round(2) }
	return pgxmock.NewRows([]string{
		"date", "category", "generation", "avg_price", "min_price", "max_price",
		"median_price", "std_price", "product_count", "volatility",
	}).AddRow(date, "GPU", "RTX_5090", price(75000), price(70000), price(82000), price(75000), price(4000), 5, price(5.33))
}

func TestGetLatestIndex(t *testing.T) {
	h, mock, mr := newTestHandler(t)
	router := newRouter(h)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE date = \(SELECT MAX\(date\) FROM daily_index\)`).
		WillReturnRows(indexRows(date))

	w := serve(router, "/api/v1/index/latest")
	require.Equal(t, http.StatusOK, w.Code)

	var resp LatestIndexResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "RTX_5090", resp.Data[0].Generation)
	assert.Equal(t, 5, resp.Data[0].ProductCount)

	// Response is cached for subsequent requests.
	assert.True(t, mr.Exists("index:latest"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestIndex_ServedFromCache(t *testing.T) {
	h, mock, mr := newTestHandler(t)
	router := newRouter(h)

	cached, err := json.Marshal(LatestIndexResponse{Timestamp: time.Now()})
	require.NoError(t, err)
	require.NoError(t, mr.Set("index:latest", string(cached)))

	// No database expectations: a cache hit must not touch the pool.
	w := serve(router, "/api/v1/index/latest")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestIndex_DatabaseError(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	router := newRouter(h)

	mock.ExpectQuery(`FROM daily_index`).
		WillReturnError(errors.New("connection reset"))

	w := serve(router, "/api/v1/index/latest")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetGenerationHistory_DefaultsAndClampsDays(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	router := newRouter(h)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	// Default when the query param is absent.
	mock.ExpectQuery(`WHERE generation = \$1`).
		WithArgs("RTX_5090", 30).
		WillReturnRows(indexRows(date))
	w := serve(router, "/api/v1/index/history/RTX_5090")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "RTX_5090", resp.Generation)
	assert.Equal(t, 30, resp.Days)

	// Out-of-range values fall back to the default.
	mock.ExpectQuery(`WHERE generation = \$1`).
		WithArgs("RTX_5080", 30).
		WillReturnRows(indexRows(date))
	w = serve(router, "/api/v1/index/history/RTX_5080?days=9999")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductPrices(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	router := newRouter(h)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM daily_prices\s+WHERE product_id = \$1`).
		WithArgs(int64(42), 90).
		WillReturnRows(pgxmock.NewRows([]string{"date", "product_id", "price", "source"}).
			AddRow(date, int64(42), decimal.NewFromInt(75000), "Coolpc"))

	w := serve(router, "/api/v1/products/42/prices")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProductPricesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.ProductID)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Coolpc", resp.Data[0].Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductPrices_InvalidID(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := newRouter(h)

	w := serve(router, "/api/v1/products/not-a-number/prices")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSourceComparison(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	router := newRouter(h)

	mock.ExpectQuery(`GROUP BY dp\.source`).
		WithArgs("GPU", "RTX_5090").
		WillReturnRows(pgxmock.NewRows([]string{"source", "count", "avg", "min", "max"}).
			AddRow("Coolpc", 4, decimal.NewFromInt(74500), decimal.NewFromInt(70000), decimal.NewFromInt(79000)).
			AddRow("PChome", 2, decimal.NewFromInt(81000), decimal.NewFromInt(80000), decimal.NewFromInt(82000)))

	w := serve(router, "/api/v1/index/compare/GPU/RTX_5090")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ComparisonResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "GPU", resp.Category)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "Coolpc", resp.Data[0].Source)
	assert.Equal(t, 4, resp.Data[0].ProductCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateLatestIndex(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	require.NoError(t, mr.Set("index:latest", "{}"))

	require.NoError(t, InvalidateLatestIndex(context.Background(), cache))
	assert.False(t, mr.Exists("index:latest"))

	// Without a cache there is nothing to drop.
	assert.NoError(t, InvalidateLatestIndex(context.Background(), nil))
}

func TestGetLatestIndex_WithoutCache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := NewIndexHandler(database.NewRepository(mock), nil)
	router := newRouter(h)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM daily_index`).
		WillReturnRows(indexRows(date))

	w := serve(router, "/api/v1/index/latest")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
