package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/traviscua/pricewatch/internal/models"
	"github.com/traviscua/pricewatch/internal/services"
	"github.com/traviscua/pricewatch/internal/utils"
)

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	// Begin starts a transaction.
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository handles persistence for products, price points and the daily
// index.
type Repository struct {
	pool DatabasePool
}

// NewRepository creates a new repository over the given pool.
func NewRepository(pool DatabasePool) *Repository {
	return &Repository{pool: pool}
}

const upsertProductQuery = `
	INSERT INTO products (category, generation, product_name, brand, first_seen, last_seen, is_active, source)
	VALUES ($1, $2, $3, $4, $5, $5, TRUE, $6)
	ON CONFLICT (product_name, generation)
	DO UPDATE SET last_seen = EXCLUDED.last_seen, is_active = TRUE, source = EXCLUDED.source
	RETURNING product_id
`

const upsertPricePointQuery = `
	INSERT INTO daily_prices (date, product_id, price, source, raw_metadata)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (date, product_id)
	DO UPDATE SET price = EXCLUDED.price, source = EXCLUDED.source, raw_metadata = EXCLUDED.raw_metadata
`

// SaveBatch upserts one source's classified listings for the given date in a
// single transaction. Products are identified by (product_name, generation):
// new sightings create the product with first_seen = last_seen = date, repeat
// sightings refresh last_seen, is_active and source. Price points are one row
// per product per day, last write wins.
//
// Returns the number of listings saved.
func (r *Repository) SaveBatch(ctx context.Context, date time.Time, listings []models.ClassifiedListing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, utils.NewPersistenceError("begin batch", err)
	}

	saved := 0
	for _, listing := range listings {
		var productID int64
		err := tx.QueryRow(ctx, upsertProductQuery,
			listing.Category, listing.Generation, listing.Name,
			brandOf(listing.Name), date, listing.Source,
		).Scan(&productID)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, utils.NewPersistenceError("upsert product", err)
		}

		_, err = tx.Exec(ctx, upsertPricePointQuery,
			date, productID, listing.Price, listing.Source, listingMetadata(listing))
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, utils.NewPersistenceError("upsert price point", err)
		}
		saved++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, utils.NewPersistenceError("commit batch", err)
	}
	return saved, nil
}

const dayPricesQuery = `
	SELECT p.category, p.generation, dp.price
	FROM daily_prices dp
	JOIN products p ON dp.product_id = p.product_id
	WHERE dp.date = $1
	ORDER BY p.category, p.generation, dp.product_id
`

const deleteIndexQuery = `DELETE FROM daily_index WHERE date = $1`

const insertIndexQuery = `
	INSERT INTO daily_index (date, category, generation, avg_price, min_price, max_price, median_price, std_price, product_count, volatility)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// RecomputeDailyIndex fully rebuilds the daily index for the given date from
// that day's price points. The prior rows for the date are deleted and
// re-inserted in one transaction, never blended, so the index stays
// re-derivable from raw price points alone.
func (r *Repository) RecomputeDailyIndex(ctx context.Context, date time.Time) ([]models.DailyAggregate, error) {
	rows, err := r.pool.Query(ctx, dayPricesQuery, date)
	if err != nil {
		return nil, utils.NewPersistenceError("query day prices", err)
	}
	defer rows.Close()

	type groupKey struct {
		category   string
		generation string
	}
	var order []groupKey
	groups := make(map[groupKey][]float64)
	for rows.Next() {
		var key groupKey
		var price decimal.Decimal
		if err := rows.Scan(&key.category, &key.generation, &price); err != nil {
			return nil, utils.NewPersistenceError("scan day price", err)
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], price.InexactFloat64())
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewPersistenceError("iterate day prices", err)
	}

	aggregates := make([]models.DailyAggregate, 0, len(order))
	for _, key := range order {
		stats := services.ComputeDailyStats(groups[key])
		aggregates = append(aggregates, models.DailyAggregate{
			Date:         date,
			Category:     key.category,
			Generation:   key.generation,
			AvgPrice:     decimal.NewFromFloat(stats.Avg).Round(2),
			MinPrice:     decimal.NewFromFloat(stats.Min).Round(2),
			MaxPrice:     decimal.NewFromFloat(stats.Max).Round(2),
			MedianPrice:  decimal.NewFromFloat(stats.Median).Round(2),
			StdPrice:     decimal.NewFromFloat(stats.StdDev).Round(2),
			ProductCount: stats.Count,
			Volatility:   decimal.NewFromFloat(stats.Volatility).Round(2),
		})
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, utils.NewPersistenceError("begin index rebuild", err)
	}
	if _, err := tx.Exec(ctx, deleteIndexQuery, date); err != nil {
		_ = tx.Rollback(ctx)
		return nil, utils.NewPersistenceError("delete daily index", err)
	}
	for _, agg := range aggregates {
		_, err := tx.Exec(ctx, insertIndexQuery,
			agg.Date, agg.Category, agg.Generation,
			agg.AvgPrice, agg.MinPrice, agg.MaxPrice, agg.MedianPrice, agg.StdPrice,
			agg.ProductCount, agg.Volatility)
		if err != nil {
			_ = tx.Rollback(ctx)
			return nil, utils.NewPersistenceError("insert daily index", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, utils.NewPersistenceError("commit index rebuild", err)
	}
	return aggregates, nil
}

const latestIndexQuery = `
	SELECT date, category, generation, avg_price, min_price, max_price, median_price, std_price, product_count, volatility
	FROM daily_index
	WHERE date = (SELECT MAX(date) FROM daily_index)
	ORDER BY category, generation
`

// LatestIndex returns the daily index rows for the most recent date.
func (r *Repository) LatestIndex(ctx context.Context) ([]models.DailyAggregate, error) {
	rows, err := r.pool.Query(ctx, latestIndexQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest index: %w", err)
	}
	defer rows.Close()
	return scanAggregates(rows)
}

const generationHistoryQuery = `
	SELECT date, category, generation, avg_price, min_price, max_price, median_price, std_price, product_count, volatility
	FROM daily_index
	WHERE generation = $1
	ORDER BY date DESC
	LIMIT $2
`

// GenerationHistory returns up to days of daily index rows for a generation,
// most recent first.
func (r *Repository) GenerationHistory(ctx context.Context, generation string, days int) ([]models.DailyAggregate, error) {
	rows, err := r.pool.Query(ctx, generationHistoryQuery, generation, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation history: %w", err)
	}
	defer rows.Close()
	return scanAggregates(rows)
}

const productPricesQuery = `
	SELECT date, product_id, price, source
	FROM daily_prices
	WHERE product_id = $1
	ORDER BY date DESC
	LIMIT $2
`

// ProductPriceHistory returns up to days of price points for one product,
// most recent first.
func (r *Repository) ProductPriceHistory(ctx context.Context, productID int64, days int) ([]models.PricePoint, error) {
	rows, err := r.pool.Query(ctx, productPricesQuery, productID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query product price history: %w", err)
	}
	defer rows.Close()

	var points []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Date, &p.ProductID, &p.Price, &p.Source); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price points: %w", err)
	}
	return points, nil
}

// SourceComparison summarizes one (category, generation) across sources for
// the most recent crawl date.
type SourceComparison struct {
	Source       string          `json:"source"`
	ProductCount int             `json:"product_count"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	MinPrice     decimal.Decimal `json:"min_price"`
	MaxPrice     decimal.Decimal `json:"max_price"`
}

const sourceComparisonQuery = `
	SELECT dp.source, COUNT(*), ROUND(AVG(dp.price)::numeric, 2), MIN(dp.price), MAX(dp.price)
	FROM daily_prices dp
	JOIN products p ON dp.product_id = p.product_id
	WHERE p.category = $1 AND p.generation = $2
	AND dp.date = (SELECT MAX(date) FROM daily_prices)
	GROUP BY dp.source
	ORDER BY dp.source
`

// CompareSources returns per-source price statistics for a matching
// category and generation on the latest crawl date.
func (r *Repository) CompareSources(ctx context.Context, category, generation string) ([]SourceComparison, error) {
	rows, err := r.pool.Query(ctx, sourceComparisonQuery, category, generation)
	if err != nil {
		return nil, fmt.Errorf("failed to query source comparison: %w", err)
	}
	defer rows.Close()

	var comparisons []SourceComparison
	for rows.Next() {
		var c SourceComparison
		if err := rows.Scan(&c.Source, &c.ProductCount, &c.AvgPrice, &c.MinPrice, &c.MaxPrice); err != nil {
			return nil, fmt.Errorf("failed to scan source comparison: %w", err)
		}
		comparisons = append(comparisons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source comparisons: %w", err)
	}
	return comparisons, nil
}

func scanAggregates(rows pgx.Rows) ([]models.DailyAggregate, error) {
	var aggregates []models.DailyAggregate
	for rows.Next() {
		var a models.DailyAggregate
		err := rows.Scan(
			&a.Date, &a.Category, &a.Generation,
			&a.AvgPrice, &a.MinPrice, &a.MaxPrice, &a.MedianPrice, &a.StdPrice,
			&a.ProductCount, &a.Volatility,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily aggregate: %w", err)
		}
		aggregates = append(aggregates, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily aggregates: %w", err)
	}
	return aggregates, nil
}

// brandOf derives the brand as the first whitespace token of the name.
func brandOf(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// listingMetadata builds the jsonb payload stored alongside a price point.
// Search sources already carry JSON metadata; catalog rows are wrapped.
func listingMetadata(l models.ClassifiedListing) string {
	trimmed := strings.TrimSpace(l.RawInfo)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return trimmed
	}
	raw, _ := json.Marshal(map[string]string{"raw_info": l.RawInfo})
	return string(raw)
}
