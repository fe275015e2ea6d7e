package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawListing is a single row exactly as scraped from a storefront. It only
// lives for the duration of one crawl run.
type RawListing struct {
	SourceLabel string          `json:"source_label"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	SourceID    string          `json:"source_id,omitempty"`
	RawInfo     string          `json:"raw_info,omitempty"`
}

// ClassifiedListing is a RawListing that passed exactly one taxonomy rule.
type ClassifiedListing struct {
	Category   string          `json:"category"`
	Generation string          `json:"generation"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Source     string          `json:"source"`
	SourceID   string          `json:"source_id,omitempty"`
	RawInfo    string          `json:"raw_info,omitempty"`
}

// Product is the persistent identity keyed by (product_name, generation).
// Products are never deleted; absence on a given day is inferred from the
// price series, not recorded.
type Product struct {
	ID          int64     `json:"product_id" db:"product_id"`
	Category    string    `json:"category" db:"category"`
	Generation  string    `json:"generation" db:"generation"`
	ProductName string    `json:"product_name" db:"product_name"`
	Brand       string    `json:"brand" db:"brand"`
	FirstSeen   time.Time `json:"first_seen" db:"first_seen"`
	LastSeen    time.Time `json:"last_seen" db:"last_seen"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	Source      string    `json:"source" db:"source"`
}

// PricePoint is one observed price per product per calendar day.
// Re-ingestion on the same day overwrites price and metadata.
type PricePoint struct {
	Date      time.Time       `json:"date" db:"date"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Source    string          `json:"source" db:"source"`
	RawInfo   string          `json:"raw_metadata,omitempty" db:"raw_metadata"`
}

// DailyAggregate is the materialized per-(category, generation, date) summary.
// It is always fully recomputed from that day's price points.
type DailyAggregate struct {
	Date         time.Time       `json:"date" db:"date"`
	Category     string          `json:"category" db:"category"`
	Generation   string          `json:"generation" db:"generation"`
	AvgPrice     decimal.Decimal `json:"avg_price" db:"avg_price"`
	MinPrice     decimal.Decimal `json:"min_price" db:"min_price"`
	MaxPrice     decimal.Decimal `json:"max_price" db:"max_price"`
	MedianPrice  decimal.Decimal `json:"median_price" db:"median_price"`
	StdPrice     decimal.Decimal `json:"std_price" db:"std_price"`
	ProductCount int             `json:"product_count" db:"product_count"`
	Volatility   decimal.Decimal `json:"volatility" db:"volatility"`
}
