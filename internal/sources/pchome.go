package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/traviscua/pricewatch/internal/config"
	"github.com/traviscua/pricewatch/internal/models"
	"github.com/traviscua/pricewatch/internal/taxonomy"
)

// PChomeSource queries the PChome 24h search API. There is no browsable
// catalog, so the fetch is taxonomy-driven: one search per generation using
// its primary keyword, sorted by sales, paginated with a page cap.
//
// Each result row is stamped with the matched category's primary label
// keyword so that downstream classification runs through the same taxonomy
// matcher as catalog sources; the classifier still independently verifies the
// generation and price range.
type PChomeSource struct {
	baseURL   string
	client    *resty.Client
	tax       *taxonomy.Taxonomy
	maxPages  int
	rateLimit time.Duration
	requests  int
	log       *logrus.Logger
}

type pchomeSearchResponse struct {
	Prods []pchomeProduct `json:"prods"`
}

type pchomeProduct struct {
	ID          string `json:"Id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	OriginPrice int64  `json:"originPrice"`
	IsPChome    int    `json:"isPChome"`
}

// NewPChomeSource creates a PChome fetcher from config and the loaded
// taxonomy.
func NewPChomeSource(cfg config.PChomeConfig, tax *taxonomy.Taxonomy, log *logrus.Logger) *PChomeSource {
	client := resty.New().
		SetTimeout(config.Duration(cfg.Timeout, 10*time.Second)).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	maxPages := cfg.MaxPages
	if maxPages < 1 {
		maxPages = 2
	}

	return &PChomeSource{
		baseURL:   cfg.BaseURL,
		client:    client,
		tax:       tax,
		maxPages:  maxPages,
		rateLimit: config.Duration(cfg.RateLimit, 300*time.Millisecond),
		log:       log,
	}
}

// Name returns the source identifier persisted with products and prices.
func (s *PChomeSource) Name() string {
	return "PChome"
}

// Fetch runs one search per taxonomy generation and collects the raw rows.
// A failed or non-200 page truncates that search and moves on; the fetch
// returns whatever it has gathered so far.
func (s *PChomeSource) Fetch(ctx context.Context) ([]models.RawListing, error) {
	var listings []models.RawListing
	for _, cat := range s.tax.Categories {
		label := cat.Label()
		for _, gen := range cat.Generations {
			term := gen.SearchTerm()
			rows, err := s.search(ctx, term, label)
			listings = append(listings, rows...)
			if err != nil {
				if ctx.Err() != nil {
					return listings, ctx.Err()
				}
				s.log.WithFields(logrus.Fields{
					"source": s.Name(),
					"term":   term,
				}).WithError(err).Warn("Search truncated")
			}
		}
	}
	s.log.WithFields(logrus.Fields{"source": s.Name(), "listings": len(listings)}).Info("Fetched search results")
	return listings, nil
}

// search pages through results for one term. Pagination stops on an empty
// page, the page cap, or an error, whichever comes first.
func (s *PChomeSource) search(ctx context.Context, term, label string) ([]models.RawListing, error) {
	var listings []models.RawListing
	for page := 1; page <= s.maxPages; page++ {
		// Every request after the first is spaced by the rate limit, across
		// search terms too: the host sees one paced stream, not bursts at
		// term boundaries.
		if s.requests > 0 {
			select {
			case <-ctx.Done():
				return listings, ctx.Err()
			case <-time.After(s.rateLimit):
			}
		}
		s.requests++

		var result pchomeSearchResponse
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"q":    term,
				"page": strconv.Itoa(page),
				"sort": "sale/dc",
			}).
			SetResult(&result).
			Get(s.baseURL)
		if err != nil {
			return listings, err
		}
		if resp.StatusCode() != http.StatusOK {
			return listings, &FetchStatusError{Status: resp.StatusCode()}
		}
		if len(result.Prods) == 0 {
			return listings, nil
		}

		for _, prod := range result.Prods {
			// Marketplace rows are third-party sellers, not the storefront.
			if prod.IsPChome == 0 {
				continue
			}
			raw, _ := json.Marshal(map[string]interface{}{
				"pchome_id":    prod.ID,
				"origin_price": prod.OriginPrice,
			})
			listings = append(listings, models.RawListing{
				SourceLabel: label,
				Name:        prod.Name,
				Price:       decimal.NewFromInt(prod.Price),
				SourceID:    prod.ID,
				RawInfo:     string(raw),
			})
		}
	}
	return listings, nil
}

// FetchStatusError reports a non-200 response from a search page.
type FetchStatusError struct {
	Status int
}

func (e *FetchStatusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.Status)
}
