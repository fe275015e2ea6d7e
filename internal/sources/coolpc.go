package sources

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	"github.com/traviscua/pricewatch/internal/config"
	"github.com/traviscua/pricewatch/internal/models"
)

// priceRe extracts the integer TWD price from a catalog row like
// "微星 RTX 5090 GAMING TRIO, $65000↘".
var priceRe = regexp.MustCompile(`\$\s*(\d+)`)

// CoolpcSource scrapes the Coolpc full-catalog page. The whole catalog ships
// as one big5-encoded HTML document of <select> menus, grouped into
// <optgroup> elements whose label is the raw category.
type CoolpcSource struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewCoolpcSource creates a Coolpc fetcher from config.
func NewCoolpcSource(cfg config.CoolpcConfig, log *logrus.Logger) *CoolpcSource {
	return &CoolpcSource{
		url:    cfg.URL,
		client: &http.Client{Timeout: config.Duration(cfg.Timeout, 30*time.Second)},
		log:    log,
	}
}

// Name returns the source identifier persisted with products and prices.
func (s *CoolpcSource) Name() string {
	return "Coolpc"
}

// Fetch downloads and parses the catalog page into raw listings.
func (s *CoolpcSource) Fetch(ctx context.Context) ([]models.RawListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.log.WithError(cerr).Warn("Failed to close Coolpc response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from catalog page", resp.StatusCode)
	}

	// The page is served as big5; decode before parsing.
	doc, err := goquery.NewDocumentFromReader(transform.NewReader(resp.Body, traditionalchinese.Big5.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("parsing catalog page: %w", err)
	}

	var listings []models.RawListing
	doc.Find("select optgroup").Each(func(_ int, group *goquery.Selection) {
		label := group.AttrOr("label", "")
		group.Find("option").Each(func(_ int, opt *goquery.Selection) {
			text := strings.TrimSpace(opt.Text())
			if text == "" || strings.HasPrefix(text, "---") {
				return
			}
			match := priceRe.FindStringSubmatch(text)
			if match == nil {
				return
			}
			price, err := strconv.ParseInt(match[1], 10, 64)
			if err != nil {
				return
			}
			name := strings.TrimSpace(strings.SplitN(text, "$", 2)[0])
			name = strings.TrimRight(name, ", ")
			if name == "" {
				return
			}
			listings = append(listings, models.RawListing{
				SourceLabel: label,
				Name:        name,
				Price:       decimal.NewFromInt(price),
				RawInfo:     text,
			})
		})
	})

	s.log.WithFields(logrus.Fields{"source": s.Name(), "listings": len(listings)}).Info("Fetched catalog")
	return listings, nil
}
