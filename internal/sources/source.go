package sources

import (
	"context"

	"github.com/traviscua/pricewatch/internal/models"
)

// Source retrieves raw listings from one storefront. A Fetch is stateless and
// restartable; implementations truncate and return what they have when a page
// fails mid-sequence, and leave whole-source failures to the caller.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.RawListing, error)
}

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
