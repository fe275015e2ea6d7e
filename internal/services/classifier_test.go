package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traviscua/pricewatch/internal/models"
	"github.com/traviscua/pricewatch/internal/taxonomy"
)

const classifierTaxonomy = `{
	"global_exclusions": {"keywords": ["筆電", "Laptop"]},
	"categories": {
		"GPU": {
			"category_keywords": ["顯示卡"],
			"exclude_keywords": ["支架"],
			"generations": {
				"RTX_5090": {"models": ["RTX5090", "RTX 5090"], "price_range": [30000, 150000]},
				"RTX_5080": {"models": ["RTX5080", "RTX 5080"], "price_range": [20000, 90000]}
			}
		},
		"RAM": {
			"category_keywords": ["記憶體"],
			"generations": {
				"DDR5": {
					"capacities": {"16GB": ["DDR5 16G"], "32GB": ["DDR5 32G"]},
					"price_range": [500, 50000]
				}
			}
		}
	}
}`

func newTestClassifier(t *testing.T, doc string) *Classifier {
	t.Helper()
	tax, err := taxonomy.Parse([]byte(doc))
	require.NoError(t, err)
	return NewClassifier(tax)
}

func TestClassify_MatchesCategoryAndGeneration(t *testing.T) {
	c := newTestClassifier(t, classifierTaxonomy)

	listing, ok := c.Classify(models.RawListing{
		SourceLabel: "顯示卡",
		Name:        "RTX 5090 24GB",
		Price:       decimal.NewFromInt(65000),
	}, "Coolpc")

	require.True(t, ok)
	assert.Equal(t, "GPU", listing.Category)
	assert.Equal(t, "RTX_5090", listing.Generation)
	assert.Equal(t, "RTX 5090 24GB", listing.Name)
	assert.True(t, listing.Price.Equal(decimal.NewFromInt(65000)))
	assert.Equal(t, "Coolpc", listing.Source)
}

func TestClassify_GlobalExclusionWinsOverCategoryMatch(t *testing.T) {
	c := newTestClassifier(t, classifierTaxonomy)

	_, ok := c.Classify(models.RawListing{
		SourceLabel: "顯示卡",
		Name:        "電競筆電 RTX 5090 24GB",
		Price:       decimal.NewFromInt(65000),
	}, "Coolpc")

	assert.False(t, ok)
}

func TestClassify_PriceOutsideRangeIsDropped(t *testing.T) {
	c := newTestClassifier(t, classifierTaxonomy)

	// Matches DDR5 via the 16GB capacity bucket, but 100 is far below the
	// plausible range: treated as an accessory or bundle artifact.
	_, ok := c.Classify(models.RawListing{
		SourceLabel: "記憶體",
		Name:        "DDR5 16GB 桌上型記憶體",
		Price:       decimal.NewFromInt(100),
	}, "Coolpc")
	assert.False(t, ok)

	listing, ok := c.Classify(models.RawListing{
		SourceLabel: "記憶體",
		Name:        "DDR5 16GB 桌上型記憶體",
		Price:       decimal.NewFromInt(3200),
	}, "Coolpc")
	require.True(t, ok)
	assert.Equal(t, "RAM", listing.Category)
	assert.Equal(t, "DDR5", listing.Generation)
}

func TestClassify_CategoryExcludeKeywordDropsWithoutFallback(t *testing.T) {
	// Both categories match the label; the first one's exclude keyword must
	// drop the listing without falling through to ACCESSORY.
	doc := `{
		"categories": {
			"GPU": {
				"category_keywords": ["顯示卡"],
				"exclude_keywords": ["支架"],
				"generations": {
					"RTX_5090": {"models": ["RTX5090", "RTX 5090"], "price_range": [30000, 150000]}
				}
			},
			"ACCESSORY": {
				"category_keywords": ["顯示卡"],
				"generations": {
					"BRACKET": {"models": ["支架"], "price_range": [1, 5000]}
				}
			}
		}
	}`
	c := newTestClassifier(t, doc)

	_, ok := c.Classify(models.RawListing{
		SourceLabel: "顯示卡",
		Name:        "RTX 5090 顯示卡支架",
		Price:       decimal.NewFromInt(500),
	}, "Coolpc")
	assert.False(t, ok)
}

func TestClassify_NoGenerationMatchDropsWithoutFallback(t *testing.T) {
	c := newTestClassifier(t, classifierTaxonomy)

	// Label commits to GPU, but RTX 4090 is not a known generation. The
	// listing must not be retried against later categories.
	_, ok := c.Classify(models.RawListing{
		SourceLabel: "顯示卡",
		Name:        "RTX 4090 24GB",
		Price:       decimal.NewFromInt(60000),
	}, "Coolpc")
	assert.False(t, ok)
}

func TestClassify_FirstGenerationInDeclaredOrderWins(t *testing.T) {
	c := newTestClassifier(t, classifierTaxonomy)

	listing, ok := c.Classify(models.RawListing{
		SourceLabel: "顯示卡",
		Name:        "RTX5090 與 RTX5080 比較組",
		Price:       decimal.NewFromInt(65000),
	}, "Coolpc")

	require.True(t, ok)
	assert.Equal(t, "RTX_5090", listing.Generation)
}

func TestClassify_NormalizesFullWidthText(t *testing.T) {
	c := newTestClassifier(t, classifierTaxonomy)

	listing, ok := c.Classify(models.RawListing{
		SourceLabel: "顯示卡",
		Name:        "ＲＴＸ５０９０ 水冷版",
		Price:       decimal.NewFromInt(70000),
	}, "PChome")

	require.True(t, ok)
	assert.Equal(t, "RTX_5090", listing.Generation)
}

func TestClassify_UnknownLabelIsDropped(t *testing.T) {
	c := newTestClassifier(t, classifierTaxonomy)

	_, ok := c.Classify(models.RawListing{
		SourceLabel: "機殼",
		Name:        "RTX 5090 24GB",
		Price:       decimal.NewFromInt(65000),
	}, "Coolpc")
	assert.False(t, ok)
}

func TestClassifyBatch_IsDeterministic(t *testing.T) {
	c := newTestClassifier(t, classifierTaxonomy)

	batch := []models.RawListing{
		{SourceLabel: "顯示卡", Name: "RTX 5090 24GB", Price: decimal.NewFromInt(65000)},
		{SourceLabel: "顯示卡", Name: "RTX 5080 16GB", Price: decimal.NewFromInt(45000)},
		{SourceLabel: "顯示卡", Name: "RTX 5090 筆電", Price: decimal.NewFromInt(80000)},
		{SourceLabel: "記憶體", Name: "DDR5 32GB 套條", Price: decimal.NewFromInt(6500)},
		{SourceLabel: "記憶體", Name: "DDR5 16GB", Price: decimal.NewFromInt(100)},
	}

	first := c.ClassifyBatch(batch, "Coolpc")
	second := c.ClassifyBatch(batch, "Coolpc")

	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, "RTX_5090", first[0].Generation)
	assert.Equal(t, "RTX_5080", first[1].Generation)
	assert.Equal(t, "DDR5", first[2].Generation)
}
