package taxonomy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/traviscua/pricewatch/internal/utils"
)

// Taxonomy is the declarative rule set mapping raw listing text to
// (category, generation). It is loaded once per run and immutable after that.
//
// Category and generation rules keep the order they were declared in: the
// classifier commits to the first match, so rule order is part of the
// contract and a plain map unmarshal would not be deterministic.
type Taxonomy struct {
	GlobalExclusions []string
	Categories       []CategoryRule
}

// CategoryRule describes one product category and its generation buckets.
type CategoryRule struct {
	Name             string
	CategoryKeywords []string
	ExcludeKeywords  []string
	Generations      []GenerationRule
}

// GenerationRule matches a product line within a category, either by direct
// model keywords or by capacity buckets (e.g. RAM sizes).
type GenerationRule struct {
	Name       string
	Models     []string
	Capacities []CapacityBucket
	PriceRange PriceRange
}

// CapacityBucket groups match keywords under a capacity label.
type CapacityBucket struct {
	Name     string
	Keywords []string
}

// PriceRange is the plausible retail price window for a generation. Listings
// outside it are treated as misclassifications (bundles, accessories).
type PriceRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Contains reports whether price falls within the range, inclusive.
func (r PriceRange) Contains(price decimal.Decimal) bool {
	return price.Cmp(r.Min) >= 0 && price.Cmp(r.Max) <= 0
}

// Label returns the primary raw-catalog label keyword for the category.
func (c CategoryRule) Label() string {
	return c.CategoryKeywords[0]
}

// SearchTerm returns the keyword used when querying a search-driven
// storefront for this generation: the first declared model keyword, or the
// first keyword of the first capacity bucket.
func (g GenerationRule) SearchTerm() string {
	if len(g.Models) > 0 {
		return g.Models[0]
	}
	return g.Capacities[0].Keywords[0]
}

type rawDocument struct {
	GlobalExclusions struct {
		Keywords []string `json:"keywords"`
	} `json:"global_exclusions"`
	Categories json.RawMessage `json:"categories"`
}

type rawCategory struct {
	CategoryKeywords []string        `json:"category_keywords"`
	ExcludeKeywords  []string        `json:"exclude_keywords"`
	Generations      json.RawMessage `json:"generations"`
}

type rawGeneration struct {
	Models     []string        `json:"models"`
	Capacities json.RawMessage `json:"capacities"`
	PriceRange []json.Number   `json:"price_range"`
}

// Load reads and validates the taxonomy document at path. Any failure is a
// fatal ConfigError: the run must not start with a partial rule set.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.NewConfigError("reading taxonomy file", err)
	}
	tax, err := Parse(data)
	if err != nil {
		return nil, utils.NewConfigError(fmt.Sprintf("parsing taxonomy file %s", path), err)
	}
	return tax, nil
}

// Parse decodes a taxonomy document and validates it.
func Parse(data []byte) (*Taxonomy, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Categories) == 0 {
		return nil, errors.New("taxonomy has no categories")
	}

	catNames, catValues, err := orderedObject(doc.Categories)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}

	tax := &Taxonomy{GlobalExclusions: doc.GlobalExclusions.Keywords}
	for _, name := range catNames {
		var rc rawCategory
		if err := json.Unmarshal(catValues[name], &rc); err != nil {
			return nil, fmt.Errorf("category %s: %w", name, err)
		}
		cat, err := buildCategory(name, rc)
		if err != nil {
			return nil, err
		}
		tax.Categories = append(tax.Categories, cat)
	}
	return tax, nil
}

func buildCategory(name string, rc rawCategory) (CategoryRule, error) {
	cat := CategoryRule{
		Name:             name,
		CategoryKeywords: rc.CategoryKeywords,
		ExcludeKeywords:  rc.ExcludeKeywords,
	}
	if len(cat.CategoryKeywords) == 0 {
		return cat, fmt.Errorf("category %s: no category_keywords", name)
	}
	if len(rc.Generations) == 0 {
		return cat, fmt.Errorf("category %s: no generations", name)
	}

	genNames, genValues, err := orderedObject(rc.Generations)
	if err != nil {
		return cat, fmt.Errorf("category %s generations: %w", name, err)
	}
	for _, genName := range genNames {
		var rg rawGeneration
		if err := json.Unmarshal(genValues[genName], &rg); err != nil {
			return cat, fmt.Errorf("generation %s.%s: %w", name, genName, err)
		}
		gen, err := buildGeneration(name, genName, rg)
		if err != nil {
			return cat, err
		}
		cat.Generations = append(cat.Generations, gen)
	}
	return cat, nil
}

func buildGeneration(catName, genName string, rg rawGeneration) (GenerationRule, error) {
	gen := GenerationRule{Name: genName, Models: rg.Models}
	for _, m := range gen.Models {
		if strings.TrimSpace(m) == "" {
			return gen, fmt.Errorf("generation %s.%s: blank model keyword", catName, genName)
		}
	}

	if len(rg.Capacities) > 0 {
		bucketNames, bucketValues, err := orderedObject(rg.Capacities)
		if err != nil {
			return gen, fmt.Errorf("generation %s.%s capacities: %w", catName, genName, err)
		}
		for _, bucket := range bucketNames {
			var keywords []string
			if err := json.Unmarshal(bucketValues[bucket], &keywords); err != nil {
				return gen, fmt.Errorf("capacity %s.%s.%s: %w", catName, genName, bucket, err)
			}
			// An empty bucket would leave the generation unmatchable and has
			// no search keyword for search-driven storefronts.
			if len(keywords) == 0 {
				return gen, fmt.Errorf("capacity %s.%s.%s: no keywords", catName, genName, bucket)
			}
			gen.Capacities = append(gen.Capacities, CapacityBucket{Name: bucket, Keywords: keywords})
		}
	}
	if len(gen.Models) == 0 && len(gen.Capacities) == 0 {
		return gen, fmt.Errorf("generation %s.%s: needs models or capacities", catName, genName)
	}

	if len(rg.PriceRange) != 2 {
		return gen, fmt.Errorf("generation %s.%s: price_range must be [min, max]", catName, genName)
	}
	min, err := decimal.NewFromString(rg.PriceRange[0].String())
	if err != nil {
		return gen, fmt.Errorf("generation %s.%s: bad price_range min: %w", catName, genName, err)
	}
	max, err := decimal.NewFromString(rg.PriceRange[1].String())
	if err != nil {
		return gen, fmt.Errorf("generation %s.%s: bad price_range max: %w", catName, genName, err)
	}
	if min.Cmp(max) > 0 {
		return gen, fmt.Errorf("generation %s.%s: price_range min exceeds max", catName, genName)
	}
	gen.PriceRange = PriceRange{Min: min, Max: max}
	return gen, nil
}

// orderedObject decodes a JSON object into its values while recovering the
// declared key order from the token stream.
func orderedObject(raw json.RawMessage) ([]string, map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, errors.New("expected a JSON object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, errors.New("expected an object key")
		}
		keys = append(keys, key)
		if err := skipValue(dec); err != nil {
			return nil, nil, err
		}
	}
	return keys, values, nil
}

func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}
	for dec.More() {
		if delim == '{' {
			if _, err := dec.Token(); err != nil {
				return err
			}
		}
		if err := skipValue(dec); err != nil {
			return err
		}
	}
	_, err = dec.Token() // closing delimiter
	return err
}
