package services

import (
	"strings"

	"golang.org/x/text/width"

	"github.com/traviscua/pricewatch/internal/models"
	"github.com/traviscua/pricewatch/internal/taxonomy"
)

// Classifier matches raw listings against the taxonomy. It is deterministic:
// rules are evaluated in declared order and the first match wins, so two runs
// over the same input produce identical output.
type Classifier struct {
	tax *taxonomy.Taxonomy

	// Lowered, width-normalized copies of the rule keywords, computed once.
	globalExclusions []string
	categories       []categoryMatcher
}

type categoryMatcher struct {
	rule             taxonomy.CategoryRule
	categoryKeywords []string
	excludeKeywords  []string
	generations      []generationMatcher
}

type generationMatcher struct {
	rule     taxonomy.GenerationRule
	keywords []string
}

// NewClassifier builds a classifier for the given taxonomy.
func NewClassifier(tax *taxonomy.Taxonomy) *Classifier {
	c := &Classifier{tax: tax}
	for _, kw := range tax.GlobalExclusions {
		c.globalExclusions = append(c.globalExclusions, normalizeText(kw))
	}
	for _, cat := range tax.Categories {
		m := categoryMatcher{rule: cat}
		for _, kw := range cat.CategoryKeywords {
			m.categoryKeywords = append(m.categoryKeywords, normalizeText(kw))
		}
		for _, kw := range cat.ExcludeKeywords {
			m.excludeKeywords = append(m.excludeKeywords, normalizeText(kw))
		}
		for _, gen := range cat.Generations {
			gm := generationMatcher{rule: gen}
			for _, kw := range gen.Models {
				gm.keywords = append(gm.keywords, normalizeText(kw))
			}
			for _, bucket := range gen.Capacities {
				for _, kw := range bucket.Keywords {
					gm.keywords = append(gm.keywords, normalizeText(kw))
				}
			}
			m.generations = append(m.generations, gm)
		}
		c.categories = append(c.categories, m)
	}
	return c
}

// Classify matches one raw listing, returning the classified listing and
// whether it passed. Policy: the first category whose raw label matches
// commits the listing; a category exclude-keyword hit or a failed generation
// or price-range check then drops it without trying later categories.
func (c *Classifier) Classify(listing models.RawListing, source string) (models.ClassifiedListing, bool) {
	name := normalizeText(listing.Name)
	label := normalizeText(listing.SourceLabel)

	for _, kw := range c.globalExclusions {
		if strings.Contains(name, kw) {
			return models.ClassifiedListing{}, false
		}
	}

	for _, cat := range c.categories {
		if !containsAny(label, cat.categoryKeywords) {
			continue
		}
		if containsAny(name, cat.excludeKeywords) {
			return models.ClassifiedListing{}, false
		}
		for _, gen := range cat.generations {
			if !containsAny(name, gen.keywords) {
				continue
			}
			if !gen.rule.PriceRange.Contains(listing.Price) {
				return models.ClassifiedListing{}, false
			}
			return models.ClassifiedListing{
				Category:   cat.rule.Name,
				Generation: gen.rule.Name,
				Name:       listing.Name,
				Price:      listing.Price,
				Source:     source,
				SourceID:   listing.SourceID,
				RawInfo:    listing.RawInfo,
			}, true
		}
		// Label matched but no generation did: committed, so dropped.
		return models.ClassifiedListing{}, false
	}
	return models.ClassifiedListing{}, false
}

// ClassifyBatch classifies a fetch batch in order, silently dropping
// listings that fail to classify.
func (c *Classifier) ClassifyBatch(listings []models.RawListing, source string) []models.ClassifiedListing {
	classified := make([]models.ClassifiedListing, 0, len(listings))
	for _, raw := range listings {
		if cl, ok := c.Classify(raw, source); ok {
			classified = append(classified, cl)
		}
	}
	return classified
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// normalizeText folds full-width characters to their half-width forms and
// lowercases. Taiwanese storefront listings mix ＲＴＸ５０９０ and RTX5090.
func normalizeText(s string) string {
	return strings.ToLower(width.Narrow.String(strings.TrimSpace(s)))
}
