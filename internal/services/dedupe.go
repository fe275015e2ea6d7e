package services

import "github.com/traviscua/pricewatch/internal/models"

// dedupePrefixLen is the number of name runes used as the duplicate key.
// Search APIs frequently return the same physical product under slightly
// different suffixes across paginated, sorted result sets.
const dedupePrefixLen = 50

// DedupeListings collapses near-duplicate listings within one fetch batch.
// Listings sharing a normalized name prefix are duplicates; the first
// occurrence wins and later ones are dropped silently.
func DedupeListings(listings []models.ClassifiedListing) []models.ClassifiedListing {
	seen := make(map[string]struct{}, len(listings))
	unique := make([]models.ClassifiedListing, 0, len(listings))
	for _, l := range listings {
		key := dedupeKey(l.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, l)
	}
	return unique
}

func dedupeKey(name string) string {
	runes := []rune(normalizeText(name))
	if len(runes) > dedupePrefixLen {
		runes = runes[:dedupePrefixLen]
	}
	return string(runes)
}
