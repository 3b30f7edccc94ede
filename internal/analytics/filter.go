package analytics

import (
	"strings"

	"github.com/seenimoa/dtfscope/pkg/models"
)

// SearchCategories returns the categories whose name contains term,
// case-insensitively, in catalog order. An empty term matches everything.
func SearchCategories(cats []models.Category, term string) []models.Category {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]models.Category, 0, len(cats))
	for _, c := range cats {
		if term == "" || strings.Contains(strings.ToLower(c.Name), term) {
			out = append(out, c)
		}
	}
	return out
}

// ResolveCategory picks exactly one category from a non-empty match set.
// The first match whose name equals selection wins; when selection is empty
// or names nothing in matches, the first match is used. ok is false only
// when matches is empty.
func ResolveCategory(matches []models.Category, selection string) (models.Category, bool) {
	if len(matches) == 0 {
		return models.Category{}, false
	}
	if selection != "" {
		for _, c := range matches {
			if c.Name == selection {
				return c, true
			}
		}
		// Callers may pass the category id from a dropdown value.
		for _, c := range matches {
			if c.ID == selection {
				return c, true
			}
		}
	}
	return matches[0], true
}

// WithPositiveMarketCap keeps records whose market cap is present and > 0.
func WithPositiveMarketCap(records []models.AssetRecord) []models.AssetRecord {
	out := make([]models.AssetRecord, 0, len(records))
	for _, r := range records {
		if positive(r.MarketCap) {
			out = append(out, r)
		}
	}
	return out
}

// WithPositiveMarketCapAndVolume keeps records whose market cap and 24h
// volume are both present and > 0.
func WithPositiveMarketCapAndVolume(records []models.AssetRecord) []models.AssetRecord {
	out := make([]models.AssetRecord, 0, len(records))
	for _, r := range records {
		if positive(r.MarketCap) && positive(r.TotalVolume) {
			out = append(out, r)
		}
	}
	return out
}

// PresentChanges returns the non-null 24h percentage changes in record order.
func PresentChanges(records []models.AssetRecord) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := present(r.PriceChangePct24h); ok {
			out = append(out, v)
		}
	}
	return out
}

func positive(p *float64) bool {
	v, ok := present(p)
	return ok && v > 0
}
