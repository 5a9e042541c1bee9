// Package simulated provides a deterministic StoreSearcher for development
// and tests. Result counts and shapes mirror what the real store integrations
// return, without any network traffic.
package simulated

import (
	"context"
	"fmt"
	"time"

	"github.com/stylehound/stylehound/internal/search"
)

// Searcher fabricates store results from the recognized attributes.
type Searcher struct {
	// Delay imitates network latency per store call; zero disables it.
	Delay time.Duration
}

// New constructs a Searcher.
func New(delay time.Duration) *Searcher {
	return &Searcher{Delay: delay}
}

// resultCounts fixes how many products each known store "finds".
var resultCounts = map[string]int{
	search.StoreZalando: 3,
	search.StoreModivo:  2,
	search.StoreAsos:    4,
}

// Search returns a descending-similarity product list for the store.
func (s *Searcher) Search(ctx context.Context, store string, attrs []search.Attribute) ([]search.Product, error) {
	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("store search canceled: %w", ctx.Err())
		case <-time.After(s.Delay):
		}
	}

	color := attributeValue(attrs, "color", "unknown")
	pattern := attributeValue(attrs, "pattern", "solid")
	cut := attributeValue(attrs, "cut", "regular")
	brand := attributeValue(attrs, "brand", "")

	count := resultCounts[store]
	if count == 0 {
		count = 1
	}
	products := make([]search.Product, 0, count)
	for i := 0; i < count; i++ {
		products = append(products, search.Product{
			Title:      fmt.Sprintf("%s %s %s item %d", color, pattern, cut, i+1),
			Store:      store,
			URL:        fmt.Sprintf("https://%s.example.com/item/%d", store, i+1),
			Similarity: 0.95 - float64(i)*0.05,
			Attributes: search.ProductAttributes{
				Color:   color,
				Pattern: pattern,
				Cut:     cut,
				Brand:   brand,
			},
			Alternatives: []search.ProductAlternative{
				{Color: "black", URL: fmt.Sprintf("https://%s.example.com/item/%d?color=black", store, i+1)},
			},
		})
	}
	return products, nil
}

func attributeValue(attrs []search.Attribute, name, fallback string) string {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return fallback
}
