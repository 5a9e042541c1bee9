package vision

import (
	"context"
	"time"

	"github.com/stylehound/stylehound/internal/search"
)

// Simulated returns a fixed attribute set for development runs without API
// credentials.
type Simulated struct{}

// NewSimulated constructs a Simulated analyzer.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// Analyze returns the canned attribute set.
func (Simulated) Analyze(_ context.Context, _ string) (search.Analysis, error) {
	start := time.Now()
	attrs := []search.Attribute{
		{Name: "color", Value: "navy", Confidence: 0.92},
		{Name: "pattern", Value: "solid", Confidence: 0.88},
		{Name: "cut", Value: "slim", Confidence: 0.74},
	}
	return search.Analysis{Attributes: attrs, Elapsed: time.Since(start)}, nil
}
