// Package search defines the core types shared across subsystems and the
// orchestrator that drives a garment search end to end.
package search

import "time"

// Status represents the lifecycle state of a search.
type Status string

// Search status values persisted in the state store. Processing is the initial
// state; Completed and Failed are terminal.
const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether a status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Supported store identifiers. Clients may request any subset; an empty
// request means all of them.
const (
	StoreZalando = "zalando"
	StoreModivo  = "modivo"
	StoreAsos    = "asos"
)

// SupportedStores returns the full store set in canonical order.
func SupportedStores() []string {
	return []string{StoreZalando, StoreModivo, StoreAsos}
}

// Attribute is a single recognized garment attribute (color, pattern, cut,
// brand) with the analyzer's confidence.
type Attribute struct {
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// StoreResult tracks per-store progress within a search record. Each entry
// transitions processing -> completed or processing -> failed independently of
// its siblings.
type StoreResult struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	TimeMs int64  `json:"time_ms"`
}

// Record is the durable progress record for one search. The orchestrator is
// its sole writer; the state store persists it verbatim.
type Record struct {
	ID          string        `json:"search_id"`
	Status      Status        `json:"status"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     *time.Time    `json:"end_time,omitempty"`
	ElapsedMs   int64         `json:"elapsed_time_ms"`
	Stores      []StoreResult `json:"stores_searched"`
	Attributes  []Attribute   `json:"attributes_recognized"`
	ResultCount int           `json:"result_count"`
}

// ProductAttributes is the small attribute bag carried by a found product.
type ProductAttributes struct {
	Color   string `json:"color,omitempty"`
	Pattern string `json:"pattern,omitempty"`
	Cut     string `json:"cut,omitempty"`
	Brand   string `json:"brand,omitempty"`
}

// ProductAlternative is an alternate color/URL pair for a found product.
type ProductAlternative struct {
	Color string `json:"color"`
	URL   string `json:"url"`
}

// Product is a single match returned by a store searcher.
type Product struct {
	Title        string               `json:"title"`
	Store        string               `json:"store"`
	URL          string               `json:"url"`
	Similarity   float64              `json:"similarity_score"`
	Attributes   ProductAttributes    `json:"attributes"`
	Alternatives []ProductAlternative `json:"alternatives"`
}

// Analysis is the analyzer collaborator's output: recognized attributes plus
// the time the analysis took.
type Analysis struct {
	Attributes []Attribute
	Elapsed    time.Duration
}

// Submission is returned to the caller immediately after a search is accepted.
type Submission struct {
	ID               string
	EstimatedSeconds int
	Timestamp        time.Time
}
