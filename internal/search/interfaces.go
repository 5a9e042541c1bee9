package search

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("search record not found")

// Store persists search records keyed by search ID. Implementations perform
// no business logic; they persist and retrieve whatever record they are
// given. Mutate must be atomic with respect to other mutations of the same
// ID so racing store-completion updates are never lost.
type Store interface {
	// Create persists a brand-new record. Creating over an existing ID
	// overwrites it.
	Create(ctx context.Context, id string, rec Record) error
	// Load returns the current record or ErrNotFound.
	Load(ctx context.Context, id string) (Record, error)
	// Mutate applies fn to the current record under a per-ID lock and
	// persists the result. fn returning an error aborts the write.
	Mutate(ctx context.Context, id string, fn func(*Record) error) error
}

// Analyzer extracts garment attributes from a stored image. A failed analysis
// is treated by the orchestrator as "zero attributes recognized", never as a
// pipeline abort.
type Analyzer interface {
	Analyze(ctx context.Context, imageRef string) (Analysis, error)
}

// StoreSearcher queries one store for products matching the recognized
// attributes.
type StoreSearcher interface {
	Search(ctx context.Context, store string, attrs []Attribute) ([]Product, error)
}

// BlobStore persists the uploaded image bytes and returns a reference (path
// or URI) the analyzer can consume.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Recorder persists analytics about finished work. All methods are
// best-effort; the orchestrator logs and continues on error.
type Recorder interface {
	SaveAttributes(ctx context.Context, attrs []Attribute, analysisMs int64) error
	SaveStoreSearch(ctx context.Context, store string, performed bool, elapsedMs *int64) error
	SaveSearchMetrics(ctx context.Context, totalMs, analysisMs, searchMs int64, resultCount int) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces search IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
