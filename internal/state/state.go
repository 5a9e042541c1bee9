// Package state declares the durable store contract for search progress
// records. The contract itself lives in the search package (which owns the
// Record type); the names here are aliases so store implementations and
// callers keep referring to state.Store and state.ErrNotFound.
package state

import (
	"github.com/stylehound/stylehound/internal/search"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = search.ErrNotFound

// Store persists search records keyed by search ID. Implementations perform
// no business logic; they persist and retrieve whatever record they are
// given. Mutate must be atomic with respect to other mutations of the same
// ID so racing store-completion updates are never lost.
type Store = search.Store
