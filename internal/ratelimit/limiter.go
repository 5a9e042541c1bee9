// Package ratelimit implements a sliding-window request limiter with punitive
// blocking for the search submission endpoint.
package ratelimit

import (
	"sync"
	"time"
)

// Config holds rate limiter configuration.
type Config struct {
	// AnonymousLimit is the request ceiling per window without credentials.
	AnonymousLimit int
	// AuthenticatedLimit is the ceiling when a bearer credential is present.
	AuthenticatedLimit int
	// Window is the sliding-window width.
	Window time.Duration
	// BlockDuration is the cooldown imposed once a client exceeds its
	// ceiling. The block runs its full course regardless of subsequent
	// quiet periods.
	BlockDuration time.Duration
}

const (
	defaultAnonymousLimit     = 10
	defaultAuthenticatedLimit = 100
	defaultWindow             = time.Hour
	defaultBlockDuration      = time.Hour
)

// Denial reasons reported in Decision and used as metric labels.
const (
	ReasonBlocked  = "blocked"
	ReasonExceeded = "exceeded"
)

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string
}

// Clock returns the current time; injected for tests.
type Clock interface {
	Now() time.Time
}

// Limiter tracks request timestamps and block entries per client key. It is
// an explicitly owned component, safe for concurrent use; one mutex covers
// every check-then-act sequence so interleaved requests can never over-admit.
type Limiter struct {
	mu      sync.Mutex
	records map[string][]time.Time
	blocked map[string]time.Time
	cfg     Config
	clock   Clock
}

// New creates a Limiter. Zero config fields fall back to defaults.
func New(cfg Config, clock Clock) *Limiter {
	if cfg.AnonymousLimit <= 0 {
		cfg.AnonymousLimit = defaultAnonymousLimit
	}
	if cfg.AuthenticatedLimit <= 0 {
		cfg.AuthenticatedLimit = defaultAuthenticatedLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = defaultBlockDuration
	}
	return &Limiter{
		records: make(map[string][]time.Time),
		blocked: make(map[string]time.Time),
		cfg:     cfg,
		clock:   clock,
	}
}

// Reserve atomically checks the client against its ceiling and, when allowed,
// records the request. Blocked or over-limit clients are denied with the
// seconds remaining until they may retry.
func (l *Limiter) Reserve(key string, authenticated bool) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	if unblockAt, ok := l.blocked[key]; ok {
		if now.Before(unblockAt) {
			return Decision{RetryAfter: unblockAt.Sub(now), Reason: ReasonBlocked}
		}
		// The cooldown ran its course; the entry is removed exactly once.
		delete(l.blocked, key)
	}

	windowStart := now.Add(-l.cfg.Window)
	kept := l.records[key][:0]
	for _, ts := range l.records[key] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	l.records[key] = kept

	limit := l.cfg.AnonymousLimit
	if authenticated {
		limit = l.cfg.AuthenticatedLimit
	}
	if len(kept) >= limit {
		l.blocked[key] = now.Add(l.cfg.BlockDuration)
		return Decision{RetryAfter: l.cfg.BlockDuration, Reason: ReasonExceeded}
	}

	l.records[key] = append(l.records[key], now)
	return Decision{Allowed: true}
}

// Check reports the decision for a client without recording a request. Used
// where admission and recording are separated; Reserve is preferred on the
// request path.
func (l *Limiter) Check(key string, authenticated bool) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if unblockAt, ok := l.blocked[key]; ok && now.Before(unblockAt) {
		return Decision{RetryAfter: unblockAt.Sub(now), Reason: ReasonBlocked}
	}

	windowStart := now.Add(-l.cfg.Window)
	count := 0
	for _, ts := range l.records[key] {
		if ts.After(windowStart) {
			count++
		}
	}
	limit := l.cfg.AnonymousLimit
	if authenticated {
		limit = l.cfg.AuthenticatedLimit
	}
	if count >= limit {
		return Decision{RetryAfter: l.cfg.BlockDuration, Reason: ReasonExceeded}
	}
	return Decision{Allowed: true}
}

// Record registers an accepted request for the client key.
func (l *Limiter) Record(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[key] = append(l.records[key], l.clock.Now())
}
