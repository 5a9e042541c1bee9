// Package repository provides the Postgres-backed analytics store. Every
// write is best-effort telemetry about finished work; the search pipeline
// never depends on it.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stylehound/stylehound/internal/search"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes search analytics rows into Postgres.
type Store struct {
	pool execCloser
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wires an existing pool; used by tests with pgxmock.
func NewWithPool(pool execCloser) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveAttributes upserts one row per recognized attribute, bumping the
// recognition counter and folding the analysis time into a running average.
func (s *Store) SaveAttributes(ctx context.Context, attrs []search.Attribute, analysisMs int64) error {
	query := `
		INSERT INTO attribute_recognitions (attribute_name, attribute_value, counter, search_time_ms)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (attribute_name, attribute_value) DO UPDATE
		SET counter = attribute_recognitions.counter + 1,
		    search_time_ms = (attribute_recognitions.search_time_ms + EXCLUDED.search_time_ms) / 2;
	`
	for _, attr := range attrs {
		if _, err := s.pool.Exec(ctx, query, attr.Name, attr.Value, analysisMs); err != nil {
			return fmt.Errorf("upsert attribute %s=%s: %w", attr.Name, attr.Value, err)
		}
	}
	return nil
}

// SaveStoreSearch records the outcome of one per-store search. elapsedMs is
// nil when the search failed before producing a timing.
func (s *Store) SaveStoreSearch(ctx context.Context, store string, performed bool, elapsedMs *int64) error {
	query := `
		INSERT INTO store_searches (store_name, search_performed, response_time_ms, created_at)
		VALUES ($1, $2, $3, NOW());
	`
	if _, err := s.pool.Exec(ctx, query, store, performed, elapsedMs); err != nil {
		return fmt.Errorf("insert store search: %w", err)
	}
	return nil
}

// SaveSearchMetrics records whole-search timings and the final result count.
func (s *Store) SaveSearchMetrics(ctx context.Context, totalMs, analysisMs, searchMs int64, resultCount int) error {
	query := `
		INSERT INTO search_metrics (total_time_ms, analysis_time_ms, search_time_ms, result_count, created_at)
		VALUES ($1, $2, $3, $4, NOW());
	`
	if _, err := s.pool.Exec(ctx, query, totalMs, analysisMs, searchMs, resultCount); err != nil {
		return fmt.Errorf("insert search metrics: %w", err)
	}
	return nil
}
