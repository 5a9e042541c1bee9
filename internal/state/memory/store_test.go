package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stylehound/stylehound/internal/search"
	"github.com/stylehound/stylehound/internal/state"
)

func TestCreateLoadMutate(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	rec := search.Record{
		ID:     "abc",
		Status: search.StatusProcessing,
		Stores: []search.StoreResult{{Name: search.StoreZalando, Status: search.StatusProcessing}},
	}
	require.NoError(t, s.Create(ctx, "abc", rec))

	got, err := s.Load(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", got.ID)

	require.NoError(t, s.Mutate(ctx, "abc", func(r *search.Record) error {
		r.Status = search.StatusCompleted
		return nil
	}))
	got, err = s.Load(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, search.StatusCompleted, got.Status)
}

func TestMissingRecord(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.Load(context.Background(), "nope")
	require.ErrorIs(t, err, state.ErrNotFound)

	err = s.Mutate(context.Background(), "nope", func(*search.Record) error { return nil })
	require.ErrorIs(t, err, state.ErrNotFound)
}

func TestLoadReturnsIsolatedCopy(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "abc", search.Record{
		ID:     "abc",
		Stores: []search.StoreResult{{Name: search.StoreAsos, Status: search.StatusProcessing}},
	}))

	got, err := s.Load(ctx, "abc")
	require.NoError(t, err)
	got.Stores[0].Status = search.StatusFailed

	again, err := s.Load(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, search.StatusProcessing, again.Stores[0].Status)
}

func TestConcurrentMutations(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "abc", search.Record{ID: "abc"}))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Mutate(ctx, "abc", func(r *search.Record) error {
				r.ResultCount++
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := s.Load(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, 100, got.ResultCount)
}
