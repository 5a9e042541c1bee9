package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/stylehound/stylehound/internal/search"
)

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestSaveAttributesUpsertsEachAttribute(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)

	attrs := []search.Attribute{
		{Name: "color", Value: "navy", Confidence: 0.9},
		{Name: "cut", Value: "slim", Confidence: 0.7},
	}
	for _, attr := range attrs {
		mock.ExpectExec("INSERT INTO attribute_recognitions").
			WithArgs(attr.Name, attr.Value, int64(120)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, store.SaveAttributes(context.Background(), attrs, 120))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAttributesPropagatesError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)

	mock.ExpectExec("INSERT INTO attribute_recognitions").
		WithArgs("color", "navy", int64(50)).
		WillReturnError(errors.New("connection reset"))

	err = store.SaveAttributes(context.Background(),
		[]search.Attribute{{Name: "color", Value: "navy"}}, 50)
	require.Error(t, err)
	require.Contains(t, err.Error(), "color=navy")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveStoreSearch(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)

	elapsed := int64(340)
	mock.ExpectExec("INSERT INTO store_searches").
		WithArgs(search.StoreZalando, true, &elapsed).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveStoreSearch(context.Background(), search.StoreZalando, true, &elapsed))

	// A failed store search records a NULL response time.
	mock.ExpectExec("INSERT INTO store_searches").
		WithArgs(search.StoreModivo, false, (*int64)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveStoreSearch(context.Background(), search.StoreModivo, false, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSearchMetrics(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)

	mock.ExpectExec("INSERT INTO search_metrics").
		WithArgs(int64(5000), int64(1200), int64(3100), 9).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveSearchMetrics(context.Background(), 5000, 1200, 3100, 9))
	require.NoError(t, mock.ExpectationsWereMet())
}
