package collysearcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stylehound/stylehound/internal/search"
)

func TestSearchRejectsUnknownStore(t *testing.T) {
	t.Parallel()

	s := New(Config{}, zap.NewNop())
	_, err := s.Search(context.Background(), "corner-shop", nil)
	require.Error(t, err)
}

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	require.Equal(t, "clothing", buildQuery(nil))

	attrs := []search.Attribute{
		{Name: "color", Value: "navy"},
		{Name: "cut", Value: "slim"},
		{Name: "brand", Value: "acme"},
	}
	// Brand always comes first in the query.
	require.Equal(t, "acme navy slim", buildQuery(attrs))
}

func TestLooksLikeProduct(t *testing.T) {
	t.Parallel()

	require.True(t, looksLikeProduct("https://www.zalando.com/product/abc123"))
	require.True(t, looksLikeProduct("https://www.asos.com/prd/99"))
	require.True(t, looksLikeProduct("https://modivo.com/p/shirt"))
	require.False(t, looksLikeProduct("https://www.zalando.com/help/returns"))
	require.False(t, looksLikeProduct(""))
}

func TestSimilarityForDescendsWithFloor(t *testing.T) {
	t.Parallel()

	require.Greater(t, similarityFor(0), similarityFor(1))
	require.Equal(t, 0.5, similarityFor(100))
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	// Burst 1 admits the first call; the second must wait a full second and
	// sees the canceled context instead.
	s := New(Config{RPS: 1, Burst: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.wait(ctx, search.StoreZalando))
	cancel()
	require.Error(t, s.wait(ctx, search.StoreZalando))
}
