package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsMessages(t *testing.T) {
	t.Parallel()

	pub := New()

	id1, err := pub.Publish(context.Background(), "search-completions", map[string]string{"search_id": "a"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), "search-completions", map[string]string{"search_id": "b"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "search-completions", msgs[0].Topic)
	require.Equal(t, map[string]string{"search_id": "a"}, msgs[0].Payload)
}

func TestMessagesReturnsCopy(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "t", 1)
	require.NoError(t, err)

	msgs := pub.Messages()
	msgs[0].Topic = "mutated"

	require.Equal(t, "t", pub.Messages()[0].Topic)
}
