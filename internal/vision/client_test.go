package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAnalyzeWithoutKeyReturnsEmptyAnalysis(t *testing.T) {
	t.Parallel()

	c := New(Config{}, zap.NewNop())
	analysis, err := c.Analyze(context.Background(), "https://example.com/image.jpg")
	require.NoError(t, err)
	require.Empty(t, analysis.Attributes)
}

func TestAnalyzeParsesEndpointResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-4-vision-preview", req["model"])

		content := `{"attributes": [` +
			`{"name": "color", "value": "red", "confidence": 0.95},` +
			`{"name": "pattern", "value": "striped", "confidence": 0.81}]}`
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "test-key", Endpoint: srv.URL, Timeout: 5 * time.Second}, zap.NewNop())
	analysis, err := c.Analyze(context.Background(), "https://example.com/image.jpg")
	require.NoError(t, err)
	require.Len(t, analysis.Attributes, 2)
	require.Equal(t, "color", analysis.Attributes[0].Name)
	require.Equal(t, "red", analysis.Attributes[0].Value)
	require.InDelta(t, 0.95, analysis.Attributes[0].Confidence, 0.001)
}

func TestAnalyzeErrorStatuses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{APIKey: "test-key", Endpoint: srv.URL}, zap.NewNop())
	_, err := c.Analyze(context.Background(), "https://example.com/image.jpg")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestParseAttributesRejectsNonJSON(t *testing.T) {
	t.Parallel()

	_, err := parseAttributes("Sure! Here are the attributes: color red")
	require.Error(t, err)

	attrs, err := parseAttributes(`{"attributes": []}`)
	require.NoError(t, err)
	require.Empty(t, attrs)
}

func TestImagePayloadPassthroughAndInline(t *testing.T) {
	t.Parallel()

	part, err := imagePayload("gs://bucket/images/abc.jpg")
	require.NoError(t, err)
	require.Equal(t, "gs://bucket/images/abc.jpg", part["url"])

	_, err = imagePayload("file:///does/not/exist.jpg")
	require.Error(t, err)
}
