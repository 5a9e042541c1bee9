package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stylehound/stylehound/internal/ratelimit"
	scrapersim "github.com/stylehound/stylehound/internal/scraper/simulated"
	"github.com/stylehound/stylehound/internal/search"
	statememory "github.com/stylehound/stylehound/internal/state/memory"
	storagememory "github.com/stylehound/stylehound/internal/storage/memory"
	"github.com/stylehound/stylehound/internal/vision"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("search-%04d", g.n), nil
}

func newTestServer(t *testing.T, limiter *ratelimit.Limiter) (*Server, *search.Orchestrator) {
	t.Helper()
	orch := search.NewOrchestrator(
		statememory.New(),
		storagememory.NewBlobStore(),
		vision.NewSimulated(),
		scrapersim.New(0),
		nil,
		nil,
		&fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		&seqIDGen{},
		search.Config{},
		zap.NewNop(),
	)
	return NewServer(orch, limiter, Config{}, zap.NewNop()), orch
}

// jpegUpload builds a multipart body with a payload that sniffs as image/jpeg.
func jpegUpload(t *testing.T, size int, stores ...string) (*bytes.Buffer, string) {
	t.Helper()
	payload := make([]byte, size)
	copy(payload, []byte{0xFF, 0xD8, 0xFF, 0xE0})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "query.jpg")
	require.NoError(t, err)
	_, err = fw.Write(payload)
	require.NoError(t, err)
	for _, s := range stores {
		require.NoError(t, mw.WriteField("stores", s))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSubmitAndPollSearch(t *testing.T) {
	t.Parallel()

	srv, orch := newTestServer(t, nil)

	body, contentType := jpegUpload(t, 2<<20, "zalando", "asos")
	req := httptest.NewRequest(http.MethodPost, "/api/searches/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var submitted submitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&submitted))
	require.Equal(t, "search-0001", submitted.SearchID)
	require.Equal(t, "processing", submitted.Status)
	require.Positive(t, submitted.EstimatedTimeSeconds)

	orch.Wait()

	req = httptest.NewRequest(http.MethodGet, "/api/searches/"+submitted.SearchID, nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	require.Equal(t, submitted.SearchID, status.SearchID)
	require.Equal(t, "completed", status.Status)
	// zalando yields 3 simulated products, asos yields 4.
	require.Equal(t, 7, status.ResultCount)
	require.Len(t, status.StoresSearched, 2)
	for _, st := range status.StoresSearched {
		require.Equal(t, "completed", st.Status)
	}
	require.NotEmpty(t, status.AttributesRecognized)
}

func TestSubmitRejectsOversizeImage(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	body, contentType := jpegUpload(t, search.MaxImageBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/api/searches/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRejectsNonImagePayload(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("just some text, not an image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/searches/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRejectsUnknownStore(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	body, contentType := jpegUpload(t, 1024, "amazon")
	req := httptest.NewRequest(http.MethodPost, "/api/searches/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusUnknownSearchReturns404(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/searches/no-such-id", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitRateLimited(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(ratelimit.Config{AnonymousLimit: 2}, &fakeClock{now: time.Now()})
	srv, orch := newTestServer(t, limiter)

	for i := 0; i < 2; i++ {
		body, contentType := jpegUpload(t, 1024)
		req := httptest.NewRequest(http.MethodPost, "/api/searches/", body)
		req.Header.Set("Content-Type", contentType)
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	body, contentType := jpegUpload(t, 1024)
	req := httptest.NewRequest(http.MethodPost, "/api/searches/", body)
	req.Header.Set("Content-Type", contentType)
	req.RemoteAddr = "203.0.113.9:1234"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Health endpoints stay outside the limited prefix.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	orch.Wait()
}
