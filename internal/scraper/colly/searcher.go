// Package collysearcher implements StoreSearcher by fetching store search
// pages with gocolly and counting product links. It is a best-effort static
// scrape; stores rendering their listings with JavaScript return few or no
// results here.
package collysearcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stylehound/stylehound/internal/search"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// RPS and Burst bound outbound requests per store host.
	RPS   float64
	Burst int
	// MaxResults caps how many products one store search returns.
	MaxResults int
}

// Searcher queries store search pages over HTTP.
type Searcher struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// searchURL builds the store's search page URL from a query string.
var searchURLs = map[string]func(query string) string{
	search.StoreZalando: func(q string) string {
		return "https://www.zalando.com/catalog/?q=" + url.QueryEscape(q)
	},
	search.StoreModivo: func(q string) string {
		return "https://modivo.com/search?query=" + url.QueryEscape(q)
	},
	search.StoreAsos: func(q string) string {
		return "https://www.asos.com/search/?q=" + url.QueryEscape(q)
	},
}

// New builds a Searcher.
func New(cfg Config, logger *zap.Logger) *Searcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "stylehound-bot/0.1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Search fetches the store's search page for the recognized attributes and
// extracts product links.
func (s *Searcher) Search(ctx context.Context, store string, attrs []search.Attribute) ([]search.Product, error) {
	buildURL, ok := searchURLs[store]
	if !ok {
		return nil, fmt.Errorf("no search URL template for store %q", store)
	}
	query := buildQuery(attrs)
	target := buildURL(query)

	if err := s.wait(ctx, store); err != nil {
		return nil, err
	}

	collector := colly.NewCollector(colly.Async(false), colly.StdlibContext(ctx))
	collector.UserAgent = s.cfg.UserAgent
	collector.SetRequestTimeout(s.cfg.Timeout)

	var (
		products []search.Product
		fetchErr error
	)
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if len(products) >= s.cfg.MaxResults {
			return
		}
		href := e.Request.AbsoluteURL(e.Attr("href"))
		if !looksLikeProduct(href) {
			return
		}
		title := strings.TrimSpace(e.Text)
		if title == "" {
			title = href
		}
		products = append(products, search.Product{
			Title:      title,
			Store:      store,
			URL:        href,
			Similarity: similarityFor(len(products)),
			Attributes: search.ProductAttributes{
				Color:   attributeValue(attrs, "color"),
				Pattern: attributeValue(attrs, "pattern"),
				Cut:     attributeValue(attrs, "cut"),
				Brand:   attributeValue(attrs, "brand"),
			},
		})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := collector.Visit(target); err != nil {
		return nil, fmt.Errorf("visit %s: %w", store, err)
	}
	collector.Wait()
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s search page: %w", store, fetchErr)
	}

	s.logger.Debug("store search page scraped",
		zap.String("store", store),
		zap.String("query", query),
		zap.Int("products", len(products)),
	)
	return products, nil
}

// wait blocks until the per-store limiter admits a request.
func (s *Searcher) wait(ctx context.Context, store string) error {
	s.mu.Lock()
	limiter, ok := s.limiters[store]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RPS), s.cfg.Burst)
		s.limiters[store] = limiter
	}
	s.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func buildQuery(attrs []search.Attribute) string {
	parts := make([]string, 0, len(attrs))
	for _, name := range []string{"brand", "color", "pattern", "cut"} {
		if v := attributeValue(attrs, name); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "clothing"
	}
	return strings.Join(parts, " ")
}

func looksLikeProduct(href string) bool {
	if href == "" {
		return false
	}
	lower := strings.ToLower(href)
	for _, marker := range []string{"/product/", "/p/", "/prd/", "/item/"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func similarityFor(position int) float64 {
	score := 0.95 - float64(position)*0.02
	if score < 0.5 {
		return 0.5
	}
	return score
}

func attributeValue(attrs []search.Attribute, name string) string {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}
