package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stylehound/stylehound/internal/telemetry"
)

// Config controls Orchestrator behavior.
type Config struct {
	// BlobPrefix is prepended to stored image object names.
	BlobPrefix string
	// Topic is the completion-event topic; empty disables publishing.
	Topic string
	// AnalyzeTimeout bounds the analyzer call.
	AnalyzeTimeout time.Duration
	// StoreTimeout bounds each individual store search.
	StoreTimeout time.Duration
	// EstimatedSeconds is reported to clients on submission.
	EstimatedSeconds int
}

const (
	defaultAnalyzeTimeout   = 30 * time.Second
	defaultStoreTimeout     = 30 * time.Second
	defaultEstimatedSeconds = 10
)

// Orchestrator drives a search's lifecycle: validate, persist the image,
// analyze, fan out to the requested stores, aggregate, finalize. Submission
// returns immediately; the pipeline runs on its own goroutine and callers
// observe progress by polling Status.
type Orchestrator struct {
	states    Store
	blobs     BlobStore
	analyzer  Analyzer
	searcher  StoreSearcher
	publisher Publisher
	recorder  Recorder
	clock     Clock
	idGen     IDGenerator
	cfg       Config
	logger    *zap.Logger

	// background tracks in-flight pipelines so tests and shutdown can wait
	// for them.
	background sync.WaitGroup
}

// NewOrchestrator constructs an Orchestrator. publisher and recorder may be
// nil; those side channels are skipped.
func NewOrchestrator(
	states Store,
	blobs BlobStore,
	analyzer Analyzer,
	searcher StoreSearcher,
	publisher Publisher,
	recorder Recorder,
	clock Clock,
	idGen IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AnalyzeTimeout <= 0 {
		cfg.AnalyzeTimeout = defaultAnalyzeTimeout
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if cfg.EstimatedSeconds <= 0 {
		cfg.EstimatedSeconds = defaultEstimatedSeconds
	}
	return &Orchestrator{
		states:    states,
		blobs:     blobs,
		analyzer:  analyzer,
		searcher:  searcher,
		publisher: publisher,
		recorder:  recorder,
		clock:     clock,
		idGen:     idGen,
		cfg:       cfg,
		logger:    logger,
	}
}

// Submit validates the upload, persists the initial record, and starts the
// pipeline. It returns as soon as the record exists; no network or analysis
// work happens on the caller's goroutine.
func (o *Orchestrator) Submit(ctx context.Context, image []byte, stores []string) (Submission, error) {
	contentType, err := ValidateImage(image)
	if err != nil {
		return Submission{}, err
	}
	normalized, err := NormalizeStores(stores)
	if err != nil {
		return Submission{}, err
	}
	id, err := o.idGen.NewID()
	if err != nil {
		return Submission{}, fmt.Errorf("generate search id: %w", err)
	}

	now := o.clock.Now()
	rec := Record{
		ID:         id,
		Status:     StatusProcessing,
		StartTime:  now,
		Stores:     make([]StoreResult, 0, len(normalized)),
		Attributes: []Attribute{},
	}
	for _, store := range normalized {
		rec.Stores = append(rec.Stores, StoreResult{Name: store, Status: StatusProcessing})
	}
	if err := o.states.Create(ctx, id, rec); err != nil {
		return Submission{}, fmt.Errorf("create search record: %w", err)
	}

	// The pipeline outlives the request; give it a fresh context.
	payload := make([]byte, len(image))
	copy(payload, image)
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		o.process(context.Background(), id, payload, contentType, normalized)
	}()

	return Submission{
		ID:               id,
		EstimatedSeconds: o.cfg.EstimatedSeconds,
		Timestamp:        now,
	}, nil
}

// Status returns the current record projection or ErrNotFound.
func (o *Orchestrator) Status(ctx context.Context, id string) (Record, error) {
	rec, err := o.states.Load(ctx, id)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Wait blocks until all in-flight pipelines finish. Used during shutdown and
// by tests.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

// process runs the full pipeline for one search. It guarantees the record
// reaches a terminal state: any panic or fatal error ends in StatusFailed.
func (o *Orchestrator) process(ctx context.Context, id string, image []byte, contentType string, stores []string) {
	start := o.clock.Now()
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("search pipeline panic",
				zap.String("search_id", id),
				zap.Any("panic", rec),
			)
			o.finalize(ctx, id, StatusFailed, 0, start)
		}
	}()

	imageRef, err := o.saveImage(ctx, id, image, contentType)
	if err != nil {
		// Without the image there is nothing to analyze; this is the one
		// fatal I/O path.
		o.logger.Error("save image failed", zap.String("search_id", id), zap.Error(err))
		o.finalize(ctx, id, StatusFailed, 0, start)
		return
	}

	analysis := o.analyze(ctx, id, imageRef)
	if err := o.states.Mutate(ctx, id, func(rec *Record) error {
		rec.Attributes = analysis.Attributes
		return nil
	}); err != nil {
		o.logger.Error("persist attributes failed", zap.String("search_id", id), zap.Error(err))
		o.finalize(ctx, id, StatusFailed, 0, start)
		return
	}
	o.recordAttributes(ctx, id, analysis)

	searchStart := o.clock.Now()
	total := o.searchStores(ctx, id, stores, analysis.Attributes)
	searchMs := o.clock.Now().Sub(searchStart).Milliseconds()

	o.finalize(ctx, id, StatusCompleted, total, start)

	if o.recorder != nil {
		totalMs := o.clock.Now().Sub(start).Milliseconds()
		analysisMs := analysis.Elapsed.Milliseconds()
		if err := o.recorder.SaveSearchMetrics(ctx, totalMs, analysisMs, searchMs, total); err != nil {
			o.logger.Warn("save search metrics failed", zap.String("search_id", id), zap.Error(err))
		}
	}
	o.publishCompletion(ctx, id, total, start)
}

func (o *Orchestrator) saveImage(ctx context.Context, id string, image []byte, contentType string) (string, error) {
	name := fmt.Sprintf("%s.%s", id, ImageExtension(contentType))
	path := name
	if prefix := strings.Trim(o.cfg.BlobPrefix, "/"); prefix != "" {
		path = prefix + "/" + name
	}
	uri, err := o.blobs.PutObject(ctx, path, contentType, image)
	if err != nil {
		return "", fmt.Errorf("put image object: %w", err)
	}
	return uri, nil
}

// analyze invokes the analyzer under a bounded timeout. Failure degrades to
// zero attributes; the pipeline continues with unknown attributes rather than
// aborting.
func (o *Orchestrator) analyze(ctx context.Context, id, imageRef string) Analysis {
	actx, cancel := context.WithTimeout(ctx, o.cfg.AnalyzeTimeout)
	defer cancel()

	analysis, err := o.analyzer.Analyze(actx, imageRef)
	if err != nil {
		o.logger.Warn("image analysis failed, continuing with no attributes",
			zap.String("search_id", id),
			zap.Error(err),
		)
		return Analysis{Attributes: []Attribute{}}
	}
	if analysis.Attributes == nil {
		analysis.Attributes = []Attribute{}
	}
	o.logger.Info("image analyzed",
		zap.String("search_id", id),
		zap.Int("attributes", len(analysis.Attributes)),
		zap.Duration("elapsed", analysis.Elapsed),
	)
	return analysis
}

// searchStores fans out one goroutine per store, waits for all of them, and
// returns the summed product count of the stores that completed. A failing
// store marks only its own sub-status failed.
func (o *Orchestrator) searchStores(ctx context.Context, id string, stores []string, attrs []Attribute) int {
	counts := make([]int, len(stores))
	var wg sync.WaitGroup
	for i, store := range stores {
		wg.Add(1)
		go func(idx int, store string) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					o.logger.Error("store search panic",
						zap.String("search_id", id),
						zap.String("store", store),
						zap.Any("panic", rec),
					)
					o.markStore(ctx, id, store, StatusFailed, 0)
				}
			}()
			counts[idx] = o.searchOneStore(ctx, id, store, attrs)
		}(i, store)
	}
	wg.Wait()

	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

func (o *Orchestrator) searchOneStore(ctx context.Context, id, store string, attrs []Attribute) int {
	sctx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer cancel()

	storeStart := o.clock.Now()
	products, err := o.searcher.Search(sctx, store, attrs)
	elapsed := o.clock.Now().Sub(storeStart)
	if err != nil {
		o.logger.Warn("store search failed",
			zap.String("search_id", id),
			zap.String("store", store),
			zap.Error(err),
		)
		o.markStore(ctx, id, store, StatusFailed, 0)
		telemetry.ObserveStoreSearch(store, string(StatusFailed), elapsed)
		if o.recorder != nil {
			if rerr := o.recorder.SaveStoreSearch(ctx, store, false, nil); rerr != nil {
				o.logger.Warn("save store search failed", zap.String("store", store), zap.Error(rerr))
			}
		}
		return 0
	}

	ms := elapsed.Milliseconds()
	o.markStore(ctx, id, store, StatusCompleted, ms)
	telemetry.ObserveStoreSearch(store, string(StatusCompleted), elapsed)
	if o.recorder != nil {
		if rerr := o.recorder.SaveStoreSearch(ctx, store, true, &ms); rerr != nil {
			o.logger.Warn("save store search failed", zap.String("store", store), zap.Error(rerr))
		}
	}
	return len(products)
}

func (o *Orchestrator) markStore(ctx context.Context, id, store string, status Status, timeMs int64) {
	err := o.states.Mutate(ctx, id, func(rec *Record) error {
		for i := range rec.Stores {
			if rec.Stores[i].Name == store {
				rec.Stores[i].Status = status
				rec.Stores[i].TimeMs = timeMs
				return nil
			}
		}
		return fmt.Errorf("store %q not tracked by record", store)
	})
	if err != nil {
		o.logger.Error("update store status failed",
			zap.String("search_id", id),
			zap.String("store", store),
			zap.Error(err),
		)
	}
}

// finalize moves the record to a terminal state in one atomic mutation. The
// write is retried once since losing it would leave the record processing
// forever.
func (o *Orchestrator) finalize(ctx context.Context, id string, status Status, resultCount int, start time.Time) {
	end := o.clock.Now()
	mutation := func(rec *Record) error {
		rec.Status = status
		rec.EndTime = &end
		rec.ElapsedMs = end.Sub(start).Milliseconds()
		if status == StatusCompleted {
			rec.ResultCount = resultCount
		}
		return nil
	}
	err := o.states.Mutate(ctx, id, mutation)
	if err != nil {
		o.logger.Error("terminal state write failed, retrying",
			zap.String("search_id", id),
			zap.Error(err),
		)
		err = o.states.Mutate(ctx, id, mutation)
	}
	if err != nil {
		o.logger.Error("terminal state write lost", zap.String("search_id", id), zap.Error(err))
	}
	telemetry.ObserveSearchFinished(string(status), end.Sub(start))
	o.logger.Info("search finished",
		zap.String("search_id", id),
		zap.String("status", string(status)),
		zap.Int("result_count", resultCount),
		zap.Int64("elapsed_ms", end.Sub(start).Milliseconds()),
	)
}

func (o *Orchestrator) recordAttributes(ctx context.Context, id string, analysis Analysis) {
	if o.recorder == nil || len(analysis.Attributes) == 0 {
		return
	}
	if err := o.recorder.SaveAttributes(ctx, analysis.Attributes, analysis.Elapsed.Milliseconds()); err != nil {
		o.logger.Warn("save attributes failed", zap.String("search_id", id), zap.Error(err))
	}
}

func (o *Orchestrator) publishCompletion(ctx context.Context, id string, total int, start time.Time) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"search_id":    id,
		"status":       string(StatusCompleted),
		"result_count": total,
		"elapsed_ms":   o.clock.Now().Sub(start).Milliseconds(),
		"timestamp":    o.clock.Now().Format(time.RFC3339),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		o.logger.Warn("publish completion failed", zap.String("search_id", id), zap.Error(err))
	}
}
