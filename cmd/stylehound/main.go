// Package main wires together the search service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/stylehound/stylehound/internal/api"
	"github.com/stylehound/stylehound/internal/clock/system"
	"github.com/stylehound/stylehound/internal/config"
	"github.com/stylehound/stylehound/internal/id/uuid"
	"github.com/stylehound/stylehound/internal/logging"
	pubsubpublisher "github.com/stylehound/stylehound/internal/publisher/pubsub"
	"github.com/stylehound/stylehound/internal/ratelimit"
	"github.com/stylehound/stylehound/internal/repository"
	collysearcher "github.com/stylehound/stylehound/internal/scraper/colly"
	scrapersim "github.com/stylehound/stylehound/internal/scraper/simulated"
	"github.com/stylehound/stylehound/internal/search"
	statefile "github.com/stylehound/stylehound/internal/state/file"
	storagegcs "github.com/stylehound/stylehound/internal/storage/gcs"
	storagelocal "github.com/stylehound/stylehound/internal/storage/local"
	"github.com/stylehound/stylehound/internal/telemetry"
	"github.com/stylehound/stylehound/internal/vision"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.Init()

	states, err := statefile.New(statefile.Config{Dir: cfg.State.Dir}, logger.Named("state"))
	if err != nil {
		logger.Fatal("state store init failed", zap.Error(err))
	}

	var blobs search.BlobStore
	switch cfg.Storage.Provider {
	case "gcs":
		gcs, err := gstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("gcs client init failed", zap.Error(err))
		}
		defer func() {
			if cerr := gcs.Close(); cerr != nil {
				logger.Warn("gcs client close failed", zap.Error(cerr))
			}
		}()
		blobs, err = storagegcs.New(gcs, storagegcs.Config{Bucket: cfg.Storage.Bucket})
		if err != nil {
			logger.Fatal("gcs blob store init failed", zap.Error(err))
		}
	default:
		blobs, err = storagelocal.New(storagelocal.Config{BaseDir: cfg.Storage.BaseDir})
		if err != nil {
			logger.Fatal("local blob store init failed", zap.Error(err))
		}
	}

	var analyzer search.Analyzer
	if cfg.Vision.APIKey != "" {
		analyzer = vision.New(vision.Config{
			APIKey:   cfg.Vision.APIKey,
			Endpoint: cfg.Vision.Endpoint,
			Model:    cfg.Vision.Model,
			Timeout:  time.Duration(cfg.Vision.TimeoutSeconds) * time.Second,
		}, logger.Named("vision"))
	} else {
		logger.Warn("no vision api key configured, using simulated analyzer")
		analyzer = vision.NewSimulated()
	}

	var searcher search.StoreSearcher
	if cfg.Scraper.Provider == "colly" {
		searcher = collysearcher.New(collysearcher.Config{
			UserAgent:  cfg.Scraper.UserAgent,
			Timeout:    time.Duration(cfg.Scraper.TimeoutSeconds) * time.Second,
			RPS:        cfg.Scraper.RPS,
			Burst:      cfg.Scraper.Burst,
			MaxResults: cfg.Scraper.MaxResults,
		}, logger.Named("scraper"))
	} else {
		searcher = scrapersim.New(0)
	}

	var recorder search.Recorder
	if cfg.DB.DSN != "" {
		repo, err := repository.New(ctx, repository.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxConns),
			MinConns: int32(cfg.DB.MinConns),
		})
		if err != nil {
			logger.Fatal("analytics repository init failed", zap.Error(err))
		}
		defer repo.Close()
		recorder = repo
	}

	var publisher search.Publisher
	if cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		topic := client.Topic(cfg.PubSub.TopicName)
		defer topic.Stop()
		defer func() {
			if cerr := client.Close(); cerr != nil {
				logger.Warn("pubsub client close failed", zap.Error(cerr))
			}
		}()
		publisher = pubsubpublisher.New(topic)
	}

	clock := system.New()
	idGen := uuid.New()

	orch := search.NewOrchestrator(
		states,
		blobs,
		analyzer,
		searcher,
		publisher,
		recorder,
		clock,
		idGen,
		search.Config{
			BlobPrefix:       cfg.Storage.Prefix,
			Topic:            cfg.PubSub.TopicName,
			AnalyzeTimeout:   time.Duration(cfg.Search.AnalyzeTimeoutSeconds) * time.Second,
			StoreTimeout:     time.Duration(cfg.Search.StoreTimeoutSeconds) * time.Second,
			EstimatedSeconds: cfg.Search.EstimatedSeconds,
		},
		logger.Named("search"),
	)

	limiter := ratelimit.New(ratelimit.Config{
		AnonymousLimit:     cfg.RateLimit.AnonymousLimit,
		AuthenticatedLimit: cfg.RateLimit.AuthenticatedLimit,
		Window:             cfg.RateLimitWindow(),
		BlockDuration:      cfg.RateLimitBlock(),
	}, clock)

	apiServer := api.NewServer(orch, limiter, api.Config{
		RequestTimeout:      time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		RateLimitPathPrefix: cfg.RateLimit.PathPrefix,
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	// Let in-flight search pipelines reach a terminal state before exit.
	orch.Wait()
	logger.Info("shutdown complete")
}
