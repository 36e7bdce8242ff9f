// Package main wires together the catalog scraper service.
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
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/oemdirect/catalog-scraper/internal/api"
	"github.com/oemdirect/catalog-scraper/internal/backoff"
	"github.com/oemdirect/catalog-scraper/internal/catalog"
	"github.com/oemdirect/catalog-scraper/internal/client"
	"github.com/oemdirect/catalog-scraper/internal/clock/system"
	"github.com/oemdirect/catalog-scraper/internal/config"
	"github.com/oemdirect/catalog-scraper/internal/dispatcher"
	"github.com/oemdirect/catalog-scraper/internal/enrich"
	"github.com/oemdirect/catalog-scraper/internal/id/uuid"
	"github.com/oemdirect/catalog-scraper/internal/logging"
	"github.com/oemdirect/catalog-scraper/internal/mapper"
	"github.com/oemdirect/catalog-scraper/internal/paginate"
	"github.com/oemdirect/catalog-scraper/internal/pipeline"
	memorypublisher "github.com/oemdirect/catalog-scraper/internal/publisher/memory"
	pubsubpublisher "github.com/oemdirect/catalog-scraper/internal/publisher/pubsub"
	queueMemory "github.com/oemdirect/catalog-scraper/internal/queue/memory"
	"github.com/oemdirect/catalog-scraper/internal/session"
	sinkMemory "github.com/oemdirect/catalog-scraper/internal/sink/memory"
	sinkPostgres "github.com/oemdirect/catalog-scraper/internal/sink/postgres"
	"github.com/oemdirect/catalog-scraper/internal/storage/gcs"
	"github.com/oemdirect/catalog-scraper/internal/storage/local"
	memoryStorage "github.com/oemdirect/catalog-scraper/internal/storage/memory"
	"github.com/oemdirect/catalog-scraper/internal/worker"
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
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiClient := client.New(client.Config{
		BaseURL:         cfg.Scraper.BaseURL,
		UserAgent:       cfg.HTTP.UserAgent,
		Timeout:         cfg.HTTPTimeout(),
		Headers:         cfg.HTTP.Headers,
		FallbackSession: cfg.HTTP.FallbackSession,
		RateLimitRPS:    cfg.HTTP.RateLimitRPS,
		RateBurst:       cfg.HTTP.RateBurst,
	}, logger.Named("client"))

	var sessions catalog.SessionProvider
	if cfg.Session.Enabled {
		sessions = session.NewChromedp(session.Config{
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: time.Duration(cfg.Session.NavTimeoutSeconds) * time.Second,
			SettleDelay:       time.Duration(cfg.Session.SettleDelayMs) * time.Millisecond,
			LandmarkSelector:  cfg.Session.LandmarkSelector,
			LandmarkTimeout:   time.Duration(cfg.Session.LandmarkTimeoutMs) * time.Millisecond,
			ViewportWidth:     int64(cfg.Session.ViewportWidth),
			ViewportHeight:    int64(cfg.Session.ViewportHeight),
		}, logger.Named("session"))
	} else {
		sessions = session.NewStatic(cfg.HTTP.FallbackSession)
	}

	retryPolicy := backoff.Policy{
		Base: time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		Max:  time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
	}
	controller := paginate.New(apiClient, paginate.Config{
		BatchSize:      cfg.Scraper.BatchSize,
		RetryAttempts:  cfg.Scraper.RetryAttempts,
		FailureCeiling: cfg.Scraper.FailureCeiling,
		PageDelay: backoff.Range{
			Min: time.Duration(cfg.Scraper.PageDelayMinMs) * time.Millisecond,
			Max: time.Duration(cfg.Scraper.PageDelayMaxMs) * time.Millisecond,
		},
		RetryPolicy: retryPolicy,
	}, logger.Named("paginate"))
	batcher := enrich.New(apiClient, enrich.Config{
		Concurrency: cfg.Scraper.DetailConcurrency,
		GroupDelay: backoff.Range{
			Min: time.Duration(cfg.Scraper.GroupDelayMinMs) * time.Millisecond,
			Max: time.Duration(cfg.Scraper.GroupDelayMaxMs) * time.Millisecond,
		},
	}, logger.Named("enrich"))

	archiver, err := buildArchiver(ctx, cfg)
	if err != nil {
		logger.Fatal("archive init failed", zap.Error(err))
	}

	pipe := pipeline.New(
		sessions,
		apiClient,
		apiClient,
		controller,
		batcher,
		mapper.New(cfg.Scraper.Source),
		archiver,
		pipeline.Config{
			BaseURL:       cfg.Scraper.BaseURL,
			Presets:       cfg.Presets,
			ArchivePrefix: cfg.Archive.Prefix,
		},
		logger.Named("pipeline"),
	)

	var sink catalog.RecordSink
	if cfg.Sink.Driver == "postgres" {
		pgSink, err := sinkPostgres.NewRecordSink(ctx, sinkPostgres.Config{
			DSN:             cfg.Sink.DSN,
			Table:           cfg.Sink.Table,
			MaxConns:        cfg.Sink.MaxConns,
			MinConns:        cfg.Sink.MinConns,
			MaxConnLifetime: time.Duration(cfg.Sink.MaxConnLifetime) * time.Second,
		})
		if err != nil {
			logger.Fatal("sink init failed", zap.Error(err))
		}
		defer pgSink.Close()
		sink = pgSink
	} else {
		sink = sinkMemory.NewRecordSink()
	}

	var (
		publisher catalog.Publisher
		topic     string
	)
	if cfg.PubSub.Enabled {
		psClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub init failed", zap.Error(err))
		}
		defer psClient.Close()
		psTopic := psClient.Topic(cfg.PubSub.TopicName)
		pub := pubsubpublisher.New(psTopic)
		defer pub.Stop()
		publisher = pub
		topic = cfg.PubSub.TopicName
	} else {
		publisher = memorypublisher.New()
	}

	jobStore := memoryStorage.NewJobStore()
	queue := queueMemory.NewQueue(cfg.Scraper.QueueDepth)
	clock := system.New()
	idGen := uuid.New()

	workerCfg := worker.Config{
		Topic:  topic,
		Source: cfg.Scraper.Source,
	}
	var workers []*worker.Worker
	for i := 0; i < cfg.Scraper.Workers; i++ {
		workers = append(workers, worker.New(
			queue,
			jobStore,
			pipe,
			sink,
			publisher,
			clock,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	apiServer := api.NewServer(jobStore, dispatch, idGen, clock, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Scraper.Workers))
		dispatch.Run(ctx)
	}()

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
	queue.Close()
	logger.Info("shutdown complete")
}

func buildArchiver(ctx context.Context, cfg config.Config) (catalog.Archiver, error) {
	switch cfg.Archive.Driver {
	case "", "none":
		return nil, nil
	case "memory":
		return memoryStorage.NewBlobStore(), nil
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local archive: %w", err)
		}
		return store, nil
	case "gcs":
		gcsClient, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		store, err := gcs.New(gcsClient, gcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs archive: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Archive.Driver)
	}
}
