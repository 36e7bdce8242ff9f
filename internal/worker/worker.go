// Package worker implements the scrape job execution loop.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oemdirect/catalog-scraper/internal/catalog"
	"github.com/oemdirect/catalog-scraper/internal/metrics"
)

// Config controls Worker behavior.
type Config struct {
	// Topic is the completion-event topic; empty disables publishing.
	Topic string
	// Source tags upserted records with their upstream origin.
	Source string
}

// Worker consumes queue items and executes the scrape pipeline for each.
type Worker struct {
	queue     catalog.Queue
	jobStore  catalog.JobStore
	scraper   catalog.Scraper
	sink      catalog.RecordSink
	publisher catalog.Publisher
	clock     catalog.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue catalog.Queue,
	jobStore catalog.JobStore,
	scraper catalog.Scraper,
	sink catalog.RecordSink,
	publisher catalog.Publisher,
	clock catalog.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		jobStore:  jobStore,
		scraper:   scraper,
		sink:      sink,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item catalog.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, catalog.JobStatusRunning, "", 0); err != nil {
		w.logger.Error("update job status failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}

	opts := catalog.ScrapeOptions{
		MaxItems:      item.Request.MaxProducts,
		FetchDetails:  item.Request.FetchDetails,
		UsePresetURLs: item.Request.UsePresetURLs,
	}

	records, err := w.scraper.Scrape(ctx, item.Request.Inputs, opts)
	if err != nil {
		w.finishJob(ctx, item.JobID, catalog.JobStatusFailed, fmt.Sprintf("scrape: %v", err), 0)
		return
	}

	result, err := w.sink.UpsertBatch(ctx, records, w.cfg.Source)
	if err != nil {
		w.finishJob(ctx, item.JobID, catalog.JobStatusFailed, fmt.Sprintf("upsert: %v", err), len(records))
		return
	}
	w.logger.Info("job persisted",
		zap.String("job_id", item.JobID),
		zap.Int("records", len(records)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
	)

	w.publishCompletion(ctx, item.JobID, len(records), result)
	w.finishJob(ctx, item.JobID, catalog.JobStatusCompleted, "", len(records))
}

func (w *Worker) finishJob(ctx context.Context, jobID string, status catalog.JobStatus, errText string, itemsScraped int) {
	metrics.ObserveJob(string(status))
	if errText != "" {
		w.logger.Error("job failed", zap.String("job_id", jobID), zap.String("reason", errText))
	}
	if err := w.jobStore.UpdateJobStatus(ctx, jobID, status, errText, itemsScraped); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// publishCompletion emits the completion event. Best-effort: a publish
// failure does not fail the job, the records are already persisted.
func (w *Worker) publishCompletion(ctx context.Context, jobID string, itemsScraped int, result catalog.UpsertResult) {
	if w.cfg.Topic == "" || w.publisher == nil {
		return
	}
	payload := map[string]any{
		"job_id":        jobID,
		"items_scraped": itemsScraped,
		"created":       result.Created,
		"updated":       result.Updated,
		"failed":        result.Failed,
		"timestamp":     w.now().Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, payload); err != nil {
		w.logger.Warn("completion event publish failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	w.logger.Info("completion event published", zap.String("job_id", jobID), zap.Int("items_scraped", itemsScraped))
}

func (w *Worker) now() time.Time {
	if w.clock != nil {
		return w.clock.Now()
	}
	return time.Now().UTC()
}
