// Package enrich merges per-item detail payloads into raw listings with
// bounded concurrency.
package enrich

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oemdirect/catalog-scraper/internal/backoff"
	"github.com/oemdirect/catalog-scraper/internal/catalog"
	"github.com/oemdirect/catalog-scraper/internal/metrics"
)

// Config controls batching behavior.
type Config struct {
	// Concurrency is the group size: detail calls issued in parallel.
	Concurrency int
	// GroupDelay paces between successive groups.
	GroupDelay backoff.Range
}

// Batcher fans out detail calls in fixed-size groups. Enrichment is
// best-effort: an item whose detail call fails passes through unchanged.
type Batcher struct {
	fetcher catalog.DetailFetcher
	cfg     Config
	logger  *zap.Logger
}

// New builds a Batcher.
func New(fetcher catalog.DetailFetcher, cfg Config, logger *zap.Logger) *Batcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batcher{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Enrich returns one output item per input item. Order within a group is
// not guaranteed by the upstream calls, but each slot is written exactly
// once after its own call completes, so input order is preserved here.
func (b *Batcher) Enrich(ctx context.Context, items []catalog.RawItem) []catalog.RawItem {
	out := make([]catalog.RawItem, len(items))

	for start := 0; start < len(items); start += b.cfg.Concurrency {
		end := start + b.cfg.Concurrency
		if end > len(items) {
			end = len(items)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			idx := i
			g.Go(func() error {
				out[idx] = b.enrichOne(gctx, items[idx])
				return nil
			})
		}
		// Goroutines never return errors; Wait is a pure join.
		_ = g.Wait()

		if end < len(items) {
			if err := backoff.Pace(ctx, b.cfg.GroupDelay); err != nil {
				// Canceled mid-batch: pass the rest through un-enriched.
				copy(out[end:], items[end:])
				break
			}
		}
	}
	return out
}

func (b *Batcher) enrichOne(ctx context.Context, item catalog.RawItem) catalog.RawItem {
	id := itemID(item)
	if id == "" {
		return item
	}
	detail, err := b.fetcher.FetchDetail(ctx, id)
	if err != nil {
		metrics.ObserveDetailFailure()
		b.logger.Debug("detail fetch failed, keeping summary item",
			zap.String("item_id", id),
			zap.Error(err),
		)
		return item
	}

	merged := make(catalog.RawItem, len(item)+1)
	for k, v := range item {
		merged[k] = v
	}
	merged["details"] = map[string]any(detail)
	return merged
}

// itemID pulls the upstream identifier from the unstable item shape.
func itemID(item catalog.RawItem) string {
	for _, key := range []string{"id", "itemId", "partNumber"} {
		switch v := item[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
