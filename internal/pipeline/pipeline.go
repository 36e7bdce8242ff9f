// Package pipeline composes session acquisition, pagination, enrichment,
// and normalization into one scrape run.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oemdirect/catalog-scraper/internal/catalog"
	"github.com/oemdirect/catalog-scraper/internal/enrich"
	"github.com/oemdirect/catalog-scraper/internal/mapper"
	"github.com/oemdirect/catalog-scraper/internal/metrics"
	"github.com/oemdirect/catalog-scraper/internal/paginate"
)

// SessionSink receives the cookie header acquired for a run; the catalog
// client implements it.
type SessionSink interface {
	SetSession(token string)
}

// Config controls orchestration.
type Config struct {
	BaseURL string
	// Presets maps names to literal URL templates, selected by
	// UsePresetURLs.
	Presets map[string]string
	// ArchivePrefix prefixes raw payload archive object paths.
	ArchivePrefix string
}

// Pipeline runs the scrape end to end for a set of inputs.
type Pipeline struct {
	session   catalog.SessionProvider
	sessions  SessionSink
	counts    catalog.CountsFetcher
	collector *paginate.Controller
	batcher   *enrich.Batcher
	mapper    *mapper.Mapper
	archiver  catalog.Archiver
	cfg       Config
	logger    *zap.Logger
}

// New builds a Pipeline. archiver may be nil to disable raw payload
// archival.
func New(
	session catalog.SessionProvider,
	sessions SessionSink,
	counts catalog.CountsFetcher,
	collector *paginate.Controller,
	batcher *enrich.Batcher,
	m *mapper.Mapper,
	archiver catalog.Archiver,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		session:   session,
		sessions:  sessions,
		counts:    counts,
		collector: collector,
		batcher:   batcher,
		mapper:    m,
		archiver:  archiver,
		cfg:       cfg,
		logger:    logger,
	}
}

// Scrape collects, enriches, and maps items for each input under the
// MaxItems budget. A single input's total failure is logged and skipped;
// the run fails outright only when both session acquisition and the
// connectivity probe fail.
func (p *Pipeline) Scrape(ctx context.Context, inputs []string, opts catalog.ScrapeOptions) ([]catalog.CanonicalRecord, error) {
	sessionErr := p.establishSession(ctx)
	if err := p.probe(ctx, inputs, opts, sessionErr); err != nil {
		return nil, err
	}

	var raw []catalog.RawItem
	for _, input := range inputs {
		budget := remainingBudget(opts.MaxItems, len(raw))
		if budget == 0 {
			break
		}

		items, err := p.collectInput(ctx, input, budget, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("scrape canceled: %w", ctx.Err())
			}
			p.logger.Warn("input collection failed, skipping",
				zap.String("input", input),
				zap.Error(err),
			)
			continue
		}

		if opts.FetchDetails && p.batcher != nil {
			items = p.batcher.Enrich(ctx, items)
		}
		p.archive(ctx, input, items)
		raw = append(raw, items...)
	}

	records := make([]catalog.CanonicalRecord, 0, len(raw))
	for _, item := range raw {
		if rec := p.mapper.ToCanonical(item); rec != nil {
			records = append(records, *rec)
		}
	}
	metrics.ObserveItemsScraped(len(records))
	return records, nil
}

// establishSession acquires a fresh cookie once per run. Failure is
// non-fatal; the client keeps its configured fallback.
func (p *Pipeline) establishSession(ctx context.Context) error {
	if p.session == nil {
		return nil
	}
	token, err := p.session.Acquire(ctx, p.cfg.BaseURL)
	if err != nil {
		p.logger.Warn("session acquisition failed, using fallback credential", zap.Error(err))
		return err
	}
	if p.sessions != nil {
		p.sessions.SetSession(token)
	}
	return nil
}

// probe issues one counts call against the first category input. When both
// the session and the probe fail the upstream is unreachable and the run
// stops before paginating.
func (p *Pipeline) probe(ctx context.Context, inputs []string, opts catalog.ScrapeOptions, sessionErr error) error {
	if p.counts == nil || opts.UsePresetURLs {
		return nil
	}
	var category string
	for _, input := range inputs {
		if !isURL(input) {
			category = input
			break
		}
	}
	if category == "" {
		return nil
	}

	total, err := p.counts.FetchCounts(ctx, category)
	if err != nil {
		if sessionErr != nil {
			return fmt.Errorf("session acquisition and connectivity probe both failed: %w", err)
		}
		p.logger.Warn("connectivity probe failed", zap.String("category", category), zap.Error(err))
		return nil
	}
	p.logger.Info("connectivity probe ok", zap.String("category", category), zap.Int("total", total))
	return nil
}

func (p *Pipeline) collectInput(ctx context.Context, input string, budget int, opts catalog.ScrapeOptions) ([]catalog.RawItem, error) {
	switch {
	case opts.UsePresetURLs:
		template, ok := p.cfg.Presets[input]
		if !ok {
			return nil, fmt.Errorf("unknown preset %q", input)
		}
		return p.collector.CollectURL(ctx, template, budget)
	case isURL(input):
		return p.collector.CollectURL(ctx, input, budget)
	default:
		return p.collector.CollectCategory(ctx, input, budget)
	}
}

// archive writes the collected raw batch for provenance. Best-effort.
func (p *Pipeline) archive(ctx context.Context, input string, items []catalog.RawItem) {
	if p.archiver == nil || len(items) == 0 {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		p.logger.Warn("archive marshal failed", zap.Error(err))
		return
	}
	path := fmt.Sprintf("%s/%s/%d.json", strings.Trim(p.cfg.ArchivePrefix, "/"), sanitizeInput(input), time.Now().UTC().UnixMilli())
	if _, err := p.archiver.PutObject(ctx, path, "application/json", data); err != nil {
		p.logger.Warn("raw payload archive failed", zap.String("input", input), zap.Error(err))
	}
}

func remainingBudget(maxItems, collected int) int {
	if maxItems < 0 {
		return catalog.Unlimited
	}
	budget := maxItems - collected
	if budget < 0 {
		return 0
	}
	return budget
}

func isURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

func sanitizeInput(input string) string {
	replacer := strings.NewReplacer("https://", "", "http://", "", "/", "_", "?", "_", "&", "_", "=", "_")
	return replacer.Replace(input)
}
