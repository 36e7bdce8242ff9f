// Package paginate drives repeated search-page calls to assemble a complete
// or capped item set for one category or literal URL.
package paginate

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/oemdirect/catalog-scraper/internal/backoff"
	"github.com/oemdirect/catalog-scraper/internal/catalog"
	"github.com/oemdirect/catalog-scraper/internal/metrics"
	"github.com/oemdirect/catalog-scraper/internal/retry"
)

type collectState int

const (
	stateFetching collectState = iota
	stateDone
	stateAborted
)

// Config controls pagination behavior.
type Config struct {
	// BatchSize is the take value requested per page.
	BatchSize int
	// RetryAttempts bounds retries per page fetch.
	RetryAttempts int
	// FailureCeiling is the number of consecutive failed pages tolerated
	// before the loop aborts and returns what it has.
	FailureCeiling int
	// PageDelay paces between successive pages.
	PageDelay backoff.Range
	// RetryPolicy shapes the per-page retry delays and the backoff applied
	// after a failed page.
	RetryPolicy backoff.Policy
}

// Controller is the skip/take pagination state machine.
type Controller struct {
	fetcher catalog.PageFetcher
	cfg     Config
	logger  *zap.Logger
}

// New builds a Controller.
func New(fetcher catalog.PageFetcher, cfg Config, logger *zap.Logger) *Controller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.FailureCeiling <= 0 {
		cfg.FailureCeiling = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{fetcher: fetcher, cfg: cfg, logger: logger}
}

// CollectCategory pages through a named category until exhaustion, the item
// budget, or the failure ceiling.
func (c *Controller) CollectCategory(ctx context.Context, category string, maxItems int) ([]catalog.RawItem, error) {
	return c.collect(ctx, category, maxItems, func(ctx context.Context, skip, take int) (catalog.Page, error) {
		return c.fetcher.FetchPage(ctx, category, skip, take)
	})
}

// CollectURL pages through a literal URL template, substituting {skip} and
// {take} per iteration.
func (c *Controller) CollectURL(ctx context.Context, template string, maxItems int) ([]catalog.RawItem, error) {
	return c.collect(ctx, template, maxItems, func(ctx context.Context, skip, take int) (catalog.Page, error) {
		return c.fetcher.FetchPageURL(ctx, expandTemplate(template, skip, take))
	})
}

type pageFetchFunc func(ctx context.Context, skip, take int) (catalog.Page, error)

// collect runs the shared state machine. Hitting the failure ceiling is a
// designed partial-result outcome, not an error: whatever was collected is
// returned with a nil error.
func (c *Controller) collect(ctx context.Context, input string, maxItems int, fetch pageFetchFunc) ([]catalog.RawItem, error) {
	if maxItems == 0 {
		return nil, nil
	}

	var (
		collected       []catalog.RawItem
		cursor          = catalog.PageCursor{Skip: 0, HasMore: true}
		consecutiveErrs int
		state           = stateFetching
	)

	for state == stateFetching {
		if ctx.Err() != nil {
			return collected, ctx.Err()
		}

		take := c.cfg.BatchSize
		if maxItems > 0 && maxItems-len(collected) < take {
			take = maxItems - len(collected)
		}
		cursor.Take = take

		page, err := retry.Do(ctx, c.cfg.RetryAttempts, c.cfg.RetryPolicy,
			func(ctx context.Context) (catalog.Page, error) {
				return fetch(ctx, cursor.Skip, cursor.Take)
			})
		if err != nil {
			consecutiveErrs++
			metrics.ObservePage("error")
			c.logger.Warn("page fetch failed",
				zap.String("input", input),
				zap.Int("skip", cursor.Skip),
				zap.Int("consecutive_errors", consecutiveErrs),
				zap.Error(err),
			)
			if consecutiveErrs >= c.cfg.FailureCeiling {
				state = stateAborted
				break
			}
			if werr := backoff.Wait(ctx, c.cfg.RetryPolicy.Delay(consecutiveErrs)); werr != nil {
				return collected, werr
			}
			continue
		}
		consecutiveErrs = 0
		metrics.ObservePage("ok")

		if len(page.Items) == 0 {
			state = stateDone
			break
		}
		collected = append(collected, page.Items...)

		cursor.HasMore = hasMore(cursor, page)
		cursor.Skip += cursor.Take

		switch {
		case maxItems > 0 && len(collected) >= maxItems:
			collected = collected[:maxItems]
			state = stateDone
		case !cursor.HasMore:
			state = stateDone
		default:
			if werr := backoff.Pace(ctx, c.cfg.PageDelay); werr != nil {
				return collected, werr
			}
		}
	}

	if state == stateAborted {
		c.logger.Warn("pagination aborted at failure ceiling, returning partial results",
			zap.String("input", input),
			zap.Int("collected", len(collected)),
		)
	}
	return collected, nil
}

// hasMore derives continuation from the authoritative total when the
// response carries one, else from the page-was-full heuristic. The
// heuristic over-continues when a short final page happens to equal take;
// the extra fetch then returns an empty page and terminates the loop.
func hasMore(cursor catalog.PageCursor, page catalog.Page) bool {
	if page.TotalCount != nil {
		return cursor.Skip+cursor.Take < *page.TotalCount
	}
	return len(page.Items) == cursor.Take
}

func expandTemplate(template string, skip, take int) string {
	out := strings.ReplaceAll(template, "{skip}", strconv.Itoa(skip))
	return strings.ReplaceAll(out, "{take}", strconv.Itoa(take))
}
