package catalog

import (
	"context"
	"time"
)

// SessionProvider obtains a cookie header string for the upstream site.
// An empty token with a non-nil error means acquisition failed; callers
// proceed with their configured fallback.
type SessionProvider interface {
	Acquire(ctx context.Context, baseURL string) (string, error)
}

// PageFetcher issues search-page calls against the upstream API.
type PageFetcher interface {
	FetchPage(ctx context.Context, category string, skip, take int) (Page, error)
	FetchPageURL(ctx context.Context, url string) (Page, error)
}

// DetailFetcher issues per-item detail calls.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, itemID string) (DetailPayload, error)
}

// CountsFetcher probes the authoritative item count for a category.
type CountsFetcher interface {
	FetchCounts(ctx context.Context, category string) (int, error)
}

// RecordSink persists canonical records with idempotent upsert semantics
// keyed on (part_number, source).
type RecordSink interface {
	UpsertBatch(ctx context.Context, records []CanonicalRecord, source string) (UpsertResult, error)
}

// JobStore persists job lifecycle metadata.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string, itemsScraped int) error
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// Queue provides enqueue/dequeue semantics for scrape jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Archiver writes raw payload blobs and returns a URI.
type Archiver interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Scraper runs the full pipeline for a set of inputs.
type Scraper interface {
	Scrape(ctx context.Context, inputs []string, opts ScrapeOptions) ([]CanonicalRecord, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
