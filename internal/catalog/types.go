// Package catalog defines core types shared across subsystems.
package catalog

import "time"

// Unlimited disables the item budget when passed as a max-items value.
const Unlimited = -1

// RawItem is one upstream listing exactly as decoded from the wire. The
// upstream schema is unstable, so no fixed struct is imposed; fields may
// embed stringified JSON sub-documents.
type RawItem map[string]any

// DetailPayload is the opaque per-item detail document merged into a
// RawItem under the "details" key when enrichment succeeds.
type DetailPayload map[string]any

// Page is the decoded result of one search-page fetch. TotalCount is nil
// when the upstream response carries no authoritative total.
type Page struct {
	Items      []RawItem
	TotalCount *int
}

// PageCursor tracks pagination progress through a category or URL template.
// Skip increases monotonically in strides of Take.
type PageCursor struct {
	Skip    int
	Take    int
	HasMore bool
}

// CompatibilityEntry is one vehicle the part fits. Year keeps the upstream
// representation verbatim; upstream mixes numbers and ranges like "05-09".
type CompatibilityEntry struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  string `json:"year"`
	Trim  string `json:"trim,omitempty"`
}

// ImageRef is one product image reference.
type ImageRef struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// CanonicalRecord is the stable, storage-ready output schema. PartNumber
// plus Source uniquely identify a record for upsert purposes; a record with
// an empty PartNumber is still emitted but is not safely upsertable.
type CanonicalRecord struct {
	PartNumber     string               `json:"part_number"`
	Name           string               `json:"name"`
	Description    string               `json:"description,omitempty"`
	Price          float64              `json:"price"`
	Currency       string               `json:"currency"`
	Manufacturer   string               `json:"manufacturer,omitempty"`
	Category       string               `json:"category,omitempty"`
	Subcategory    string               `json:"subcategory,omitempty"`
	Compatibility  []CompatibilityEntry `json:"compatibility,omitempty"`
	Images         []ImageRef           `json:"images,omitempty"`
	Specifications map[string]string    `json:"specifications,omitempty"`
	InStock        bool                 `json:"in_stock"`
	Condition      string               `json:"condition"`
	Source         string               `json:"source"`
	Metadata       map[string]string    `json:"metadata,omitempty"`
	OtherParams    map[string]any       `json:"other_params,omitempty"`
}

// UpsertResult summarizes one sink batch. Total = Created + Updated + Failed.
type UpsertResult struct {
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// JobStatus represents the lifecycle state of a scrape job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ScrapeRequest captures per-job knobs requested by the client. Inputs are
// category names, literal URLs, or preset names when UsePresetURLs is set.
type ScrapeRequest struct {
	Inputs        []string `json:"inputs"`
	MaxProducts   int      `json:"max_products"`
	FetchDetails  bool     `json:"fetch_details"`
	UsePresetURLs bool     `json:"use_preset_urls"`
}

// Job is the metadata persisted for each submitted scrape request.
type Job struct {
	ID           string        `json:"id"`
	Status       JobStatus     `json:"status"`
	Request      ScrapeRequest `json:"request"`
	ItemsScraped int           `json:"items_scraped"`
	Submitted    time.Time     `json:"submitted_at"`
	StartTime    *time.Time    `json:"start_time,omitempty"`
	EndTime      *time.Time    `json:"end_time,omitempty"`
	DurationMs   int64         `json:"duration_ms"`
	ErrorText    string        `json:"error_text,omitempty"`
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	Request   ScrapeRequest
	Submitted int64
}

// ScrapeOptions configure one orchestrator run.
type ScrapeOptions struct {
	// MaxItems caps the total canonical records. Unlimited (-1) disables
	// the cap; zero means collect nothing.
	MaxItems      int
	FetchDetails  bool
	UsePresetURLs bool
}
