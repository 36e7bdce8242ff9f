// Package postgres provides the Postgres-backed canonical record sink.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oemdirect/catalog-scraper/internal/catalog"
	"github.com/oemdirect/catalog-scraper/internal/metrics"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for record upserts.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryCloser interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RecordSink upserts canonical records keyed on (part_number, source). A
// replay of the same batch updates rows in place instead of duplicating them.
type RecordSink struct {
	pool  queryCloser
	table string
}

// NewRecordSink creates a Postgres-backed RecordSink using the provided config.
func NewRecordSink(ctx context.Context, cfg Config) (*RecordSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sink.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "catalog_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordSink{pool: pool, table: table}, nil
}

// NewRecordSinkWithPool constructs a sink from an existing pool (primarily for testing).
func NewRecordSinkWithPool(pool queryCloser, table string) (*RecordSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "catalog_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordSink{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RecordSink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertBatch persists one batch. Per-record failures are recorded and the
// rest of the batch proceeds; the returned error is non-nil only when the
// sink itself is unusable.
func (s *RecordSink) UpsertBatch(ctx context.Context, records []catalog.CanonicalRecord, source string) (catalog.UpsertResult, error) {
	if s == nil || s.pool == nil {
		return catalog.UpsertResult{}, fmt.Errorf("record sink is not configured")
	}

	result := catalog.UpsertResult{Total: len(records)}
	for _, rec := range records {
		if rec.PartNumber == "" {
			result.Failed++
			result.Errors = append(result.Errors, "record without part_number skipped")
			continue
		}
		created, err := s.upsertOne(ctx, rec, source)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.PartNumber, err))
			if ctx.Err() != nil {
				metrics.ObserveUpserts(result.Created, result.Updated, result.Failed)
				return result, fmt.Errorf("upsert batch canceled: %w", ctx.Err())
			}
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	metrics.ObserveUpserts(result.Created, result.Updated, result.Failed)
	return result, nil
}

// upsertOne inserts or updates a single row. The RETURNING clause reports
// whether the row was freshly inserted (xmax = 0) or updated in place.
func (s *RecordSink) upsertOne(ctx context.Context, rec catalog.CanonicalRecord, source string) (bool, error) {
	if source == "" {
		source = rec.Source
	}

	compatibility, err := json.Marshal(rec.Compatibility)
	if err != nil {
		return false, fmt.Errorf("marshal compatibility: %w", err)
	}
	images, err := json.Marshal(rec.Images)
	if err != nil {
		return false, fmt.Errorf("marshal images: %w", err)
	}
	specifications, err := json.Marshal(rec.Specifications)
	if err != nil {
		return false, fmt.Errorf("marshal specifications: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return false, fmt.Errorf("marshal metadata: %w", err)
	}
	otherParams, err := json.Marshal(rec.OtherParams)
	if err != nil {
		return false, fmt.Errorf("marshal other params: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	part_number,
	source,
	name,
	description,
	price,
	currency,
	manufacturer,
	category,
	subcategory,
	compatibility,
	images,
	specifications,
	in_stock,
	condition,
	metadata,
	other_params,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now()
)
ON CONFLICT (part_number, source) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	price = EXCLUDED.price,
	currency = EXCLUDED.currency,
	manufacturer = EXCLUDED.manufacturer,
	category = EXCLUDED.category,
	subcategory = EXCLUDED.subcategory,
	compatibility = EXCLUDED.compatibility,
	images = EXCLUDED.images,
	specifications = EXCLUDED.specifications,
	in_stock = EXCLUDED.in_stock,
	condition = EXCLUDED.condition,
	metadata = EXCLUDED.metadata,
	other_params = EXCLUDED.other_params,
	updated_at = now()
RETURNING (xmax = 0) AS created`, s.table)

	args := []any{
		rec.PartNumber,
		source,
		rec.Name,
		rec.Description,
		rec.Price,
		rec.Currency,
		rec.Manufacturer,
		rec.Category,
		rec.Subcategory,
		compatibility,
		images,
		specifications,
		rec.InStock,
		rec.Condition,
		metadata,
		otherParams,
	}

	var created bool
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&created); err != nil {
		return false, fmt.Errorf("upsert record: %w", err)
	}
	return created, nil
}
