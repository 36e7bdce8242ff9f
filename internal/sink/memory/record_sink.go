// Package memory provides an in-memory record sink for development/testing.
package memory

import (
	"context"
	"sync"

	"github.com/oemdirect/catalog-scraper/internal/catalog"
)

type recordKey struct {
	partNumber string
	source     string
}

// RecordSink keeps canonical records in a map keyed on (part_number, source),
// mirroring the Postgres upsert semantics.
type RecordSink struct {
	mu      sync.RWMutex
	records map[recordKey]catalog.CanonicalRecord
}

// NewRecordSink constructs a RecordSink.
func NewRecordSink() *RecordSink {
	return &RecordSink{records: make(map[recordKey]catalog.CanonicalRecord)}
}

// UpsertBatch inserts or replaces records. Records without a part number are
// counted as failed, matching the durable sink.
func (s *RecordSink) UpsertBatch(_ context.Context, records []catalog.CanonicalRecord, source string) (catalog.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := catalog.UpsertResult{Total: len(records)}
	for _, rec := range records {
		if rec.PartNumber == "" {
			result.Failed++
			result.Errors = append(result.Errors, "record without part_number skipped")
			continue
		}
		src := source
		if src == "" {
			src = rec.Source
		}
		key := recordKey{partNumber: rec.PartNumber, source: src}
		if _, exists := s.records[key]; exists {
			result.Updated++
		} else {
			result.Created++
		}
		s.records[key] = rec
	}
	return result, nil
}

// Get returns the stored record for a key, if present.
func (s *RecordSink) Get(partNumber, source string) (catalog.CanonicalRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordKey{partNumber: partNumber, source: source}]
	return rec, ok
}

// Len reports the number of stored records.
func (s *RecordSink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
