package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oemdirect/catalog-scraper/internal/catalog"
)

func TestUpsertBatchIdempotentReplay(t *testing.T) {
	t.Parallel()

	sink := NewRecordSink()
	batch := []catalog.CanonicalRecord{
		{PartNumber: "ALT-1", Name: "Alternator", Source: "oemdirect"},
		{PartNumber: "ALT-2", Name: "Alternator HD", Source: "oemdirect"},
	}

	first, err := sink.UpsertBatch(context.Background(), batch, "oemdirect")
	require.NoError(t, err)
	require.Equal(t, 2, first.Created)
	require.Zero(t, first.Updated)

	batch[0].Name = "Alternator (rev B)"
	second, err := sink.UpsertBatch(context.Background(), batch, "oemdirect")
	require.NoError(t, err)
	require.Zero(t, second.Created)
	require.Equal(t, 2, second.Updated)
	require.Equal(t, 2, sink.Len())

	stored, ok := sink.Get("ALT-1", "oemdirect")
	require.True(t, ok)
	require.Equal(t, "Alternator (rev B)", stored.Name)
}

func TestUpsertBatchEmptyPartNumberFails(t *testing.T) {
	t.Parallel()

	sink := NewRecordSink()
	result, err := sink.UpsertBatch(context.Background(),
		[]catalog.CanonicalRecord{{Name: "no key"}, {PartNumber: "ALT-1"}}, "oemdirect")
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, 1, sink.Len())
}

func TestUpsertBatchSourceSeparatesRecords(t *testing.T) {
	t.Parallel()

	sink := NewRecordSink()
	_, err := sink.UpsertBatch(context.Background(),
		[]catalog.CanonicalRecord{{PartNumber: "ALT-1"}}, "oemdirect")
	require.NoError(t, err)
	_, err = sink.UpsertBatch(context.Background(),
		[]catalog.CanonicalRecord{{PartNumber: "ALT-1"}}, "salvage-mirror")
	require.NoError(t, err)
	require.Equal(t, 2, sink.Len())
}
