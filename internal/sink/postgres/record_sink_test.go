package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/oemdirect/catalog-scraper/internal/catalog"
)

func sampleRecord(partNumber string) catalog.CanonicalRecord {
	return catalog.CanonicalRecord{
		PartNumber:   partNumber,
		Name:         "Alternator",
		Price:        129.99,
		Currency:     "EUR",
		Manufacturer: "Bosch",
		Category:     "Electrical",
		InStock:      true,
		Condition:    "used",
		Source:       "oemdirect",
	}
}

// upsertAnyArgs matches the 16 positional arguments of the upsert query;
// pgxmock requires WithArgs for queries that carry arguments.
func upsertAnyArgs() []any {
	args := make([]any, 16)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func expectUpsert(mock pgxmock.PgxPoolIface, created bool) {
	mock.ExpectQuery("INSERT INTO catalog_records").
		WithArgs(upsertAnyArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"created"}).AddRow(created))
}

func TestUpsertBatchCreatedAndUpdated(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewRecordSinkWithPool(mock, "catalog_records")
	require.NoError(t, err)

	expectUpsert(mock, true)
	expectUpsert(mock, false)

	result, err := sink.UpsertBatch(context.Background(),
		[]catalog.CanonicalRecord{sampleRecord("ALT-1"), sampleRecord("ALT-2")}, "oemdirect")
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 1, result.Updated)
	require.Zero(t, result.Failed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatchReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewRecordSinkWithPool(mock, "catalog_records")
	require.NoError(t, err)

	// First run inserts, the replay only updates.
	expectUpsert(mock, true)
	expectUpsert(mock, false)

	batch := []catalog.CanonicalRecord{sampleRecord("ALT-1")}
	first, err := sink.UpsertBatch(context.Background(), batch, "oemdirect")
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	second, err := sink.UpsertBatch(context.Background(), batch, "oemdirect")
	require.NoError(t, err)
	require.Zero(t, second.Created)
	require.Equal(t, 1, second.Updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatchSkipsEmptyPartNumber(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewRecordSinkWithPool(mock, "catalog_records")
	require.NoError(t, err)

	expectUpsert(mock, true)

	result, err := sink.UpsertBatch(context.Background(),
		[]catalog.CanonicalRecord{sampleRecord(""), sampleRecord("ALT-1")}, "oemdirect")
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatchRowFailureDoesNotStopBatch(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewRecordSinkWithPool(mock, "catalog_records")
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO catalog_records").
		WithArgs(upsertAnyArgs()...).
		WillReturnError(errors.New("deadlock detected"))
	expectUpsert(mock, true)

	result, err := sink.UpsertBatch(context.Background(),
		[]catalog.CanonicalRecord{sampleRecord("ALT-1"), sampleRecord("ALT-2")}, "oemdirect")
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 1, result.Failed)
	require.Contains(t, result.Errors[0], "ALT-1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRecordSinkWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRecordSinkWithPool(nil, "catalog_records")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRecordSinkWithPool(mock, "bad;table")
	require.Error(t, err)

	sink, err := NewRecordSinkWithPool(mock, "")
	require.NoError(t, err)
	require.Equal(t, "catalog_records", sink.table)
}
