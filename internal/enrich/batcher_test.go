package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oemdirect/catalog-scraper/internal/backoff"
	"github.com/oemdirect/catalog-scraper/internal/catalog"
)

type fakeDetailFetcher struct {
	mu       sync.Mutex
	inflight int
	peak     int
	calls    []string
	failIDs  map[string]bool
}

func (f *fakeDetailFetcher) FetchDetail(_ context.Context, itemID string) (catalog.DetailPayload, error) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	f.calls = append(f.calls, itemID)
	fail := f.failIDs[itemID]
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()

	if fail {
		return nil, errors.New("detail unavailable")
	}
	return catalog.DetailPayload{"oem": "X-" + itemID}, nil
}

func items(n int) []catalog.RawItem {
	out := make([]catalog.RawItem, n)
	for i := range out {
		out[i] = catalog.RawItem{"id": fmt.Sprintf("p-%d", i), "name": fmt.Sprintf("part %d", i)}
	}
	return out
}

func TestEnrichMergesDetails(t *testing.T) {
	t.Parallel()

	fetcher := &fakeDetailFetcher{}
	b := New(fetcher, Config{Concurrency: 3}, nil)

	in := items(7)
	out := b.Enrich(context.Background(), in)

	require.Len(t, out, len(in))
	for i, item := range out {
		require.Equal(t, in[i]["id"], item["id"])
		details, ok := item["details"].(map[string]any)
		require.True(t, ok, "item %d missing details", i)
		require.Equal(t, "X-"+in[i]["id"].(string), details["oem"])
	}
}

func TestEnrichBoundsConcurrency(t *testing.T) {
	t.Parallel()

	fetcher := &fakeDetailFetcher{}
	b := New(fetcher, Config{Concurrency: 4}, nil)

	b.Enrich(context.Background(), items(20))
	require.LessOrEqual(t, fetcher.peak, 4)
	require.Len(t, fetcher.calls, 20)
}

func TestEnrichFailureDegradesToOriginal(t *testing.T) {
	t.Parallel()

	fetcher := &fakeDetailFetcher{failIDs: map[string]bool{"p-1": true, "p-3": true}}
	b := New(fetcher, Config{Concurrency: 2}, nil)

	in := items(5)
	out := b.Enrich(context.Background(), in)

	require.Len(t, out, 5)
	for i, item := range out {
		id := in[i]["id"].(string)
		if fetcher.failIDs[id] {
			_, hasDetails := item["details"]
			require.False(t, hasDetails)
			// The original item comes through untouched.
			require.Equal(t, in[i], item)
		} else {
			require.Contains(t, item, "details")
		}
	}
}

func TestEnrichDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	fetcher := &fakeDetailFetcher{}
	b := New(fetcher, Config{Concurrency: 2}, nil)

	in := items(3)
	b.Enrich(context.Background(), in)
	for _, item := range in {
		require.NotContains(t, item, "details")
	}
}

func TestEnrichSkipsItemsWithoutID(t *testing.T) {
	t.Parallel()

	fetcher := &fakeDetailFetcher{}
	b := New(fetcher, Config{Concurrency: 2}, nil)

	in := []catalog.RawItem{
		{"name": "mystery part"},
		{"id": "p-0"},
	}
	out := b.Enrich(context.Background(), in)

	require.Len(t, out, 2)
	require.NotContains(t, out[0], "details")
	require.Contains(t, out[1], "details")
	require.Equal(t, []string{"p-0"}, fetcher.calls)
}

func TestEnrichNumericID(t *testing.T) {
	t.Parallel()

	fetcher := &fakeDetailFetcher{}
	b := New(fetcher, Config{Concurrency: 1}, nil)

	out := b.Enrich(context.Background(), []catalog.RawItem{{"id": float64(8821)}})
	require.Contains(t, out[0], "details")
	require.Equal(t, []string{"8821"}, fetcher.calls)
}

func TestEnrichEmptyInput(t *testing.T) {
	t.Parallel()

	b := New(&fakeDetailFetcher{}, Config{Concurrency: 2, GroupDelay: backoff.Range{Max: time.Millisecond}}, nil)
	out := b.Enrich(context.Background(), nil)
	require.Empty(t, out)
}
