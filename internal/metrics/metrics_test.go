package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
	require.NotNil(t, scraperPagesTotal)
	require.NotNil(t, scraperJobsTotal)
}

func TestObserveHelpersDoNotPanic(t *testing.T) {
	ObservePage("ok")
	ObservePage("error")
	ObserveItemsScraped(12)
	ObserveItemsScraped(0)
	ObserveDetailFailure()
	ObserveJob("completed")
	ObserveUpserts(3, 2, 1)
	IncActiveWorkers()
	DecActiveWorkers()
	ObserveHTTPRequest(http.MethodGet, "/v1/scrapes", 200, 10*time.Millisecond)
}

func TestHandlerServesMetrics(t *testing.T) {
	ObserveJob("completed")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "scraper_jobs_total")
}
