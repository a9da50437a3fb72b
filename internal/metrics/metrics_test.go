package metrics

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dgnsrekt/authscope/internal/store"
	"github.com/dgnsrekt/authscope/internal/types"
)

func TestCountingIngesterAndObserver(t *testing.T) {
	s := store.New(store.WithObserver(ObserveStore))
	in := CountingIngester{Store: s}
	TrackStore(s)
	defer TrackStore(nil)

	skippedBefore := testutil.ToFloat64(RequestsSkipped.WithLabelValues("har"))
	createdBefore := testutil.ToFloat64(RequestsIngested.WithLabelValues("har", "true"))
	clearsBefore := testutil.ToFloat64(StoreClears)

	recs := []types.CapturedRequest{
		{Method: "GET", URL: "https://x/1", StartedAt: time.Unix(1, 0), Source: "har",
			Request: types.HTTPRequest{Headers: []types.Header{{Name: "Authorization", Value: "t"}}}},
		{Method: "GET", URL: "https://x/2", StartedAt: time.Unix(2, 0), Source: "har"},
	}
	if kept := in.IngestBatch(recs); kept != 1 {
		t.Fatalf("IngestBatch() = %d; want 1", kept)
	}

	if got := testutil.ToFloat64(RequestsSkipped.WithLabelValues("har")) - skippedBefore; got != 1 {
		t.Fatalf("skipped delta = %v; want 1", got)
	}
	if got := testutil.ToFloat64(RequestsIngested.WithLabelValues("har", "true")) - createdBefore; got != 1 {
		t.Fatalf("ingested delta = %v; want 1", got)
	}
	if got := testutil.ToFloat64(TrackedRequests); got != 1 {
		t.Fatalf("tracked gauge = %v; want 1", got)
	}

	s.Clear()
	if got := testutil.ToFloat64(StoreClears) - clearsBefore; got != 1 {
		t.Fatalf("clears delta = %v; want 1", got)
	}
	if got := testutil.ToFloat64(TrackedRequests); got != 0 {
		t.Fatalf("tracked gauge = %v; want 0", got)
	}
}

func TestTrackedRequestsReadsStoreAtScrape(t *testing.T) {
	s := store.New()
	TrackStore(s)
	defer TrackStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Ingest(types.CapturedRequest{
					Method:    "GET",
					URL:       "https://x/" + strconv.Itoa(i),
					StartedAt: time.Unix(int64(j), 0),
					Request:   types.HTTPRequest{Headers: []types.Header{{Name: "Authorization", Value: "t"}}},
				})
			}
		}(i)
	}
	wg.Wait()

	if got := testutil.ToFloat64(TrackedRequests); got != 400 {
		t.Fatalf("tracked gauge = %v; want 400", got)
	}
	TrackStore(nil)
	if got := testutil.ToFloat64(TrackedRequests); got != 0 {
		t.Fatalf("tracked gauge without store = %v; want 0", got)
	}
}
