package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dgnsrekt/authscope/internal/store"
	"github.com/dgnsrekt/authscope/internal/types"
)

// trackedStore is read at scrape time by TrackedRequests.
var trackedStore atomic.Pointer[store.Store]

// TrackStore makes TrackedRequests report the size of s.
func TrackStore(s *store.Store) {
	trackedStore.Store(s)
}

var (
	RequestsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authscope_requests_ingested_total",
		Help: "Captured requests carrying an Authorization header, by source and whether they were new",
	}, []string{"source", "created"})

	RequestsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authscope_requests_skipped_total",
		Help: "Captured requests without an Authorization header",
	}, []string{"source"})

	StoreClears = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authscope_store_clears_total",
		Help: "Number of times the request store was cleared",
	})

	TrackedRequests = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "authscope_tracked_requests",
		Help: "Requests currently held in the store",
	}, func() float64 {
		if s := trackedStore.Load(); s != nil {
			return float64(s.Size())
		}
		return 0
	})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authscope_http_request_duration_seconds",
		Help:    "API request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// ObserveStore records a store mutation.
func ObserveStore(ev store.Event) {
	switch ev.Kind {
	case store.EventIngested:
		created := "false"
		if ev.Created {
			created = "true"
		}
		RequestsIngested.WithLabelValues(sourceLabel(ev.Request.Source), created).Inc()
	case store.EventCleared:
		StoreClears.Inc()
	}
}

// CountingIngester forwards captures to a store and counts the ones it skips.
type CountingIngester struct {
	Store *store.Store
}

func (c CountingIngester) Ingest(rec types.CapturedRequest) bool {
	kept := c.Store.Ingest(rec)
	if !kept {
		RequestsSkipped.WithLabelValues(sourceLabel(rec.Source)).Inc()
	}
	return kept
}

func (c CountingIngester) IngestBatch(recs []types.CapturedRequest) int {
	kept := 0
	for _, rec := range recs {
		if c.Ingest(rec) {
			kept++
		}
	}
	return kept
}

func sourceLabel(source string) string {
	if source == "" {
		return "unknown"
	}
	return source
}
