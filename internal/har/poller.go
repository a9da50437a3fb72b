package har

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgnsrekt/authscope/internal/types"
)

// BatchIngester accepts a full capture snapshot.
type BatchIngester interface {
	IngestBatch(recs []types.CapturedRequest) int
}

// Poller re-reads a HAR file on an interval and hands every snapshot to an
// ingester. The store de-duplicates by request identity and reports
// unchanged entries as such, so observers see each entry once per change.
type Poller struct {
	path     string
	interval time.Duration
	sink     BatchIngester
	load     func(string) ([]types.CapturedRequest, error)
}

func NewPoller(path string, interval time.Duration, sink BatchIngester) *Poller {
	return &Poller{path: path, interval: interval, sink: sink, load: Load}
}

// Refresh loads the file once and ingests it.
func (p *Poller) Refresh() (int, error) {
	recs, err := p.load(p.path)
	if err != nil {
		return 0, err
	}
	kept := p.sink.IngestBatch(recs)
	slog.Debug("HAR refreshed", "path", p.path, "entries", len(recs), "tracked", kept)
	return kept, nil
}

// Run refreshes immediately and then on every tick until ctx is done.
// Load errors are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) {
	if _, err := p.Refresh(); err != nil {
		slog.Warn("HAR refresh failed", "path", p.path, "error", err)
	}
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.Refresh(); err != nil {
				slog.Warn("HAR refresh failed", "path", p.path, "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
