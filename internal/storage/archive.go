package storage

import (
	"log/slog"
	"time"

	"github.com/dgnsrekt/authscope/internal/store"
	"github.com/dgnsrekt/authscope/internal/types"
)

// ArchiveRecord is one JSONL line in the request archive.
type ArchiveRecord struct {
	ArchivedAt time.Time            `json:"archived_at"`
	SessionID  string               `json:"session_id"`
	Created    bool                 `json:"created"`
	Request    types.TrackedRequest `json:"request"`
}

// Archiver appends every new or changed tracked request to a per-host JSONL file.
type Archiver struct {
	registry  *WriterRegistry
	sessionID string
}

func NewArchiver(registry *WriterRegistry, sessionID string) *Archiver {
	return &Archiver{registry: registry, sessionID: sessionID}
}

// Observe is a store observer. Clears and upserts that changed nothing are
// not archived.
func (a *Archiver) Observe(ev store.Event) {
	if ev.Kind != store.EventIngested || ev.Request == nil || !ev.Changed {
		return
	}

	rec := ArchiveRecord{
		ArchivedAt: time.Now().UTC(),
		SessionID:  a.sessionID,
		Created:    ev.Created,
		Request:    *ev.Request,
	}
	writer := a.registry.GetWriter(HostSegment(ev.Request.URL))
	if err := writer.Write(rec); err != nil {
		slog.Error("Failed to archive request", "request_id", ev.Request.ID, "error", err)
	}
}

// Close flushes and closes all archive files.
func (a *Archiver) Close() error {
	return a.registry.Close()
}
