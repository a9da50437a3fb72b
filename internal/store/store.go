// Package store keeps the set of captured requests that carried an
// Authorization header.
package store

import (
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/dgnsrekt/authscope/internal/types"
)

const authorizationHeader = "authorization"

// EventKind describes a store mutation.
type EventKind string

const (
	EventIngested EventKind = "ingested"
	EventCleared  EventKind = "cleared"
)

// Event is delivered to the observers after each mutation.
type Event struct {
	Kind    EventKind
	Request *types.TrackedRequest // set for EventIngested
	Created bool                  // false when an existing entry was overwritten
	Changed bool                  // false when an upsert left the entry as it was
	Size    int
}

// Stats mirrors what the request list shows in its header.
type Stats struct {
	Count       int       `json:"count"`
	LastUpdated time.Time `json:"last_updated,omitzero"`
}

type entry struct {
	req types.TrackedRequest
	seq uint64
}

// Store is the authoritative, de-duplicated set of tracked requests.
// All methods are safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	nextSeq     uint64
	lastUpdated time.Time

	observers []func(Event)
}

// Option configures a Store.
type Option func(*Store)

// WithObserver registers fn to be called after every mutation, in
// registration order. fn runs on the mutating goroutine, outside the store lock.
func WithObserver(fn func(Event)) Option {
	return func(s *Store) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{entries: make(map[string]*entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestID derives the identity of a capture from its method, URL and start time.
func RequestID(rec types.CapturedRequest) string {
	return rec.Method + "-" + rec.URL + "-" + types.ISOTimestamp(rec.StartedAt)
}

// Qualifies reports whether rec carries an Authorization header.
func Qualifies(rec types.CapturedRequest) bool {
	_, ok := types.FindHeader(rec.Request.Headers, authorizationHeader)
	return ok
}

// Ingest upserts rec if it carries an Authorization header and reports whether
// it was kept. Records without one are skipped silently.
func (s *Store) Ingest(rec types.CapturedRequest) bool {
	auth, ok := types.FindHeader(rec.Request.Headers, authorizationHeader)
	if !ok {
		return false
	}

	tracked := types.TrackedRequest{
		ID:         RequestID(rec),
		URL:        rec.URL,
		Method:     rec.Method,
		Timestamp:  rec.StartedAt,
		AuthHeader: auth.Value,
		Source:     rec.Source,
		Request:    rec.Request,
		Response:   rec.Response,
	}
	if rec.Response != nil {
		tracked.Status = rec.Response.Status
		tracked.StatusText = rec.Response.StatusText
	}

	s.mu.Lock()
	e, exists := s.entries[tracked.ID]
	changed := true
	if exists {
		changed = !sameRequest(e.req, tracked)
		e.req = tracked
	} else {
		s.nextSeq++
		s.entries[tracked.ID] = &entry{req: tracked, seq: s.nextSeq}
	}
	s.lastUpdated = time.Now()
	size := len(s.entries)
	s.mu.Unlock()

	s.notify(Event{Kind: EventIngested, Request: &tracked, Created: !exists, Changed: changed, Size: size})
	return true
}

// sameRequest compares two captures of one request. Timestamps compare by
// instant so a re-parsed zone does not count as a change.
func sameRequest(a, b types.TrackedRequest) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return false
	}
	b.Timestamp = a.Timestamp
	return reflect.DeepEqual(a, b)
}

// IngestBatch ingests recs in order and returns how many were kept.
func (s *Store) IngestBatch(recs []types.CapturedRequest) int {
	kept := 0
	for _, rec := range recs {
		if s.Ingest(rec) {
			kept++
		}
	}
	return kept
}

// List returns all tracked requests, most recent first. Requests with equal
// timestamps keep their insertion order.
func (s *Store) List() []types.TrackedRequest {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	out := make([]types.TrackedRequest, 0, len(entries))
	sort.Slice(entries, func(i, j int) bool {
		ti, tj := entries[i].req.Timestamp, entries[j].req.Timestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return entries[i].seq < entries[j].seq
	})
	for _, e := range entries {
		out = append(out, e.req)
	}
	s.mu.RUnlock()
	return out
}

// Get returns the tracked request with the given ID.
func (s *Store) Get(id string) (types.TrackedRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return types.TrackedRequest{}, false
	}
	return e.req, true
}

// Clear removes every tracked request.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.lastUpdated = time.Now()
	s.mu.Unlock()

	s.notify(Event{Kind: EventCleared})
}

// Size returns the number of tracked requests.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns the current count and the time of the last mutation.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Count: len(s.entries), LastUpdated: s.lastUpdated}
}

func (s *Store) notify(ev Event) {
	for _, fn := range s.observers {
		fn(ev)
	}
}
