package inspect

import (
	"context"
	"time"

	"github.com/dgnsrekt/authscope/internal/store"
	"github.com/dgnsrekt/authscope/internal/tokens"
	"github.com/dgnsrekt/authscope/internal/types"
)

// BatchIngester accepts imported captures.
type BatchIngester interface {
	IngestBatch(recs []types.CapturedRequest) int
}

// Service is the read/write surface the API and CLI use on top of a Store.
type Service struct {
	store  *store.Store
	ingest BatchIngester
	tabs   func() []types.TabInfo
	now    func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithIngester routes imports through in instead of the store directly.
func WithIngester(in BatchIngester) ServiceOption {
	return func(s *Service) { s.ingest = in }
}

// WithTabs sets the source of attached browser tabs.
func WithTabs(fn func() []types.TabInfo) ServiceOption {
	return func(s *Service) { s.tabs = fn }
}

// NewService wraps st.
func NewService(st *store.Store, opts ...ServiceOption) *Service {
	s := &Service{store: st, ingest: st, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListRequests renders every tracked request, most recent first.
func (s *Service) ListRequests(_ context.Context) ([]RequestView, error) {
	return BuildAll(s.store.List(), s.now()), nil
}

// GetRequest renders a single request including its request headers.
func (s *Service) GetRequest(_ context.Context, id string) (RequestView, error) {
	req, ok := s.store.Get(id)
	if !ok {
		return RequestView{}, ErrNotFound
	}
	return Build(req, s.now(), true), nil
}

// ClearRequests empties the store.
func (s *Service) ClearRequests(_ context.Context) error {
	s.store.Clear()
	return nil
}

// Stats returns the store counters.
func (s *Service) Stats(_ context.Context) (store.Stats, error) {
	return s.store.Stats(), nil
}

// Import ingests recs and returns how many carried an Authorization header.
func (s *Service) Import(_ context.Context, recs []types.CapturedRequest) (int, error) {
	return s.ingest.IngestBatch(recs), nil
}

// ListTabs returns the attached browser tabs, or none when not capturing
// from a browser.
func (s *Service) ListTabs(_ context.Context) ([]types.TabInfo, error) {
	if s.tabs == nil {
		return []types.TabInfo{}, nil
	}
	return s.tabs(), nil
}

// DecodeToken decodes an arbitrary Authorization value. Unlike BuildToken it
// surfaces *tokens.MalformedTokenError to the caller.
func (s *Service) DecodeToken(_ context.Context, value string) (TokenView, error) {
	raw := tokens.ExtractBearerToken(value)
	decoded, err := tokens.Decode(raw)
	if err != nil {
		return TokenView{}, err
	}
	decoded.Payload = tokens.AnnotateTimestampClaims(decoded.Payload)
	tv := TokenView{
		Raw:        raw,
		AuthHeader: value,
		IsJWT:      true,
		InspectURL: tokens.InspectURL(raw),
		Decoded:    decoded,
	}
	if summary, err := tokens.Summarize(raw); err == nil {
		tv.Summary = &summary
	}
	return tv, nil
}
