package capture

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"

	"github.com/dgnsrekt/authscope/internal/types"
)

// Ingester receives capture records. Records without an Authorization header
// are expected to be ignored by the implementation.
type Ingester interface {
	Ingest(rec types.CapturedRequest) bool
}

type pendingRequest struct {
	rec  types.CapturedRequest
	seen time.Time
}

type pendingExtra struct {
	headers []types.Header
	seen    time.Time
}

// HTTPCapture correlates CDP Network events for a request into one
// CapturedRequest and re-ingests it as more of the exchange is observed.
type HTTPCapture struct {
	sink Ingester

	pending   map[string]*pendingRequest
	extra     map[string]pendingExtra // extra-info that arrived before requestWillBeSent
	pendingMu sync.Mutex

	staleAfter time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

func NewHTTPCapture(sink Ingester) *HTTPCapture {
	h := &HTTPCapture{
		sink:       sink,
		pending:    make(map[string]*pendingRequest),
		extra:      make(map[string]pendingExtra),
		staleAfter: 5 * time.Minute,
		done:       make(chan struct{}),
	}
	go h.cleanupLoop()
	return h
}

func (h *HTTPCapture) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *HTTPCapture) OnRequestWillBeSent(tabID string, ev *network.EventRequestWillBeSent) {
	if ev.Request == nil {
		return
	}
	key := pendingKey(tabID, string(ev.RequestID))

	h.pendingMu.Lock()
	var redirected *types.CapturedRequest
	if prev, ok := h.pending[key]; ok && ev.RedirectResponse != nil {
		// same request ID, new hop: close out the previous hop with its 3xx
		prev.rec.Response = responseFromCDP(ev.RedirectResponse)
		r := prev.rec
		redirected = &r
	}

	rec := types.CapturedRequest{
		Method:    ev.Request.Method,
		URL:       ev.Request.URL + ev.Request.URLFragment,
		StartedAt: wallTime(ev.WallTime),
		Source:    types.SourceCDP,
		TabID:     tabID,
		Request:   types.HTTPRequest{Headers: HeadersFromCDP(ev.Request.Headers)},
	}
	if extra, ok := h.extra[key]; ok {
		rec.Request.Headers = mergeHeaders(rec.Request.Headers, extra.headers)
		delete(h.extra, key)
	}
	h.pending[key] = &pendingRequest{rec: rec, seen: time.Now()}
	h.pendingMu.Unlock()

	if redirected != nil {
		h.sink.Ingest(*redirected)
	}
	h.sink.Ingest(rec)
}

// OnRequestWillBeSentExtraInfo merges the headers as sent on the wire, which
// include ones the page cannot see (cookies, some auth headers).
func (h *HTTPCapture) OnRequestWillBeSentExtraInfo(tabID string, ev *network.EventRequestWillBeSentExtraInfo) {
	key := pendingKey(tabID, string(ev.RequestID))
	headers := HeadersFromCDP(ev.Headers)

	h.pendingMu.Lock()
	pending, ok := h.pending[key]
	if !ok {
		h.extra[key] = pendingExtra{headers: headers, seen: time.Now()}
		h.pendingMu.Unlock()
		return
	}
	pending.rec.Request.Headers = mergeHeaders(pending.rec.Request.Headers, headers)
	rec := pending.rec
	h.pendingMu.Unlock()

	h.sink.Ingest(rec)
}

func (h *HTTPCapture) OnResponseReceived(tabID string, ev *network.EventResponseReceived) {
	key := pendingKey(tabID, string(ev.RequestID))

	h.pendingMu.Lock()
	pending, ok := h.pending[key]
	if ok {
		pending.rec.Response = responseFromCDP(ev.Response)
		if ev.Response != nil && ev.Response.Protocol != "" {
			pending.rec.Request.HTTPVersion = ev.Response.Protocol
		}
	}
	var rec types.CapturedRequest
	if ok {
		rec = pending.rec
	}
	h.pendingMu.Unlock()

	if ok {
		h.sink.Ingest(rec)
	}
}

func (h *HTTPCapture) OnLoadingFinished(tabID string, ev *network.EventLoadingFinished) {
	h.forget(pendingKey(tabID, string(ev.RequestID)))
}

// OnLoadingFailed drops correlation state. A request that failed before any
// response stays pending in the store, as browsers report it.
func (h *HTTPCapture) OnLoadingFailed(tabID string, ev *network.EventLoadingFailed) {
	slog.Debug("Request failed", "tab_id", tabID, "request_id", ev.RequestID, "error_text", ev.ErrorText, "canceled", ev.Canceled)
	h.forget(pendingKey(tabID, string(ev.RequestID)))
}

// PendingCount returns the number of requests still awaiting completion.
func (h *HTTPCapture) PendingCount() int {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	return len(h.pending)
}

func (h *HTTPCapture) forget(key string) {
	h.pendingMu.Lock()
	delete(h.pending, key)
	delete(h.extra, key)
	h.pendingMu.Unlock()
}

func (h *HTTPCapture) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.cleanupStale(time.Now())
		case <-h.done:
			return
		}
	}
}

func (h *HTTPCapture) cleanupStale(now time.Time) {
	threshold := now.Add(-h.staleAfter)

	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()

	for key, pending := range h.pending {
		if pending.seen.Before(threshold) {
			delete(h.pending, key)
		}
	}
	for key, extra := range h.extra {
		if extra.seen.Before(threshold) {
			delete(h.extra, key)
		}
	}
}

func pendingKey(tabID, requestID string) string {
	return tabID + "/" + requestID
}

func wallTime(t *cdp.TimeSinceEpoch) time.Time {
	if t == nil {
		return time.Now().UTC()
	}
	return t.Time().UTC()
}

func responseFromCDP(resp *network.Response) *types.HTTPResponse {
	if resp == nil {
		return nil
	}
	return &types.HTTPResponse{
		Status:     int(resp.Status),
		StatusText: resp.StatusText,
		Headers:    HeadersFromCDP(resp.Headers),
	}
}

// HeadersFromCDP converts a CDP header map into a slice ordered by
// lower-cased name. CDP folds repeated headers into one "\n"-joined value,
// which is kept as is.
func HeadersFromCDP(headers map[string]any) []types.Header {
	out := make([]types.Header, 0, len(headers))
	for k, v := range headers {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		out = append(out, types.Header{Name: k, Value: s})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// mergeHeaders overlays extra onto base by case-insensitive name.
func mergeHeaders(base, extra []types.Header) []types.Header {
	idx := make(map[string]int, len(base))
	out := make([]types.Header, len(base), len(base)+len(extra))
	copy(out, base)
	for i, h := range out {
		idx[strings.ToLower(h.Name)] = i
	}
	for _, h := range extra {
		if i, ok := idx[strings.ToLower(h.Name)]; ok {
			out[i] = h
			continue
		}
		idx[strings.ToLower(h.Name)] = len(out)
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
