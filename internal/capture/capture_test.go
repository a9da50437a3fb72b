package capture

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"

	"github.com/dgnsrekt/authscope/internal/store"
	"github.com/dgnsrekt/authscope/internal/types"
)

func wall(sec int64) *cdp.TimeSinceEpoch {
	t := cdp.TimeSinceEpoch(time.Unix(sec, 0))
	return &t
}

func newTestCapture(t *testing.T) (*HTTPCapture, *store.Store) {
	t.Helper()
	s := store.New()
	h := NewHTTPCapture(s)
	t.Cleanup(h.Close)
	return h, s
}

func TestHTTPCaptureRequestThenResponse(t *testing.T) {
	h, s := newTestCapture(t)

	h.OnRequestWillBeSent("tab1", &network.EventRequestWillBeSent{
		RequestID: "r1",
		WallTime:  wall(1700000000),
		Request: &network.Request{
			Method:  "GET",
			URL:     "https://api.example.com/me",
			Headers: network.Headers{"Authorization": "Bearer a.b.c", "Accept": "*/*"},
		},
	})

	list := s.List()
	if len(list) != 1 {
		t.Fatalf("Size() = %d; want 1", len(list))
	}
	if !list[0].Pending() {
		t.Fatalf("request should be pending before a response")
	}
	if list[0].AuthHeader != "Bearer a.b.c" {
		t.Fatalf("AuthHeader = %q", list[0].AuthHeader)
	}
	if got := list[0].Request.Headers[0].Name; got != "Accept" {
		t.Fatalf("headers not sorted, first = %q", got)
	}

	h.OnResponseReceived("tab1", &network.EventResponseReceived{
		RequestID: "r1",
		Response:  &network.Response{Status: 200, StatusText: "OK", Protocol: "h2"},
	})

	list = s.List()
	if len(list) != 1 {
		t.Fatalf("Size() after response = %d; want 1", len(list))
	}
	if list[0].Status != 200 || list[0].StatusText != "OK" {
		t.Fatalf("status = %d %q; want 200 OK", list[0].Status, list[0].StatusText)
	}
	if list[0].Request.HTTPVersion != "h2" {
		t.Fatalf("HTTPVersion = %q; want h2", list[0].Request.HTTPVersion)
	}

	h.OnLoadingFinished("tab1", &network.EventLoadingFinished{RequestID: "r1"})
	if h.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d; want 0", h.PendingCount())
	}
}

func TestHTTPCaptureExtraInfoAddsAuthorization(t *testing.T) {
	for _, extraFirst := range []bool{false, true} {
		h, s := newTestCapture(t)
		req := &network.EventRequestWillBeSent{
			RequestID: "r2",
			WallTime:  wall(1700000001),
			Request:   &network.Request{Method: "POST", URL: "https://api.example.com/x", Headers: network.Headers{"Content-Type": "application/json"}},
		}
		extra := &network.EventRequestWillBeSentExtraInfo{
			RequestID: "r2",
			Headers:   network.Headers{"authorization": "Bearer wire", "content-type": "application/json"},
		}

		if extraFirst {
			h.OnRequestWillBeSentExtraInfo("tab", extra)
			h.OnRequestWillBeSent("tab", req)
		} else {
			h.OnRequestWillBeSent("tab", req)
			if s.Size() != 0 {
				t.Fatalf("request without Authorization should be skipped")
			}
			h.OnRequestWillBeSentExtraInfo("tab", extra)
		}

		list := s.List()
		if len(list) != 1 {
			t.Fatalf("extraFirst=%v: Size() = %d; want 1", extraFirst, len(list))
		}
		if list[0].AuthHeader != "Bearer wire" {
			t.Fatalf("extraFirst=%v: AuthHeader = %q", extraFirst, list[0].AuthHeader)
		}
		if n := len(list[0].Request.Headers); n != 2 {
			t.Fatalf("extraFirst=%v: merged %d headers; want 2", extraFirst, n)
		}
	}
}

func TestHTTPCaptureRedirectKeepsBothHops(t *testing.T) {
	h, s := newTestCapture(t)
	auth := network.Headers{"Authorization": "Bearer t"}

	h.OnRequestWillBeSent("tab", &network.EventRequestWillBeSent{
		RequestID: "r3", WallTime: wall(1700000010),
		Request: &network.Request{Method: "GET", URL: "https://a.example.com/old", Headers: auth},
	})
	h.OnRequestWillBeSent("tab", &network.EventRequestWillBeSent{
		RequestID: "r3", WallTime: wall(1700000011),
		RedirectResponse: &network.Response{Status: 302, StatusText: "Found"},
		Request:          &network.Request{Method: "GET", URL: "https://a.example.com/new", Headers: auth},
	})

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("Size() = %d; want 2", len(list))
	}
	if list[0].URL != "https://a.example.com/new" || !list[0].Pending() {
		t.Fatalf("newest hop = %s pending=%v", list[0].URL, list[0].Pending())
	}
	if list[1].Status != 302 {
		t.Fatalf("redirected hop status = %d; want 302", list[1].Status)
	}
}

func TestHTTPCaptureFailedRequestStaysPending(t *testing.T) {
	h, s := newTestCapture(t)
	h.OnRequestWillBeSent("tab", &network.EventRequestWillBeSent{
		RequestID: "r4", WallTime: wall(1700000020),
		Request: &network.Request{Method: "GET", URL: "https://a.example.com/", Headers: network.Headers{"Authorization": "x"}},
	})
	h.OnLoadingFailed("tab", &network.EventLoadingFailed{RequestID: "r4", ErrorText: "net::ERR_FAILED"})

	if h.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d; want 0", h.PendingCount())
	}
	if !s.List()[0].Pending() {
		t.Fatalf("failed request should remain pending")
	}
	// a late response for a forgotten request is ignored
	h.OnResponseReceived("tab", &network.EventResponseReceived{RequestID: "r4", Response: &network.Response{Status: 200}})
	if !s.List()[0].Pending() {
		t.Fatalf("late response should be ignored")
	}
}

func TestCleanupStale(t *testing.T) {
	h, _ := newTestCapture(t)
	h.OnRequestWillBeSent("tab", &network.EventRequestWillBeSent{
		RequestID: "r5", Request: &network.Request{Method: "GET", URL: "https://a/"},
	})
	h.OnRequestWillBeSentExtraInfo("tab", &network.EventRequestWillBeSentExtraInfo{RequestID: "orphan"})

	h.cleanupStale(time.Now())
	if h.PendingCount() != 1 {
		t.Fatalf("fresh request removed")
	}
	h.cleanupStale(time.Now().Add(10 * time.Minute))
	if h.PendingCount() != 0 || len(h.extra) != 0 {
		t.Fatalf("stale state kept: pending=%d extra=%d", h.PendingCount(), len(h.extra))
	}
}

func TestHandshakeCapture(t *testing.T) {
	s := store.New()
	w := NewHandshakeCapture(s)

	w.OnWebSocketCreated("tab", &network.EventWebSocketCreated{RequestID: "ws1", URL: "wss://stream.example.com/feed"})
	w.OnWebSocketWillSendHandshakeRequest("tab", &network.EventWebSocketWillSendHandshakeRequest{
		RequestID: "ws1",
		WallTime:  wall(1700000030),
		Request:   &network.WebSocketRequest{Headers: network.Headers{"Authorization": "Bearer ws"}},
	})
	w.OnWebSocketHandshakeResponseReceived("tab", &network.EventWebSocketHandshakeResponseReceived{
		RequestID: "ws1",
		Response:  &network.WebSocketResponse{Status: 101, StatusText: "Switching Protocols"},
	})

	list := s.List()
	if len(list) != 1 {
		t.Fatalf("Size() = %d; want 1", len(list))
	}
	got := list[0]
	if got.Method != "GET" || got.URL != "wss://stream.example.com/feed" || got.Status != 101 {
		t.Fatalf("tracked = %s %s %d", got.Method, got.URL, got.Status)
	}
	if got.Source != types.SourceCDP {
		t.Fatalf("Source = %q", got.Source)
	}

	if w.ActiveConnections() != 1 {
		t.Fatalf("ActiveConnections() = %d; want 1", w.ActiveConnections())
	}
	w.OnWebSocketClosed("tab", &network.EventWebSocketClosed{RequestID: "ws1"})
	if w.ActiveConnections() != 0 {
		t.Fatalf("ActiveConnections() = %d; want 0", w.ActiveConnections())
	}
}

func TestMergeHeaders(t *testing.T) {
	got := mergeHeaders(
		[]types.Header{{Name: "Accept", Value: "a"}, {Name: "X-Trace", Value: "1"}},
		[]types.Header{{Name: "accept", Value: "b"}, {Name: "Authorization", Value: "c"}},
	)
	want := []types.Header{{Name: "accept", Value: "b"}, {Name: "Authorization", Value: "c"}, {Name: "X-Trace", Value: "1"}}
	if len(got) != len(want) {
		t.Fatalf("mergeHeaders() = %+v; want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mergeHeaders()[%d] = %+v; want %+v", i, got[i], want[i])
		}
	}
}
