package capture

import (
	"sync"

	"github.com/chromedp/cdproto/network"

	"github.com/dgnsrekt/authscope/internal/types"
)

// HandshakeCapture records WebSocket upgrade requests, which can carry an
// Authorization header just like ordinary requests.
type HandshakeCapture struct {
	sink Ingester

	connections   map[string]*types.CapturedRequest
	connectionsMu sync.Mutex
}

func NewHandshakeCapture(sink Ingester) *HandshakeCapture {
	return &HandshakeCapture{
		sink:        sink,
		connections: make(map[string]*types.CapturedRequest),
	}
}

func (w *HandshakeCapture) OnWebSocketCreated(tabID string, ev *network.EventWebSocketCreated) {
	w.connectionsMu.Lock()
	w.connections[pendingKey(tabID, string(ev.RequestID))] = &types.CapturedRequest{
		Method: "GET",
		URL:    ev.URL,
		Source: types.SourceCDP,
		TabID:  tabID,
	}
	w.connectionsMu.Unlock()
}

func (w *HandshakeCapture) OnWebSocketWillSendHandshakeRequest(tabID string, ev *network.EventWebSocketWillSendHandshakeRequest) {
	key := pendingKey(tabID, string(ev.RequestID))

	w.connectionsMu.Lock()
	conn, ok := w.connections[key]
	if !ok {
		w.connectionsMu.Unlock()
		return
	}
	conn.StartedAt = wallTime(ev.WallTime)
	if ev.Request != nil {
		conn.Request.Headers = HeadersFromCDP(ev.Request.Headers)
	}
	rec := *conn
	w.connectionsMu.Unlock()

	w.sink.Ingest(rec)
}

func (w *HandshakeCapture) OnWebSocketHandshakeResponseReceived(tabID string, ev *network.EventWebSocketHandshakeResponseReceived) {
	key := pendingKey(tabID, string(ev.RequestID))

	w.connectionsMu.Lock()
	conn, ok := w.connections[key]
	if !ok || conn.StartedAt.IsZero() || ev.Response == nil {
		w.connectionsMu.Unlock()
		return
	}
	conn.Response = &types.HTTPResponse{
		Status:     int(ev.Response.Status),
		StatusText: ev.Response.StatusText,
		Headers:    HeadersFromCDP(ev.Response.Headers),
	}
	if len(ev.Response.RequestHeaders) > 0 {
		conn.Request.Headers = mergeHeaders(conn.Request.Headers, HeadersFromCDP(ev.Response.RequestHeaders))
	}
	rec := *conn
	w.connectionsMu.Unlock()

	w.sink.Ingest(rec)
}

func (w *HandshakeCapture) OnWebSocketClosed(tabID string, ev *network.EventWebSocketClosed) {
	w.connectionsMu.Lock()
	delete(w.connections, pendingKey(tabID, string(ev.RequestID)))
	w.connectionsMu.Unlock()
}

// ActiveConnections returns the number of open WebSocket connections seen.
func (w *HandshakeCapture) ActiveConnections() int {
	w.connectionsMu.Lock()
	defer w.connectionsMu.Unlock()
	return len(w.connections)
}
