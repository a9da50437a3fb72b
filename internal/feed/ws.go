package feed

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// WSHandler upgrades the connection and writes every feed event as a text
// frame. Messages from the client are read and discarded; a read error or
// close frame ends the subscription. Pong and close replies share the event
// writer's lock so frames never interleave.
func WSHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kinds := parseKinds(r.URL.Query().Get("kinds"))

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
			return
		}
		defer conn.Close()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)
		slog.Debug("Feed client connected", "subscriber_id", id, "remote_addr", r.RemoteAddr)

		var writeMu sync.Mutex
		writeFrame := func(op ws.OpCode, payload []byte) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			return wsutil.WriteServerMessage(conn, op, payload)
		}

		replyControl := wsutil.ControlFrameHandler(conn, ws.StateServerSide)
		onControl := func(h ws.Header, rd io.Reader) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			return replyControl(h, rd)
		}

		readErr := make(chan error, 1)
		go func() {
			rd := &wsutil.Reader{
				Source:         conn,
				State:          ws.StateServerSide,
				CheckUTF8:      true,
				OnIntermediate: onControl,
			}
			for {
				hdr, err := rd.NextFrame()
				if err == nil {
					if hdr.OpCode.IsControl() {
						err = onControl(hdr, rd)
					} else {
						err = rd.Discard()
					}
				}
				if err != nil {
					readErr <- err
					return
				}
			}
		}()

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case err := <-readErr:
				slog.Debug("Feed client disconnected", "subscriber_id", id, "error", err)
				return
			case <-ping.C:
				if err := writeFrame(ws.OpPing, nil); err != nil {
					return
				}
			case evt, ok := <-ch:
				if !ok {
					_ = writeFrame(ws.OpClose, ws.NewCloseFrameBody(ws.StatusGoingAway, "shutting down"))
					return
				}
				if kinds != nil && !kinds[evt.Kind] {
					continue
				}
				if err := writeFrame(ws.OpText, evt.Data); err != nil {
					slog.Debug("Feed write failed", "subscriber_id", id, "error", err)
					return
				}
			}
		}
	}
}
