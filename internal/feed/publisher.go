package feed

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dgnsrekt/authscope/internal/inspect"
	"github.com/dgnsrekt/authscope/internal/store"
)

// Message is the JSON document carried by every feed event.
type Message struct {
	Kind    string               `json:"kind"`
	Created bool                 `json:"created,omitempty"`
	Size    int                  `json:"size"`
	Request *inspect.RequestView `json:"request,omitempty"`
}

// Publisher turns store events into feed events.
type Publisher struct {
	broker *Broker
	now    func() time.Time
}

func NewPublisher(broker *Broker) *Publisher {
	return &Publisher{broker: broker, now: time.Now}
}

// Observe is a store observer.
func (p *Publisher) Observe(ev store.Event) {
	msg := Message{Size: ev.Size}
	switch ev.Kind {
	case store.EventIngested:
		if ev.Request == nil || !ev.Changed {
			return
		}
		view := inspect.Build(*ev.Request, p.now(), true)
		msg.Kind = KindRequest
		msg.Created = ev.Created
		msg.Request = &view
	case store.EventCleared:
		msg.Kind = KindCleared
	default:
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to encode feed message", "kind", msg.Kind, "error", err)
		return
	}
	p.broker.Publish(Event{Kind: msg.Kind, Data: data})
}
