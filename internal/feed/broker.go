// Package feed streams tracked-request updates to live clients over
// server-sent events and WebSocket.
package feed

import (
	"sync"

	"github.com/google/uuid"
)

const subscriberBufSize = 256

// Event kinds.
const (
	KindRequest = "request"
	KindCleared = "cleared"
)

// Event is one feed message. Data is a JSON document.
type Event struct {
	Kind string
	Data []byte
}

// Broker fans out events to all subscribed clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string]chan Event),
	}
}

// Subscribe registers a new client and returns its ID and event channel.
// The channel is buffered; slow consumers have events dropped.
func (b *Broker) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers without blocking.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Close disconnects every subscriber.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
