package sse

import (
	"log/slog"
	"sync"
	"time"
)

// Notice tells stream subscribers that the guest file changed.
type Notice struct {
	TS   time.Time `json:"ts"`
	File string    `json:"file"`
}

// Broker manages SSE client connections and broadcasts notices.
type Broker struct {
	mu      sync.RWMutex
	clients map[chan Notice]struct{}
}

// NewBroker creates a new SSE broker.
func NewBroker() *Broker {
	return &Broker{
		clients: make(map[chan Notice]struct{}),
	}
}

// Subscribe registers a new client and returns its notice channel.
// The caller must call Unsubscribe when done.
func (b *Broker) Subscribe() chan Notice {
	ch := make(chan Notice, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	slog.Debug("sse client connected", "total", b.Count())
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan Notice) {
	b.mu.Lock()
	delete(b.clients, ch)
	close(ch)
	b.mu.Unlock()
	slog.Debug("sse client disconnected", "total", b.Count())
}

// Broadcast sends a notice to all connected clients.
// Slow clients that can't keep up will have the notice dropped.
func (b *Broker) Broadcast(n Notice) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- n:
		default:
			slog.Warn("dropping notice for slow sse client")
		}
	}
}

// Count returns the number of connected clients.
func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
