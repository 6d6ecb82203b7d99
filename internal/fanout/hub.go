// Package fanout delivers published messages to any number of subscribers
// without letting a slow subscriber hold up the publisher.
package fanout

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	defaultInboxSize  = 64
	defaultBufferSize = 16
)

// Hub is a single-producer, multi-consumer broadcast channel. Run owns the
// subscriber set; every other method talks to it over channels.
type Hub struct {
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan []byte
	done       chan struct{}

	bufferSize  int
	subscribers atomic.Int64
	dropped     atomic.Int64
	logger      *zap.Logger
}

type subscriber struct {
	send chan []byte
}

// NewHub creates a hub whose subscribers each buffer up to bufferSize
// messages before they are considered too slow and dropped.
func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Hub{
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan []byte, defaultInboxSize),
		done:       make(chan struct{}),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Run delivers broadcasts until ctx is done, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*subscriber]struct{})
	defer close(h.done)

	remove := func(c *subscriber) {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
			h.subscribers.Add(-1)
		}
	}

	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				remove(c)
			}
			return
		case c := <-h.register:
			clients[c] = struct{}{}
			h.subscribers.Add(1)
		case c := <-h.unregister:
			remove(c)
		case b := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- b:
				default:
					h.logger.Warn("dropping slow subscriber")
					h.dropped.Add(1)
					remove(c)
				}
			}
		}
	}
}

// Subscribe registers a new subscriber. The returned channel is closed when
// the subscriber is dropped, unsubscribes, or the hub stops. The cancel
// func is safe to call more than once.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	c := &subscriber{send: make(chan []byte, h.bufferSize)}

	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
		return c.send, func() {}
	}

	var once atomic.Bool
	cancel := func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}
	return c.send, cancel
}

// Publish JSON-encodes v once and hands it to every subscriber. It never
// blocks; it reports false when the message was discarded.
func (h *Hub) Publish(v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode broadcast", zap.Error(err))
		return false
	}
	return h.PublishJSON(b)
}

// PublishJSON hands an already encoded message to every subscriber.
func (h *Hub) PublishJSON(b []byte) bool {
	select {
	case h.broadcast <- b:
		return true
	default:
		h.logger.Warn("hub inbox full, dropping broadcast")
		return false
	}
}

// Subscribers returns the number of currently registered subscribers.
func (h *Hub) Subscribers() int {
	return int(h.subscribers.Load())
}

// Dropped returns how many subscribers were removed for being too slow.
func (h *Hub) Dropped() int {
	return int(h.dropped.Load())
}
