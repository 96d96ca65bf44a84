package hub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub fans out live payloads to all connected subscribers. Delivery is
// best-effort, at-most-once: dead or slow subscribers are skipped silently and
// nothing is queued for subscribers that connect later.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int64]*Subscriber
	nextID      int64
	logger      *zap.Logger
}

// NewHub builds the hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[int64]*Subscriber),
		logger:      logger,
	}
}

// Add registers a subscriber and assigns it an id.
func (h *Hub) Add(sub *Subscriber) {
	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	h.subscribers[sub.id] = sub
	h.mu.Unlock()
}

// Remove drops a subscriber.
func (h *Hub) Remove(id int64) {
	h.mu.Lock()
	delete(h.subscribers, id)
	h.mu.Unlock()
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Broadcast serializes the payload once and sends it to every connected
// subscriber. Errors never propagate back to the caller.
func (h *Hub) Broadcast(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("failed to marshal broadcast payload", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		sub.Send(data)
	}
}
