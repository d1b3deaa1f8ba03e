// Package websocket fans detection events out to connected viewers.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"imagedetect/internal/logger"
	"imagedetect/internal/metrics"
)

const (
	broadcastBuffer = 64
	// writeWait bounds a single write to one viewer.
	writeWait = time.Second
)

// HubService owns the set of viewer connections. All writes to the
// connections happen on the Run goroutine.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
	metrics    *metrics.DetectionMetrics
}

func NewHubService(log *logger.Logger, m *metrics.DetectionMetrics) *HubService {
	if log == nil {
		log = logger.NewNop()
	}
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     log.With("module", "hub"),
		metrics:    m,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			h.metrics.SetHubClients(0)
			h.logger.Info("Hub stopped")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.metrics.SetHubClients(count)
			h.logger.Info("Client connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.metrics.SetHubClients(count)
			h.logger.Info("Client disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.send(message)
		}
	}
}

// send writes message to every client. The lock is not held during writes
// and each write has a deadline, so a viewer that stopped reading is
// dropped instead of stalling the hub.
func (h *HubService) send(message []byte) {
	h.mutex.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	var failed []*websocket.Conn
	for _, client := range clients {
		if err := client.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			failed = append(failed, client)
			continue
		}
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Warning("Dropping viewer %s: %v", client.RemoteAddr(), err)
			failed = append(failed, client)
		}
	}
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	for _, client := range failed {
		delete(h.clients, client)
		client.Close()
	}
	count := len(h.clients)
	h.mutex.Unlock()
	h.metrics.SetHubClients(count)
}

// Register adds client. It reports false once the hub has stopped.
func (h *HubService) Register(client *websocket.Conn) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes and closes client.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every client without blocking. Messages are
// dropped when the queue is full or the hub has stopped.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.broadcast <- message:
		return true
	default:
		h.logger.Warning("Broadcast queue full - dropping message")
		return false
	}
}

// Publish encodes event as JSON and broadcasts it.
func (h *HubService) Publish(event any) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	h.Broadcast(msg)
	return nil
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
