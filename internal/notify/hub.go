package notify

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/logging"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/metrics"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/readings"
)

const (
	clientBuffer = 4
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

type client struct {
	send chan []byte
}

// Hub pushes every publication, markers included, to connected WebSocket
// clients. A client that falls behind misses intermediate publications.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Broadcast is an engine subscriber.
func (h *Hub) Broadcast(pub readings.Publication) {
	data, err := json.Marshal(NewEvent(pub, true))
	if err != nil {
		logging.Warn().Err(err).Msg("encode publication for websocket")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for c := range h.clients {
		offer(c, data)
	}
}

// offer queues data without blocking. When the buffer is full the oldest
// pending message is dropped.
func offer(c *client, data []byte) {
	for {
		select {
		case c.send <- data:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

func (h *Hub) register() *client {
	c := &client{send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()
	metrics.ActiveWebSockets.Inc()
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		metrics.ActiveWebSockets.Dec()
	}
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler serves one WebSocket connection until the client goes away.
// Incoming messages are ignored.
func (h *Hub) Handler() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		defer conn.Close()

		remote := conn.RemoteAddr().String()
		c := h.register()
		defer h.unregister(c)
		logging.Debug().Str("remote", remote).Msg("ws client connected")

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case data := <-c.send:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				logging.Debug().Str("remote", remote).Msg("ws client disconnected")
				return
			}
		}
	}
}
