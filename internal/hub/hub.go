package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultKeepAlive is the interval between SSE keep-alive comments
const DefaultKeepAlive = 30 * time.Second

// Client is one open /events stream
type Client struct {
	id     string
	events chan []byte
}

// Hub fans published events out to every open /events stream
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan interface{}
	keepAlive  time.Duration
	done       chan struct{}
	log        zerolog.Logger
}

// New returns a hub with the default keep-alive. Call Run before serving.
func New(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan interface{}, 256),
		keepAlive:  DefaultKeepAlive,
		done:       make(chan struct{}),
		log:        log,
	}
}

// SetKeepAlive changes the keep-alive interval for new connections
func (h *Hub) SetKeepAlive(d time.Duration) {
	if d > 0 {
		h.keepAlive = d
	}
}

// Run starts the hub's event loop and returns when ctx is cancelled.
// Connected clients are disconnected on return.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.events)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Str("client", client.id).Int("total", total).Msg("SSE client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.events)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Str("client", client.id).Int("total", total).Msg("SSE client disconnected")

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Error().Err(err).Msg("Failed to marshal event")
				continue
			}

			msg := fmt.Sprintf("data: %s\n\n", data)

			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.events <- []byte(msg):
				default:
					h.log.Warn().Str("client", client.id).Msg("SSE client is slow, skipping message")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues event for every client, dropping it when the queue is full
func (h *Hub) Broadcast(event interface{}) {
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn().Msg("Broadcast channel full, dropping event")
	}
}

// Relay broadcasts everything received on events until ctx is cancelled or
// the channel is closed.
func Relay[T any](ctx context.Context, h *Hub, events <-chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(ev)
		}
	}
}

// ClientCount reports how many streams are open
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP streams events as "data:" frames until the client leaves or the
// hub stops
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := &Client{
		id:     uuid.NewString(),
		events: make(chan []byte, 64),
	}

	select {
	case h.register <- client:
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}

	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
