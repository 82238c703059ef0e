package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/moneytime-app/moneytime/internal/domain"
)

// ─── Live Preview Feed ──────────────────────────────────────────────────────
// Lets the UI drop a preview row and show "preview expired" the moment the
// sweep evicts it, instead of polling.

// PreviewHub fans preview lifecycle events out to connected SSE clients.
type PreviewHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewPreviewHub creates a new preview broadcast hub.
func NewPreviewHub() *PreviewHub {
	return &PreviewHub{
		clients: make(map[chan []byte]struct{}),
	}
}

// Publish sends an event to all connected clients. It matches
// preview.Observer so the hub can subscribe to the store directly.
func (h *PreviewHub) Publish(ev domain.PreviewEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			// Client too slow, drop message
		}
	}
}

// Subscribe registers a new client. Returns the channel and an unsubscribe func.
func (h *PreviewHub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}
}

// ClientCount returns the number of connected clients.
func (h *PreviewHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandlePreviewSSE serves the live preview feed via Server-Sent Events.
// GET /api/previews/events
// Each message is "event: <type>" followed by the JSON event.
func (h *PreviewHub) HandlePreviewSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsub := h.Subscribe()
	defer unsub()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case data := <-ch:
			var head struct {
				Type string `json:"type"`
			}
			json.Unmarshal(data, &head)
			w.Write([]byte("event: " + head.Type + "\n"))
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
