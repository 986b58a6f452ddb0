// Package notify fans out list events to live WebSocket viewers. It is the
// transport-layer callback target of the share/redeem coordinator.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/bozorlik/miniapp-backend/internal/domain"
	"github.com/bozorlik/miniapp-backend/pkg/metrics"
)

// Event is the envelope pushed to connected clients.
type Event struct {
	Type     string               `json:"type"`
	Token    string               `json:"token,omitempty"`
	DeepLink string               `json:"deep_link,omitempty"`
	List     *domain.ShoppingList `json:"list,omitempty"`
}

type targetedEvent struct {
	userID  int64
	payload []byte
}

// Hub routes events to clients keyed by Telegram user id. A user may hold
// several connections (multiple devices); every one receives the event.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	events     chan targetedEvent
	clients    map[int64]map[*Client]bool
	done       chan struct{}
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}

	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan targetedEvent, 64),
		clients:    make(map[int64]map[*Client]bool),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run owns the client registry; it exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.clients {
				for client := range conns {
					close(client.send)
				}
			}
			// Pumps that outlive the loop must not block on the registry
			// channels.
			close(h.done)
			return
		case client := <-h.register:
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			metrics.WSConnected()
		case client := <-h.unregister:
			if conns, ok := h.clients[client.userID]; ok && conns[client] {
				delete(conns, client)
				close(client.send)
				if len(conns) == 0 {
					delete(h.clients, client.userID)
				}
				metrics.WSDisconnected()
			}
		case event := <-h.events:
			for client := range h.clients[event.userID] {
				select {
				case client.send <- event.payload:
				default:
					// Slow consumer: drop the connection rather than block
					// the hub loop.
					delete(h.clients[event.userID], client)
					close(client.send)
					metrics.WSDisconnected()
				}
			}
		}
	}
}

// drop hands a client back to the registry, giving up once the hub has shut
// down and nothing drains unregister anymore.
func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ShareIssued implements coordinator.Notifier.
func (h *Hub) ShareIssued(issuerUserID int64, token, deepLink string) {
	h.send(issuerUserID, Event{Type: "share_issued", Token: token, DeepLink: deepLink})
}

// ListImported implements coordinator.Notifier.
func (h *Hub) ListImported(importerUserID int64, list *domain.ShoppingList) {
	h.send(importerUserID, Event{Type: "list_imported", List: list})
}

func (h *Hub) send(userID int64, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to encode ws event", slog.String("type", event.Type), slog.Any("error", err))
		return
	}

	select {
	case h.events <- targetedEvent{userID: userID, payload: payload}:
	default:
		h.log.Warn("ws event queue full, dropping event", slog.String("type", event.Type))
	}
}
