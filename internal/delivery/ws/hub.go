package ws

import (
	"context"
	"sync"
	"time"

	"github.com/mmuslimabdulj/goat-messenger/internal/logger"
)

// Relay forwards published frames to the other server instances
type Relay interface {
	Publish(ctx context.Context, channel string, data []byte, excludeUserID string) error
}

// Hub maintains the set of active clients and their channel subscriptions
type Hub struct {
	mu            sync.RWMutex
	clients       map[string]*Client             // connID -> client
	channels      map[string]map[string]*Client  // channel -> connID -> client
	subscriptions map[string]map[string]struct{} // connID -> channels

	evict        chan *Client
	relay        Relay
	relayTimeout time.Duration
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		channels:      make(map[string]map[string]*Client),
		subscriptions: make(map[string]map[string]struct{}),
		evict:         make(chan *Client, 64),
		relayTimeout:  2 * time.Second,
	}
}

// SetRelay enables cross-instance fan-out
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
}

// Run evicts clients whose send buffer overflowed until ctx is done,
// then closes every remaining client
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.CloseAll()
			return
		case client := <-h.evict:
			if h.Unregister(client) {
				l := logger.L()
				l.Warn().
					Str(logger.FieldConnID, client.ID).
					Str(logger.FieldUserID, client.UserID()).
					Msg("evicted slow client")
			}
		}
	}
}

// CloseAll unregisters every client, which makes their write pumps send a close frame
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}
