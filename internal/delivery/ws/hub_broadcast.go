package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
	"github.com/mmuslimabdulj/goat-messenger/internal/logger"
)

// Publish delivers an event to every subscriber of a channel except the
// connections of excludeUserID, then forwards it to the relay if one is set
func (h *Hub) Publish(channel string, event domain.Event, excludeUserID string) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}

	h.deliver(channel, data, excludeUserID)
	h.forward(channel, data, excludeUserID)
	return nil
}

// BroadcastAll delivers an event to every connected client
func (h *Hub) BroadcastAll(event domain.Event) {
	if err := h.Publish(domain.BroadcastChannel, event, ""); err != nil {
		l := logger.L()
		l.Error().Err(err).Str(logger.FieldEvent, event.Type).Msg("broadcast failed")
	}
}

// Send delivers an event to a single client. It reports false if the client
// is gone or its buffer is full.
func (h *Hub) Send(c *Client, event domain.Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		l := logger.L()
		l.Error().Err(err).Str(logger.FieldEvent, event.Type).Msg("failed to marshal event")
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.ID]; !ok {
		return false
	}
	return h.enqueue(c, data)
}

// DeliverRemote fans out a frame received from another instance without relaying it again
func (h *Hub) DeliverRemote(channel string, data []byte, excludeUserID string) int {
	return h.deliver(channel, data, excludeUserID)
}

func (h *Hub) deliver(channel string, data []byte, excludeUserID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.channels[channel]
	if channel == domain.BroadcastChannel {
		targets = h.clients
	}

	delivered := 0
	for _, c := range targets {
		if excludeUserID != "" && c.UserID() == excludeUserID {
			continue
		}
		if h.enqueue(c, data) {
			delivered++
		}
	}
	return delivered
}

// enqueue never blocks. A full buffer schedules the client for eviction.
// Caller must hold at least the read lock.
func (h *Hub) enqueue(c *Client, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		select {
		case h.evict <- c:
		default:
		}
		return false
	}
}

func (h *Hub) forward(channel string, data []byte, excludeUserID string) {
	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.relayTimeout)
	defer cancel()
	if err := relay.Publish(ctx, channel, data, excludeUserID); err != nil {
		l := logger.L()
		l.Warn().Err(err).Str(logger.FieldChannel, channel).Msg("relay publish failed")
	}
}
