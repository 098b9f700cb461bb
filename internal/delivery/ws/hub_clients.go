package ws

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	h.subscriptions[c.ID] = make(map[string]struct{})
}

// Unregister removes a client from the hub and from every channel, then closes its send queue.
// It reports false if the client was not registered.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return false
	}
	delete(h.clients, c.ID)

	for channel := range h.subscriptions[c.ID] {
		h.removeFromChannel(channel, c.ID)
	}
	delete(h.subscriptions, c.ID)

	close(c.send)
	return true
}

// Join subscribes a registered client to a channel.
// It reports false if the client is no longer registered.
func (h *Hub) Join(c *Client, channel string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscriptions[c.ID]
	if !ok {
		return false
	}
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[string]*Client)
		h.channels[channel] = members
	}
	members[c.ID] = c
	subs[channel] = struct{}{}
	return true
}

// Leave unsubscribes a client from a channel
func (h *Hub) Leave(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subscriptions[c.ID]; ok {
		delete(subs, channel)
	}
	h.removeFromChannel(channel, c.ID)
}

// removeFromChannel drops an empty channel entirely. Caller must hold the write lock.
func (h *Hub) removeFromChannel(channel, connID string) {
	members, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.channels, channel)
	}
}

// IsSubscribed reports whether the client is subscribed to the channel
func (h *Hub) IsSubscribed(c *Client, channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.channels[channel][c.ID]
	return ok
}

// isRegistered reports whether the client is still attached to the hub
func (h *Hub) isRegistered(c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[c.ID]
	return ok
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// subscriberCount returns the number of clients subscribed to a channel
func (h *Hub) subscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// ChannelCount returns the number of channels with at least one subscriber
func (h *Hub) ChannelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}
