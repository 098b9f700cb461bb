package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
	"github.com/mmuslimabdulj/goat-messenger/internal/keylock"
)

// StatusBroadcaster delivers an event to every connected client
type StatusBroadcaster interface {
	BroadcastAll(event domain.Event)
}

// PresenceStore persists the presence flag of a user
type PresenceStore interface {
	SetPresence(ctx context.Context, userID string, online bool, at time.Time) error
}

// PresenceTracker tracks which connection currently represents each online user.
// The most recent connection wins; closing an older one does not take the user offline.
// Transitions are serialized per user, and mu guards only the connection map.
type PresenceTracker struct {
	mu          sync.RWMutex
	connections map[string]string // userID -> connection ID
	users       *keylock.KeyLock
	store       PresenceStore
	broadcaster StatusBroadcaster
	now         func() time.Time
}

// NewPresenceTracker creates a new PresenceTracker
func NewPresenceTracker(store PresenceStore, broadcaster StatusBroadcaster) *PresenceTracker {
	return &PresenceTracker{
		connections: make(map[string]string),
		users:       keylock.New(),
		store:       store,
		broadcaster: broadcaster,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetOnline binds connID to the user. Only the offline to online transition is broadcast.
// The in-memory state is updated even when persisting fails.
func (p *PresenceTracker) SetOnline(ctx context.Context, userID, username, connID string) error {
	unlock := p.users.Lock(userID)
	defer unlock()

	p.mu.Lock()
	_, wasOnline := p.connections[userID]
	p.connections[userID] = connID
	p.mu.Unlock()
	if wasOnline {
		return nil
	}

	at := p.now()
	err := p.store.SetPresence(ctx, userID, true, at)
	p.broadcaster.BroadcastAll(domain.NewEvent(domain.EventUserStatus, domain.UserStatusPayload{
		UserID:   userID,
		Username: username,
		IsOnline: true,
		LastSeen: &at,
	}))
	if err != nil {
		return fmt.Errorf("%w: set online: %v", domain.ErrStoreFailure, err)
	}
	return nil
}

// SetOffline takes the user offline if connID is still the user's current connection.
// It reports whether a transition happened.
func (p *PresenceTracker) SetOffline(ctx context.Context, userID, username, connID string) (bool, error) {
	unlock := p.users.Lock(userID)
	defer unlock()

	p.mu.Lock()
	current, ok := p.connections[userID]
	if !ok || current != connID {
		p.mu.Unlock()
		return false, nil
	}
	delete(p.connections, userID)
	p.mu.Unlock()

	at := p.now()
	err := p.store.SetPresence(ctx, userID, false, at)
	p.broadcaster.BroadcastAll(domain.NewEvent(domain.EventUserStatus, domain.UserStatusPayload{
		UserID:   userID,
		Username: username,
		IsOnline: false,
		LastSeen: &at,
	}))
	if err != nil {
		return true, fmt.Errorf("%w: set offline: %v", domain.ErrStoreFailure, err)
	}
	return true, nil
}

// IsOnline reports whether the user has a live connection
func (p *PresenceTracker) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.connections[userID]
	return ok
}

// OnlineCount returns the number of online users
func (p *PresenceTracker) OnlineCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.connections)
}
