package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
	"github.com/mmuslimabdulj/goat-messenger/internal/keylock"
)

// ErrConnectionClosed is returned when an operation races with a disconnect
var ErrConnectionClosed = errors.New("connection closed")

// MessageStore is the persistence the broker depends on
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *domain.Message) error
	ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]*domain.Message, error)
	MarkRead(ctx context.Context, conversationID, userID string, messageIDs []string, at time.Time) ([]string, error)
}

// Registry is the membership authority consulted before any fan-out
type Registry interface {
	Authorize(ctx context.Context, conversationID, userID string) error
	Create(ctx context.Context, requesterID string, participantIDs []string, isGroup bool, groupName *string) (*domain.Conversation, bool, error)
}

// Broker routes conversation traffic between connections.
// Work on one conversation is serialized so persistence order equals delivery order.
type Broker struct {
	hub          *Hub
	registry     Registry
	messages     MessageStore
	locks        *keylock.KeyLock
	historyLimit int
	now          func() time.Time
}

// NewBroker creates a new Broker
func NewBroker(hub *Hub, registry Registry, messages MessageStore, historyLimit int) *Broker {
	if historyLimit <= 0 {
		historyLimit = domain.HistoryLimit
	}
	return &Broker{
		hub:          hub,
		registry:     registry,
		messages:     messages,
		locks:        keylock.New(),
		historyLimit: historyLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe joins the conversation channel and replies with recent history.
// History is loaded under the conversation lock, so no message falls between
// the snapshot and the live stream.
func (b *Broker) Subscribe(ctx context.Context, c *Client, conversationID string) error {
	if err := b.registry.Authorize(ctx, conversationID, c.UserID()); err != nil {
		return err
	}

	unlock := b.locks.Lock(conversationID)
	defer unlock()

	history, err := b.messages.ListMessages(ctx, conversationID, nil, b.historyLimit)
	if err != nil {
		return fmt.Errorf("%w: load history: %v", domain.ErrStoreFailure, err)
	}
	if !b.hub.Join(c, domain.ConversationChannel(conversationID)) {
		return ErrConnectionClosed
	}
	b.hub.Send(c, domain.NewEvent(domain.EventConversationMessages, history))
	return nil
}

// Unsubscribe leaves the conversation channel
func (b *Broker) Unsubscribe(c *Client, conversationID string) {
	b.hub.Leave(c, domain.ConversationChannel(conversationID))
}

// Publish persists a message and fans it out to every subscriber, the sender included
func (b *Broker) Publish(ctx context.Context, c *Client, conversationID, content string, msgType domain.MessageType) (*domain.Message, error) {
	if err := b.registry.Authorize(ctx, conversationID, c.UserID()); err != nil {
		return nil, err
	}
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	if !msgType.Valid() {
		return nil, fmt.Errorf("%w: unsupported message type %q", domain.ErrBadRequest, msgType)
	}

	unlock := b.locks.Lock(conversationID)
	defer unlock()

	msg := domain.NewMessage(conversationID, c.UserID(), content, msgType)
	msg.CreatedAt = b.now()
	if err := b.messages.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: persist message: %v", domain.ErrStoreFailure, err)
	}

	if err := b.hub.Publish(domain.ConversationChannel(conversationID), domain.NewEvent(domain.EventReceiveMessage, msg), ""); err != nil {
		return msg, err
	}
	return msg, nil
}

// CreateConversationAndNotify creates or finds a conversation and announces it.
// New conversations go to every participant's personal channel; an existing
// direct conversation is only sent back to the requester.
func (b *Broker) CreateConversationAndNotify(ctx context.Context, c *Client, participantIDs []string, isGroup bool, groupName *string) (*domain.Conversation, error) {
	conv, created, err := b.registry.Create(ctx, c.UserID(), participantIDs, isGroup, groupName)
	if err != nil {
		return nil, err
	}

	event := domain.NewEvent(domain.EventConversationCreated, conv)
	if !created {
		b.hub.Send(c, event)
		return conv, nil
	}
	for _, participantID := range conv.ParticipantIDs {
		if err := b.hub.Publish(domain.UserChannel(participantID), event, ""); err != nil {
			return conv, err
		}
	}
	return conv, nil
}

// SetTyping relays a typing indicator to the other subscribers.
// Membership was checked when the channel was joined.
func (b *Broker) SetTyping(c *Client, conversationID string, isTyping bool) error {
	channel := domain.ConversationChannel(conversationID)
	if !b.hub.IsSubscribed(c, channel) {
		return fmt.Errorf("%w: join the conversation first", domain.ErrUnauthorized)
	}

	return b.hub.Publish(channel, domain.NewEvent(domain.EventUserTyping, domain.UserTypingPayload{
		ConversationID: conversationID,
		UserID:         c.UserID(),
		Username:       c.Session.Username,
		IsTyping:       isTyping,
	}), c.UserID())
}

// MarkRead records read receipts and broadcasts the ids that were newly marked.
// Repeating a call for already-read ids has no effect.
func (b *Broker) MarkRead(ctx context.Context, c *Client, conversationID string, messageIDs []string) error {
	channel := domain.ConversationChannel(conversationID)
	if !b.hub.IsSubscribed(c, channel) {
		return fmt.Errorf("%w: join the conversation first", domain.ErrUnauthorized)
	}

	unlock := b.locks.Lock(conversationID)
	defer unlock()

	at := b.now()
	marked, err := b.messages.MarkRead(ctx, conversationID, c.UserID(), messageIDs, at)
	if err != nil {
		return fmt.Errorf("%w: mark read: %v", domain.ErrStoreFailure, err)
	}
	if len(marked) == 0 {
		return nil
	}

	return b.hub.Publish(channel, domain.NewEvent(domain.EventMessagesRead, domain.MessagesReadPayload{
		ConversationID: conversationID,
		UserID:         c.UserID(),
		MessageIDs:     marked,
		ReadAt:         at,
	}), "")
}
