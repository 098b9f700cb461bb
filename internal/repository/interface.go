package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// UserStore persists user profiles and their presence flag
type UserStore interface {
	// UpsertUser creates the user on first contact and refreshes its profile afterwards.
	// The user is matched by ExternalID.
	UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUsers(ctx context.Context, ids []string) ([]*domain.User, error)
	ListUsersExcept(ctx context.Context, excludeID string) ([]*domain.User, error)
	SearchUsers(ctx context.Context, excludeID, query string, limit int) ([]*domain.User, error)
	SetPresence(ctx context.Context, userID string, online bool, at time.Time) error
}

// ConversationStore persists conversations and their membership
type ConversationStore interface {
	// CreateConversation returns ErrDuplicate if a direct conversation for the pair exists
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	FindDirectConversation(ctx context.Context, pairKey string) (*domain.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]*domain.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// MessageStore persists messages and read receipts
type MessageStore interface {
	// CreateMessage stores the message and advances the conversation's last message pointer
	CreateMessage(ctx context.Context, msg *domain.Message) error
	// ListMessages returns up to limit messages older than before (or the newest when nil), oldest first
	ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]*domain.Message, error)
	// MarkRead records receipts and returns the ids that had none for userID
	MarkRead(ctx context.Context, conversationID, userID string, messageIDs []string, at time.Time) ([]string, error)
}

// Store is the full persistence surface
type Store interface {
	UserStore
	ConversationStore
	MessageStore
	Close() error
}
