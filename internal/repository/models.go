package repository

import (
	"time"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
)

// UserModel is the GORM model for users
type UserModel struct {
	ID         string `gorm:"type:varchar(36);primaryKey"`
	ExternalID string `gorm:"type:varchar(255);uniqueIndex;not null"`
	Username   string `gorm:"type:varchar(100);index;not null"`
	Email      string `gorm:"type:varchar(255)"`
	AvatarURL  string `gorm:"type:text"`
	IsOnline   bool   `gorm:"not null;default:false"`
	LastSeen   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (UserModel) TableName() string { return "users" }

func (m *UserModel) ToDomain() *domain.User {
	return &domain.User{
		ID:         m.ID,
		ExternalID: m.ExternalID,
		Username:   m.Username,
		Email:      m.Email,
		AvatarURL:  m.AvatarURL,
		IsOnline:   m.IsOnline,
		LastSeen:   m.LastSeen,
		CreatedAt:  m.CreatedAt,
	}
}

func userToModel(u *domain.User) *UserModel {
	return &UserModel{
		ID:         u.ID,
		ExternalID: u.ExternalID,
		Username:   u.Username,
		Email:      u.Email,
		AvatarURL:  u.AvatarURL,
		IsOnline:   u.IsOnline,
		LastSeen:   u.LastSeen,
		CreatedAt:  u.CreatedAt,
	}
}

// ConversationModel is the GORM model for conversations.
// PairKey is set for direct conversations only; the unique index makes
// concurrent creation of the same pair fail on all but one writer.
type ConversationModel struct {
	ID            string    `gorm:"type:varchar(36);primaryKey"`
	IsGroup       bool      `gorm:"not null;default:false"`
	GroupName     *string   `gorm:"type:varchar(100)"`
	PairKey       *string   `gorm:"type:varchar(80);uniqueIndex"`
	CreatedBy     string    `gorm:"type:varchar(36);not null"`
	LastMessageID *string   `gorm:"type:varchar(36)"`
	LastMessageAt time.Time `gorm:"index"`
	CreatedAt     time.Time
}

func (ConversationModel) TableName() string { return "conversations" }

// ParticipantModel links a user to a conversation. Position keeps insertion order.
type ParticipantModel struct {
	ConversationID string `gorm:"type:varchar(36);primaryKey"`
	UserID         string `gorm:"type:varchar(36);primaryKey;index"`
	Position       int    `gorm:"not null"`
	JoinedAt       time.Time
}

func (ParticipantModel) TableName() string { return "conversation_participants" }

// MessageModel is the GORM model for messages
type MessageModel struct {
	ID             string    `gorm:"type:varchar(36);primaryKey"`
	ConversationID string    `gorm:"type:varchar(36);not null;index:idx_messages_conversation_created,priority:1"`
	SenderID       string    `gorm:"type:varchar(36);not null"`
	Content        string    `gorm:"type:text;not null"`
	Type           string    `gorm:"type:varchar(20);not null"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2"`
}

func (MessageModel) TableName() string { return "messages" }

func messageToModel(m *domain.Message) *MessageModel {
	return &MessageModel{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           string(m.Type),
		CreatedAt:      m.CreatedAt,
	}
}

func (m *MessageModel) ToDomain() *domain.Message {
	return &domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           domain.MessageType(m.Type),
		ReadBy:         []domain.ReadReceipt{},
		CreatedAt:      m.CreatedAt,
	}
}

// ReadReceiptModel records one reader of one message.
// The composite key makes repeated receipts a no-op.
type ReadReceiptModel struct {
	MessageID string `gorm:"type:varchar(36);primaryKey"`
	UserID    string `gorm:"type:varchar(36);primaryKey;index"`
	ReadAt    time.Time
}

func (ReadReceiptModel) TableName() string { return "message_reads" }

// Models lists every table managed by the store
func Models() []any {
	return []any{
		&UserModel{},
		&ConversationModel{},
		&ParticipantModel{},
		&MessageModel{},
		&ReadReceiptModel{},
	}
}
