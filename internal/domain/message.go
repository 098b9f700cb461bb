package domain

import (
	"time"
)

// MessageType defines the kind of content a message carries
type MessageType string

const (
	MessageTypeText MessageType = "text"
)

// Valid reports whether t is a supported message type
func (t MessageType) Valid() bool {
	return t == MessageTypeText
}

// ReadReceipt records that a user has read a message
type ReadReceipt struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// Message is a persisted unit of conversation content
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	SenderID       string        `json:"senderId"`
	Sender         *UserSummary  `json:"sender,omitempty"`
	Content        string        `json:"content"`
	Type           MessageType   `json:"type"`
	ReadBy         []ReadReceipt `json:"readBy"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// NewMessage creates a message stamped with a time-ordered ID and the current time
func NewMessage(conversationID, senderID, content string, t MessageType) *Message {
	if t == "" {
		t = MessageTypeText
	}
	return &Message{
		ID:             NewID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           t,
		ReadBy:         []ReadReceipt{},
		CreatedAt:      time.Now().UTC(),
	}
}
