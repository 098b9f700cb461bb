package domain

import (
	"slices"
	"strings"
	"time"
)

// Conversation is a direct (two-party) or group thread
type Conversation struct {
	ID             string        `json:"id"`
	ParticipantIDs []string      `json:"participantIds"`
	Participants   []UserSummary `json:"participants"`
	IsGroup        bool          `json:"isGroup"`
	GroupName      *string       `json:"groupName"`
	CreatedBy      string        `json:"createdBy"`
	LastMessageID  *string       `json:"lastMessageId,omitempty"`
	LastMessage    *Message      `json:"lastMessage,omitempty"`
	LastMessageAt  time.Time     `json:"lastMessageAt"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// PairKey returns the order-independent key of a direct conversation
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// NewDirectConversation creates an unsaved two-party conversation
func NewDirectConversation(requesterID, otherID string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:             NewID(),
		ParticipantIDs: []string{requesterID, otherID},
		CreatedBy:      requesterID,
		LastMessageAt:  now,
		CreatedAt:      now,
	}
}

// NewGroupConversation creates an unsaved group conversation.
// An empty name is stored as nil.
func NewGroupConversation(participantIDs []string, creatorID string, name *string) *Conversation {
	now := time.Now().UTC()
	var groupName *string
	if name != nil {
		if trimmed := strings.TrimSpace(*name); trimmed != "" {
			groupName = &trimmed
		}
	}
	return &Conversation{
		ID:             NewID(),
		ParticipantIDs: slices.Clone(participantIDs),
		IsGroup:        true,
		GroupName:      groupName,
		CreatedBy:      creatorID,
		LastMessageAt:  now,
		CreatedAt:      now,
	}
}

// HasParticipant reports whether userID is a member of the conversation
func (c *Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.ParticipantIDs, userID)
}

// PairKey returns the direct pair key, or empty for groups
func (c *Conversation) PairKey() string {
	if c.IsGroup || len(c.ParticipantIDs) != 2 {
		return ""
	}
	return PairKey(c.ParticipantIDs[0], c.ParticipantIDs[1])
}
