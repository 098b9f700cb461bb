package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered chat participant
type User struct {
	ID         string     `json:"id"`
	ExternalID string     `json:"-"` // identity provider subject
	Username   string     `json:"username"`
	Email      string     `json:"email,omitempty"`
	AvatarURL  string     `json:"avatarUrl"`
	IsOnline   bool       `json:"isOnline"`
	LastSeen   *time.Time `json:"lastSeen,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// UserSummary is the public projection of a user embedded in other payloads
type UserSummary struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	AvatarURL string     `json:"avatarUrl"`
	IsOnline  bool       `json:"isOnline"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
}

// NewUser creates a new User with a generated time-ordered ID
func NewUser(externalID, username, email, avatarURL string) *User {
	return &User{
		ID:         NewID(),
		ExternalID: externalID,
		Username:   username,
		Email:      email,
		AvatarURL:  avatarURL,
		CreatedAt:  time.Now().UTC(),
	}
}

// Summary returns the public projection of the user
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		IsOnline:  u.IsOnline,
		LastSeen:  u.LastSeen,
	}
}

// NewID returns a UUIDv7 string, falling back to v4 if the clock source fails
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
