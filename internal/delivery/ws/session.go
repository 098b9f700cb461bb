package ws

import "time"

// Session is the authenticated identity bound to one live connection
type Session struct {
	ConnID      string
	UserID      string
	Username    string
	AvatarURL   string
	ConnectedAt time.Time
}
