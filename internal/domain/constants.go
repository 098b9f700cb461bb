package domain

import "time"

// ==== WebSocket Constants ====

// MaxMessageSize is the maximum allowed WebSocket frame size in bytes
const MaxMessageSize = 4096

// SendBufferSize is the default per-connection outbound queue depth
const SendBufferSize = 256

// ==== Content Limits ====

const (
	// MaxContentLength is the maximum message body length in characters
	MaxContentLength = 2000

	// MaxGroupNameLength is the maximum group conversation name length
	MaxGroupNameLength = 100

	// MaxReadBatch caps the number of message ids in one mark_as_read
	MaxReadBatch = 200
)

// ==== History Constants ====

const (
	// HistoryLimit is the number of messages sent on join_conversation
	HistoryLimit = 50

	// MaxPageSize caps the page size of the REST history endpoint
	MaxPageSize = 100

	// MaxSearchResults caps user search results
	MaxSearchResults = 20
)

// ==== Timing Constants ====

const (
	// AuthTimeout bounds identity resolution during connect
	AuthTimeout = 5 * time.Second

	// OperationTimeout bounds the store work of a single inbound event
	OperationTimeout = 10 * time.Second
)

// ==== Rate Limit Constants ====

const (
	// DefaultRateLimitAPI is the default rate limit for API endpoints (requests/sec)
	DefaultRateLimitAPI = 10

	// DefaultRateLimitWS is the default rate limit for WebSocket upgrades (req/sec)
	DefaultRateLimitWS = 5

	// DefaultRateLimitEvents is the default inbound event rate per connection
	DefaultRateLimitEvents = 20
)

// ==== Channel Names ====

const (
	userChannelPrefix         = "user:"
	conversationChannelPrefix = "conversation:"

	// BroadcastChannel addresses every connected client
	BroadcastChannel = "*"
)

// UserChannel returns the personal channel of a user
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// ConversationChannel returns the broadcast channel of a conversation
func ConversationChannel(conversationID string) string {
	return conversationChannelPrefix + conversationID
}
