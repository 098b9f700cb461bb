package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Inbound event names
const (
	EventJoinConversation   = "join_conversation"
	EventLeaveConversation  = "leave_conversation"
	EventSendMessage        = "send_message"
	EventTyping             = "typing"
	EventCreateConversation = "create_conversation"
	EventMarkAsRead         = "mark_as_read"
	EventPing               = "ping"
)

// Outbound event names
const (
	EventConversationMessages = "conversation_messages"
	EventReceiveMessage       = "receive_message"
	EventUserTyping           = "user_typing"
	EventConversationCreated  = "conversation_created"
	EventConversationsList    = "conversations_list"
	EventUserStatus           = "user_status"
	EventMessagesRead         = "messages_read"
	EventError                = "error"
	EventPong                 = "pong"
)

// Event is an outbound frame
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// NewEvent creates an outbound event
func NewEvent(eventType string, payload any) Event {
	return Event{Type: eventType, Payload: payload}
}

// Envelope is the raw form of an inbound frame before its payload is decoded
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound is one variant of the client-to-server event union
type Inbound interface {
	EventType() string
}

// JoinConversation subscribes the connection to a conversation
type JoinConversation struct {
	ConversationID string `json:"conversationId" validate:"required,max=64"`
}

// LeaveConversation drops the subscription to a conversation
type LeaveConversation struct {
	ConversationID string `json:"conversationId" validate:"required,max=64"`
}

// SendMessage publishes a message to a conversation
type SendMessage struct {
	ConversationID string      `json:"conversationId" validate:"required,max=64"`
	Content        string      `json:"content" validate:"required,max=2000"`
	Type           MessageType `json:"type" validate:"omitempty,oneof=text"`
}

// Typing toggles the typing indicator of the sender
type Typing struct {
	ConversationID string `json:"conversationId" validate:"required,max=64"`
	IsTyping       bool   `json:"isTyping"`
}

// CreateConversation finds or creates a conversation with the given participants
type CreateConversation struct {
	ParticipantIDs []string `json:"participantIds" validate:"required,min=1,max=100,dive,required,max=64"`
	IsGroup        bool     `json:"isGroup"`
	GroupName      *string  `json:"groupName" validate:"omitempty,max=100"`
}

// MarkAsRead records read receipts for the sender
type MarkAsRead struct {
	ConversationID string   `json:"conversationId" validate:"required,max=64"`
	MessageIDs     []string `json:"messageIds" validate:"required,min=1,max=200,dive,required,max=64"`
}

// Ping is an application-level keepalive
type Ping struct{}

func (JoinConversation) EventType() string   { return EventJoinConversation }
func (LeaveConversation) EventType() string  { return EventLeaveConversation }
func (SendMessage) EventType() string        { return EventSendMessage }
func (Typing) EventType() string             { return EventTyping }
func (CreateConversation) EventType() string { return EventCreateConversation }
func (MarkAsRead) EventType() string         { return EventMarkAsRead }
func (Ping) EventType() string               { return EventPing }

var validate = validator.New()

// ParseInbound decodes and validates a raw client frame.
// Every failure wraps ErrBadRequest.
func ParseInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame", ErrBadRequest)
	}

	var (
		event Inbound
		err   error
	)
	switch env.Type {
	case EventJoinConversation:
		var e JoinConversation
		e.ConversationID, err = decodeConversationRef(env.Payload)
		event = e
	case EventLeaveConversation:
		var e LeaveConversation
		e.ConversationID, err = decodeConversationRef(env.Payload)
		event = e
	case EventSendMessage:
		var e SendMessage
		err = decodePayload(env.Payload, &e)
		if err == nil && strings.TrimSpace(e.Content) == "" {
			err = fmt.Errorf("%w: content must not be blank", ErrBadRequest)
		}
		if e.Type == "" {
			e.Type = MessageTypeText
		}
		event = e
	case EventTyping:
		var e Typing
		err = decodePayload(env.Payload, &e)
		event = e
	case EventCreateConversation:
		var e CreateConversation
		err = decodePayload(env.Payload, &e)
		event = e
	case EventMarkAsRead:
		var e MarkAsRead
		err = decodePayload(env.Payload, &e)
		event = e
	case EventPing:
		event = Ping{}
	case "":
		return nil, fmt.Errorf("%w: missing event type", ErrBadRequest)
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrBadRequest, env.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := validate.Struct(event); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, describeValidation(err))
	}
	return event, nil
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: missing payload", ErrBadRequest)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: malformed payload", ErrBadRequest)
	}
	return nil
}

// decodeConversationRef accepts either a bare conversation id string or
// an object carrying conversationId.
func decodeConversationRef(payload json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return "", fmt.Errorf("%w: malformed payload", ErrBadRequest)
		}
		return id, nil
	}
	var ref struct {
		ConversationID string `json:"conversationId"`
	}
	if err := decodePayload(payload, &ref); err != nil {
		return "", err
	}
	return ref.ConversationID, nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid payload"
	}
	fe := verrs[0]
	return fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag())
}

// ==== Outbound payloads ====

// UserTypingPayload is the payload of user_typing
type UserTypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	IsTyping       bool   `json:"isTyping"`
}

// UserStatusPayload is the payload of user_status
type UserStatusPayload struct {
	UserID   string     `json:"userId"`
	Username string     `json:"username"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// MessagesReadPayload is the payload of messages_read
type MessagesReadPayload struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	MessageIDs     []string  `json:"messageIds"`
	ReadAt         time.Time `json:"readAt"`
}

// PongPayload is the payload of pong
type PongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}
