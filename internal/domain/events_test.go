package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseInbound_Variants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"join with object", `{"type":"join_conversation","payload":{"conversationId":"c1"}}`, EventJoinConversation},
		{"join with bare id", `{"type":"join_conversation","payload":"c1"}`, EventJoinConversation},
		{"leave", `{"type":"leave_conversation","payload":"c1"}`, EventLeaveConversation},
		{"send", `{"type":"send_message","payload":{"conversationId":"c1","content":"hi"}}`, EventSendMessage},
		{"typing", `{"type":"typing","payload":{"conversationId":"c1","isTyping":true}}`, EventTyping},
		{"create", `{"type":"create_conversation","payload":{"participantIds":["u2"],"isGroup":false}}`, EventCreateConversation},
		{"read", `{"type":"mark_as_read","payload":{"conversationId":"c1","messageIds":["m1","m2"]}}`, EventMarkAsRead},
		{"ping", `{"type":"ping"}`, EventPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseInbound([]byte(tt.raw))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.EventType() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, ev.EventType())
			}
		})
	}
}

func TestParseInbound_JoinBareID(t *testing.T) {
	ev, err := ParseInbound([]byte(`{"type":"join_conversation","payload":"abc"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	join, ok := ev.(JoinConversation)
	if !ok {
		t.Fatalf("Expected JoinConversation, got %T", ev)
	}
	if join.ConversationID != "abc" {
		t.Errorf("Expected abc, got %s", join.ConversationID)
	}
}

func TestParseInbound_SendDefaultsToText(t *testing.T) {
	ev, err := ParseInbound([]byte(`{"type":"send_message","payload":{"conversationId":"c1","content":"hello"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.(SendMessage).Type != MessageTypeText {
		t.Errorf("Expected default type text, got %q", ev.(SendMessage).Type)
	}
}

func TestParseInbound_Rejects(t *testing.T) {
	tooLong := strings.Repeat("a", MaxContentLength+1)
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `nope`},
		{"missing type", `{"payload":{}}`},
		{"unknown type", `{"type":"explode"}`},
		{"join missing id", `{"type":"join_conversation","payload":{}}`},
		{"send blank content", `{"type":"send_message","payload":{"conversationId":"c1","content":"   "}}`},
		{"send too long", `{"type":"send_message","payload":{"conversationId":"c1","content":"` + tooLong + `"}}`},
		{"send bad type", `{"type":"send_message","payload":{"conversationId":"c1","content":"x","type":"image"}}`},
		{"send missing payload", `{"type":"send_message"}`},
		{"create empty participants", `{"type":"create_conversation","payload":{"participantIds":[]}}`},
		{"create blank participant", `{"type":"create_conversation","payload":{"participantIds":[""]}}`},
		{"read no ids", `{"type":"mark_as_read","payload":{"conversationId":"c1","messageIds":[]}}`},
		{"typing wrong shape", `{"type":"typing","payload":"c1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInbound([]byte(tt.raw))
			if !errors.Is(err, ErrBadRequest) {
				t.Errorf("Expected ErrBadRequest, got %v", err)
			}
		})
	}
}

func TestNewErrorEvent(t *testing.T) {
	ev := NewErrorEvent(errors.Join(ErrStoreFailure, errors.New("pq: connection refused")), EventSendMessage)

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Type    string       `json:"type"`
		Payload ErrorPayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Type != EventError {
		t.Errorf("Expected error event, got %s", decoded.Type)
	}
	if decoded.Payload.Code != CodeStoreFailure {
		t.Errorf("Expected %s, got %s", CodeStoreFailure, decoded.Payload.Code)
	}
	if strings.Contains(decoded.Payload.Message, "pq:") {
		t.Errorf("Driver detail leaked: %s", decoded.Payload.Message)
	}
	if decoded.Payload.Event != EventSendMessage {
		t.Errorf("Expected cause %s, got %s", EventSendMessage, decoded.Payload.Event)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrAuth, CodeAuthFailed},
		{ErrUnauthorized, CodeUnauthorized},
		{ErrNotFound, CodeNotFound},
		{ErrBadRequest, CodeBadRequest},
		{ErrRateLimited, CodeRateLimited},
		{errors.New("boom"), CodeInternalError},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
