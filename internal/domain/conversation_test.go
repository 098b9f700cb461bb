package domain

import "testing"

func TestPairKey_OrderIndependent(t *testing.T) {
	if PairKey("a", "b") != PairKey("b", "a") {
		t.Error("Expected pair key to ignore argument order")
	}
	if PairKey("a", "b") == PairKey("a", "c") {
		t.Error("Expected distinct pairs to have distinct keys")
	}
}

func TestNewGroupConversation_BlankNameIsNil(t *testing.T) {
	blank := "   "
	conv := NewGroupConversation([]string{"a", "b", "c"}, "a", &blank)
	if conv.GroupName != nil {
		t.Errorf("Expected nil group name, got %q", *conv.GroupName)
	}
	if conv.PairKey() != "" {
		t.Error("Expected groups to have no pair key")
	}

	name := " Team "
	conv = NewGroupConversation([]string{"a", "b"}, "a", &name)
	if conv.GroupName == nil || *conv.GroupName != "Team" {
		t.Errorf("Expected trimmed group name, got %v", conv.GroupName)
	}
}

func TestNewDirectConversation(t *testing.T) {
	conv := NewDirectConversation("u1", "u2")
	if conv.IsGroup {
		t.Error("Expected direct conversation")
	}
	if !conv.HasParticipant("u1") || !conv.HasParticipant("u2") {
		t.Error("Expected both users as participants")
	}
	if conv.HasParticipant("u3") {
		t.Error("Unexpected participant u3")
	}
	if conv.PairKey() != PairKey("u2", "u1") {
		t.Errorf("Unexpected pair key %s", conv.PairKey())
	}
	if conv.GroupName != nil {
		t.Error("Direct conversations carry no group name")
	}
}

func TestNewMessage_Defaults(t *testing.T) {
	msg := NewMessage("c1", "u1", "hi", "")
	if msg.Type != MessageTypeText {
		t.Errorf("Expected text type, got %s", msg.Type)
	}
	if msg.ReadBy == nil || len(msg.ReadBy) != 0 {
		t.Error("Fresh message should have an empty receipt list")
	}
}
