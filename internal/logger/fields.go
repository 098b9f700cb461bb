package logger

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"
	FieldConnID   = "conn_id"

	// Messaging
	FieldConversationID = "conversation_id"
	FieldMessageID      = "message_id"
	FieldEvent          = "event"
	FieldChannel        = "channel"

	FieldService = "service"
)
