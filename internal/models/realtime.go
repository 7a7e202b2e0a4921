package models

// Event types pushed to realtime sessions.
const (
	EventConnectionRequest = "connection_request"
	EventConnectionUpdate  = "connection_update"
	EventNewMessage        = "new_message"
	EventNotification      = "notification"
	EventUserTyping        = "user_typing"
	EventUserStopTyping    = "user_stop_typing"
	EventError             = "error"
)

// Inbound frame types sent by websocket clients.
const (
	FrameJoinConversation  = "join_conversation"
	FrameLeaveConversation = "leave_conversation"
	FrameTyping            = "typing"
	FrameStopTyping        = "stop_typing"
)

// Event is a server-to-client realtime frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ClientFrame is a client-to-server realtime frame.
type ClientFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	RecipientID    string `json:"recipient_id,omitempty"`
}

// ConnectionEvent is the payload of connection_request and connection_update.
type ConnectionEvent struct {
	// Action is one of "requested", "approved", "rejected".
	Action     string     `json:"action"`
	Connection Connection `json:"connection"`
	ActorID    string     `json:"actor_id"`
}

// Notification is the payload pushed to a recipient's personal channel.
type Notification struct {
	Kind           string `json:"kind"`
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id,omitempty"`
	SenderID       string `json:"sender_id,omitempty"`
	SenderName     string `json:"sender_name,omitempty"`
}

// ErrorEvent is the payload of an error frame sent back to one session.
type ErrorEvent struct {
	Message string `json:"message"`
	Frame   string `json:"frame,omitempty"`
}

// TypingEvent is the payload of user_typing and user_stop_typing.
type TypingEvent struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}
