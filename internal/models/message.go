package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a persisted chat message inside a conversation.
type Message struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	ConversationID string    `gorm:"type:text;not null;index:idx_conversation_created" json:"conversation_id"`
	SenderID       string    `gorm:"type:text;not null;index" json:"sender_id"`
	RecipientID    string    `gorm:"type:text;not null;index:idx_recipient_unread" json:"recipient_id"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	IsRead         bool      `gorm:"not null;default:false;index:idx_recipient_unread" json:"is_read"`
	CreatedAt      time.Time `gorm:"index:idx_conversation_created" json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// Counterpart returns the participant who is not userID.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// ConversationSummary is one row of a user's inbox.
type ConversationSummary struct {
	ConversationID string  `json:"conversation_id"`
	OtherUserID    string  `json:"other_user_id"`
	LastMessage    Message `json:"last_message"`
	UnreadCount    int     `json:"unread_count"`
}

// Conversation binds a conversation id to the one pair allowed to write in
// it. The row is created with the first message.
type Conversation struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	PairKey   string    `gorm:"type:text;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationPrefix marks canonical conversation ids.
const ConversationPrefix = "conv:"

// ConversationIDFor derives the canonical conversation id for two users.
func ConversationIDFor(a, b string) string {
	return ConversationPrefix + PairKey(a, b)
}

// IsCanonicalConversationID reports whether id uses the reserved prefix.
// Such ids only ever hold messages of the pair they name.
func IsCanonicalConversationID(id string) bool {
	return strings.HasPrefix(id, ConversationPrefix)
}

// ConversationParticipants splits a canonical id back into its two users.
// ok is false unless id is exactly ConversationIDFor(a, b) for valid ids.
func ConversationParticipants(id string) (a, b string, ok bool) {
	pair, found := strings.CutPrefix(id, ConversationPrefix)
	if !found {
		return "", "", false
	}
	parts := strings.Split(pair, idSeparator)
	if len(parts) != 2 || !ValidUserID(parts[0]) || !ValidUserID(parts[1]) {
		return "", "", false
	}
	if ConversationIDFor(parts[0], parts[1]) != id {
		return "", "", false
	}
	return parts[0], parts[1], true
}
