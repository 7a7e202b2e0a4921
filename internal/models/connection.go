package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConnectionStatus is the state of the consent handshake between two users.
type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "PENDING"
	ConnectionApproved ConnectionStatus = "APPROVED"
	ConnectionRejected ConnectionStatus = "REJECTED"
)

// Terminal reports whether no further transition is allowed from s.
func (s ConnectionStatus) Terminal() bool {
	return s == ConnectionApproved || s == ConnectionRejected
}

// Connection links one unordered pair of users. PairKey is the canonical
// form of {RequesterID, RecipientID} and is unique across the table.
type Connection struct {
	ID          string           `gorm:"primaryKey" json:"id"`
	RequesterID string           `gorm:"type:text;not null;index" json:"requester_id"`
	RecipientID string           `gorm:"type:text;not null;index" json:"recipient_id"`
	PairKey     string           `gorm:"type:text;not null;uniqueIndex" json:"-"`
	Status      ConnectionStatus `gorm:"type:text;not null;default:PENDING" json:"status"`
	Message     *string          `gorm:"type:text" json:"message,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (c *Connection) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.PairKey == "" {
		c.PairKey = PairKey(c.RequesterID, c.RecipientID)
	}
	return
}

// OtherParty returns the counterpart of userID in the connection.
func (c *Connection) OtherParty(userID string) string {
	if c.RequesterID == userID {
		return c.RecipientID
	}
	return c.RequesterID
}

// Involves reports whether userID is one of the two parties.
func (c *Connection) Involves(userID string) bool {
	return c.RequesterID == userID || c.RecipientID == userID
}

// idSeparator joins user ids in pair keys and canonical conversation ids,
// so it may not appear inside a user id.
const idSeparator = ":"

// ValidUserID reports whether id can take part in pair keys.
func ValidUserID(id string) bool {
	return id != "" && !strings.Contains(id, idSeparator)
}

// PairKey returns the order-independent key for two user ids. Both ids must
// pass ValidUserID, otherwise distinct pairs may share a key.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + idSeparator + b
}
