package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the part a user plays on the platform.
type Role string

const (
	RoleHost   Role = "HOST"
	RoleSeeker Role = "SEEKER"
	RoleAdmin  Role = "ADMIN"
)

// User is the read-only identity record the core consults. Registration and
// credentials live outside this service.
type User struct {
	ID        string   `gorm:"primaryKey" json:"id"`
	Name      string   `gorm:"type:text;not null" json:"name"`
	Role      Role     `gorm:"type:text;not null;default:SEEKER" json:"role"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	// Language picks the notification translation; empty means English.
	Language  string    `gorm:"type:text" json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate generates a UUID for the user when ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
