package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus is the lifecycle state of a shelter request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestCompleted RequestStatus = "COMPLETED"
)

// ShelterRequest is a seeker's need for shelter on a single date.
type ShelterRequest struct {
	ID             string        `gorm:"primaryKey" json:"id"`
	SeekerID       string        `gorm:"type:text;not null;index" json:"seeker_id"`
	Latitude       *float64      `json:"latitude,omitempty"`
	Longitude      *float64      `json:"longitude,omitempty"`
	Date           time.Time     `gorm:"not null" json:"date"`
	NumberOfPeople int           `gorm:"not null" json:"number_of_people"`
	Description    string        `gorm:"type:text" json:"description,omitempty"`
	Status         RequestStatus `gorm:"type:text;not null;default:PENDING;index" json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (ShelterRequest) TableName() string { return "requests" }

func (r *ShelterRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// HasCoordinates reports whether the request has been geocoded upstream.
func (r *ShelterRequest) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}
