package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ShelterOffer is a host's offer of temporary shelter. AvailableTo == nil
// means the offer is open-ended.
type ShelterOffer struct {
	ID            string         `gorm:"primaryKey" json:"id"`
	HostID        string         `gorm:"type:text;not null;index" json:"host_id"`
	Title         string         `gorm:"type:text" json:"title"`
	Latitude      *float64       `json:"latitude,omitempty"`
	Longitude     *float64       `json:"longitude,omitempty"`
	AvailableFrom time.Time      `gorm:"not null" json:"available_from"`
	AvailableTo   *time.Time     `json:"available_to,omitempty"`
	Capacity      int            `gorm:"not null" json:"capacity"`
	IsActive      bool           `gorm:"not null;default:true;index" json:"is_active"`
	Tags          pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TableName keeps the table name short.
func (ShelterOffer) TableName() string { return "shelters" }

func (s *ShelterOffer) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}

// HasCoordinates reports whether the offer has been geocoded upstream.
func (s *ShelterOffer) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// ValidWindow reports whether AvailableFrom <= AvailableTo (or the window is open-ended).
func (s *ShelterOffer) ValidWindow() bool {
	return s.AvailableTo == nil || !s.AvailableFrom.After(*s.AvailableTo)
}
