package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room is owned by the property catalog. The booking core only reads it.
type Room struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Number       string    `gorm:"size:50;not null;uniqueIndex" json:"number"`
	RoomType     string    `gorm:"size:50;not null;index" json:"room_type"`
	BasePrice    float64   `gorm:"type:numeric(10,2);not null" json:"base_price"`
	MaxOccupancy int       `gorm:"not null;default:2" json:"max_occupancy"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	IsAvailable  bool      `gorm:"not null" json:"is_available"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
