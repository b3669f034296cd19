package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	ActorID    *uuid.UUID `gorm:"type:uuid;index" json:"actor_id"`
	ActorRole  string     `gorm:"size:20;not null" json:"actor_role"`
	Action     string     `gorm:"size:64;not null;index" json:"action"`
	EntityType string     `gorm:"size:32;not null" json:"entity_type"`
	EntityID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"entity_id"`
	FromState  string     `gorm:"size:32" json:"from_state"`
	ToState    string     `gorm:"size:32" json:"to_state"`
	Note       string     `gorm:"type:text" json:"note"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
