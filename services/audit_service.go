package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/models"
)

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

type AuditFilter struct {
	EntityID uuid.UUID
	Action   string
	Limit    int
	Offset   int
}

func (s *AuditService) List(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if f.EntityID != uuid.Nil {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 100
	}
	var logs []models.AuditLog
	if err := q.Limit(f.Limit).Offset(f.Offset).Find(&logs).Error; err != nil {
		return nil, apperr.Persistence(err)
	}
	return logs, nil
}
