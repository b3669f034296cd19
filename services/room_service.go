package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/models"
)

type RoomInput struct {
	Number       string  `json:"number" validate:"required,max=50"`
	RoomType     string  `json:"room_type" validate:"required,max=50"`
	BasePrice    float64 `json:"base_price" validate:"gt=0"`
	MaxOccupancy int     `json:"max_occupancy" validate:"gte=1,lte=20"`
	IsActive     *bool   `json:"is_active"`
	IsAvailable  *bool   `json:"is_available"`
}

// RoomService is the minimal catalog surface the back office needs to keep
// rooms bookable.
type RoomService struct {
	db *gorm.DB
}

func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{db: db}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (s *RoomService) CreateRoom(ctx context.Context, admin models.Actor, in RoomInput) (*models.Room, error) {
	if !admin.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	if in.MaxOccupancy == 0 {
		in.MaxOccupancy = 2
	}
	if err := validate.Struct(in); err != nil {
		return nil, apperr.With(apperr.Validation("invalid room details"), err)
	}
	room := models.Room{
		Number:       strings.TrimSpace(in.Number),
		RoomType:     strings.ToLower(strings.TrimSpace(in.RoomType)),
		BasePrice:    roundMoney(in.BasePrice),
		MaxOccupancy: in.MaxOccupancy,
		IsActive:     boolOr(in.IsActive, true),
		IsAvailable:  boolOr(in.IsAvailable, true),
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Room{}).Where("number = ?", room.Number).Count(&count).Error; err != nil {
		return nil, apperr.Persistence(err)
	}
	if count > 0 {
		return nil, apperr.Validation("room number already exists")
	}
	if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
		return nil, apperr.Persistence(err)
	}
	return &room, nil
}

// SetRoomFlags toggles whether a room can be offered. Existing bookings are
// unaffected.
func (s *RoomService) SetRoomFlags(ctx context.Context, admin models.Actor, id uuid.UUID, isActive, isAvailable *bool) (*models.Room, error) {
	if !admin.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	var room models.Room
	if err := s.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Persistence(err)
	}
	room.IsActive = boolOr(isActive, room.IsActive)
	room.IsAvailable = boolOr(isAvailable, room.IsAvailable)
	if err := s.db.WithContext(ctx).Model(&room).Select("is_active", "is_available").Updates(&room).Error; err != nil {
		return nil, apperr.Persistence(err)
	}
	return &room, nil
}

func (s *RoomService) ListRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := s.db.WithContext(ctx).Order("number ASC").Find(&rooms).Error; err != nil {
		return nil, apperr.Persistence(err)
	}
	return rooms, nil
}
