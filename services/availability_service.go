package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/models"
	"github.com/anjiri1684/hotel_booking/utils"
)

type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// NewDateRange validates a half-open [checkIn, checkOut) stay.
func NewDateRange(checkIn, checkOut time.Time) (DateRange, error) {
	in, out := utils.TruncateDate(checkIn), utils.TruncateDate(checkOut)
	if !out.After(in) {
		return DateRange{}, apperr.ErrInvalidRange
	}
	return DateRange{CheckIn: in, CheckOut: out}, nil
}

// ParseDateRange parses YYYY-MM-DD inputs into a validated range.
func ParseDateRange(checkIn, checkOut string) (DateRange, error) {
	in, err := utils.ParseDate(strings.TrimSpace(checkIn))
	if err != nil {
		return DateRange{}, apperr.With(apperr.ErrInvalidRange, err)
	}
	out, err := utils.ParseDate(strings.TrimSpace(checkOut))
	if err != nil {
		return DateRange{}, apperr.With(apperr.ErrInvalidRange, err)
	}
	return NewDateRange(in, out)
}

func (r DateRange) Nights() int { return utils.Nights(r.CheckIn, r.CheckOut) }

type AvailabilityResult struct {
	Rooms         []models.Room `json:"rooms"`
	TotalRooms    int           `json:"total_rooms"`
	ExcludedRooms int           `json:"excluded_rooms"`
}

// ComputeAvailability subtracts rooms held by overlapping bookings from the
// active rooms and orders the rest by price, then id.
func ComputeAvailability(rooms []models.Room, bookings []models.Booking, r DateRange, roomType string) AvailabilityResult {
	held := make(map[uuid.UUID]bool)
	for i := range bookings {
		b := &bookings[i]
		state, err := b.State()
		if err != nil || !state.HoldsRoom() {
			continue
		}
		if b.Overlaps(r.CheckIn, r.CheckOut) {
			held[b.RoomID] = true
		}
	}

	result := AvailabilityResult{Rooms: []models.Room{}}
	for _, room := range rooms {
		if !room.IsActive || !room.IsAvailable {
			continue
		}
		if roomType != "" && !strings.EqualFold(room.RoomType, roomType) {
			continue
		}
		result.TotalRooms++
		if held[room.ID] {
			result.ExcludedRooms++
			continue
		}
		result.Rooms = append(result.Rooms, room)
	}

	sort.SliceStable(result.Rooms, func(i, j int) bool {
		a, b := result.Rooms[i], result.Rooms[j]
		if a.BasePrice != b.BasePrice {
			return a.BasePrice < b.BasePrice
		}
		return a.ID.String() < b.ID.String()
	})
	return result
}

type AvailabilityService struct {
	db *gorm.DB
}

func NewAvailabilityService(db *gorm.DB) *AvailabilityService {
	return &AvailabilityService{db: db}
}

func (s *AvailabilityService) FindAvailableRooms(ctx context.Context, r DateRange, roomType string) (*AvailabilityResult, error) {
	if !r.CheckOut.After(r.CheckIn) {
		return nil, apperr.ErrInvalidRange
	}

	var rooms []models.Room
	q := s.db.WithContext(ctx).Where("is_active = ? AND is_available = ?", true, true)
	if roomType != "" {
		q = q.Where("LOWER(room_type) = ?", strings.ToLower(roomType))
	}
	if err := q.Find(&rooms).Error; err != nil {
		return nil, apperr.Persistence(err)
	}

	cond, args := models.HeldCondition()
	var bookings []models.Booking
	if err := s.db.WithContext(ctx).
		Select("id", "room_id", "check_in", "check_out", "status", "payment_status").
		Where("check_in < ? AND check_out > ?", r.CheckOut, r.CheckIn).
		Where(cond, args...).
		Find(&bookings).Error; err != nil {
		return nil, apperr.Persistence(err)
	}

	result := ComputeAvailability(rooms, bookings, r, roomType)
	return &result, nil
}
