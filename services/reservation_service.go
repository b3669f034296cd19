package services

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/database"
	"github.com/anjiri1684/hotel_booking/events"
	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/models"
	"github.com/anjiri1684/hotel_booking/utils"
)

var validate = validator.New()

type GuestInfo struct {
	Name   string `validate:"required,min=2,max=255"`
	Email  string `validate:"required,email"`
	Phone  string `validate:"omitempty,min=7,max=32"`
	Guests int    `validate:"gte=1"`
}

type CreateBookingInput struct {
	RoomID uuid.UUID
	Range  DateRange
	Guest  GuestInfo
}

type ReservationService struct {
	db     *gorm.DB
	events events.Publisher
}

func NewReservationService(db *gorm.DB, pub events.Publisher) *ReservationService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &ReservationService{db: db, events: pub}
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// CreateBooking reserves a room for the actor. The room row is locked and the
// overlap check repeated inside the write transaction, so two requests for
// the same dates cannot both succeed.
func (s *ReservationService) CreateBooking(ctx context.Context, actor models.Actor, in CreateBookingInput) (*models.Booking, error) {
	if actor.ID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	if in.RoomID == uuid.Nil {
		return nil, apperr.Validation("room_id is required")
	}
	if !in.Range.CheckOut.After(in.Range.CheckIn) {
		return nil, apperr.ErrInvalidRange
	}
	in.Guest.Name = strings.TrimSpace(in.Guest.Name)
	in.Guest.Email = strings.ToLower(strings.TrimSpace(in.Guest.Email))
	if in.Guest.Guests == 0 {
		in.Guest.Guests = 1
	}
	if err := validate.Struct(in.Guest); err != nil {
		return nil, apperr.With(apperr.Validation("invalid guest details"), err)
	}

	var booking models.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := forUpdate(tx).First(&room, "id = ?", in.RoomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.With(apperr.ErrNotFound, err)
			}
			return err
		}
		if !room.IsActive || !room.IsAvailable {
			return apperr.ErrRoomUnavailable
		}
		if room.MaxOccupancy > 0 && in.Guest.Guests > room.MaxOccupancy {
			return apperr.Validation("too many guests for this room")
		}

		taken, err := heldOverlapExists(ctx, tx, room.ID, in.Range.CheckIn, in.Range.CheckOut, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return apperr.ErrRoomUnavailable
		}

		code, err := utils.GenerateUniqueReferenceCode(tx)
		if err != nil {
			return err
		}

		nights := in.Range.Nights()
		total := roundMoney(float64(nights) * room.BasePrice)
		booking = models.Booking{
			ReferenceCode: code,
			RoomID:        room.ID,
			UserID:        actor.ID,
			GuestName:     in.Guest.Name,
			GuestEmail:    in.Guest.Email,
			GuestPhone:    in.Guest.Phone,
			Guests:        in.Guest.Guests,
			CheckIn:       in.Range.CheckIn,
			CheckOut:      in.Range.CheckOut,
			Nights:        nights,
			TotalAmount:   total,
			AdvancePaid:   0,
			BalanceDue:    total,
		}
		booking.Reserve()
		if err := tx.Create(&booking).Error; err != nil {
			if database.IsOverlapViolation(err) {
				return apperr.With(apperr.ErrRoomUnavailable, err)
			}
			return err
		}
		booking.Room = room

		return writeAudit(ctx, tx, actor, "reserve", "booking", booking.ID, "", models.StateReserved.String(), "")
	})
	if err != nil {
		return nil, apperr.Persistence(err)
	}

	logging.Log.WithField("booking", booking.ReferenceCode).Info("✅ Booking reserved")
	s.events.Publish(ctx, bookingEvent(events.BookingCreated, &booking, models.StateInvalid, models.StateReserved))
	return &booking, nil
}

// CancelBooking releases an unpaid booking. Payments that never reached the
// gateway are failed with it; in-flight gateway payments are left for the
// gateway to settle.
func (s *ReservationService) CancelBooking(ctx context.Context, actor models.Actor, bookingID uuid.UUID, reason string) (*models.Booking, error) {
	var booking *models.Booking
	var from models.BookingState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := findBookingForActor(ctx, tx, actor, bookingID, true)
		if err != nil {
			return err
		}
		from, err = b.Apply(models.Cancel)
		if err != nil {
			return illegalTransition(err)
		}
		if err := saveBookingState(ctx, tx, b, actor, models.Cancel.Name, from, strings.TrimSpace(reason)); err != nil {
			return err
		}
		if err := tx.Model(&models.Payment{}).
			Where("booking_id = ? AND status = ?", b.ID, models.PaymentPending).
			Updates(map[string]interface{}{"status": models.PaymentFailed, "remarks": "booking cancelled"}).Error; err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence(err)
	}

	s.events.Publish(ctx, bookingEvent(events.BookingCancelled, booking, from, models.StateCancelled))
	return booking, nil
}

func (s *ReservationService) GetBooking(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	b, err := findBookingForActor(ctx, s.db, actor, bookingID, false)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(&b.Room, "id = ?", b.RoomID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Persistence(err)
	}
	return b, nil
}

type BookingFilter struct {
	UserID uuid.UUID
	State  string
	Limit  int
	Offset int
}

func (s *ReservationService) ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error) {
	q := s.db.WithContext(ctx).Preload("Room").Order("created_at DESC")
	if f.UserID != uuid.Nil {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.State != "" {
		st, err := models.ParseState(f.State)
		if err != nil {
			return nil, apperr.Validation("unknown booking state")
		}
		q = q.Where("status = ? AND payment_status = ?", st.Status(), st.PaymentStatus())
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	var bookings []models.Booking
	if err := q.Limit(f.Limit).Offset(f.Offset).Find(&bookings).Error; err != nil {
		return nil, apperr.Persistence(err)
	}
	return bookings, nil
}
