package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/events"
	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/models"
)

const DefaultHoldWindow = 30 * time.Minute

type ExpiryService struct {
	db     *gorm.DB
	events events.Publisher
	now    func() time.Time
}

func NewExpiryService(db *gorm.DB, pub events.Publisher) *ExpiryService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &ExpiryService{db: db, events: pub, now: func() time.Time { return time.Now().UTC() }}
}

var errNotExpirable = errors.New("booking no longer expirable")

// ReleaseExpired expires reserved bookings older than holdWindow and fails
// their unsent payments. Bookings awaiting verification or already paid are
// never touched, and a second run finds nothing to do.
func (s *ExpiryService) ReleaseExpired(ctx context.Context, holdWindow time.Duration) (int, error) {
	if holdWindow <= 0 {
		holdWindow = DefaultHoldWindow
	}
	cutoff := s.now().Add(-holdWindow)
	reserved := models.StateReserved

	var ids []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("status = ? AND payment_status = ?", reserved.Status(), reserved.PaymentStatus()).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return 0, apperr.Persistence(err)
	}

	released := 0
	var firstErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return released, err
		}
		ok, err := s.expireOne(ctx, id, cutoff)
		if err != nil {
			logging.Log.WithField("booking_id", id).Errorf("🔥 Failed to expire booking: %v", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			released++
		}
	}

	if released > 0 {
		logging.Log.Infof("✅ Released %d expired booking holds", released)
	}
	if firstErr != nil {
		return released, apperr.Persistence(fmt.Errorf("expire bookings: %w", firstErr))
	}
	return released, nil
}

func (s *ExpiryService) expireOne(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error) {
	var booking models.Booking
	var failed []models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&booking, "id = ?", id).Error; err != nil {
			return err
		}
		// Re-read under the lock: a payment may have landed since the scan.
		if st, _ := booking.State(); st != models.StateReserved || !booking.CreatedAt.Before(cutoff) {
			return errNotExpirable
		}
		if _, err := booking.Apply(models.Expire); err != nil {
			return err
		}
		if err := saveBookingState(ctx, tx, &booking, models.SystemActor, models.Expire.Name, models.StateReserved, "hold window elapsed"); err != nil {
			return err
		}

		if err := tx.Where("booking_id = ? AND status = ?", booking.ID, models.PaymentPending).Find(&failed).Error; err != nil {
			return err
		}
		if len(failed) == 0 {
			return nil
		}
		return tx.Model(&models.Payment{}).
			Where("booking_id = ? AND status = ?", booking.ID, models.PaymentPending).
			Updates(map[string]interface{}{"status": models.PaymentFailed, "remarks": "booking hold expired", "processed_at": s.now()}).Error
	})
	if errors.Is(err, errNotExpirable) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for i := range failed {
		p := failed[i]
		appendPaymentLog(ctx, s.db, models.PaymentLog{
			PaymentID:     &p.ID,
			BookingID:     &booking.ID,
			TransactionID: p.TransactionID,
			EventType:     models.LogExpired,
			Status:        string(models.PaymentFailed),
		})
	}
	s.events.Publish(ctx, bookingEvent(events.BookingExpired, &booking, models.StateReserved, models.StateExpired))
	return true, nil
}
