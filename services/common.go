package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/events"
	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/models"
	"github.com/anjiri1684/hotel_booking/utils"
)

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// findBookingForActor loads a booking the actor may see. Bookings owned by
// someone else are reported as not found.
func findBookingForActor(ctx context.Context, tx *gorm.DB, actor models.Actor, id uuid.UUID, lock bool) (*models.Booking, error) {
	q := tx.WithContext(ctx)
	if lock {
		q = forUpdate(q)
	}
	var b models.Booking
	if err := q.First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrBookingNotFound
		}
		return nil, apperr.Persistence(err)
	}
	if !actor.Owns(b.UserID) {
		return nil, apperr.ErrBookingNotFound
	}
	return &b, nil
}

// heldOverlapExists reports whether another room-holding booking overlaps
// [checkIn, checkOut) on roomID.
func heldOverlapExists(ctx context.Context, tx *gorm.DB, roomID uuid.UUID, checkIn, checkOut time.Time, excludeID uuid.UUID) (bool, error) {
	cond, args := models.HeldCondition()
	q := tx.WithContext(ctx).Model(&models.Booking{}).
		Where("room_id = ?", roomID).
		Where("check_in < ? AND check_out > ?", checkOut, checkIn).
		Where(cond, args...)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// saveBookingState persists the status pair and balance fields written by a
// transition together with its audit record.
func saveBookingState(ctx context.Context, tx *gorm.DB, b *models.Booking, actor models.Actor, action string, from models.BookingState, note string) error {
	if err := tx.WithContext(ctx).Model(b).Select(
		"status", "payment_status", "advance_paid", "balance_due",
		"payment_screenshot_url", "manual_transaction_id", "updated_at",
	).Updates(b).Error; err != nil {
		return err
	}
	to, _ := b.State()
	return writeAudit(ctx, tx, actor, action, "booking", b.ID, from.String(), to.String(), note)
}

func writeAudit(ctx context.Context, tx *gorm.DB, actor models.Actor, action, entityType string, entityID uuid.UUID, from, to, note string) error {
	return tx.WithContext(ctx).Create(&models.AuditLog{
		ActorID:    actor.IDPtr(),
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		FromState:  from,
		ToState:    to,
		Note:       note,
	}).Error
}

func toJSON(v interface{}) datatypes.JSON {
	if raw, ok := v.(json.RawMessage); ok {
		if json.Valid(raw) {
			return datatypes.JSON(raw)
		}
		v = string(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON(`{}`)
	}
	return datatypes.JSON(b)
}

// appendPaymentLog writes a log row on its own. It never fails the caller:
// the row is a record of traffic, not part of the transition.
func appendPaymentLog(ctx context.Context, db *gorm.DB, entry models.PaymentLog) *models.PaymentLog {
	if entry.Payload == nil {
		entry.Payload = datatypes.JSON(`{}`)
	}
	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		logging.Log.WithFields(map[string]interface{}{
			"txnid": entry.TransactionID,
			"event": entry.EventType,
		}).Errorf("🔥 Failed to write payment log: %v", err)
		return nil
	}
	return &entry
}

func bookingEvent(eventType string, b *models.Booking, from, to models.BookingState) events.Event {
	e := events.Event{
		Type:          eventType,
		BookingID:     b.ID,
		ReferenceCode: b.ReferenceCode,
		ToState:       to.String(),
		Amount:        b.TotalAmount,
		GuestName:     b.GuestName,
		GuestEmail:    b.GuestEmail,
		RoomNumber:    b.Room.Number,
		CheckIn:       b.CheckIn.Format(utils.DateLayout),
		CheckOut:      b.CheckOut.Format(utils.DateLayout),
		Nights:        b.Nights,
		OccurredAt:    time.Now().UTC(),
	}
	if from != models.StateInvalid {
		e.FromState = from.String()
	}
	return e
}

func illegalTransition(err error) error {
	if errors.Is(err, models.ErrIllegalTransition) || errors.Is(err, models.ErrInvalidState) {
		return apperr.With(apperr.ErrInvalidTransition, err)
	}
	return err
}
