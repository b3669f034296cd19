package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Booking struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ReferenceCode string    `gorm:"size:16;not null;uniqueIndex" json:"reference_code"`
	RoomID        uuid.UUID `gorm:"type:uuid;not null;index" json:"room_id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	GuestName  string `gorm:"size:255;not null" json:"guest_name"`
	GuestEmail string `gorm:"size:255;not null" json:"guest_email"`
	GuestPhone string `gorm:"size:32" json:"guest_phone"`
	Guests     int    `gorm:"not null;default:1" json:"guests"`

	CheckIn  time.Time `gorm:"type:date;not null;index" json:"check_in"`
	CheckOut time.Time `gorm:"type:date;not null;index" json:"check_out"`
	Nights   int       `gorm:"not null" json:"nights"`

	Status        BookingStatus        `gorm:"size:20;not null;index" json:"status"`
	PaymentStatus BookingPaymentStatus `gorm:"size:30;not null;index" json:"payment_status"`

	TotalAmount float64 `gorm:"type:numeric(10,2);not null" json:"total_amount"`
	AdvancePaid float64 `gorm:"type:numeric(10,2);not null" json:"advance_paid"`
	BalanceDue  float64 `gorm:"type:numeric(10,2);not null" json:"balance_due"`

	PaymentScreenshotURL *string `gorm:"size:512" json:"payment_screenshot_url,omitempty"`
	ManualTransactionID  *string `gorm:"size:128" json:"manual_transaction_id,omitempty"`

	Room Room `gorm:"foreignkey:RoomID" json:"room,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b *Booking) State() (BookingState, error) {
	return StateOf(b.Status, b.PaymentStatus)
}

// Reserve puts a new booking into its initial, room-holding state.
func (b *Booking) Reserve() {
	b.Status = StateReserved.Status()
	b.PaymentStatus = StateReserved.PaymentStatus()
}

// Apply moves the booking through t, writing both status columns together.
// It returns the state the booking was in before the transition.
func (b *Booking) Apply(t Transition) (BookingState, error) {
	from, err := b.State()
	if err != nil {
		return StateInvalid, err
	}
	if !t.Allows(from) {
		return from, fmt.Errorf("%w: %s from %s", ErrIllegalTransition, t.Name, from)
	}
	b.Status = t.To.Status()
	b.PaymentStatus = t.To.PaymentStatus()
	return from, nil
}

// SettleFull snapshots a completed payment into the balance fields.
func (b *Booking) SettleFull(amount float64) {
	b.AdvancePaid = amount
	b.BalanceDue = 0
}

// Overlaps is the half-open interval test: a checkout on day X does not
// conflict with a check-in on day X.
func (b *Booking) Overlaps(checkIn, checkOut time.Time) bool {
	return b.CheckIn.Before(checkOut) && b.CheckOut.After(checkIn)
}
