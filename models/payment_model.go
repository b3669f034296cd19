package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

const (
	ProviderEasebuzz = "easebuzz"
	ProviderManual   = "manual"
)

// CanAdvanceTo reports whether a payment may move from s to next. Statuses
// only move forward; completed is never downgraded. A failed attempt may
// still be superseded by a verified success, since the gateway is the source
// of truth for captured money.
func (s PaymentStatus) CanAdvanceTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentProcessing || next == PaymentCompleted || next == PaymentFailed
	case PaymentProcessing:
		return next == PaymentCompleted || next == PaymentFailed
	case PaymentFailed:
		return next == PaymentCompleted
	case PaymentCompleted:
		return next == PaymentRefunded
	default:
		return false
	}
}

func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed || s == PaymentRefunded
}

type Payment struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	BookingID uuid.UUID `gorm:"type:uuid;not null;index" json:"booking_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Amount   float64 `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency string  `gorm:"size:3;not null" json:"currency"`
	Provider string  `gorm:"size:50;not null" json:"provider"`

	TransactionID string  `gorm:"size:64;not null;uniqueIndex" json:"transaction_id"`
	GatewayTxnID  *string `gorm:"size:128" json:"gateway_txn_id,omitempty"`
	CheckoutURL   *string `gorm:"size:512" json:"checkout_url,omitempty"`

	Status          PaymentStatus  `gorm:"size:20;not null;index" json:"status"`
	GatewayResponse datatypes.JSON `gorm:"type:jsonb" json:"gateway_response,omitempty"`
	Remarks         *string        `gorm:"type:text" json:"remarks,omitempty"`

	LastEventAt *time.Time `json:"last_event_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	Booking Booking `gorm:"foreignkey:BookingID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
