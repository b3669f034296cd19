package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	LogInitiate             = "INITIATE"
	LogInitiateFailed       = "INITIATE_FAILED"
	LogWebhookReceived      = "WEBHOOK_RECEIVED"
	LogSignatureMismatch    = "SIGNATURE_MISMATCH"
	LogStatusPoll           = "STATUS_POLL"
	LogStatusPollFailed     = "STATUS_POLL_FAILED"
	LogManualProofSubmitted = "MANUAL_PROOF_SUBMITTED"
	LogManualVerified       = "MANUAL_VERIFIED"
	LogManualRejected       = "MANUAL_REJECTED"
	LogExpired              = "EXPIRED"
	LogDuplicateCapture     = "DUPLICATE_CAPTURE"
	LogSuperseded           = "SUPERSEDED"
)

// PaymentLog is the append-only record of gateway traffic. PaymentID and
// BookingID may be empty when the event arrives before its payment is
// resolved; they are back-filled and nothing else is ever updated.
type PaymentLog struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	PaymentID     *uuid.UUID     `gorm:"type:uuid;index" json:"payment_id"`
	BookingID     *uuid.UUID     `gorm:"type:uuid;index" json:"booking_id"`
	TransactionID string         `gorm:"size:64;index" json:"transaction_id"`
	EventType     string         `gorm:"size:40;not null;index" json:"event_type"`
	Status        string         `gorm:"size:40" json:"status"`
	Payload       datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (l *PaymentLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
