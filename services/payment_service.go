package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/events"
	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/models"
	"github.com/anjiri1684/hotel_booking/obs"
	"github.com/anjiri1684/hotel_booking/payments"
)

// Gateway is the payment provider as seen by the booking core.
type Gateway interface {
	Initiate(ctx context.Context, r payments.InitiateRequest) (*payments.InitiateResult, error)
	CheckStatus(ctx context.Context, txnID string) (*payments.StatusResult, error)
	VerifyCallback(cb payments.Callback) bool
}

const (
	// initiateGrace outlasts any gateway call. A pending attempt older than
	// this never handed out a checkout link and may be superseded.
	initiateGrace    = 2 * time.Minute
	supersededRemark = "superseded by a new payment attempt"
)

type TxnIDSource interface {
	Next() string
}

type PaymentService struct {
	db       *gorm.DB
	gateway  Gateway
	txnIDs   TxnIDSource
	events   events.Publisher
	currency string
	now      func() time.Time
}

func NewPaymentService(db *gorm.DB, gateway Gateway, txnIDs TxnIDSource, pub events.Publisher, currency string) *PaymentService {
	if pub == nil {
		pub = events.Nop{}
	}
	if currency == "" {
		currency = "INR"
	}
	return &PaymentService{
		db:       db,
		gateway:  gateway,
		txnIDs:   txnIDs,
		events:   pub,
		currency: currency,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type InitiateOutcome struct {
	Payment     *models.Payment `json:"payment"`
	CheckoutURL string          `json:"checkout_url"`
	// Resumed is set when an open checkout was returned instead of a new one.
	Resumed bool `json:"resumed"`
}

// InitiatePayment opens a gateway payment attempt for the full booking amount.
// A booking has at most one open gateway attempt: a live checkout is handed
// back as is, and a new attempt is refused while another is still being
// initiated.
func (s *PaymentService) InitiatePayment(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*InitiateOutcome, error) {
	ctx, span := obs.Tracer().Start(ctx, "payments.initiate")
	defer span.End()

	var booking *models.Booking
	var payment models.Payment
	var resumed, superseded *models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := findBookingForActor(ctx, tx, actor, bookingID, true)
		if err != nil {
			return err
		}
		booking = b
		state, err := b.State()
		if err != nil {
			return illegalTransition(err)
		}
		switch state {
		case models.StateReserved:
		case models.StatePaymentFailed:
			// The hold was released when the last attempt failed.
			taken, err := heldOverlapExists(ctx, tx, b.RoomID, b.CheckIn, b.CheckOut, b.ID)
			if err != nil {
				return err
			}
			if taken {
				return apperr.ErrRoomUnavailable
			}
		default:
			return apperr.With(apperr.ErrInvalidTransition, fmt.Errorf("cannot pay booking in state %s", state))
		}

		open, err := openGatewayAttempt(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		if open != nil {
			switch {
			case open.Status == models.PaymentProcessing && open.CheckoutURL != nil:
				resumed = open
				return nil
			case open.Status == models.PaymentProcessing:
				return apperr.With(apperr.ErrInvalidTransition, fmt.Errorf("payment %s is in progress", open.TransactionID))
			case s.now().Sub(open.CreatedAt) < initiateGrace:
				return apperr.With(apperr.ErrInvalidTransition, fmt.Errorf("payment %s is still being initiated", open.TransactionID))
			}
			upd := tx.Model(open).Where("status = ?", models.PaymentPending).
				Updates(map[string]interface{}{"status": models.PaymentFailed, "remarks": supersededRemark})
			if upd.Error != nil {
				return upd.Error
			}
			if upd.RowsAffected > 0 {
				superseded = open
			}
		}

		payment = models.Payment{
			BookingID:     b.ID,
			UserID:        b.UserID,
			Amount:        b.TotalAmount,
			Currency:      s.currency,
			Provider:      models.ProviderEasebuzz,
			TransactionID: s.txnIDs.Next(),
			Status:        models.PaymentPending,
		}
		return tx.Create(&payment).Error
	})
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	if resumed != nil {
		logging.Log.WithField("txnid", resumed.TransactionID).Info("Resuming open checkout")
		return &InitiateOutcome{Payment: resumed, CheckoutURL: *resumed.CheckoutURL, Resumed: true}, nil
	}
	if superseded != nil {
		appendPaymentLog(ctx, s.db, models.PaymentLog{
			PaymentID:     &superseded.ID,
			BookingID:     &booking.ID,
			TransactionID: superseded.TransactionID,
			EventType:     models.LogSuperseded,
			Status:        string(models.PaymentFailed),
			Payload:       toJSON(map[string]string{"superseded_by": payment.TransactionID}),
		})
	}
	span.SetAttributes(attribute.String("payment.txnid", payment.TransactionID))

	req := payments.InitiateRequest{
		TxnID:       payment.TransactionID,
		Amount:      payment.Amount,
		ProductInfo: "Room booking " + booking.ReferenceCode,
		FirstName:   booking.GuestName,
		Email:       booking.GuestEmail,
		Phone:       booking.GuestPhone,
	}
	req.UDF[0] = booking.ID.String()
	req.UDF[1] = booking.ReferenceCode

	appendPaymentLog(ctx, s.db, models.PaymentLog{
		PaymentID:     &payment.ID,
		BookingID:     &booking.ID,
		TransactionID: payment.TransactionID,
		EventType:     models.LogInitiate,
		Status:        string(models.PaymentPending),
		Payload: toJSON(map[string]interface{}{
			"amount":      payments.FormatAmount(req.Amount),
			"productinfo": req.ProductInfo,
			"udf1":        req.UDF[0],
			"udf2":        req.UDF[1],
		}),
	})

	res, err := s.gateway.Initiate(ctx, req)
	if err != nil {
		return nil, s.initiateFailed(ctx, &payment, err)
	}

	// last_event_at is left alone: it orders gateway-reported events only.
	upd := s.db.WithContext(ctx).Model(&payment).
		Where("status = ?", models.PaymentPending).
		Updates(map[string]interface{}{
			"status":           models.PaymentProcessing,
			"gateway_response": toJSON(res.Raw),
			"checkout_url":     res.CheckoutURL,
		})
	if upd.Error != nil {
		return nil, apperr.Persistence(upd.Error)
	}
	if upd.RowsAffected == 0 {
		// A callback settled the payment before we got here.
		if err := s.db.WithContext(ctx).First(&payment, "id = ?", payment.ID).Error; err != nil {
			return nil, apperr.Persistence(err)
		}
	} else {
		payment.Status = models.PaymentProcessing
		payment.GatewayResponse = toJSON(res.Raw)
		payment.CheckoutURL = &res.CheckoutURL
	}

	logging.Log.WithField("txnid", payment.TransactionID).Info("✅ Payment initiated")
	s.events.Publish(ctx, events.Event{
		Type:          events.PaymentInitiated,
		BookingID:     booking.ID,
		ReferenceCode: booking.ReferenceCode,
		PaymentID:     payment.ID,
		TransactionID: payment.TransactionID,
		PaymentStatus: string(payment.Status),
		Amount:        payment.Amount,
		Currency:      payment.Currency,
	})
	return &InitiateOutcome{Payment: &payment, CheckoutURL: res.CheckoutURL}, nil
}

// initiateFailed records a failed initiation. A rejection is final for the
// attempt; an unreachable gateway leaves the payment pending so the status
// poll or the sweeper can settle it.
func (s *PaymentService) initiateFailed(ctx context.Context, payment *models.Payment, cause error) error {
	status := models.PaymentPending
	if errors.Is(cause, apperr.ErrGatewayRejected) {
		status = models.PaymentFailed
		remark := "gateway rejected initiation"
		if err := s.db.WithContext(ctx).Model(payment).
			Where("status = ?", models.PaymentPending).
			Updates(map[string]interface{}{"status": status, "remarks": remark}).Error; err != nil {
			logging.Log.WithField("txnid", payment.TransactionID).Errorf("🔥 Failed to mark payment failed: %v", err)
		}
		payment.Status = status
		payment.Remarks = &remark
	}

	appendPaymentLog(ctx, s.db, models.PaymentLog{
		PaymentID:     &payment.ID,
		BookingID:     &payment.BookingID,
		TransactionID: payment.TransactionID,
		EventType:     models.LogInitiateFailed,
		Status:        string(status),
		Payload:       toJSON(map[string]string{"error": cause.Error()}),
	})
	logging.Log.WithField("txnid", payment.TransactionID).Warnf("⚠️ Payment initiation failed: %v", cause)
	return cause
}

// latestPayment returns the most recent payment attempt for a booking.
// openGatewayAttempt returns the newest gateway attempt on the booking that is
// still pending or processing, or nil.
func openGatewayAttempt(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	err := tx.WithContext(ctx).
		Where("booking_id = ? AND provider = ? AND status IN ?", bookingID, models.ProviderEasebuzz,
			[]models.PaymentStatus{models.PaymentPending, models.PaymentProcessing}).
		Order("created_at DESC").First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func latestPayment(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	err := tx.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at DESC").First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.With(apperr.ErrNotFound, err)
		}
		return nil, apperr.Persistence(err)
	}
	return &p, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, actor models.Actor, bookingID uuid.UUID) ([]models.Payment, error) {
	if _, err := findBookingForActor(ctx, s.db, actor, bookingID, false); err != nil {
		return nil, err
	}
	var list []models.Payment
	if err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, apperr.Persistence(err)
	}
	return list, nil
}

func (s *PaymentService) PaymentLogs(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentLog, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).First(&p, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Persistence(err)
	}
	var logs []models.PaymentLog
	if err := s.db.WithContext(ctx).
		Where("payment_id = ? OR transaction_id = ?", p.ID, p.TransactionID).
		Order("created_at ASC").
		Find(&logs).Error; err != nil {
		return nil, apperr.Persistence(err)
	}
	return logs, nil
}
