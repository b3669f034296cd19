package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/database"
	"github.com/anjiri1684/hotel_booking/events"
	"github.com/anjiri1684/hotel_booking/locks"
	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/models"
	"github.com/anjiri1684/hotel_booking/obs"
	"github.com/anjiri1684/hotel_booking/payments"
)

const (
	securityMismatchRemark = "security: callback hash mismatch"
	duplicateCaptureRemark = "captured after another payment completed, refund required"
	conflictDuplicate      = "duplicate_payment"
	paymentLockTTL         = 30 * time.Second
)

type OutcomeKind int

const (
	OutcomeUntrusted OutcomeKind = iota
	OutcomeSuccess
	OutcomeFailed
	OutcomePending
)

// WebhookOutcome tells the HTTP layer where to send the payer. Untrusted
// outcomes carry only the transaction id the caller supplied.
type WebhookOutcome struct {
	Kind          OutcomeKind
	BookingID     uuid.UUID
	ReferenceCode string
	TransactionID string
}

type StatusCheckResult struct {
	Status  models.PaymentStatus `json:"status"`
	Raw     json.RawMessage      `json:"raw,omitempty"`
	Payment *models.Payment      `json:"payment,omitempty"`
}

type ManualProof struct {
	TransactionID string `validate:"omitempty,max=128"`
	ScreenshotURL string `validate:"omitempty,url,max=512"`
}

// gatewayEvent is a status report from any trusted source: a verified
// callback, an authenticated poll, or an admin decision.
type gatewayEvent struct {
	Target       models.PaymentStatus
	At           time.Time
	GatewayTxnID string
	Raw          datatypes.JSON
	Actor        models.Actor
	Source       string
	Note         string
}

type applyResult struct {
	Applied  bool
	Payment  models.Payment
	Booking  models.Booking
	From     models.BookingState
	To       models.BookingState
	Conflict string
	// Duplicate is set when this event newly flagged a second capture.
	Duplicate *models.Payment
}

type ReconciliationService struct {
	db       *gorm.DB
	gateway  Gateway
	locker   locks.Locker
	txnIDs   TxnIDSource
	events   events.Publisher
	currency string
	now      func() time.Time
}

func NewReconciliationService(db *gorm.DB, gateway Gateway, locker locks.Locker, txnIDs TxnIDSource, pub events.Publisher, currency string) *ReconciliationService {
	if locker == nil {
		locker = locks.NoopLocker{}
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if currency == "" {
		currency = "INR"
	}
	return &ReconciliationService{
		db:       db,
		gateway:  gateway,
		locker:   locker,
		txnIDs:   txnIDs,
		events:   pub,
		currency: currency,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandleWebhook records and applies a gateway callback. The returned error is
// only set for persistence failures; every other path yields an outcome.
func (s *ReconciliationService) HandleWebhook(ctx context.Context, form map[string]string) (*WebhookOutcome, error) {
	ctx, span := obs.Tracer().Start(ctx, "payments.webhook")
	defer span.End()

	received := s.now()
	cb := payments.CallbackFromForm(form)
	span.SetAttributes(attribute.String("payment.txnid", cb.TxnID))
	untrusted := &WebhookOutcome{Kind: OutcomeUntrusted, TransactionID: cb.TxnID}
	log := logging.Log.WithField("txnid", cb.TxnID)

	entry := appendPaymentLog(ctx, s.db, models.PaymentLog{
		TransactionID: cb.TxnID,
		EventType:     models.LogWebhookReceived,
		Status:        cb.Status,
		Payload:       toJSON(form),
	})

	if cb.TxnID == "" {
		log.Warn("⚠️ Webhook without txnid")
		return untrusted, nil
	}

	var payment models.Payment
	if err := s.db.WithContext(ctx).First(&payment, "transaction_id = ?", cb.TxnID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("⚠️ Webhook for unknown transaction")
			return untrusted, nil
		}
		return nil, apperr.Persistence(err)
	}

	if entry != nil {
		if err := s.db.WithContext(ctx).Model(&models.PaymentLog{}).Where("id = ?", entry.ID).
			Updates(map[string]interface{}{"payment_id": payment.ID, "booking_id": payment.BookingID}).Error; err != nil {
			log.Warnf("⚠️ Could not link webhook log: %v", err)
		}
	}

	if !s.gateway.VerifyCallback(cb) {
		s.rejectForgedCallback(ctx, &payment, form)
		return untrusted, nil
	}

	target := payments.MapStatus(cb.Status)
	if target == models.PaymentCompleted && !payments.AmountMatches(cb.Amount, payment.Amount) {
		log.Errorf("🔥 Signed success with amount %s, expected %s", cb.Amount, payments.FormatAmount(payment.Amount))
		return s.outcomeFor(ctx, &payment, cb.TxnID), nil
	}

	res, err := s.applyGatewayOutcome(ctx, payment.TransactionID, gatewayEvent{
		Target:       target,
		At:           cb.EventTime(received),
		GatewayTxnID: cb.EasepayID,
		Raw:          toJSON(form),
		Actor:        models.GatewayActor,
		Source:       "webhook",
	})
	if err != nil {
		log.Errorf("🔥 Failed to apply webhook: %v", err)
		return nil, err
	}
	out := s.outcomeFor(ctx, &res.Payment, cb.TxnID)
	if res.Conflict == conflictDuplicate {
		// The booking is paid by its other payment.
		out.Kind = OutcomeSuccess
	}
	return out, nil
}

func (s *ReconciliationService) rejectForgedCallback(ctx context.Context, payment *models.Payment, form map[string]string) {
	logging.Log.WithField("txnid", payment.TransactionID).Error("🔥 Callback hash mismatch")
	appendPaymentLog(ctx, s.db, models.PaymentLog{
		PaymentID:     &payment.ID,
		BookingID:     &payment.BookingID,
		TransactionID: payment.TransactionID,
		EventType:     models.LogSignatureMismatch,
		Status:        string(payment.Status),
		Payload:       toJSON(form),
	})
	if payment.Status.Terminal() {
		return
	}
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status IN ?", payment.ID, []models.PaymentStatus{models.PaymentPending, models.PaymentProcessing}).
		Updates(map[string]interface{}{"status": models.PaymentFailed, "remarks": securityMismatchRemark}).Error
	if err != nil {
		logging.Log.WithField("txnid", payment.TransactionID).Errorf("🔥 Failed to flag forged callback: %v", err)
	}
}

func (s *ReconciliationService) outcomeFor(ctx context.Context, p *models.Payment, txnID string) *WebhookOutcome {
	out := &WebhookOutcome{BookingID: p.BookingID, TransactionID: txnID}
	var b models.Booking
	if err := s.db.WithContext(ctx).Select("id", "reference_code").First(&b, "id = ?", p.BookingID).Error; err == nil {
		out.ReferenceCode = b.ReferenceCode
	}
	switch p.Status {
	case models.PaymentCompleted:
		out.Kind = OutcomeSuccess
	case models.PaymentFailed, models.PaymentRefunded:
		out.Kind = OutcomeFailed
	default:
		out.Kind = OutcomePending
	}
	return out
}

// CheckStatus polls the gateway for the booking's payments and applies what
// it reports through the same path as callbacks. Older attempts that are
// still open are settled first; the result describes the latest attempt
// unless an older one turns out to be the completed capture.
func (s *ReconciliationService) CheckStatus(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*StatusCheckResult, error) {
	ctx, span := obs.Tracer().Start(ctx, "payments.status_check")
	defer span.End()

	if _, err := findBookingForActor(ctx, s.db, actor, bookingID, false); err != nil {
		return nil, err
	}
	latest, err := latestPayment(ctx, s.db, bookingID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.txnid", latest.TransactionID))

	var older []models.Payment
	if err := s.db.WithContext(ctx).
		Where("booking_id = ? AND provider = ? AND status IN ? AND id <> ?", bookingID, models.ProviderEasebuzz,
			[]models.PaymentStatus{models.PaymentPending, models.PaymentProcessing}, latest.ID).
		Order("created_at").Find(&older).Error; err != nil {
		return nil, apperr.Persistence(err)
	}
	for i := range older {
		res, err := s.pollPayment(ctx, actor, &older[i])
		if err != nil {
			logging.Log.WithField("txnid", older[i].TransactionID).Warnf("⚠️ Could not settle older attempt: %v", err)
			continue
		}
		if res.Status == models.PaymentCompleted {
			return res, nil
		}
	}
	return s.pollPayment(ctx, actor, latest)
}

// pollPayment asks the gateway about one attempt and applies the answer.
func (s *ReconciliationService) pollPayment(ctx context.Context, actor models.Actor, p *models.Payment) (*StatusCheckResult, error) {
	local := &StatusCheckResult{Status: p.Status, Raw: json.RawMessage(p.GatewayResponse), Payment: p}
	if p.Provider == models.ProviderManual || p.Status == models.PaymentCompleted || p.Status == models.PaymentRefunded {
		return local, nil
	}

	res, err := s.gateway.CheckStatus(ctx, p.TransactionID)
	if err != nil {
		appendPaymentLog(ctx, s.db, models.PaymentLog{
			PaymentID:     &p.ID,
			BookingID:     &p.BookingID,
			TransactionID: p.TransactionID,
			EventType:     models.LogStatusPollFailed,
			Status:        string(p.Status),
			Payload:       toJSON(map[string]string{"error": err.Error()}),
		})
		if errors.Is(err, apperr.ErrGatewayUnreachable) {
			return nil, err
		}
		return nil, apperr.With(apperr.ErrGatewayUnreachable, err)
	}

	appendPaymentLog(ctx, s.db, models.PaymentLog{
		PaymentID:     &p.ID,
		BookingID:     &p.BookingID,
		TransactionID: p.TransactionID,
		EventType:     models.LogStatusPoll,
		Status:        res.Status,
		Payload:       toJSON(res.Raw),
	})

	if !res.Found {
		return local, nil
	}

	target := payments.MapStatus(res.Status)
	if target == models.PaymentCompleted && !payments.AmountMatches(res.Amount, p.Amount) {
		logging.Log.WithField("txnid", p.TransactionID).
			Errorf("🔥 Gateway reports success for %s, expected %s", res.Amount, payments.FormatAmount(p.Amount))
		return local, nil
	}

	at := s.now()
	if res.EventAt != nil {
		at = *res.EventAt
	}
	applied, err := s.applyGatewayOutcome(ctx, p.TransactionID, gatewayEvent{
		Target:       target,
		At:           at,
		GatewayTxnID: res.GatewayTxnID,
		Raw:          toJSON(res.Raw),
		Actor:        models.GatewayActor,
		Source:       "status_poll",
		Note:         fmt.Sprintf("status poll by %s %s", actor.Role, actor.ID),
	})
	if err != nil {
		return nil, err
	}
	return &StatusCheckResult{Status: applied.Payment.Status, Raw: res.Raw, Payment: &applied.Payment}, nil
}

// applyGatewayOutcome is the single place payment and booking status move
// in response to a trusted report. Repeated, regressing and stale reports
// are no-ops.
func (s *ReconciliationService) applyGatewayOutcome(ctx context.Context, txnID string, ev gatewayEvent) (*applyResult, error) {
	token, lockErr := s.locker.Acquire(ctx, "payment:"+txnID, paymentLockTTL)
	if lockErr != nil {
		logging.Log.WithField("txnid", txnID).Warnf("⚠️ Proceeding without distributed lock: %v", lockErr)
	} else {
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), "payment:"+txnID, token); err != nil {
				logging.Log.WithField("txnid", txnID).Warnf("⚠️ Failed to release lock: %v", err)
			}
		}()
	}

	var res applyResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Payment
		if err := forUpdate(tx).First(&p, "transaction_id = ?", txnID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.With(apperr.ErrNotFound, err)
			}
			return err
		}
		res.Payment = p

		if reason := skipReason(&p, ev); reason != "" {
			logging.Log.WithFields(map[string]interface{}{
				"txnid":   txnID,
				"current": p.Status,
				"target":  ev.Target,
				"source":  ev.Source,
			}).Infof("Ignoring payment event: %s", reason)
			return nil
		}

		if ev.Target == models.PaymentCompleted {
			prior, err := completedSibling(ctx, tx, &p)
			if err != nil {
				return err
			}
			if prior != nil {
				return s.flagDuplicateCapture(ctx, tx, &p, prior, ev, &res)
			}
		}

		prev := p.Status
		at := ev.At.UTC()
		if p.LastEventAt != nil && p.LastEventAt.After(at) {
			at = *p.LastEventAt
		}
		updates := map[string]interface{}{
			"status":        ev.Target,
			"last_event_at": at,
		}
		if ev.GatewayTxnID != "" {
			updates["gateway_txn_id"] = ev.GatewayTxnID
		}
		if len(ev.Raw) > 0 {
			updates["gateway_response"] = ev.Raw
		}
		if ev.Target.Terminal() {
			updates["processed_at"] = s.now()
		}
		if ev.Note != "" {
			updates["remarks"] = ev.Note
		}
		if err := tx.Model(&p).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&p, "id = ?", p.ID).Error; err != nil {
			return err
		}
		res.Payment = p
		res.Applied = true

		if err := writeAudit(ctx, tx, ev.Actor, "payment_"+string(ev.Target), "payment", p.ID,
			string(prev), string(ev.Target), ev.Source); err != nil {
			return err
		}
		return s.moveBooking(ctx, tx, &p, ev, &res)
	})
	if err != nil {
		return nil, apperr.Persistence(err)
	}

	if res.Applied {
		s.publishApplied(ctx, &res)
	}
	if d := res.Duplicate; d != nil {
		appendPaymentLog(ctx, s.db, models.PaymentLog{
			PaymentID:     &d.ID,
			BookingID:     &d.BookingID,
			TransactionID: d.TransactionID,
			EventType:     models.LogDuplicateCapture,
			Status:        string(d.Status),
			Payload:       ev.Raw,
		})
		e := bookingEvent(events.BookingPaidConflict, &res.Booking, res.From, res.To)
		e.PaymentID = d.ID
		e.TransactionID = d.TransactionID
		e.PaymentStatus = string(d.Status)
		e.Amount = d.Amount
		e.Currency = d.Currency
		s.events.Publish(ctx, e)
	}
	return &res, nil
}

// completedSibling returns another completed payment on p's booking, or nil.
// The booking row is locked first so two captures for the same booking
// serialize here.
func completedSibling(ctx context.Context, tx *gorm.DB, p *models.Payment) (*models.Payment, error) {
	var b models.Booking
	if err := forUpdate(tx.WithContext(ctx)).Select("id").First(&b, "id = ?", p.BookingID).Error; err != nil {
		return nil, err
	}
	var prior models.Payment
	err := tx.WithContext(ctx).
		Where("booking_id = ? AND status = ? AND id <> ?", p.BookingID, models.PaymentCompleted, p.ID).
		First(&prior).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prior, nil
}

// flagDuplicateCapture handles a capture on a booking whose payment already
// completed. Only one payment per booking completes; the extra one keeps its
// status and is marked for refund.
func (s *ReconciliationService) flagDuplicateCapture(ctx context.Context, tx *gorm.DB, p, prior *models.Payment, ev gatewayEvent, res *applyResult) error {
	var b models.Booking
	if err := tx.WithContext(ctx).First(&b, "id = ?", p.BookingID).Error; err != nil {
		return err
	}
	from, _ := b.State()
	res.Booking, res.From, res.To = b, from, from
	res.Conflict = conflictDuplicate
	if p.Remarks != nil && *p.Remarks == duplicateCaptureRemark {
		return nil
	}

	updates := map[string]interface{}{"remarks": duplicateCaptureRemark}
	if ev.GatewayTxnID != "" {
		updates["gateway_txn_id"] = ev.GatewayTxnID
	}
	if len(ev.Raw) > 0 {
		updates["gateway_response"] = ev.Raw
	}
	if err := tx.Model(p).Updates(updates).Error; err != nil {
		return err
	}
	remark := duplicateCaptureRemark
	p.Remarks = &remark
	res.Payment = *p
	res.Duplicate = p

	note := fmt.Sprintf("payment %s captured after %s completed, refund required", p.TransactionID, prior.TransactionID)
	logging.Log.WithFields(map[string]interface{}{
		"booking": b.ReferenceCode,
		"txnid":   p.TransactionID,
	}).Errorf("🔥 Paid booking needs manual review: %s", note)
	return writeAudit(ctx, tx, ev.Actor, conflictDuplicate, "booking", b.ID, from.String(), from.String(), note)
}

func skipReason(p *models.Payment, ev gatewayEvent) string {
	if p.Status == ev.Target {
		return "duplicate"
	}
	if !p.Status.CanAdvanceTo(ev.Target) {
		return "would regress " + string(p.Status)
	}
	// A verified capture always wins over an earlier failure report.
	if ev.Target != models.PaymentCompleted && p.LastEventAt != nil && ev.At.Before(*p.LastEventAt) {
		return "stale"
	}
	return ""
}

func (s *ReconciliationService) moveBooking(ctx context.Context, tx *gorm.DB, p *models.Payment, ev gatewayEvent, res *applyResult) error {
	var b models.Booking
	if err := forUpdate(tx).First(&b, "id = ?", p.BookingID).Error; err != nil {
		return err
	}
	if err := tx.First(&b.Room, "id = ?", b.RoomID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	from, err := b.State()
	if err != nil {
		return err
	}
	res.Booking, res.From, res.To = b, from, from

	switch ev.Target {
	case models.PaymentCompleted:
		return s.confirmBooking(ctx, tx, &b, p, ev, res)
	case models.PaymentFailed:
		// A failed gateway attempt must not release a hold backed by a
		// manual proof that is still under review.
		if from == models.StateAwaitingVerification && p.Provider != models.ProviderManual {
			return nil
		}
		if !models.FailPayment.Allows(from) {
			return nil
		}
		if _, err := b.Apply(models.FailPayment); err != nil {
			return err
		}
		if err := saveBookingState(ctx, tx, &b, ev.Actor, models.FailPayment.Name, from, ev.Note); err != nil {
			return err
		}
		res.Booking, res.To = b, models.StatePaymentFailed
	}
	return nil
}

func (s *ReconciliationService) confirmBooking(ctx context.Context, tx *gorm.DB, b *models.Booking, p *models.Payment, ev gatewayEvent, res *applyResult) error {
	from := res.From
	flag := func(action, note string) error {
		res.Conflict = action
		logging.Log.WithFields(map[string]interface{}{
			"booking": b.ReferenceCode,
			"txnid":   p.TransactionID,
		}).Errorf("🔥 Paid booking needs manual review: %s", note)
		return writeAudit(ctx, tx, ev.Actor, action, "booking", b.ID, from.String(), from.String(), note)
	}

	switch from {
	case models.StateConfirmed, models.StateCheckedIn:
		return flag(conflictDuplicate, fmt.Sprintf("payment %s captured for an already paid booking", p.TransactionID))
	case models.StateCancelled:
		return flag("paid_conflict", fmt.Sprintf("payment %s captured after cancellation, refund required", p.TransactionID))
	case models.StatePaymentFailed, models.StateExpired:
		taken, err := heldOverlapExists(ctx, tx, b.RoomID, b.CheckIn, b.CheckOut, b.ID)
		if err != nil {
			return err
		}
		if taken {
			return flag("paid_conflict", fmt.Sprintf("payment %s captured but room was re-booked, refund required", p.TransactionID))
		}
	}

	if _, err := b.Apply(models.ConfirmPayment); err != nil {
		return err
	}
	b.SettleFull(p.Amount)
	if err := tx.SavePoint("confirm_booking").Error; err != nil {
		return err
	}
	if err := saveBookingState(ctx, tx, b, ev.Actor, models.ConfirmPayment.Name, from, ev.Note); err != nil {
		if database.IsOverlapViolation(err) {
			if rbErr := tx.RollbackTo("confirm_booking").Error; rbErr != nil {
				return rbErr
			}
			return flag("paid_conflict", fmt.Sprintf("payment %s captured but room was re-booked, refund required", p.TransactionID))
		}
		return err
	}
	res.Booking, res.To = *b, models.StateConfirmed
	return nil
}

func (s *ReconciliationService) publishApplied(ctx context.Context, res *applyResult) {
	p, b := res.Payment, res.Booking
	s.events.Publish(ctx, events.Event{
		Type:          events.PaymentUpdated,
		BookingID:     b.ID,
		ReferenceCode: b.ReferenceCode,
		PaymentID:     p.ID,
		TransactionID: p.TransactionID,
		PaymentStatus: string(p.Status),
		Amount:        p.Amount,
		Currency:      p.Currency,
	})

	var eventType string
	switch {
	case res.Conflict != "":
		eventType = events.BookingPaidConflict
	case res.From == res.To:
		return
	case res.To == models.StateConfirmed:
		eventType = events.BookingConfirmed
	case res.To == models.StatePaymentFailed:
		eventType = events.BookingPaymentFailed
	default:
		return
	}
	e := bookingEvent(eventType, &b, res.From, res.To)
	e.PaymentID = p.ID
	e.TransactionID = p.TransactionID
	e.PaymentStatus = string(p.Status)
	e.Amount = p.Amount
	e.Currency = p.Currency
	s.events.Publish(ctx, e)
}

// MarkPaid records out-of-band payment proof. It moves the booking to
// awaiting verification and never confirms it.
func (s *ReconciliationService) MarkPaid(ctx context.Context, actor models.Actor, bookingID uuid.UUID, proof ManualProof) (*models.Booking, error) {
	proof.TransactionID = strings.TrimSpace(proof.TransactionID)
	proof.ScreenshotURL = strings.TrimSpace(proof.ScreenshotURL)
	if proof.TransactionID == "" && proof.ScreenshotURL == "" {
		return nil, apperr.Validation("transaction_id or payment_screenshot_url is required")
	}
	if err := validate.Struct(proof); err != nil {
		return nil, apperr.With(apperr.Validation("invalid payment proof"), err)
	}

	var booking *models.Booking
	var payment models.Payment
	var from models.BookingState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := findBookingForActor(ctx, tx, actor, bookingID, true)
		if err != nil {
			return err
		}
		from, err = b.State()
		if err != nil {
			return illegalTransition(err)
		}
		if proof.ScreenshotURL != "" {
			b.PaymentScreenshotURL = &proof.ScreenshotURL
		}
		if proof.TransactionID != "" {
			b.ManualTransactionID = &proof.TransactionID
		}

		if from == models.StateAwaitingVerification {
			// Resubmission: refresh the proof on the open manual payment.
			if err := saveBookingState(ctx, tx, b, actor, "update_proof", from, ""); err != nil {
				return err
			}
			var open models.Payment
			err := tx.Where("booking_id = ? AND provider = ? AND status = ?", b.ID, models.ProviderManual, models.PaymentProcessing).
				Order("created_at DESC").First(&open).Error
			if err == nil {
				if proof.TransactionID != "" {
					if err := tx.Model(&open).Update("gateway_txn_id", proof.TransactionID).Error; err != nil {
						return err
					}
					open.GatewayTxnID = &proof.TransactionID
				}
				payment = open
				booking = b
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		} else {
			if from == models.StatePaymentFailed {
				taken, err := heldOverlapExists(ctx, tx, b.RoomID, b.CheckIn, b.CheckOut, b.ID)
				if err != nil {
					return err
				}
				if taken {
					return apperr.ErrRoomUnavailable
				}
			}
			if _, err := b.Apply(models.SubmitProof); err != nil {
				return illegalTransition(err)
			}
			if err := saveBookingState(ctx, tx, b, actor, models.SubmitProof.Name, from, ""); err != nil {
				if database.IsOverlapViolation(err) {
					return apperr.With(apperr.ErrRoomUnavailable, err)
				}
				return err
			}
		}

		payment = models.Payment{
			BookingID:     b.ID,
			UserID:        b.UserID,
			Amount:        b.TotalAmount,
			Currency:      s.currency,
			Provider:      models.ProviderManual,
			TransactionID: s.txnIDs.Next(),
			Status:        models.PaymentProcessing,
		}
		if proof.TransactionID != "" {
			payment.GatewayTxnID = &proof.TransactionID
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence(err)
	}

	appendPaymentLog(ctx, s.db, models.PaymentLog{
		PaymentID:     &payment.ID,
		BookingID:     &booking.ID,
		TransactionID: payment.TransactionID,
		EventType:     models.LogManualProofSubmitted,
		Status:        string(payment.Status),
		Payload:       toJSON(map[string]string{"transaction_id": proof.TransactionID, "payment_screenshot_url": proof.ScreenshotURL}),
	})
	if from != models.StateAwaitingVerification {
		s.events.Publish(ctx, bookingEvent(events.BookingAwaitingProof, booking, from, models.StateAwaitingVerification))
	}
	return booking, nil
}

// VerifyManualPayment settles a manual payment on an admin's decision.
func (s *ReconciliationService) VerifyManualPayment(ctx context.Context, admin models.Actor, bookingID uuid.UUID, approve bool, note string) (*models.Booking, error) {
	if !admin.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	b, err := findBookingForActor(ctx, s.db, admin, bookingID, false)
	if err != nil {
		return nil, err
	}
	if state, _ := b.State(); state != models.StateAwaitingVerification {
		return nil, apperr.With(apperr.ErrInvalidTransition, fmt.Errorf("booking is %s", state))
	}

	var p models.Payment
	if err := s.db.WithContext(ctx).
		Where("booking_id = ? AND provider = ? AND status = ?", b.ID, models.ProviderManual, models.PaymentProcessing).
		Order("created_at DESC").First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.With(apperr.ErrNotFound, err)
		}
		return nil, apperr.Persistence(err)
	}

	target, logType := models.PaymentCompleted, models.LogManualVerified
	if !approve {
		target, logType = models.PaymentFailed, models.LogManualRejected
	}
	note = strings.TrimSpace(note)
	res, err := s.applyGatewayOutcome(ctx, p.TransactionID, gatewayEvent{
		Target: target,
		At:     s.now(),
		Actor:  admin,
		Source: "manual_verification",
		Note:   note,
	})
	if err != nil {
		return nil, err
	}

	appendPaymentLog(ctx, s.db, models.PaymentLog{
		PaymentID:     &p.ID,
		BookingID:     &b.ID,
		TransactionID: p.TransactionID,
		EventType:     logType,
		Status:        string(res.Payment.Status),
		Payload:       toJSON(map[string]string{"admin_id": admin.ID.String(), "note": note}),
	})
	return &res.Booking, nil
}

func (s *ReconciliationService) CheckInBooking(ctx context.Context, admin models.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	if !admin.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	return s.adminTransition(ctx, admin, bookingID, models.CheckIn, "", events.BookingCheckedIn)
}

// OverrideBooking forces a booking into any valid state. A reason is
// mandatory and recorded in the audit trail.
func (s *ReconciliationService) OverrideBooking(ctx context.Context, admin models.Actor, bookingID uuid.UUID, stateName, reason string) (*models.Booking, error) {
	if !admin.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required for an override")
	}
	to, err := models.ParseState(strings.ToLower(strings.TrimSpace(stateName)))
	if err != nil {
		return nil, apperr.Validation("unknown booking state")
	}
	return s.adminTransition(ctx, admin, bookingID, models.Override(to), reason, events.BookingOverridden)
}

func (s *ReconciliationService) adminTransition(ctx context.Context, admin models.Actor, bookingID uuid.UUID, t models.Transition, note, eventType string) (*models.Booking, error) {
	var booking *models.Booking
	var from models.BookingState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := findBookingForActor(ctx, tx, admin, bookingID, true)
		if err != nil {
			return err
		}
		from, _ = b.State()
		if from == models.StateInvalid && t.Name == "override" {
			// Overrides repair rows holding an impossible pair.
			b.Status, b.PaymentStatus = t.To.Status(), t.To.PaymentStatus()
		} else if _, err := b.Apply(t); err != nil {
			return illegalTransition(err)
		}
		if t.To.HoldsRoom() && !from.HoldsRoom() {
			taken, err := heldOverlapExists(ctx, tx, b.RoomID, b.CheckIn, b.CheckOut, b.ID)
			if err != nil {
				return err
			}
			if taken {
				return apperr.ErrRoomUnavailable
			}
		}
		if err := saveBookingState(ctx, tx, b, admin, t.Name, from, note); err != nil {
			if database.IsOverlapViolation(err) {
				return apperr.With(apperr.ErrRoomUnavailable, err)
			}
			return err
		}
		if err := tx.First(&b.Room, "id = ?", b.RoomID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	s.events.Publish(ctx, bookingEvent(eventType, booking, from, t.To))
	return booking, nil
}
