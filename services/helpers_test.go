package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/anjiri1684/hotel_booking/database"
	"github.com/anjiri1684/hotel_booking/events"
	"github.com/anjiri1684/hotel_booking/locks"
	"github.com/anjiri1684/hotel_booking/models"
	"github.com/anjiri1684/hotel_booking/payments"
)

const (
	testKey  = "2PBP7IABZ2"
	testSalt = "DAH88E3UWQ"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type stubGateway struct {
	verifier *payments.EasebuzzClient

	mu          sync.Mutex
	initiateErr error
	status      *payments.StatusResult
	statusErr   error
	initiated   []payments.InitiateRequest
}

func newStubGateway() *stubGateway {
	return &stubGateway{verifier: payments.NewEasebuzzClient(payments.EasebuzzConfig{Key: testKey, Salt: testSalt})}
}

func (g *stubGateway) Initiate(_ context.Context, r payments.InitiateRequest) (*payments.InitiateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initiated = append(g.initiated, r)
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	return &payments.InitiateResult{
		AccessKey:   "ak_" + r.TxnID,
		CheckoutURL: "https://testpay.easebuzz.in/pay/ak_" + r.TxnID,
		Raw:         json.RawMessage(`{"status":1,"data":"ak_` + r.TxnID + `"}`),
	}, nil
}

func (g *stubGateway) CheckStatus(_ context.Context, txnID string) (*payments.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	if g.status == nil {
		return nil, errors.New("no status configured")
	}
	res := *g.status
	res.TxnID = txnID
	return &res, nil
}

func (g *stubGateway) VerifyCallback(cb payments.Callback) bool {
	return g.verifier.VerifyCallback(cb)
}

type fixture struct {
	db           *gorm.DB
	gateway      *stubGateway
	events       *events.Recorder
	availability *AvailabilityService
	reservations *ReservationService
	payments     *PaymentService
	recon        *ReconciliationService
	expiry       *ExpiryService
	guest        models.Actor
	otherGuest   models.Actor
	admin        models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	gw := newStubGateway()
	rec := &events.Recorder{}
	ids, err := payments.NewTxnIDGenerator(1)
	if err != nil {
		t.Fatalf("txn ids: %v", err)
	}
	return &fixture{
		db:           db,
		gateway:      gw,
		events:       rec,
		availability: NewAvailabilityService(db),
		reservations: NewReservationService(db, rec),
		payments:     NewPaymentService(db, gw, ids, rec, "INR"),
		recon:        NewReconciliationService(db, gw, locks.NoopLocker{}, ids, rec, "INR"),
		expiry:       NewExpiryService(db, rec),
		guest:        models.Actor{ID: uuid.New(), Role: models.ActorGuest},
		otherGuest:   models.Actor{ID: uuid.New(), Role: models.ActorGuest},
		admin:        models.Actor{ID: uuid.New(), Role: models.ActorAdmin},
	}
}

func mustRange(t *testing.T, in, out string) DateRange {
	t.Helper()
	r, err := ParseDateRange(in, out)
	if err != nil {
		t.Fatalf("ParseDateRange(%s, %s): %v", in, out, err)
	}
	return r
}

func (f *fixture) seedRoom(t *testing.T, number, roomType string, price float64) models.Room {
	t.Helper()
	room := models.Room{Number: number, RoomType: roomType, BasePrice: price, MaxOccupancy: 3, IsActive: true, IsAvailable: true}
	if err := f.db.Create(&room).Error; err != nil {
		t.Fatalf("seed room: %v", err)
	}
	return room
}

func (f *fixture) book(t *testing.T, actor models.Actor, room models.Room, in, out string) *models.Booking {
	t.Helper()
	b, err := f.reservations.CreateBooking(context.Background(), actor, CreateBookingInput{
		RoomID: room.ID,
		Range:  mustRange(t, in, out),
		Guest:  GuestInfo{Name: "Asha Rao", Email: "asha@example.com", Phone: "9876543210", Guests: 2},
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return b
}

func (f *fixture) initiate(t *testing.T, b *models.Booking) *models.Payment {
	t.Helper()
	out, err := f.payments.InitiatePayment(context.Background(), f.guest, b.ID)
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	return out.Payment
}

func (f *fixture) booking(t *testing.T, id uuid.UUID) models.Booking {
	t.Helper()
	var b models.Booking
	if err := f.db.First(&b, "id = ?", id).Error; err != nil {
		t.Fatalf("load booking: %v", err)
	}
	return b
}

func (f *fixture) payment(t *testing.T, id uuid.UUID) models.Payment {
	t.Helper()
	var p models.Payment
	if err := f.db.First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	return p
}

func (f *fixture) state(t *testing.T, id uuid.UUID) models.BookingState {
	t.Helper()
	b := f.booking(t, id)
	st, err := b.State()
	if err != nil {
		t.Fatalf("booking state: %v", err)
	}
	return st
}

func (f *fixture) countLogs(t *testing.T, txnID, eventType string) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.PaymentLog{}).Where("transaction_id = ? AND event_type = ?", txnID, eventType).Count(&n).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	return n
}

func (f *fixture) countAudit(t *testing.T, entityID uuid.UUID, action string) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.AuditLog{}).Where("entity_id = ? AND action = ?", entityID, action).Count(&n).Error; err != nil {
		t.Fatalf("count audit: %v", err)
	}
	return n
}

// openAttempt inserts a gateway attempt that is already processing, as left
// behind by another instance or an older release.
func (f *fixture) openAttempt(t *testing.T, b *models.Booking, txnID string, createdAt time.Time) *models.Payment {
	t.Helper()
	p := models.Payment{
		BookingID:     b.ID,
		UserID:        b.UserID,
		Amount:        b.TotalAmount,
		Currency:      "INR",
		Provider:      models.ProviderEasebuzz,
		TransactionID: txnID,
		Status:        models.PaymentProcessing,
		CreatedAt:     createdAt,
	}
	if err := f.db.Create(&p).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return &p
}

func (f *fixture) countPayments(t *testing.T, bookingID uuid.UUID, status models.PaymentStatus) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.Payment{}).Where("booking_id = ? AND status = ?", bookingID, status).Count(&n).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	return n
}

// ageBooking moves created_at into the past to simulate elapsed time.
func (f *fixture) ageBooking(t *testing.T, id uuid.UUID, by time.Duration) {
	t.Helper()
	if err := f.db.Model(&models.Booking{}).Where("id = ?", id).
		UpdateColumn("created_at", time.Now().UTC().Add(-by)).Error; err != nil {
		t.Fatalf("age booking: %v", err)
	}
}

// callbackForm builds a gateway callback for p signed with the test salt.
func callbackForm(p *models.Payment, status, addedOn string) map[string]string {
	cb := payments.Callback{
		Status:      status,
		TxnID:       p.TransactionID,
		Amount:      payments.FormatAmount(p.Amount),
		FirstName:   "Asha Rao",
		Email:       "asha@example.com",
		ProductInfo: "Room booking",
		EasepayID:   "E" + p.TransactionID,
		AddedOn:     addedOn,
	}
	return map[string]string{
		"status":      cb.Status,
		"txnid":       cb.TxnID,
		"amount":      cb.Amount,
		"firstname":   cb.FirstName,
		"email":       cb.Email,
		"productinfo": cb.ProductInfo,
		"easepayid":   cb.EasepayID,
		"addedon":     cb.AddedOn,
		"hash":        payments.ResponseHash(testKey, testSalt, cb),
	}
}

func ist(hhmm string) string {
	return fmt.Sprintf("2025-12-01 %s:00", hhmm)
}
