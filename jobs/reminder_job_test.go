package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/anjiri1684/hotel_booking/database"
	"github.com/anjiri1684/hotel_booking/models"
	"github.com/anjiri1684/hotel_booking/notifications"
)

type fakeMailer struct {
	sent []notifications.BookingConfirmation
	fail string
}

func (m *fakeMailer) SendArrivalReminder(_ context.Context, b notifications.BookingConfirmation) error {
	if b.GuestEmail == m.fail {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, b)
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "jobs.db")), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedBooking(t *testing.T, db *gorm.DB, room models.Room, ref, email string, checkIn time.Time, state models.BookingState) {
	t.Helper()
	b := models.Booking{
		ReferenceCode: ref,
		RoomID:        room.ID,
		UserID:        uuid.New(),
		GuestName:     "Asha Rao",
		GuestEmail:    email,
		Guests:        1,
		CheckIn:       checkIn,
		CheckOut:      checkIn.AddDate(0, 0, 2),
		Nights:        2,
		Status:        state.Status(),
		PaymentStatus: state.PaymentStatus(),
		TotalAmount:   6000,
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("seed booking: %v", err)
	}
}

func TestSendArrivalReminders(t *testing.T) {
	db := setupTestDB(t)
	room := models.Room{Number: "204", RoomType: "suite", BasePrice: 3000, MaxOccupancy: 2, IsActive: true, IsAvailable: true}
	if err := db.Create(&room).Error; err != nil {
		t.Fatalf("seed room: %v", err)
	}
	today := time.Date(2025, 12, 1, 15, 30, 0, 0, time.UTC)
	tomorrow := time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)

	seedBooking(t, db, room, "BKCONFIRMED", "a@example.com", tomorrow, models.StateConfirmed)
	seedBooking(t, db, room, "BKRESERVED1", "b@example.com", tomorrow, models.StateReserved)
	seedBooking(t, db, room, "BKLATERSTAY", "c@example.com", tomorrow.AddDate(0, 0, 3), models.StateConfirmed)
	seedBooking(t, db, room, "BKBADMAILBX", "d@example.com", tomorrow, models.StateConfirmed)

	t.Run("Given confirmed arrivals tomorrow When the job runs Then only those guests are reminded", func(t *testing.T) {
		mailer := &fakeMailer{fail: "d@example.com"}
		sent, err := SendArrivalReminders(context.Background(), db, mailer, today)
		if err != nil {
			t.Fatalf("SendArrivalReminders: %v", err)
		}
		if sent != 1 || len(mailer.sent) != 1 {
			t.Fatalf("sent %d reminders, want 1", sent)
		}
		got := mailer.sent[0]
		if got.ReferenceCode != "BKCONFIRMED" || got.RoomNumber != "204" || got.CheckIn != "2025-12-02" {
			t.Errorf("unexpected reminder %+v", got)
		}
	})
}
