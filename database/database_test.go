package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/anjiri1684/hotel_booking/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "migrate.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrateNormalizesStatusCasing(t *testing.T) {
	db := openTestDB(t)
	room := models.Room{Number: "101", RoomType: "deluxe", BasePrice: 3000, IsActive: true, IsAvailable: true}
	if err := db.Create(&room).Error; err != nil {
		t.Fatalf("seed room: %v", err)
	}
	in := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	legacy := models.Booking{
		ReferenceCode: "BKLEGACY01",
		RoomID:        room.ID,
		UserID:        uuid.New(),
		GuestName:     "Asha Rao",
		GuestEmail:    "asha@example.com",
		CheckIn:       in,
		CheckOut:      in.AddDate(0, 0, 2),
		Nights:        2,
		Status:        "Confirmed",
		PaymentStatus: "PAID",
		TotalAmount:   6000,
	}
	if err := db.Create(&legacy).Error; err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	payment := models.Payment{
		BookingID:     legacy.ID,
		UserID:        legacy.UserID,
		Amount:        6000,
		Currency:      "INR",
		Provider:      models.ProviderEasebuzz,
		TransactionID: "TXNLEGACY01",
		Status:        "Completed",
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	t.Run("Given mixed-case rows When migrating again Then statuses are lowercased", func(t *testing.T) {
		if err := Migrate(db); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		var b models.Booking
		if err := db.First(&b, "id = ?", legacy.ID).Error; err != nil {
			t.Fatalf("load booking: %v", err)
		}
		if b.Status != models.BookingConfirmed || b.PaymentStatus != models.BookingPaymentPaid {
			t.Errorf("booking = %s/%s, want confirmed/paid", b.Status, b.PaymentStatus)
		}
		var p models.Payment
		if err := db.First(&p, "id = ?", payment.ID).Error; err != nil {
			t.Fatalf("load payment: %v", err)
		}
		if p.Status != models.PaymentCompleted {
			t.Errorf("payment status = %s, want completed", p.Status)
		}
	})

	t.Run("Given a normalized legacy booking When querying held rooms Then it blocks its room", func(t *testing.T) {
		cond, args := models.HeldCondition()
		var n int64
		if err := db.Model(&models.Booking{}).Where("room_id = ?", room.ID).Where(cond, args...).Count(&n).Error; err != nil {
			t.Fatalf("count held: %v", err)
		}
		if n != 1 {
			t.Errorf("held bookings = %d, want 1", n)
		}
	})
}
