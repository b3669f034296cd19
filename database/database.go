package database

import (
	"errors"
	"fmt"

	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/models"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func ConnectDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	DB = db
	logging.Log.Info("✅ Database connected successfully")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.Booking{},
		&models.Payment{},
		&models.PaymentLog{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := normalizeStatusCasing(db); err != nil {
		return err
	}

	if db.Dialector.Name() == "postgres" {
		if err := installBookingExclusion(db); err != nil {
			return err
		}
	}

	logging.Log.Info("✅ Database migration successful")
	return nil
}

// normalizeStatusCasing lowercases status columns written by older clients.
// The held-room predicate and the exclusion constraint compare exact values.
func normalizeStatusCasing(db *gorm.DB) error {
	res := db.Exec(`UPDATE bookings SET status = LOWER(status), payment_status = LOWER(payment_status)
WHERE status <> LOWER(status) OR payment_status <> LOWER(payment_status)`)
	if res.Error != nil {
		return fmt.Errorf("normalize booking status casing: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		logging.Log.WithField("rows", res.RowsAffected).Warn("⚠️ Lowercased booking statuses")
	}
	if err := db.Exec(`UPDATE payments SET status = LOWER(status) WHERE status <> LOWER(status)`).Error; err != nil {
		return fmt.Errorf("normalize payment status casing: %w", err)
	}
	return nil
}

const bookingExclusionConstraint = "bookings_no_overlapping_holds"

// installBookingExclusion makes Postgres reject two room-holding bookings
// with overlapping [check_in, check_out) ranges on the same room.
func installBookingExclusion(db *gorm.DB) error {
	predicate := models.HeldPredicateSQL()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,
		fmt.Sprintf(`DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
    ALTER TABLE bookings ADD CONSTRAINT %s
      EXCLUDE USING gist (room_id WITH =, daterange(check_in, check_out, '[)') WITH &&)
      WHERE %s;
  END IF;
END $$`, bookingExclusionConstraint, bookingExclusionConstraint, predicate),
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("install booking exclusion constraint: %w", err)
		}
	}
	return nil
}

// IsOverlapViolation reports whether err came from the booking exclusion
// constraint.
func IsOverlapViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func SeedAdmin(db *gorm.DB, email, password, fullName string) error {
	if email == "" || password == "" {
		logging.Log.Warn("⚠️ ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return fmt.Errorf("check for admin user: %w", err)
	}
	if count > 0 {
		logging.Log.Info("Admin user already exists.")
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	adminUser := models.User{
		FullName: fullName,
		Email:    email,
		Password: string(hashedPassword),
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	if err := db.Create(&adminUser).Error; err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	logging.Log.Info("✅ Admin user seeded successfully")
	return nil
}
