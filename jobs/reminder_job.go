package jobs

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/models"
	"github.com/anjiri1684/hotel_booking/notifications"
	"github.com/anjiri1684/hotel_booking/utils"
)

type ReminderMailer interface {
	SendArrivalReminder(ctx context.Context, b notifications.BookingConfirmation) error
}

// SendArrivalReminders emails every guest whose confirmed stay starts the day
// after today. It returns the number of reminders sent.
func SendArrivalReminders(ctx context.Context, db *gorm.DB, mailer ReminderMailer, today time.Time) (int, error) {
	tomorrow := utils.TruncateDate(today).AddDate(0, 0, 1)
	confirmed := models.StateConfirmed

	var upcoming []models.Booking
	err := db.WithContext(ctx).
		Preload("Room").
		Where("status = ? AND payment_status = ?", confirmed.Status(), confirmed.PaymentStatus()).
		Where("check_in = ?", tomorrow).
		Find(&upcoming).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, b := range upcoming {
		logging.Log.Debugf("Sending arrival reminder for booking %s", b.ReferenceCode)
		err := mailer.SendArrivalReminder(ctx, notifications.BookingConfirmation{
			GuestName:     b.GuestName,
			GuestEmail:    b.GuestEmail,
			ReferenceCode: b.ReferenceCode,
			RoomNumber:    b.Room.Number,
			CheckIn:       b.CheckIn.Format(utils.DateLayout),
			CheckOut:      b.CheckOut.Format(utils.DateLayout),
			Nights:        b.Nights,
			AmountPaid:    b.AdvancePaid,
		})
		if err != nil {
			continue
		}
		sent++
	}
	return sent, nil
}

// ArrivalReminders wraps SendArrivalReminders as a cron job.
func ArrivalReminders(db *gorm.DB, mailer ReminderMailer) func() {
	return func() {
		logging.Log.Debug("Running job: ArrivalReminders...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		sent, err := SendArrivalReminders(ctx, db, mailer, time.Now().UTC())
		if err != nil {
			logging.Log.Errorf("🔥 Error checking for upcoming arrivals: %v", err)
			return
		}
		if sent > 0 {
			logging.Log.Infof("Sent %d arrival reminder(s).", sent)
		}
	}
}
