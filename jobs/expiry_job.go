package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/services"
)

const sweepTimeout = 2 * time.Minute

// ReleaseExpiredHolds returns the cron job that expires bookings whose hold
// window elapsed without a payment.
func ReleaseExpiredHolds(expiry *services.ExpiryService, hold time.Duration) func() {
	return func() {
		logging.Log.Debug("Running job: ReleaseExpiredHolds...")
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		released, err := expiry.ReleaseExpired(ctx, hold)
		if err != nil {
			logging.Log.Errorf("🔥 Error releasing expired holds: %v", err)
			return
		}
		if released > 0 {
			logging.Log.Infof("Released %d expired hold(s).", released)
		}
	}
}

// NewScheduler returns a cron scheduler that never overlaps runs of the
// same job.
func NewScheduler() *cron.Cron {
	return cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
}
