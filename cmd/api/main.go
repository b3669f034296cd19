package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	config "github.com/anjiri1684/hotel_booking/configs"
	"github.com/anjiri1684/hotel_booking/database"
	"github.com/anjiri1684/hotel_booking/events"
	"github.com/anjiri1684/hotel_booking/handlers"
	"github.com/anjiri1684/hotel_booking/jobs"
	"github.com/anjiri1684/hotel_booking/locks"
	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/mq"
	"github.com/anjiri1684/hotel_booking/notifications"
	"github.com/anjiri1684/hotel_booking/obs"
	"github.com/anjiri1684/hotel_booking/payments"
	"github.com/anjiri1684/hotel_booking/routes"
	"github.com/anjiri1684/hotel_booking/services"
	"github.com/anjiri1684/hotel_booking/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("🔥 Invalid configuration: %v", err)
	}
	logging.Init(cfg.Env, cfg.LogLevel)

	shutdownTracer, err := obs.InitTracer("hotel-booking-api", cfg.OTelEndpoint, cfg.Env)
	if err != nil {
		logging.Log.Warnf("⚠️ Tracing disabled: %v", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	db, err := database.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		logging.Log.Fatalf("🔥 %v", err)
	}
	if err := database.Migrate(db); err != nil {
		logging.Log.Fatalf("🔥 %v", err)
	}
	if err := database.SeedAdmin(db, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminFullName); err != nil {
		logging.Log.Fatalf("🔥 %v", err)
	}

	var locker locks.Locker = locks.NoopLocker{}
	if cfg.RedisURL != "" {
		rl, err := locks.NewRedisLocker(cfg.RedisURL)
		if err != nil {
			logging.Log.Warnf("⚠️ Redis unavailable, relying on database locks only: %v", err)
		} else {
			locker = rl
			defer rl.Close()
		}
	}

	hub := websocket.NewHub()
	go hub.Run()

	opts := []events.Option{events.WithFeed(hub)}
	if cfg.AMQPURL != "" {
		pub, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logging.Log.Warnf("⚠️ Event broker unavailable: %v", err)
		} else {
			opts = append(opts, events.WithBroker(pub))
			defer pub.Close()
		}
	}
	mailer := notifications.NewEmailService(cfg.BrevoAPIKey, cfg.EmailSender, cfg.EmailSenderName)
	if mailer != nil {
		opts = append(opts, events.WithMailer(mailer))
	}
	dispatcher := events.NewDispatcher(opts...)

	webhookURL := strings.TrimRight(cfg.WebhookBaseURL, "/") + "/api/v1/payments/webhook"
	gateway := payments.NewEasebuzzClient(payments.EasebuzzConfig{
		Key:        cfg.EasebuzzKey,
		Salt:       cfg.EasebuzzSalt,
		Env:        cfg.EasebuzzEnv,
		Timeout:    cfg.GatewayTimeout,
		SuccessURL: webhookURL,
		FailureURL: webhookURL,
	})
	txnIDs, err := payments.NewTxnIDGenerator(cfg.SnowflakeNodeID)
	if err != nil {
		logging.Log.Fatalf("🔥 %v", err)
	}

	expiry := services.NewExpiryService(db, dispatcher)
	var receipts *services.ReceiptService
	if cfg.CloudinaryURL != "" {
		upload, err := services.CloudinaryUploader(cfg.CloudinaryURL)
		if err != nil {
			logging.Log.Warnf("⚠️ Receipts disabled: %v", err)
		} else {
			receipts = services.NewReceiptService(db, services.ChromePDFRenderer(cfg.ChromeRemoteURL), upload)
		}
	}

	h := &handlers.Handler{
		DB:            db,
		JWTSecret:     cfg.JWTSecret,
		JWTExpire:     cfg.JWTExpire,
		FrontendURL:   cfg.FrontendURL,
		CloudinaryURL: cfg.CloudinaryURL,
		HoldWindow:    cfg.HoldWindow,
		Availability:  services.NewAvailabilityService(db),
		Reservations:  services.NewReservationService(db, dispatcher),
		Payments:      services.NewPaymentService(db, gateway, txnIDs, dispatcher, cfg.Currency),
		Recon:         services.NewReconciliationService(db, gateway, locker, txnIDs, dispatcher, cfg.Currency),
		Expiry:        expiry,
		Rooms:         services.NewRoomService(db),
		Audit:         services.NewAuditService(db),
		Receipts:      receipts,
		Hub:           hub,
	}
	app := routes.NewApp(h, true)

	scheduler := jobs.NewScheduler()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, jobs.ReleaseExpiredHolds(expiry, cfg.HoldWindow)); err != nil {
		logging.Log.Fatalf("🔥 Invalid SWEEP_SCHEDULE %q: %v", cfg.SweepSchedule, err)
	}
	if mailer != nil {
		if _, err := scheduler.AddFunc("0 9 * * *", jobs.ArrivalReminders(db, mailer)); err != nil {
			logging.Log.Fatalf("🔥 %v", err)
		}
	}
	scheduler.Start()
	logging.Log.Infof("✅ Expiry sweep scheduled (%s, hold %s)", cfg.SweepSchedule, cfg.HoldWindow)

	go func() {
		logging.Log.Infof("✅ Server is running on %s", cfg.HTTPAddr)
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logging.Log.Fatalf("🔥 Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logging.Log.Info("Shutting down...")

	<-scheduler.Stop().Done()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logging.Log.Errorf("🔥 Server shutdown: %v", err)
	}
	dispatcher.Wait()
	hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracer(ctx); err != nil {
		logging.Log.Warnf("⚠️ Tracer shutdown: %v", err)
	}
}
