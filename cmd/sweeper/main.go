package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	config "github.com/anjiri1684/hotel_booking/configs"
	"github.com/anjiri1684/hotel_booking/database"
	"github.com/anjiri1684/hotel_booking/events"
	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/mq"
	"github.com/anjiri1684/hotel_booking/services"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hotel-sweeper",
		Short: "Maintenance commands for the hotel booking store",
	}
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func connect() (config.AppConfig, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	logging.Init(cfg.Env, cfg.LogLevel)
	db, err := database.ConnectDB(cfg.DatabaseURL)
	return cfg, db, err
}

func sweepCmd() *cobra.Command {
	var hold time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire reserved bookings whose hold window has elapsed",
		Long: `Expire reserved bookings older than the hold window and fail their
unsent payments. Bookings awaiting manual verification are never touched,
so running the sweep twice is harmless.

Examples:
  hotel-sweeper sweep
  hotel-sweeper sweep --hold 45m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := connect()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("hold") {
				hold = cfg.HoldWindow
			}

			var pub events.Publisher = events.Nop{}
			if cfg.AMQPURL != "" {
				broker, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
				if err != nil {
					logging.Log.Warnf("⚠️ Event broker unavailable: %v", err)
				} else {
					defer broker.Close()
					d := events.NewDispatcher(events.WithBroker(broker))
					defer d.Wait()
					pub = d
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			released, err := services.NewExpiryService(db, pub).ReleaseExpired(ctx, hold)
			if err != nil {
				return err
			}
			fmt.Printf("Released %d expired hold(s) older than %s\n", released, hold)
			return nil
		},
	}
	cmd.Flags().DurationVar(&hold, "hold", services.DefaultHoldWindow, "hold window after which unpaid bookings expire")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and seed the admin user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := connect()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			return database.SeedAdmin(db, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminFullName)
		},
	}
}
