package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/anjiri1684/hotel_booking/handlers"
)

// NewApp builds the fiber application with the shared middleware stack and
// every route group mounted.
func NewApp(h *handlers.Handler, accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:       "Hotel Booking",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler:  handlers.ErrorHandler,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	if accessLog {
		app.Use(logger.New(logger.Config{
			TimeFormat: "2006-01-02 15:04:05",
			TimeZone:   "Asia/Kolkata",
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	Setup(app, h)
	return app
}

// Setup mounts every route group under /api/v1.
func Setup(app *fiber.App, h *handlers.Handler) {
	PublicRoutes(app, h)
	AuthRoutes(app, h)
	BookingRoutes(app, h)
	PaymentRoutes(app, h)
	UploadRoutes(app, h)
	AdminRoutes(app, h)
	WSRoutes(app, h)
}
