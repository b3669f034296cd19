package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/anjiri1684/hotel_booking/handlers"
	"github.com/anjiri1684/hotel_booking/middleware"
)

func AdminRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(h.JWTSecret), middleware.AdminRequired())

	rooms := admin.Group("/rooms")
	rooms.Get("", h.ListRooms)
	rooms.Post("", h.CreateRoom)
	rooms.Patch("/:roomId", h.UpdateRoomFlags)

	bookings := admin.Group("/bookings")
	bookings.Get("", h.ListAllBookings)
	bookings.Post("/:bookingId/verify", h.VerifyBookingPayment)
	bookings.Post("/:bookingId/check-in", h.CheckInBooking)
	bookings.Post("/:bookingId/override", h.OverrideBooking)
	bookings.Post("/:bookingId/receipt", h.GenerateReceipt)

	admin.Get("/payments/:paymentId/logs", h.PaymentLogs)
	admin.Get("/audit-logs", h.AuditLogs)
	admin.Post("/sweep", h.RunSweep)
}
