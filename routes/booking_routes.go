package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/anjiri1684/hotel_booking/handlers"
	"github.com/anjiri1684/hotel_booking/middleware"
)

func BookingRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	booking := api.Group("/bookings", middleware.Protected(h.JWTSecret))
	booking.Post("", h.CreateBooking)
	booking.Get("/me", h.GetMyBookings)
	booking.Get("/:bookingId", h.GetBooking)
	booking.Post("/:bookingId/cancel", h.CancelBooking)
	booking.Post("/:bookingId/payment", h.BookingPaymentAction)
	booking.Get("/:bookingId/payments", h.ListBookingPayments)
}
