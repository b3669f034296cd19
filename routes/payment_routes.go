package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/anjiri1684/hotel_booking/handlers"
	"github.com/anjiri1684/hotel_booking/middleware"
)

func PaymentRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	// The gateway posts here from the payer's browser; it authenticates by
	// hash, not by token.
	api.Post("/payments/webhook", h.PaymentWebhook)

	payments := api.Group("/payments", middleware.Protected(h.JWTSecret))
	payments.Post("/initiate", h.InitiatePayment)
	payments.Post("/status", h.PaymentStatus)
}
