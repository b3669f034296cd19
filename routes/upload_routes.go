package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/anjiri1684/hotel_booking/handlers"
	"github.com/anjiri1684/hotel_booking/middleware"
)

func UploadRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	uploads := api.Group("/uploads", middleware.Protected(h.JWTSecret))
	uploads.Get("/payment-proof/signature", h.PaymentProofSignature)
}
