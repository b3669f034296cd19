package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/anjiri1684/hotel_booking/handlers"
)

func PublicRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	api.Get("/rooms/availability", h.SearchAvailability)
	api.Post("/rooms/availability", h.SearchAvailability)
}
