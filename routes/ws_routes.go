package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/anjiri1684/hotel_booking/handlers"
	"github.com/anjiri1684/hotel_booking/middleware"
)

func WSRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	api.Use("/ws", handlers.RequireUpgrade)
	api.Get("/ws/admin", middleware.ProtectedWS(h.JWTSecret), middleware.AdminRequired(), websocket.New(h.ServeAdminWs))
}
