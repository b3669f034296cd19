package handlers

import (
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/middleware"
	"github.com/anjiri1684/hotel_booking/models"
	"github.com/anjiri1684/hotel_booking/websocket"
)

// RequireUpgrade rejects plain HTTP requests on websocket routes.
func RequireUpgrade(c *fiber.Ctx) error {
	if !websocketcontrib.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// ServeAdminWs streams booking and payment events to an authenticated admin
// until the connection closes. Incoming messages are ignored.
func (h *Handler) ServeAdminWs(c *websocketcontrib.Conn) {
	actor, _ := c.Locals(middleware.ActorLocalKey).(models.Actor)
	client := &websocket.Client{UserID: actor.ID, Conn: c}
	h.Hub.Register <- client
	defer func() {
		h.Hub.Unregister <- client
		c.Close()
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseAbnormalClosure, websocketcontrib.CloseNormalClosure) {
				logging.Log.Debugf("WebSocket closed for admin %s", actor.ID)
			} else {
				logging.Log.Warnf("WebSocket read error for admin %s: %v", actor.ID, err)
			}
			return
		}
	}
}
