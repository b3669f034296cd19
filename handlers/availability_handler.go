package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/anjiri1684/hotel_booking/services"
)

type AvailabilityRequest struct {
	CheckIn  string `json:"check_in" query:"check_in"`
	CheckOut string `json:"check_out" query:"check_out"`
	RoomType string `json:"room_type" query:"room_type"`
}

// SearchAvailability accepts the range either as query parameters (GET) or as
// a JSON body (POST).
func (h *Handler) SearchAvailability(c *fiber.Ctx) error {
	var req AvailabilityRequest
	if c.Method() == fiber.MethodPost {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	} else if err := c.QueryParser(&req); err != nil {
		return badRequest("invalid query parameters")
	}

	r, err := services.ParseDateRange(req.CheckIn, req.CheckOut)
	if err != nil {
		return err
	}
	res, err := h.Availability.FindAvailableRooms(c.UserContext(), r, req.RoomType)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":         "success",
		"check_in":       r.CheckIn.Format("2006-01-02"),
		"check_out":      r.CheckOut.Format("2006-01-02"),
		"nights":         r.Nights(),
		"rooms":          res.Rooms,
		"total_rooms":    res.TotalRooms,
		"excluded_rooms": res.ExcludedRooms,
	})
}
