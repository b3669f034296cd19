package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/middleware"
	"github.com/anjiri1684/hotel_booking/services"
)

type RoomFlagsRequest struct {
	IsActive    *bool `json:"is_active"`
	IsAvailable *bool `json:"is_available"`
}

type VerifyPaymentRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Note    string `json:"note" validate:"max=500"`
}

type OverrideRequest struct {
	State  string `json:"state" validate:"required"`
	Reason string `json:"reason" validate:"required,max=500"`
}

type SweepRequest struct {
	Hold string `json:"hold"`
}

func (h *Handler) CreateRoom(c *fiber.Ctx) error {
	var req services.RoomInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	room, err := h.Rooms.CreateRoom(c.UserContext(), middleware.CurrentActor(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success", "room": room})
}

func (h *Handler) ListRooms(c *fiber.Ctx) error {
	rooms, err := h.Rooms.ListRooms(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "rooms": rooms})
}

func (h *Handler) UpdateRoomFlags(c *fiber.Ctx) error {
	id, err := paramUUID(c, "roomId")
	if err != nil {
		return err
	}
	var req RoomFlagsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	room, err := h.Rooms.SetRoomFlags(c.UserContext(), middleware.CurrentActor(c), id, req.IsActive, req.IsAvailable)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "room": room})
}

func (h *Handler) ListAllBookings(c *fiber.Ctx) error {
	filter := services.BookingFilter{
		State:  c.Query("state"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest("invalid user_id")
		}
		filter.UserID = id
	}
	bookings, err := h.Reservations.ListBookings(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "bookings": bookings})
}

func (h *Handler) VerifyBookingPayment(c *fiber.Ctx) error {
	id, err := paramUUID(c, "bookingId")
	if err != nil {
		return err
	}
	var req VerifyPaymentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	booking, err := h.Recon.VerifyManualPayment(c.UserContext(), middleware.CurrentActor(c), id, *req.Approve, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "booking": booking})
}

func (h *Handler) CheckInBooking(c *fiber.Ctx) error {
	id, err := paramUUID(c, "bookingId")
	if err != nil {
		return err
	}
	booking, err := h.Recon.CheckInBooking(c.UserContext(), middleware.CurrentActor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "booking": booking})
}

func (h *Handler) OverrideBooking(c *fiber.Ctx) error {
	id, err := paramUUID(c, "bookingId")
	if err != nil {
		return err
	}
	var req OverrideRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	booking, err := h.Recon.OverrideBooking(c.UserContext(), middleware.CurrentActor(c), id, req.State, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "booking": booking})
}

func (h *Handler) GenerateReceipt(c *fiber.Ctx) error {
	id, err := paramUUID(c, "bookingId")
	if err != nil {
		return err
	}
	if h.Receipts == nil {
		return apperr.Validation("receipt generation is not configured")
	}
	receiptURL, err := h.Receipts.GenerateReceipt(c.UserContext(), middleware.CurrentActor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "receipt_url": receiptURL})
}

func (h *Handler) PaymentLogs(c *fiber.Ctx) error {
	id, err := paramUUID(c, "paymentId")
	if err != nil {
		return err
	}
	logs, err := h.Payments.PaymentLogs(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "logs": logs})
}

func (h *Handler) AuditLogs(c *fiber.Ctx) error {
	filter := services.AuditFilter{
		Action: c.Query("action"),
		Limit:  queryInt(c, "limit", 100),
		Offset: queryInt(c, "offset", 0),
	}
	if raw := c.Query("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest("invalid entity_id")
		}
		filter.EntityID = id
	}
	logs, err := h.Audit.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "logs": logs})
}

// RunSweep releases expired holds on demand, outside the cron schedule.
func (h *Handler) RunSweep(c *fiber.Ctx) error {
	hold := h.HoldWindow
	var req SweepRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	if req.Hold != "" {
		d, err := time.ParseDuration(req.Hold)
		if err != nil || d <= 0 {
			return badRequest("hold must be a positive duration such as 30m")
		}
		hold = d
	}
	released, err := h.Expiry.ReleaseExpired(c.UserContext(), hold)
	if err != nil {
		return err
	}
	logging.Log.WithField("admin", middleware.CurrentActor(c).ID).Infof("Manual sweep released %d holds", released)
	return c.JSON(fiber.Map{"status": "success", "released": released, "hold": hold.String()})
}
