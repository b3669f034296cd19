package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/anjiri1684/hotel_booking/middleware"
	"github.com/anjiri1684/hotel_booking/services"
)

type CreateBookingRequest struct {
	RoomID     string `json:"room_id" validate:"required,uuid"`
	CheckIn    string `json:"check_in" validate:"required"`
	CheckOut   string `json:"check_out" validate:"required"`
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`
	GuestPhone string `json:"guest_phone"`
	Guests     int    `json:"guests"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type BookingPaymentRequest struct {
	Action               string `json:"action" validate:"required,oneof=mark_paid"`
	TransactionID        string `json:"transaction_id"`
	PaymentScreenshotURL string `json:"payment_screenshot_url"`
}

func (h *Handler) CreateBooking(c *fiber.Ctx) error {
	var req CreateBookingRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	r, err := services.ParseDateRange(req.CheckIn, req.CheckOut)
	if err != nil {
		return err
	}
	if req.Guests == 0 {
		req.Guests = 1
	}

	booking, err := h.Reservations.CreateBooking(c.UserContext(), middleware.CurrentActor(c), services.CreateBookingInput{
		RoomID: uuid.MustParse(req.RoomID),
		Range:  r,
		Guest: services.GuestInfo{
			Name:   strings.TrimSpace(req.GuestName),
			Email:  strings.TrimSpace(req.GuestEmail),
			Phone:  strings.TrimSpace(req.GuestPhone),
			Guests: req.Guests,
		},
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success", "booking": booking})
}

func (h *Handler) GetMyBookings(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)
	bookings, err := h.Reservations.ListBookings(c.UserContext(), services.BookingFilter{
		UserID: actor.ID,
		State:  c.Query("state"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "bookings": bookings})
}

func (h *Handler) GetBooking(c *fiber.Ctx) error {
	id, err := paramUUID(c, "bookingId")
	if err != nil {
		return err
	}
	booking, err := h.Reservations.GetBooking(c.UserContext(), middleware.CurrentActor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "booking": booking})
}

func (h *Handler) CancelBooking(c *fiber.Ctx) error {
	id, err := paramUUID(c, "bookingId")
	if err != nil {
		return err
	}
	var req CancelBookingRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	booking, err := h.Reservations.CancelBooking(c.UserContext(), middleware.CurrentActor(c), id, strings.TrimSpace(req.Reason))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "booking": booking})
}

// BookingPaymentAction handles guest-side payment actions on a booking. The
// only action today is mark_paid, which submits out-of-band payment proof.
func (h *Handler) BookingPaymentAction(c *fiber.Ctx) error {
	id, err := paramUUID(c, "bookingId")
	if err != nil {
		return err
	}
	var req BookingPaymentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	booking, err := h.Recon.MarkPaid(c.UserContext(), middleware.CurrentActor(c), id, services.ManualProof{
		TransactionID: req.TransactionID,
		ScreenshotURL: req.PaymentScreenshotURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Payment proof received and awaiting verification",
		"booking": booking,
	})
}
