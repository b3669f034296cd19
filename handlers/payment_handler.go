package handlers

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/middleware"
	"github.com/anjiri1684/hotel_booking/services"
)

type InitiatePaymentRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

type PaymentStatusRequest struct {
	BookingID    string `json:"bookingId"`
	BookingIDAlt string `json:"booking_id"`
}

func (r PaymentStatusRequest) id() (uuid.UUID, error) {
	raw := r.BookingID
	if raw == "" {
		raw = r.BookingIDAlt
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperr.With(apperr.Validation("bookingId is required"), err)
	}
	return id, nil
}

func (h *Handler) InitiatePayment(c *fiber.Ctx) error {
	var req InitiatePaymentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	out, err := h.Payments.InitiatePayment(c.UserContext(), middleware.CurrentActor(c), uuid.MustParse(req.BookingID))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":         "success",
		"checkout_url":   out.CheckoutURL,
		"transaction_id": out.Payment.TransactionID,
		"resumed":        out.Resumed,
		"payment":        out.Payment,
	})
}

// PaymentWebhook receives the gateway's browser-posted callback and always
// answers with a redirect to the frontend, except on persistence failures.
// Untrusted callbacks get the same redirect whether the transaction is
// unknown or the hash is wrong.
func (h *Handler) PaymentWebhook(c *fiber.Ctx) error {
	form := webhookForm(c)
	out, err := h.Recon.HandleWebhook(c.UserContext(), form)
	if err != nil {
		return apperr.Persistence(err)
	}
	return c.Redirect(h.outcomeURL(out), fiber.StatusFound)
}

func (h *Handler) outcomeURL(out *services.WebhookOutcome) string {
	base := strings.TrimRight(h.FrontendURL, "/") + "/booking/"
	q := url.Values{}
	switch out.Kind {
	case services.OutcomeSuccess, services.OutcomeFailed, services.OutcomePending:
		q.Set("booking_id", out.BookingID.String())
		q.Set("ref", out.ReferenceCode)
	default:
		q.Set("ref", out.TransactionID)
		return base + "failure?" + q.Encode()
	}
	switch out.Kind {
	case services.OutcomeSuccess:
		return base + "success?" + q.Encode()
	case services.OutcomePending:
		return base + "pending?" + q.Encode()
	default:
		return base + "failure?" + q.Encode()
	}
}

// webhookForm collects urlencoded or multipart fields into a flat map. The
// first value wins for repeated keys.
func webhookForm(c *fiber.Ctx) map[string]string {
	form := make(map[string]string)
	c.Request().PostArgs().VisitAll(func(k, v []byte) {
		if _, ok := form[string(k)]; !ok {
			form[string(k)] = string(v)
		}
	})
	if len(form) > 0 {
		return form
	}
	if mf, err := c.MultipartForm(); err == nil && mf != nil {
		for k, vs := range mf.Value {
			if len(vs) > 0 {
				form[k] = vs[0]
			}
		}
	}
	return form
}

// PaymentStatus polls the gateway for the booking's latest payment. An
// unreachable gateway yields status "unknown" and never a terminal status.
func (h *Handler) PaymentStatus(c *fiber.Ctx) error {
	var req PaymentStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	id, err := req.id()
	if err != nil {
		return err
	}
	res, err := h.Recon.CheckStatus(c.UserContext(), middleware.CurrentActor(c), id)
	if err != nil {
		if errors.Is(err, apperr.ErrGatewayUnreachable) {
			logging.Log.WithField("booking_id", id).Warnf("⚠️ Status poll failed: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"status":    "unknown",
				"message":   apperr.PublicMessage(err),
				"retryable": true,
			})
		}
		return err
	}
	return c.JSON(fiber.Map{"status": res.Status, "raw": res.Raw})
}

func (h *Handler) ListBookingPayments(c *fiber.Ctx) error {
	id, err := paramUUID(c, "bookingId")
	if err != nil {
		return err
	}
	list, err := h.Payments.ListPayments(c.UserContext(), middleware.CurrentActor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "payments": list})
}
