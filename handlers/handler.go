package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/services"
	"github.com/anjiri1684/hotel_booking/websocket"
)

var validate = validator.New()

// Handler carries the services the HTTP surface delegates to. Handlers never
// touch booking or payment status columns themselves.
type Handler struct {
	DB            *gorm.DB
	JWTSecret     string
	JWTExpire     time.Duration
	FrontendURL   string
	CloudinaryURL string
	HoldWindow    time.Duration

	Availability *services.AvailabilityService
	Reservations *services.ReservationService
	Payments     *services.PaymentService
	Recon        *services.ReconciliationService
	Expiry       *services.ExpiryService
	Rooms        *services.RoomService
	Audit        *services.AuditService
	Receipts     *services.ReceiptService
	Hub          *websocket.Hub
}

// ErrorHandler renders every error as {"status":"error","code","message"}
// with the caller-safe message only.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "unexpected server error"
	retryable := true

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code, message, retryable = fe.Code, fe.Message, false
	} else if _, ok := apperr.As(err); ok {
		code = apperr.HTTPStatus(err)
		message = apperr.PublicMessage(err)
		retryable = apperr.Retryable(err)
	}

	entry := logging.Log.WithFields(map[string]interface{}{
		"path":   c.Path(),
		"method": c.Method(),
		"code":   code,
	})
	if code >= fiber.StatusInternalServerError {
		entry.Errorf("🔥 %v", err)
	} else {
		entry.Debugf("request rejected: %v", err)
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    "error",
		"code":      code,
		"message":   message,
		"retryable": retryable,
	})
}

func badRequest(msg string) error {
	return apperr.Validation(msg)
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.With(apperr.Validation("cannot parse request body"), err)
	}
	return nil
}

func validateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return apperr.With(apperr.Validation(err.Error()), err)
	}
	return nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.With(apperr.Validation("invalid "+name), err)
	}
	return id, nil
}

func queryInt(c *fiber.Ctx, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}
