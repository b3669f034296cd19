package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/anjiri1684/hotel_booking/models"
)

// ActorLocalKey is the request local holding the authenticated models.Actor.
const ActorLocalKey = "actor"

// Protected validates the bearer token and stores the caller as an Actor in
// the request locals.
func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:     []byte(secret),
		SigningMethod:  "HS256",
		ErrorHandler:   jwtError,
		SuccessHandler: storeActor,
	})
}

// ProtectedWS authenticates websocket upgrades, where browsers cannot set
// headers, from the token query parameter.
func ProtectedWS(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:     []byte(secret),
		SigningMethod:  "HS256",
		TokenLookup:    "query:token",
		ErrorHandler:   jwtError,
		SuccessHandler: storeActor,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

func storeActor(c *fiber.Ctx) error {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return jwtError(c, fmt.Errorf("invalid token"))
	}
	actor, err := ActorFromClaims(token.Claims)
	if err != nil {
		return jwtError(c, err)
	}
	c.Locals(ActorLocalKey, actor)
	return c.Next()
}

// ActorFromClaims builds an Actor from the user_id and role claims. Unknown
// roles are treated as guests.
func ActorFromClaims(claims jwt.Claims) (models.Actor, error) {
	mc, ok := claims.(jwt.MapClaims)
	if !ok {
		return models.Actor{}, fmt.Errorf("unexpected claims type %T", claims)
	}
	raw, _ := mc["user_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return models.Actor{}, fmt.Errorf("invalid user_id claim: %w", err)
	}
	role, _ := mc["role"].(string)
	if role != models.ActorAdmin {
		role = models.ActorGuest
	}
	return models.Actor{ID: id, Role: role}, nil
}

// CurrentActor returns the authenticated caller, or the zero Actor on
// unauthenticated routes.
func CurrentActor(c *fiber.Ctx) models.Actor {
	actor, _ := c.Locals(ActorLocalKey).(models.Actor)
	return actor
}

func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !CurrentActor(c).IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status":  "error",
				"message": "Forbidden: Admin access required",
			})
		}
		return c.Next()
	}
}

// IssueToken signs a token carrying the claims Protected expects.
func IssueToken(secret string, user models.User, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    user.Role,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
