package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/anjiri1684/hotel_booking/models"
)

func TestActorFromClaims(t *testing.T) {
	id := uuid.New()

	t.Run("Given an admin role When parsing Then the actor is an admin", func(t *testing.T) {
		actor, err := ActorFromClaims(jwt.MapClaims{"user_id": id.String(), "role": "admin"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if actor.ID != id || !actor.IsAdmin() {
			t.Errorf("unexpected actor %+v", actor)
		}
	})

	t.Run("Given an unknown role When parsing Then the actor is a guest", func(t *testing.T) {
		actor, err := ActorFromClaims(jwt.MapClaims{"user_id": id.String(), "role": "manager"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if actor.Role != models.ActorGuest {
			t.Errorf("role = %q, want guest", actor.Role)
		}
	})

	t.Run("Given a malformed user_id When parsing Then it fails", func(t *testing.T) {
		if _, err := ActorFromClaims(jwt.MapClaims{"user_id": "42", "role": "admin"}); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestProtectedAndAdminRequired(t *testing.T) {
	const secret = "middleware-secret"
	app := fiber.New()
	app.Get("/me", Protected(secret), func(c *fiber.Ctx) error {
		return c.SendString(CurrentActor(c).ID.String())
	})
	app.Get("/admin", Protected(secret), AdminRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	guest := models.User{ID: uuid.New(), Role: models.RoleGuest}
	admin := models.User{ID: uuid.New(), Role: models.RoleAdmin}

	call := func(path, token string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		return resp.StatusCode
	}
	sign := func(u models.User, ttl time.Duration, key string) string {
		tok, err := IssueToken(key, u, ttl)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		return tok
	}

	cases := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"no token", "/me", "", fiber.StatusBadRequest},
		{"wrong key", "/me", sign(guest, time.Hour, "other"), fiber.StatusUnauthorized},
		{"expired", "/me", sign(guest, -time.Minute, secret), fiber.StatusUnauthorized},
		{"guest on own route", "/me", sign(guest, time.Hour, secret), fiber.StatusOK},
		{"guest on admin route", "/admin", sign(guest, time.Hour, secret), fiber.StatusForbidden},
		{"admin on admin route", "/admin", sign(admin, time.Hour, secret), fiber.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := call(tc.path, tc.token); got != tc.want {
				t.Errorf("status = %d, want %d", got, tc.want)
			}
		})
	}
}
