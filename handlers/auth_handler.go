package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/middleware"
	"github.com/anjiri1684/hotel_booking/models"
)

type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,min=7,max=32"`
	Password string `json:"password" validate:"required,min=6"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

var errEmailTaken = &apperr.AppError{Kind: apperr.Invalid, PublicMsg: "email already exists"}

func (h *Handler) RegisterUser(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Persistence(err)
	}

	var count int64
	if err := h.DB.WithContext(c.UserContext()).Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return apperr.Persistence(err)
	}
	if count > 0 {
		return errEmailTaken
	}

	user := models.User{
		FullName: strings.TrimSpace(req.FullName),
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     models.RoleGuest,
		IsActive: true,
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}
	if err := h.DB.WithContext(c.UserContext()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errEmailTaken
		}
		return apperr.Persistence(err)
	}

	return c.Status(fiber.StatusCreated).JSON(UserResponse{
		ID:        user.ID.String(),
		FullName:  user.FullName,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	})
}

func (h *Handler) LoginUser(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return err
	}

	invalid := &apperr.AppError{Kind: apperr.Unauthorized, PublicMsg: "invalid email or password"}
	var user models.User
	if err := h.DB.WithContext(c.UserContext()).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalid
		}
		return apperr.Persistence(err)
	}
	if !user.IsActive {
		return invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return invalid
	}

	token, err := middleware.IssueToken(h.JWTSecret, user, h.JWTExpire)
	if err != nil {
		return apperr.Persistence(err)
	}
	return c.JSON(fiber.Map{"token": token, "role": user.Role})
}
