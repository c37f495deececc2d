package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pulsegrid/notify-backend/internal/httpx"
	"github.com/pulsegrid/notify-backend/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input service.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_body", "Invalid request body")
	}

	if input.Username == "" || input.Password == "" {
		return httpx.BadRequest(c, "missing_credentials", "Username and password are required")
	}

	result, err := h.authService.Login(input)
	if err != nil {
		return httpx.Unauthorized(c, "invalid_credentials", "Invalid credentials")
	}

	return c.JSON(result)
}
