package handlers

import (
	"fmt"
	"time"

	"github.com/arzan03/natours/internal/middleware"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/services"
	"github.com/gofiber/fiber/v2"
)

const loggedOut = "loggedout"

type AuthHandler struct {
	auth      *services.AuthService
	cookieTTL time.Duration
	secure    bool
}

// NewAuthHandler issues tokens as JSON and as an HttpOnly jwt cookie. Secure
// cookies are used in production.
func NewAuthHandler(auth *services.AuthService, cookieTTL time.Duration, secure bool) *AuthHandler {
	return &AuthHandler{auth: auth, cookieTTL: cookieTTL, secure: secure}
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var in services.SignupInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}

	user, token, err := h.auth.Signup(c.UserContext(), in)
	if err != nil {
		return err
	}
	return h.sendToken(c, fiber.StatusCreated, user, token)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(c, &request); err != nil {
		return err
	}

	user, token, err := h.auth.Login(c.UserContext(), request.Email, request.Password)
	if err != nil {
		return err
	}
	return h.sendToken(c, fiber.StatusOK, user, token)
}

// Logout overwrites the cookie with a short-lived placeholder.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    loggedOut,
		Expires:  time.Now().Add(10 * time.Second),
		HTTPOnly: true,
		Secure:   h.secure,
	})
	return c.JSON(fiber.Map{"status": "success"})
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var request struct {
		Email string `json:"email"`
	}
	if err := decodeBody(c, &request); err != nil {
		return err
	}

	resetURL := func(token string) string {
		return fmt.Sprintf("%s://%s/api/v1/users/resetPassword/%s", c.Protocol(), c.Hostname(), token)
	}
	if err := h.auth.ForgotPassword(c.UserContext(), request.Email, resetURL); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "message": "Token sent to email!"})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var request passwordInput
	if err := decodeBody(c, &request); err != nil {
		return err
	}

	user, token, err := h.auth.ResetPassword(c.UserContext(), c.Params("token"), request.Password, request.PasswordConfirm)
	if err != nil {
		return err
	}
	return h.sendToken(c, fiber.StatusOK, user, token)
}

// UpdatePassword must run after middleware.Protect.
func (h *AuthHandler) UpdatePassword(c *fiber.Ctx) error {
	var request struct {
		PasswordCurrent string `json:"passwordCurrent"`
		passwordInput
	}
	if err := decodeBody(c, &request); err != nil {
		return err
	}

	current := middleware.CurrentUser(c)
	user, token, err := h.auth.UpdatePassword(c.UserContext(), current.ID,
		request.PasswordCurrent, request.Password, request.PasswordConfirm)
	if err != nil {
		return err
	}
	return h.sendToken(c, fiber.StatusOK, user, token)
}

type passwordInput struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (h *AuthHandler) sendToken(c *fiber.Ctx, status int, user *models.User, token string) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Expires:  time.Now().Add(h.cookieTTL),
		HTTPOnly: true,
		Secure:   h.secure,
	})
	return c.Status(status).JSON(fiber.Map{
		"status": "success",
		"token":  token,
		"data":   fiber.Map{"user": user},
	})
}
