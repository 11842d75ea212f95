package middleware

import (
	"context"
	"strings"

	"github.com/arzan03/natours/internal/apperror"
	"github.com/arzan03/natours/internal/models"
	"github.com/gofiber/fiber/v2"
)

const (
	userKey    = "user"
	CookieName = "jwt"
)

var ErrForbidden = apperror.Forbidden("You do not have permission to perform this action")

// TokenVerifier resolves a raw token to its user.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.User, error)
}

// Protect requires a valid token from the Authorization header or the jwt
// cookie and stores the resolved user for later handlers.
func Protect(auth TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.Verify(c.UserContext(), tokenFrom(c))
		if err != nil {
			return err
		}
		c.Locals(userKey, user)
		return c.Next()
	}
}

// RestrictTo lets only the listed roles through. It must run after Protect.
func RestrictTo(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return ErrForbidden
		}
		for _, role := range roles {
			if user.Role == role {
				return c.Next()
			}
		}
		return ErrForbidden
	}
}

// Require is RestrictTo for every role holding capability.
func Require(capability models.Capability) fiber.Handler {
	return RestrictTo(models.RolesWith(capability)...)
}

// CurrentUser returns the user set by Protect, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}

func tokenFrom(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie := c.Cookies(CookieName); cookie != "" && cookie != "loggedout" {
		return cookie
	}
	return ""
}
