package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/arzan03/natours/internal/apperror"
	"github.com/arzan03/natours/internal/models"
	"github.com/gofiber/fiber/v2"
)

type stubVerifier map[string]*models.User

func (s stubVerifier) Verify(_ context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperror.Unauthorized("You are not logged in! Please log in to get access.")
	}
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, apperror.Unauthorized("Invalid token. Please log in again!")
}

func testApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		ae := apperror.Normalize(err)
		return c.Status(ae.StatusCode).JSON(fiber.Map{"status": ae.Status, "message": ae.Message})
	}})
	handlers = append(handlers, func(c *fiber.Ctx) error {
		return c.SendString(string(CurrentUser(c).Role))
	})
	app.Get("/", handlers...)
	return app
}

func TestProtect(t *testing.T) {
	verifier := stubVerifier{"good": {Role: models.RoleGuide}}
	app := testApp(Protect(verifier))

	tests := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{"no credentials", "", "", 401},
		{"bearer token", "Bearer good", "", 200},
		{"cookie token", "", "good", 200},
		{"logged out cookie", "", "loggedout", 401},
		{"bad token", "Bearer forged", "", 401},
		{"non bearer scheme", "Basic good", "", 401},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.Header.Set("Cookie", CookieName+"="+tt.cookie)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Fatalf("got %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestRestrictTo(t *testing.T) {
	verifier := stubVerifier{
		"user":  {Role: models.RoleUser},
		"lead":  {Role: models.RoleLeadGuide},
		"admin": {Role: models.RoleAdmin},
	}
	app := testApp(Protect(verifier), Require(models.ManageTours))

	for token, want := range map[string]int{"user": 403, "lead": 200, "admin": 200} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != want {
			t.Errorf("%s: got %d, want %d", token, resp.StatusCode, want)
		}
	}
}

func TestRestrictToWithoutProtect(t *testing.T) {
	app := fiber.New()
	app.Get("/", RestrictTo(models.RoleAdmin), func(c *fiber.Ctx) error { return c.SendStatus(200) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode == 200 {
		t.Fatal("an anonymous request must not pass a role check")
	}
}
