// Package router assembles the Fiber application: global middleware, the
// /api/v1 routes and the operational endpoints.
package router

import (
	"strings"

	"github.com/arzan03/natours/internal/apperror"
	"github.com/arzan03/natours/internal/config"
	"github.com/arzan03/natours/internal/handlers"
	"github.com/arzan03/natours/internal/middleware"
	"github.com/arzan03/natours/internal/models"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const tooManyRequests = "Too many requests from this IP, please try again in an hour!"

// Handlers are the controllers the routes dispatch to.
type Handlers struct {
	Verifier middleware.TokenVerifier
	Auth     *handlers.AuthHandler
	Tours    *handlers.TourHandler
	Users    *handlers.UserHandler
	Reviews  *handlers.Resource[models.Review]
}

// New builds the application. Nothing is listening yet.
func New(cfg *config.Config, h Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "natours",
		BodyLimit:    cfg.UploadLimit,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: handlers.ErrorHandler(cfg.Env),
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(recover.New(recover.Config{EnableStackTrace: !cfg.Env.IsProduction()}))
	app.Use(helmet.New())
	app.Use(cors.New())
	app.Use(middleware.Metrics())
	if !cfg.Env.IsProduction() {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/img/:name", h.Tours.Image)

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
		LimitReached: func(*fiber.Ctx) error {
			return apperror.New(fiber.StatusTooManyRequests, tooManyRequests)
		},
	}), jsonBodyLimit(cfg.BodyLimit))
	v1 := api.Group("/v1")

	protect := middleware.Protect(h.Verifier)
	registerTours(v1.Group("/tours"), h, protect)
	registerUsers(v1.Group("/users"), h, protect)
	registerReviews(v1.Group("/reviews", protect), h.Reviews)

	app.Use(func(c *fiber.Ctx) error {
		return apperror.Newf(fiber.StatusNotFound, "Can't find %s on this server!", c.OriginalURL())
	})
	return app
}

func registerTours(r fiber.Router, h Handlers, protect fiber.Handler) {
	t := h.Tours
	manage := middleware.Require(models.ManageTours)

	r.Get("/top-5-cheap", t.AliasTopTours, t.GetAll())
	r.Get("/tour-stats", t.Stats)
	r.Get("/monthly-plan/:year", protect, middleware.Require(models.ViewMonthlyPlan), t.MonthlyPlan)
	r.Get("/tours-within/:distance/center/:latlng/unit/:unit", t.ToursWithin)
	r.Get("/distances/:latlng/unit/:unit", t.Distances)

	r.Get("/", t.GetAll())
	r.Post("/", protect, manage, t.CreateOne())
	r.Get("/:id", t.GetOne())
	r.Patch("/:id", protect, manage, t.UploadImages, t.UpdateOne())
	r.Delete("/:id", protect, manage, t.DeleteOne())

	registerReviews(r.Group("/:tourId/reviews", protect), h.Reviews)
}

func registerUsers(r fiber.Router, h Handlers, protect fiber.Handler) {
	a, u := h.Auth, h.Users

	r.Post("/signup", a.Signup)
	r.Post("/login", a.Login)
	r.Get("/logout", a.Logout)
	r.Post("/forgotPassword", a.ForgotPassword)
	r.Patch("/resetPassword/:token", a.ResetPassword)

	r.Patch("/updateMyPassword", protect, a.UpdatePassword)
	r.Get("/me", protect, u.GetMe)
	r.Patch("/updateMe", protect, u.UpdateMe)
	r.Delete("/deleteMe", protect, u.DeleteMe)

	admin := middleware.Require(models.ManageUsers)
	r.Get("/", protect, admin, u.GetAll())
	r.Post("/", protect, admin, u.CreateUser)
	r.Get("/:id", protect, admin, u.GetOne())
	r.Patch("/:id", protect, admin, u.UpdateOne())
	r.Delete("/:id", protect, admin, u.DeleteOne())
}

// registerReviews expects r to already require a logged-in user.
func registerReviews(r fiber.Router, reviews *handlers.Resource[models.Review]) {
	edit := middleware.Require(models.EditReviews)

	r.Get("/", reviews.GetAll())
	r.Post("/", middleware.Require(models.WriteReviews), reviews.CreateOne())
	r.Get("/:id", reviews.GetOne())
	r.Patch("/:id", edit, reviews.UpdateOne())
	r.Delete("/:id", edit, reviews.DeleteOne())
}

// jsonBodyLimit caps every body except multipart uploads, whatever its
// declared content type, well below the upload limit.
func jsonBodyLimit(limit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		contentType := strings.ToLower(strings.TrimSpace(c.Get(fiber.HeaderContentType)))
		if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
			return c.Next()
		}
		if len(c.Body()) > limit {
			return fiber.ErrRequestEntityTooLarge
		}
		return c.Next()
	}
}
