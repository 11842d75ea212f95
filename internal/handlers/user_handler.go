package handlers

import (
	"context"
	"mime/multipart"
	"strings"

	"github.com/arzan03/natours/internal/apperror"
	"github.com/arzan03/natours/internal/db"
	"github.com/arzan03/natours/internal/middleware"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/services"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
)

var errPasswordOnUpdateMe = apperror.BadRequest("This route is not for password updates. Please use /updateMyPassword.")

// selfEditable is what a user may change about themselves through updateMe.
var selfEditable = []string{"name", "email"}

// UserHandler serves the account routes of the logged-in user and, through
// its embedded Resource, the admin CRUD routes.
type UserHandler struct {
	*Resource[models.User]
	images *services.ImageService
}

func NewUserHandler(store Store[models.User], images *services.ImageService) *UserHandler {
	return &UserHandler{
		Resource: &Resource[models.User]{
			Store:   store,
			Kinds:   models.UserKinds,
			Prepare: (*models.User).Prepare,
			Validate: func(_ context.Context, u *models.User) error {
				return u.Validate()
			},
			Immutable: models.UserImmutable,
		},
		images: images,
	}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.Store.FindByID(c.UserContext(), middleware.CurrentUser(c).ID)
	if err != nil {
		return notFound(err)
	}
	return c.JSON(envelope(user))
}

// UpdateMe accepts JSON or a multipart form with an optional photo. Only
// name, email and photo are written.
func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	fields, photo, err := updateMeInput(c)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	current := middleware.CurrentUser(c)
	user, err := h.Store.FindByID(ctx, current.ID)
	if err != nil {
		return notFound(err)
	}

	keys := make([]string, 0, len(fields)+1)
	if v, ok := fields["name"]; ok {
		user.Name = v
		keys = append(keys, "name")
	}
	if v, ok := fields["email"]; ok {
		user.Email = v
		keys = append(keys, "email")
	}
	if photo != nil {
		if h.images == nil {
			return apperror.New(fiber.StatusServiceUnavailable, "Image uploads are not available")
		}
		name, err := h.images.UserPhoto(ctx, user.ID.Hex(), photo)
		if err != nil {
			return err
		}
		user.Photo = name
		keys = append(keys, "photo")
	}
	if len(keys) == 0 {
		return c.JSON(envelope(user))
	}

	user.Prepare(false)
	if err := user.Validate(); err != nil {
		return err
	}
	set, err := db.Fields(user, keys)
	if err != nil {
		return err
	}
	updated, err := h.Store.UpdateByID(ctx, user.ID, set)
	if err != nil {
		if photo != nil {
			h.images.Discard(ctx, user.Photo)
		}
		return notFound(err)
	}
	return c.JSON(envelope(updated))
}

// DeleteMe deactivates the account. The document stays in the store.
func (h *UserHandler) DeleteMe(c *fiber.Ctx) error {
	if _, err := h.Store.UpdateByID(c.UserContext(), middleware.CurrentUser(c).ID, bson.M{"active": false}); err != nil {
		return notFound(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateUser points clients at the signup route.
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"status":  "error",
		"message": "This route is not defined! Please use /signup instead",
	})
}

func updateMeInput(c *fiber.Ctx) (map[string]string, *multipart.FileHeader, error) {
	fields := map[string]string{}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return nil, nil, fiber.NewError(fiber.StatusBadRequest, "Invalid multipart form")
		}
		if hasAny(form.Value, "password", "passwordConfirm") {
			return nil, nil, errPasswordOnUpdateMe
		}
		for _, key := range selfEditable {
			if v := form.Value[key]; len(v) > 0 {
				fields[key] = v[0]
			}
		}
		var photo *multipart.FileHeader
		if files := form.File["photo"]; len(files) > 0 {
			photo = files[0]
		}
		return fields, photo, nil
	}

	body := map[string]json.RawMessage{}
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return nil, nil, fiber.NewError(fiber.StatusBadRequest, "Invalid JSON body")
		}
	}
	if hasAny(body, "password", "passwordConfirm") {
		return nil, nil, errPasswordOnUpdateMe
	}
	for _, key := range selfEditable {
		raw, ok := body[key]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, nil, fiber.NewError(fiber.StatusBadRequest, key+" must be a string")
		}
		fields[key] = v
	}
	return fields, nil, nil
}

func hasAny[V any](m map[string]V, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
