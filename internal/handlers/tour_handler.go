package handlers

import (
	"context"
	"mime/multipart"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arzan03/natours/internal/apperror"
	"github.com/arzan03/natours/internal/geo"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/services"
	"github.com/arzan03/natours/internal/validation"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

const imageURLExpiry = 15 * time.Minute

var imageName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ImageURLs signs short-lived links to stored images.
type ImageURLs interface {
	PresignedURL(ctx context.Context, name string, expiry time.Duration) (string, error)
}

// TourHandler serves the tour reports and, through its embedded Resource,
// the CRUD routes.
type TourHandler struct {
	*Resource[models.Tour]
	tours  *services.TourService
	images *services.ImageService
	urls   ImageURLs
}

func NewTourHandler(store Store[models.Tour], tours *services.TourService, images *services.ImageService, urls ImageURLs) *TourHandler {
	return &TourHandler{
		Resource: &Resource[models.Tour]{
			Store:   store,
			Kinds:   models.TourKinds,
			Prepare: (*models.Tour).Prepare,
			Validate: func(ctx context.Context, t *models.Tour) error {
				return validation.Merge(t.Validate(), tours.CheckGuides(ctx, t))
			},
			ValidateCreate: func(_ context.Context, t *models.Tour) error {
				return t.ValidateCreate()
			},
			Populate:     tours.Populate,
			PopulateList: tours.PopulateGuides,
			Immutable:    []string{"slug", "createdAt"},
			Derived:      []string{"slug"},
		},
		tours:  tours,
		images: images,
		urls:   urls,
	}
}

// AliasTopTours rewrites the query string for the five best cheap tours.
func (h *TourHandler) AliasTopTours(c *fiber.Ctx) error {
	args := c.Context().QueryArgs()
	args.Set("limit", "5")
	args.Set("sort", "-ratingsAverage,price")
	args.Set("fields", "name,price,ratingsAverage,summary,difficulty")
	return c.Next()
}

func (h *TourHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.tours.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": fiber.Map{"stats": stats}})
}

func (h *TourHandler) MonthlyPlan(c *fiber.Ctx) error {
	raw := c.Params("year")
	year, err := strconv.Atoi(raw)
	if err != nil {
		return &apperror.CastError{Path: "year", Value: raw, Err: err}
	}

	plan, err := h.tours.MonthlyPlan(c.UserContext(), year)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": fiber.Map{"plan": plan}})
}

// ToursWithin handles /tours-within/:distance/center/:latlng/unit/:unit.
func (h *TourHandler) ToursWithin(c *fiber.Ctx) error {
	raw := c.Params("distance")
	distance, err := strconv.ParseFloat(raw, 64)
	if err != nil || distance < 0 {
		return &apperror.CastError{Path: "distance", Value: raw, Err: err}
	}
	center, err := geo.ParseLatLng(c.Params("latlng"))
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	tours, err := h.tours.Within(ctx, distance, center, geo.ParseUnit(c.Params("unit")))
	if err != nil {
		return err
	}
	if len(tours) > 0 {
		if err := h.tours.PopulateGuides(ctx, tours); err != nil {
			return err
		}
	}
	return c.JSON(listEnvelope(tours))
}

// Distances handles /distances/:latlng/unit/:unit.
func (h *TourHandler) Distances(c *fiber.Ctx) error {
	point, err := geo.ParseLatLng(c.Params("latlng"))
	if err != nil {
		return err
	}

	distances, err := h.tours.Distances(c.UserContext(), point, geo.ParseUnit(c.Params("unit")))
	if err != nil {
		return err
	}
	return c.JSON(envelope(distances))
}

// UploadImages runs before UpdateOne. A multipart body has its imageCover and
// images files stored and is rewritten into the JSON patch UpdateOne expects.
// Text fields that are valid JSON (numbers, booleans) keep their type.
func (h *TourHandler) UploadImages(c *fiber.Ctx) error {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return c.Next()
	}
	if _, err := ParamID(c, "id"); err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid multipart form")
	}

	patch := map[string]json.RawMessage{}
	for key, values := range form.Value {
		if len(values) == 0 {
			continue
		}
		v := values[len(values)-1]
		if json.Valid([]byte(v)) && !strings.HasPrefix(strings.TrimSpace(v), "\"") {
			patch[key] = json.RawMessage(v)
			continue
		}
		quoted, err := json.Marshal(v)
		if err != nil {
			return err
		}
		patch[key] = quoted
	}

	var uploaded []string
	cover, gallery := form.File["imageCover"], form.File["images"]
	if len(cover) > 0 || len(gallery) > 0 {
		if h.images == nil {
			return apperror.New(fiber.StatusServiceUnavailable, "Image uploads are not available")
		}
		var coverFile *multipart.FileHeader
		if len(cover) > 0 {
			coverFile = cover[0]
		}
		stored, err := h.images.UploadTourImages(c.UserContext(), c.Params("id"), coverFile, gallery)
		if err != nil {
			return err
		}
		if stored.Cover != "" {
			patch["imageCover"], _ = json.Marshal(stored.Cover)
			uploaded = append(uploaded, stored.Cover)
		}
		if len(stored.Images) > 0 {
			patch["images"], _ = json.Marshal(stored.Images)
			uploaded = append(uploaded, stored.Images...)
		}
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	c.Request().Header.SetContentType(fiber.MIMEApplicationJSON)
	c.Request().SetBody(body)

	if err := c.Next(); err != nil {
		if len(uploaded) > 0 {
			h.images.Discard(c.UserContext(), uploaded...)
		}
		return err
	}
	return nil
}

// Image redirects to a short-lived signed link for a stored image.
func (h *TourHandler) Image(c *fiber.Ctx) error {
	name := c.Params("name")
	if !imageName.MatchString(name) || h.urls == nil {
		return apperror.NotFound()
	}
	url, err := h.urls.PresignedURL(c.UserContext(), name, imageURLExpiry)
	if err != nil {
		return err
	}
	return c.Redirect(url, fiber.StatusFound)
}
