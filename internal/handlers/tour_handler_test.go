package handlers

import (
	"bytes"
	"context"
	"math"
	"mime/multipart"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/arzan03/natours/internal/config"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// reports records the arguments the tour searches were called with.
type reports struct {
	mu         sync.Mutex
	year       int
	center     []float64
	radius     float64
	multiplier float64
}

func (r *reports) Stats(context.Context) ([]models.TourStat, error) {
	return []models.TourStat{{Difficulty: "EASY", NumTours: 2, AvgPrice: 447}}, nil
}

func (r *reports) MonthlyPlan(_ context.Context, year int) ([]models.MonthPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.year = year
	return []models.MonthPlan{{Month: 7, NumTourStarts: 3, Tours: []string{"The Sea Explorer"}}}, nil
}

func (r *reports) Within(_ context.Context, center []float64, radius float64) ([]models.Tour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.center, r.radius = center, radius
	return []models.Tour{{ID: primitive.NewObjectID(), Name: "The City Wanderer"}}, nil
}

func (r *reports) Distances(_ context.Context, point []float64, multiplier float64) ([]models.TourDistance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.center, r.multiplier = point, multiplier
	return []models.TourDistance{{ID: primitive.NewObjectID(), Name: "The City Wanderer", Distance: 13.2}}, nil
}

type signer struct{}

func (signer) PresignedURL(_ context.Context, name string, expiry time.Duration) (string, error) {
	return "https://images.example.io/" + name + "?expires=" + expiry.String(), nil
}

func reportApp(t *testing.T) (*fiber.App, *reports) {
	t.Helper()
	r := &reports{}
	users := newMemUsers()
	tours := services.NewTourService(r, users, noReviews{}, services.NewReviewService(nil, nil, nil, users))
	h := NewTourHandler(newMemStore(func(t *models.Tour) *primitive.ObjectID { return &t.ID }), tours, nil, signer{})

	app := newTestApp(config.Production)
	app.Get("/tours/tour-stats", h.Stats)
	app.Get("/tours/monthly-plan/:year", h.MonthlyPlan)
	app.Get("/tours/tours-within/:distance/center/:latlng/unit/:unit", h.ToursWithin)
	app.Get("/tours/distances/:latlng/unit/:unit", h.Distances)
	app.Get("/img/:name", h.Image)
	return app, r
}

func TestTourStats(t *testing.T) {
	app, _ := reportApp(t)
	res := do(t, app, "GET", "/tours/tour-stats", nil)
	data, _ := res.body["data"].(map[string]any)
	stats, _ := data["stats"].([]any)
	if res.status != 200 || len(stats) != 1 || stats[0].(map[string]any)["_id"] != "EASY" {
		t.Fatalf("got %d %s", res.status, res.raw)
	}
}

func TestMonthlyPlan(t *testing.T) {
	app, r := reportApp(t)
	res := do(t, app, "GET", "/tours/monthly-plan/2021", nil)
	if res.status != 200 || r.year != 2021 {
		t.Fatalf("got %d year %d: %s", res.status, r.year, res.raw)
	}
	data, _ := res.body["data"].(map[string]any)
	if plan, _ := data["plan"].([]any); len(plan) != 1 {
		t.Fatalf("plan: %s", res.raw)
	}

	res = do(t, app, "GET", "/tours/monthly-plan/next", nil)
	if res.status != 400 || res.message() != "Invalid year: next." {
		t.Fatalf("bad year: %d %q", res.status, res.message())
	}
}

func TestToursWithin(t *testing.T) {
	app, r := reportApp(t)
	res := do(t, app, "GET", "/tours/tours-within/400/center/34.111745,-118.113491/unit/mi", nil)
	if res.status != 200 || res.body["results"] != float64(1) {
		t.Fatalf("got %d %s", res.status, res.raw)
	}
	if r.center[0] != -118.113491 || r.center[1] != 34.111745 {
		t.Errorf("center must be [lng, lat]: %v", r.center)
	}
	if math.Abs(r.radius-400/3963.2) > 1e-12 {
		t.Errorf("radius: %v", r.radius)
	}

	res = do(t, app, "GET", "/tours/tours-within/400/center/34.1/unit/mi", nil)
	if res.status != 400 || res.message() != "Please provide latitude and longitude in the format lat,lng." {
		t.Fatalf("missing lng: %d %q", res.status, res.message())
	}
	res = do(t, app, "GET", "/tours/tours-within/far/center/34.1,-118.1/unit/mi", nil)
	if res.status != 400 {
		t.Fatalf("bad distance: %d", res.status)
	}
}

func TestDistances(t *testing.T) {
	app, r := reportApp(t)
	res := do(t, app, "GET", "/tours/distances/34.1,-118.1/unit/km", nil)
	if res.status != 200 || r.multiplier != 0.001 {
		t.Fatalf("km: %d %v %s", res.status, r.multiplier, res.raw)
	}
	if res := do(t, app, "GET", "/tours/distances/34.1,-118.1/unit/mi", nil); res.status != 200 || r.multiplier != 0.000621371 {
		t.Fatalf("mi: %d %v", res.status, r.multiplier)
	}
}

func TestImageRedirect(t *testing.T) {
	app, _ := reportApp(t)
	res := do(t, app, "GET", "/img/tour-1-cover.jpg", nil)
	if res.status != 302 || res.header.Get("Location") != "https://images.example.io/tour-1-cover.jpg?expires=15m0s" {
		t.Fatalf("got %d %q", res.status, res.header.Get("Location"))
	}
	if res := do(t, app, "GET", "/img/bad%20name", nil); res.status != 404 {
		t.Fatalf("unsafe name: %d", res.status)
	}
}

func TestMultipartPatchWithoutFiles(t *testing.T) {
	app, store, _ := tourApp(t)
	id := do(t, app, "POST", "/tours", forestHiker()).data("data")["id"].(string)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	_ = form.WriteField("price", "999")
	_ = form.WriteField("summary", "Fresh air and quiet trails")
	_ = form.WriteField("secretTour", "false")
	if err := form.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("PATCH", "/tours/"+id, &body)
	req.Header.Set(fiber.HeaderContentType, form.FormDataContentType())

	res := send(t, app, req)
	if res.status != 200 {
		t.Fatalf("status %d: %s", res.status, res.raw)
	}
	oid, _ := primitive.ObjectIDFromHex(id)
	tour, err := store.FindByID(context.Background(), oid)
	if err != nil {
		t.Fatal(err)
	}
	if tour.Price != 999 || tour.Summary != "Fresh air and quiet trails" {
		t.Fatalf("stored: price %v summary %q", tour.Price, tour.Summary)
	}
}
