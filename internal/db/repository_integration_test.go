//go:build integration

package db

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/arzan03/natours/internal/geo"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/query"
	"github.com/pkg/errors"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Run with: go test -tags integration ./internal/db/...

var testClient *mongo.Client

func TestMain(m *testing.M) {
	if exec.Command("docker", "info").Run() != nil {
		fmt.Println("skipping integration tests: Docker not available")
		os.Exit(0)
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		fmt.Println("start mongo:", err)
		os.Exit(1)
	}

	host, _ := container.Host(ctx)
	port, err := container.MappedPort(ctx, "27017")
	if err == nil {
		testClient, err = Connect(ctx, fmt.Sprintf("mongodb://%s:%s", host, port.Port()))
	}
	if err != nil {
		fmt.Println("connect:", err)
		_ = container.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()
	_ = testClient.Disconnect(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

// freshDB returns an indexed database private to the test.
func freshDB(t *testing.T) *mongo.Database {
	t.Helper()
	ctx := context.Background()
	database := testClient.Database(fmt.Sprintf("natours_%d", time.Now().UnixNano()))
	if err := EnsureIndexes(ctx, database); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = database.Drop(context.Background()) })
	return database
}

func insertTour(t *testing.T, repo *TourRepository, name string, at geo.Point, mutate func(*models.Tour)) *models.Tour {
	t.Helper()
	tour := &models.Tour{
		Name: name, Duration: 5, MaxGroupSize: 10, Difficulty: "easy",
		Price: 497, Summary: "Breathtaking", ImageCover: "tour-1-cover.jpg",
		StartLocation: &models.Location{Coordinates: at.Coordinates()},
	}
	if mutate != nil {
		mutate(tour)
	}
	tour.Prepare(true)
	if err := repo.Insert(context.Background(), tour); err != nil {
		t.Fatal(err)
	}
	return tour
}

func TestReviewPairIsUnique(t *testing.T) {
	ctx := context.Background()
	reviews := NewReviewRepository(freshDB(t))
	tour, user := primitive.NewObjectID(), primitive.NewObjectID()

	first := &models.Review{Review: "Great", Rating: 5, Tour: tour, User: user}
	if err := reviews.Insert(ctx, first); err != nil {
		t.Fatal(err)
	}
	again := &models.Review{Review: "Still great", Rating: 4, Tour: tour, User: user}
	err := reviews.Insert(ctx, again)
	if !mongo.IsDuplicateKeyError(errors.Cause(err)) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestDeactivatedUsersAreHidden(t *testing.T) {
	ctx := context.Background()
	database := freshDB(t)
	users := NewUserRepository(database)

	u := &models.User{Name: "Leo Gillespie", Email: "leo@example.io", Password: "hash"}
	u.Prepare(true)
	if err := users.Insert(ctx, u); err != nil {
		t.Fatal(err)
	}
	if _, err := users.UpdateByID(ctx, u.ID, bson.M{"active": false}); err != nil {
		t.Fatal(err)
	}

	if _, err := users.FindByID(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByID: %v", err)
	}
	if _, err := users.FindByEmail(ctx, "leo@example.io"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByEmail: %v", err)
	}
	n, err := database.Collection(UsersCollection).CountDocuments(ctx, bson.M{"_id": u.ID})
	if err != nil || n != 1 {
		t.Fatalf("the document should still exist: %d %v", n, err)
	}
}

func TestSecretToursAreHidden(t *testing.T) {
	ctx := context.Background()
	tours := NewTourRepository(freshDB(t))
	banff := geo.Point{Lat: 51.178363, Lng: -115.570154}
	insertTour(t, tours, "The Forest Hiker", banff, nil)
	secret := insertTour(t, tours, "The Secret Escape", banff, func(tour *models.Tour) { tour.SecretTour = true })

	if _, err := tours.FindByID(ctx, secret.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByID: %v", err)
	}
	list, err := tours.FindWhere(ctx, bson.M{"secretTour": true})
	if err != nil || len(list) != 0 {
		t.Fatalf("a filter cannot lift the scope: %v %v", list, err)
	}
	stats, err := tours.Stats(ctx)
	if err != nil || len(stats) != 1 || stats[0].NumTours != 1 {
		t.Fatalf("stats: %+v %v", stats, err)
	}
}

func TestPaginationPastTheEnd(t *testing.T) {
	ctx := context.Background()
	tours := NewTourRepository(freshDB(t))
	for i := 0; i < 3; i++ {
		insertTour(t, tours, fmt.Sprintf("The Sea Explorer %d", i), geo.Point{Lat: 25.77, Lng: -80.18}, nil)
	}

	q := query.New(tours.Scope(), url.Values{"page": {"5"}, "limit": {"2"}}, query.WithKinds(models.TourKinds)).
		Filter().Sort().LimitFields().Paginate()
	if err := q.Err(); err != nil {
		t.Fatal(err)
	}
	list, err := tours.Find(ctx, q.Query())
	if err != nil || len(list) != 0 {
		t.Fatalf("page 5: %d %v", len(list), err)
	}

	q = query.New(tours.Scope(), url.Values{"page": {"2"}, "limit": {"2"}, "sort": {"name"}}, query.WithKinds(models.TourKinds)).
		Filter().Sort().LimitFields().Paginate()
	list, err = tours.Find(ctx, q.Query())
	if err != nil || len(list) != 1 || list[0].Name != "The Sea Explorer 2" {
		t.Fatalf("page 2: %+v %v", list, err)
	}
}

func TestRatingStats(t *testing.T) {
	ctx := context.Background()
	database := freshDB(t)
	reviews := NewReviewRepository(database)
	tours := NewTourRepository(database)
	tour := insertTour(t, tours, "The Snow Adventurer", geo.Point{Lat: 39.19, Lng: -106.82}, nil).ID
	for _, rating := range []float64{5, 4, 3} {
		r := &models.Review{Review: "ok", Rating: rating, Tour: tour, User: primitive.NewObjectID()}
		if err := reviews.Insert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	n, avg, err := reviews.RatingStats(ctx, tour)
	if err != nil || n != 3 || avg != 4 {
		t.Fatalf("got %d %v %v", n, avg, err)
	}
	if err := tours.SetRatings(ctx, tour, models.SummarizeRatings(n, avg)); err != nil {
		t.Fatal(err)
	}
	stored, err := tours.FindByID(ctx, tour)
	if err != nil || stored.RatingsQuantity != 3 || stored.RatingsAverage != 4 {
		t.Fatalf("stored ratings: %+v %v", stored, err)
	}

	n, _, err = reviews.RatingStats(ctx, primitive.NewObjectID())
	if err != nil || n != 0 {
		t.Fatalf("no reviews: %d %v", n, err)
	}
}

func TestGeoQueries(t *testing.T) {
	ctx := context.Background()
	tours := NewTourRepository(freshDB(t))
	la := geo.Point{Lat: 34.111745, Lng: -118.113491}
	insertTour(t, tours, "The City Wanderer", geo.Point{Lat: 34.05, Lng: -118.24}, nil)
	insertTour(t, tours, "The Park Camper", geo.Point{Lat: 37.86, Lng: -119.53}, nil)
	insertTour(t, tours, "The Northern Lights", geo.Point{Lat: 69.64, Lng: 18.95}, nil)

	near, err := tours.Within(ctx, la.Coordinates(), geo.RadiusRadians(400, geo.Miles))
	if err != nil {
		t.Fatal(err)
	}
	if len(near) != 2 {
		t.Fatalf("within 400mi: %d", len(near))
	}

	ranked, err := tours.Distances(ctx, la.Coordinates(), geo.DistanceMultiplier(geo.Kilometers))
	if err != nil || len(ranked) != 3 {
		t.Fatalf("distances: %+v %v", ranked, err)
	}
	if ranked[0].Name != "The City Wanderer" || ranked[0].Distance > 20 || ranked[2].Name != "The Northern Lights" {
		t.Fatalf("ordering: %+v", ranked)
	}
}
