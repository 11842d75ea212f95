package main

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/arzan03/natours/internal/geo"
	"github.com/arzan03/natours/internal/models"
	"github.com/jaswdr/faker"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	seedPassword = "test1234"
	stopRadiusKm = 250
	kmPerDegree  = 111.32
)

type anchor struct {
	name string
	at   geo.Point
}

var anchors = []anchor{
	{"Banff, CAN", geo.Point{Lat: 51.178363, Lng: -115.570154}},
	{"Miami, USA", geo.Point{Lat: 25.774772, Lng: -80.185942}},
	{"Aspen, USA", geo.Point{Lat: 39.190872, Lng: -106.822318}},
	{"NYC, USA", geo.Point{Lat: 40.782865, Lng: -73.965355}},
	{"Las Vegas, USA", geo.Point{Lat: 36.169941, Lng: -115.139830}},
	{"San Francisco, USA", geo.Point{Lat: 37.773972, Lng: -122.431297}},
	{"Yosemite, USA", geo.Point{Lat: 37.865101, Lng: -119.538330}},
	{"Bariloche, ARG", geo.Point{Lat: -41.133472, Lng: -71.310278}},
	{"Tromso, NOR", geo.Point{Lat: 69.649208, Lng: 18.955324}},
}

var tourKinds = []string{
	"Forest Hiker", "Sea Explorer", "Snow Adventurer", "City Wanderer",
	"Park Camper", "Sports Lover", "Wine Taster", "Star Gazer", "Northern Lights",
}

var difficulties = []string{"easy", "medium", "difficult"}

// generator produces seed documents. The same seed gives the same data.
type generator struct {
	fake faker.Faker
	rnd  *rand.Rand
	now  time.Time
}

func newGenerator(seed int64) *generator {
	return &generator{
		fake: faker.NewWithSeed(rand.NewSource(seed)),
		rnd:  rand.New(rand.NewSource(seed)),
		now:  time.Now().UTC(),
	}
}

// users returns n accounts: one admin, then lead guides and guides, the
// rest regular users. Passwords are left for the caller to hash.
func (g *generator) users(n int) []models.User {
	out := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		first, last := g.fake.Person().FirstName(), g.fake.Person().LastName()
		out = append(out, models.User{
			Name:  first + " " + last,
			Email: fmt.Sprintf("%s.%s%d@example.io", emailPart(first), emailPart(last), i+1),
			Photo: fmt.Sprintf("user-%d.jpg", i%20+1),
			Role:  roleFor(i, n),
		})
	}
	return out
}

func roleFor(i, n int) models.Role {
	switch {
	case i == 0:
		return models.RoleAdmin
	case i <= max(1, n/10):
		return models.RoleLeadGuide
	case i <= max(2, n/4):
		return models.RoleGuide
	default:
		return models.RoleUser
	}
}

func emailPart(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

// tours returns n tours led by one lead guide and one guide each.
func (g *generator) tours(n int, leads, guides []primitive.ObjectID) []models.Tour {
	out := make([]models.Tour, 0, n)
	for i := 0; i < n; i++ {
		base := anchors[i%len(anchors)]
		name := "The " + tourKinds[i%len(tourKinds)]
		if i >= len(tourKinds) {
			name = fmt.Sprintf("%s %d", name, i/len(tourKinds)+1)
		}

		t := models.Tour{
			Name:         name,
			Duration:     float64(g.fake.IntBetween(3, 14)),
			MaxGroupSize: g.fake.IntBetween(5, 25),
			Difficulty:   g.fake.RandomStringElement(difficulties),
			Price:        float64(g.fake.IntBetween(3, 30)*100 - 3),
			Summary:      g.fake.Lorem().Sentence(8),
			Description:  g.fake.Lorem().Paragraph(2),
			ImageCover:   fmt.Sprintf("tour-%d-cover.jpg", i%9+1),
			Images:       []string{fmt.Sprintf("tour-%d-1.jpg", i%9+1), fmt.Sprintf("tour-%d-2.jpg", i%9+1), fmt.Sprintf("tour-%d-3.jpg", i%9+1)},
			StartDates:   g.startDates(3),
			StartLocation: &models.Location{
				Type:        "Point",
				Coordinates: base.at.Coordinates(),
				Address:     g.fake.Address().StreetAddress(),
				Description: base.name,
			},
			Locations: g.stops(base.at, g.fake.IntBetween(2, 4)),
			Guides:    g.pick(leads, 1),
		}
		t.Guides = append(t.Guides, g.pick(guides, 1)...)
		out = append(out, t)
	}
	return out
}

func (g *generator) startDates(n int) []time.Time {
	dates := make([]time.Time, 0, n)
	year := g.now.Year() + 1
	for i := 0; i < n; i++ {
		month := time.Month(g.fake.IntBetween(1, 12))
		dates = append(dates, time.Date(year, month, g.fake.IntBetween(1, 28), 9, 0, 0, 0, time.UTC))
	}
	return dates
}

// stops scatters itinerary points around start, keeping each within
// stopRadiusKm on the sphere.
func (g *generator) stops(start geo.Point, n int) []models.Location {
	out := make([]models.Location, 0, n)
	for day := 1; day <= n; day++ {
		p := g.scatter(start, stopRadiusKm)
		out = append(out, models.Location{
			Type:        "Point",
			Coordinates: p.Coordinates(),
			Description: g.fake.Address().City(),
			Day:         day,
		})
	}
	return out
}

func (g *generator) scatter(center geo.Point, radiusKm float64) geo.Point {
	radius := geo.RadiusRadians(radiusKm, geo.Kilometers)
	dLat := radiusKm / kmPerDegree
	dLng := dLat / math.Max(math.Cos(center.Lat*math.Pi/180), 0.01)
	for {
		p := geo.Point{
			Lat: center.Lat + (g.rnd.Float64()*2-1)*dLat,
			Lng: center.Lng + (g.rnd.Float64()*2-1)*dLng,
		}
		if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
			continue
		}
		if geo.Within(center, p, radius) {
			return p
		}
	}
}

// reviews gives every tour perTour reviews from distinct authors, so each
// (tour, user) pair appears at most once.
func (g *generator) reviews(tours []models.Tour, authors []primitive.ObjectID, perTour int) []models.Review {
	var out []models.Review
	for _, t := range tours {
		for _, author := range g.pick(authors, perTour) {
			out = append(out, models.Review{
				Review:    g.fake.Lorem().Sentence(12),
				Rating:    float64(g.fake.IntBetween(3, 5)),
				Tour:      t.ID,
				User:      author,
				CreatedAt: g.now.Add(-time.Duration(g.fake.IntBetween(1, 365*24)) * time.Hour),
			})
		}
	}
	return out
}

// pick returns up to n distinct ids.
func (g *generator) pick(ids []primitive.ObjectID, n int) []primitive.ObjectID {
	if n > len(ids) {
		n = len(ids)
	}
	out := make([]primitive.ObjectID, 0, n)
	for _, i := range g.rnd.Perm(len(ids))[:n] {
		out = append(out, ids[i])
	}
	return out
}
