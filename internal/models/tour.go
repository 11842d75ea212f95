package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/arzan03/natours/internal/query"
	"github.com/arzan03/natours/internal/validation"
	"github.com/goccy/go-json"
	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultRatingsAverage = 4.5

// Location is a GeoJSON point with an optional day offset for itinerary stops.
type Location struct {
	Type        string    `bson:"type" json:"type" validate:"omitempty,eq=Point"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates" validate:"omitempty,len=2"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty"`
}

type Tour struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Name            string               `bson:"name" json:"name" validate:"required,min=10,max=40"`
	Slug            string               `bson:"slug" json:"slug"`
	Duration        float64              `bson:"duration" json:"duration" validate:"required,gt=0"`
	MaxGroupSize    int                  `bson:"maxGroupSize" json:"maxGroupSize" validate:"required,gt=0"`
	Difficulty      string               `bson:"difficulty" json:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64              `bson:"ratingsAverage" json:"ratingsAverage" validate:"gte=1,lte=5"`
	RatingsQuantity int                  `bson:"ratingsQuantity" json:"ratingsQuantity" validate:"gte=0"`
	Price           float64              `bson:"price" json:"price" validate:"required,gt=0"`
	PriceDiscount   *float64             `bson:"priceDiscount,omitempty" json:"priceDiscount,omitempty"`
	Summary         string               `bson:"summary" json:"summary" validate:"required"`
	Description     string               `bson:"description,omitempty" json:"description,omitempty"`
	ImageCover      string               `bson:"imageCover" json:"imageCover" validate:"required"`
	Images          []string             `bson:"images" json:"images"`
	CreatedAt       time.Time            `bson:"createdAt" json:"-"`
	StartDates      []time.Time          `bson:"startDates" json:"startDates"`
	SecretTour      bool                 `bson:"secretTour" json:"secretTour"`
	StartLocation   *Location            `bson:"startLocation,omitempty" json:"startLocation,omitempty"`
	Locations       []Location           `bson:"locations" json:"locations" validate:"dive"`
	Guides          []primitive.ObjectID `bson:"guides" json:"guides"`

	// Filled by population, never stored.
	GuideUsers []User   `bson:"-" json:"-"`
	Reviews    []Review `bson:"-" json:"-"`
}

// TourScope hides secret tours from every standard read.
func TourScope() bson.M {
	return bson.M{"secretTour": bson.M{"$ne": true}}
}

// TourKinds types the fields list filters can target.
var TourKinds = map[string]query.Kind{
	"_id":             query.ObjectID,
	"duration":        query.Number,
	"maxGroupSize":    query.Number,
	"ratingsAverage":  query.Number,
	"ratingsQuantity": query.Number,
	"price":           query.Number,
	"priceDiscount":   query.Number,
	"secretTour":      query.Bool,
	"startDates":      query.Date,
	"createdAt":       query.Date,
	"guides":          query.ObjectID,
}

var tourMessages = validation.Messages{
	"name.required":         "A tour must have a name!",
	"name.max":              "A tour name must have less or equal than 40 characters",
	"name.min":              "A tour name must have more or equal than 10 characters",
	"duration.required":     "A tour must have a duration!",
	"maxGroupSize.required": "A tour must have a group size!",
	"difficulty.required":   "A tour must have a difficulty!",
	"difficulty.oneof":      "Difficulty is either: easy, medium, difficult",
	"ratingsAverage.gte":    "Rating must be above 1.0",
	"ratingsAverage.lte":    "Rating must be below 5.0",
	"price.required":        "A tour must have a price!",
	"summary.required":      "A tour must have a description!",
	"imageCover.required":   "A tour must have a cover image!",
}

// Prepare derives the slug, trims text and fills defaults.
func (t *Tour) Prepare(creating bool) {
	t.Name = strings.TrimSpace(t.Name)
	t.Summary = strings.TrimSpace(t.Summary)
	t.Description = strings.TrimSpace(t.Description)
	t.Slug = slug.Make(t.Name)

	if creating {
		if t.RatingsAverage == 0 {
			t.RatingsAverage = DefaultRatingsAverage
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
	}
	t.RatingsAverage = RoundRating(t.RatingsAverage)

	if t.StartLocation != nil && t.StartLocation.Type == "" {
		t.StartLocation.Type = "Point"
	}
	for i := range t.Locations {
		if t.Locations[i].Type == "" {
			t.Locations[i].Type = "Point"
		}
	}
	if t.Images == nil {
		t.Images = []string{}
	}
	if t.Guides == nil {
		t.Guides = []primitive.ObjectID{}
	}
}

func (t *Tour) Validate() error {
	return validation.StructWith(t, tourMessages)
}

// ValidateCreate holds the rules that only apply to new tours.
func (t *Tour) ValidateCreate() error {
	if t.PriceDiscount != nil && *t.PriceDiscount >= t.Price {
		return validation.Fail("priceDiscount",
			fmt.Sprintf("Discount price (%v) should be below regular price", *t.PriceDiscount))
	}
	return nil
}

// DurationWeeks is a read-time virtual.
func (t *Tour) DurationWeeks() float64 { return t.Duration / 7 }

// RoundRating keeps one decimal, e.g. 4.666 -> 4.7.
func RoundRating(v float64) float64 { return math.Round(v*10) / 10 }

type tourAlias Tour

type tourJSON struct {
	*tourAlias
	Guides        any      `json:"guides,omitempty"`
	DurationWeeks *float64 `json:"durationWeeks,omitempty"`
	Reviews       []Review `json:"reviews,omitempty"`
}

// MarshalJSON adds the virtual fields and swaps guide ids for the populated
// users when they were loaded.
func (t Tour) MarshalJSON() ([]byte, error) {
	out := tourJSON{tourAlias: (*tourAlias)(&t), Reviews: t.Reviews}
	if t.GuideUsers != nil {
		out.Guides = t.GuideUsers
	} else if t.Guides != nil {
		out.Guides = t.Guides
	}
	if t.Duration > 0 {
		w := t.DurationWeeks()
		out.DurationWeeks = &w
	}
	return json.Marshal(out)
}

// TourStat is one row of the difficulty report.
type TourStat struct {
	Difficulty string  `bson:"_id" json:"_id"`
	NumTours   int     `bson:"numTours" json:"numTours"`
	NumRatings int     `bson:"numRatings" json:"numRatings"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}

// MonthPlan counts tour starts in one month of a year.
type MonthPlan struct {
	Month         int      `bson:"month" json:"month"`
	NumTourStarts int      `bson:"numTourStarts" json:"numTourStarts"`
	Tours         []string `bson:"tours" json:"tours"`
}

// TourDistance is a tour name with its distance from a reference point.
type TourDistance struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Distance float64            `bson:"distance" json:"distance"`
}
