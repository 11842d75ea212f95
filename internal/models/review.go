package models

import (
	"strings"
	"time"

	"github.com/arzan03/natours/internal/query"
	"github.com/arzan03/natours/internal/validation"
	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Review    string             `bson:"review" json:"review" validate:"required"`
	Rating    float64            `bson:"rating" json:"rating" validate:"required,gte=1,lte=5"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	Tour      primitive.ObjectID `bson:"tour" json:"tour" validate:"required"`
	User      primitive.ObjectID `bson:"user" json:"user" validate:"required"`

	// Author is the populated user, never stored.
	Author *UserSummary `bson:"-" json:"-"`
}

var ReviewKinds = map[string]query.Kind{
	"_id":       query.ObjectID,
	"rating":    query.Number,
	"createdAt": query.Date,
	"tour":      query.ObjectID,
	"user":      query.ObjectID,
}

// ReviewImmutable keeps a review attached to its tour and author.
var ReviewImmutable = []string{"tour", "user", "createdAt"}

var reviewMessages = validation.Messages{
	"review.required": "Review can not be empty!",
	"rating.required": "A review must have a rating!",
	"rating.gte":      "Rating must be above 1.0",
	"rating.lte":      "Rating must be below 5.0",
	"tour.required":   "Review must belong to a tour.",
	"user.required":   "Review must belong to a user.",
}

func (r *Review) Prepare(creating bool) {
	r.Review = strings.TrimSpace(r.Review)
	if creating && r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
}

func (r *Review) Validate() error {
	return validation.StructWith(r, reviewMessages)
}

type reviewAlias Review

// MarshalJSON shows the author's name and photo in place of the user id once
// populated.
func (r Review) MarshalJSON() ([]byte, error) {
	out := struct {
		*reviewAlias
		User any `json:"user"`
	}{reviewAlias: (*reviewAlias)(&r), User: r.User}
	if r.Author != nil {
		out.User = r.Author
	}
	return json.Marshal(out)
}

// RatingSummary is the aggregate of all reviews of one tour.
type RatingSummary struct {
	Quantity int
	Average  float64
}

// SummarizeRatings turns an aggregation result into the values stored on the
// tour. No reviews means quantity 0 and the default average.
func SummarizeRatings(count int, avg float64) RatingSummary {
	if count == 0 {
		return RatingSummary{Quantity: 0, Average: DefaultRatingsAverage}
	}
	return RatingSummary{Quantity: count, Average: RoundRating(avg)}
}
