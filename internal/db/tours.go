package db

import (
	"context"
	"time"

	"github.com/arzan03/natours/internal/models"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// TourRepository adds the reports and geospatial searches. Secret tours are
// out of scope for all of them.
type TourRepository struct {
	*Repository[models.Tour]
}

func NewTourRepository(database *mongo.Database) *TourRepository {
	return &TourRepository{NewRepository[models.Tour](database.Collection(ToursCollection), models.TourScope())}
}

// Stats groups well-rated tours by difficulty, cheapest group first.
func (r *TourRepository) Stats(ctx context.Context) ([]models.TourStat, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: r.scoped(bson.M{"ratingsAverage": bson.M{"$gte": 4.5}})}},
		{{Key: "$group", Value: bson.M{
			"_id":        bson.M{"$toUpper": "$difficulty"},
			"numTours":   bson.M{"$sum": 1},
			"numRatings": bson.M{"$sum": "$ratingsQuantity"},
			"avgRating":  bson.M{"$avg": "$ratingsAverage"},
			"avgPrice":   bson.M{"$avg": "$price"},
			"minPrice":   bson.M{"$min": "$price"},
			"maxPrice":   bson.M{"$max": "$price"},
		}}},
		{{Key: "$sort", Value: bson.M{"avgPrice": 1}}},
	}
	out := make([]models.TourStat, 0)
	return out, r.aggregate(ctx, pipeline, &out)
}

// MonthlyPlan counts tour starts per month of year, busiest month first.
func (r *TourRepository) MonthlyPlan(ctx context.Context, year int) ([]models.MonthPlan, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: r.Scope()}},
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.M{"startDates": bson.M{"$gte": from, "$lte": to}}}},
		{{Key: "$group", Value: bson.M{
			"_id":           bson.M{"$month": "$startDates"},
			"numTourStarts": bson.M{"$sum": 1},
			"tours":         bson.M{"$push": "$name"},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}, {Key: "month", Value: 1}}}},
		{{Key: "$limit", Value: 12}},
	}
	out := make([]models.MonthPlan, 0)
	return out, r.aggregate(ctx, pipeline, &out)
}

// Within finds tours starting inside a sphere. center is [lng, lat], radius
// is in radians.
func (r *TourRepository) Within(ctx context.Context, center []float64, radius float64) ([]models.Tour, error) {
	return r.FindWhere(ctx, bson.M{
		"startLocation": bson.M{
			"$geoWithin": bson.M{"$centerSphere": bson.A{center, radius}},
		},
	})
}

// Distances ranks tours by distance from point ([lng, lat]). The driver
// reports metres; multiplier converts them.
func (r *TourRepository) Distances(ctx context.Context, point []float64, multiplier float64) ([]models.TourDistance, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near":               bson.M{"type": "Point", "coordinates": point},
			"distanceField":      "distance",
			"distanceMultiplier": multiplier,
			"spherical":          true,
			"query":              r.Scope(),
		}}},
		{{Key: "$project", Value: bson.M{"distance": 1, "name": 1}}},
	}
	out := make([]models.TourDistance, 0)
	return out, r.aggregate(ctx, pipeline, &out)
}

// SetRatings stores recomputed review aggregates. Secret tours are updated
// too.
func (r *TourRepository) SetRatings(ctx context.Context, id primitive.ObjectID, s models.RatingSummary) error {
	_, err := r.Collection().UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"ratingsQuantity": s.Quantity,
		"ratingsAverage":  s.Average,
	}})
	return errors.WithStack(err)
}

func (r *TourRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cursor, err := r.Collection().Aggregate(ctx, pipeline)
	if err != nil {
		return errors.WithStack(err)
	}
	defer cursor.Close(ctx)
	return errors.WithStack(cursor.All(ctx, out))
}
