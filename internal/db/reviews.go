package db

import (
	"context"

	"github.com/arzan03/natours/internal/models"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReviewRepository struct {
	*Repository[models.Review]
}

func NewReviewRepository(database *mongo.Database) *ReviewRepository {
	return &ReviewRepository{NewRepository[models.Review](database.Collection(ReviewsCollection), nil)}
}

// RatingStats returns the review count and mean rating of one tour.
func (r *ReviewRepository) RatingStats(ctx context.Context, tourID primitive.ObjectID) (int, float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tour": tourID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$tour",
			"numRating": bson.M{"$sum": 1},
			"avgRating": bson.M{"$avg": "$rating"},
		}}},
	}

	cursor, err := r.Collection().Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, errors.WithStack(err)
	}
	defer cursor.Close(ctx)

	var stats []struct {
		NumRating int     `bson:"numRating"`
		AvgRating float64 `bson:"avgRating"`
	}
	if err := cursor.All(ctx, &stats); err != nil {
		return 0, 0, errors.WithStack(err)
	}
	if len(stats) == 0 {
		return 0, 0, nil
	}
	return stats[0].NumRating, stats[0].AvgRating, nil
}

// FindByTour lists a tour's reviews, newest first.
func (r *ReviewRepository) FindByTour(ctx context.Context, tourID primitive.ObjectID) ([]models.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.FindWhere(ctx, bson.M{"tour": tourID}, opts)
}
