package services

import (
	"context"

	"github.com/arzan03/natours/internal/db"
	"github.com/arzan03/natours/internal/logging"
	"github.com/arzan03/natours/internal/metrics"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/validation"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RatingSource interface {
	RatingStats(ctx context.Context, tourID primitive.ObjectID) (int, float64, error)
}

type RatingSink interface {
	SetRatings(ctx context.Context, id primitive.ObjectID, s models.RatingSummary) error
}

type TourLookup interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Tour, error)
}

type UserLookup interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
}

// ReviewService keeps tour ratings in step with reviews and loads review
// authors. Handlers call it explicitly after every review write.
type ReviewService struct {
	ratings RatingSource
	tours   RatingSink
	lookup  TourLookup
	users   UserLookup
}

func NewReviewService(ratings RatingSource, tours RatingSink, lookup TourLookup, users UserLookup) *ReviewService {
	return &ReviewService{ratings: ratings, tours: tours, lookup: lookup, users: users}
}

// RecalculateRatings recomputes and stores the average and count for a tour.
func (s *ReviewService) RecalculateRatings(ctx context.Context, tourID primitive.ObjectID) (models.RatingSummary, error) {
	summary, err := s.recalculate(ctx, tourID)
	metrics.RecordRatingRecalculation(err)
	if err != nil {
		logging.Error().Err(err).Str("tour", tourID.Hex()).Msg("rating recalculation failed")
		return models.RatingSummary{}, err
	}
	logging.Debug().Str("tour", tourID.Hex()).Int("quantity", summary.Quantity).
		Float64("average", summary.Average).Msg("ratings recalculated")
	return summary, nil
}

func (s *ReviewService) recalculate(ctx context.Context, tourID primitive.ObjectID) (models.RatingSummary, error) {
	count, avg, err := s.ratings.RatingStats(ctx, tourID)
	if err != nil {
		return models.RatingSummary{}, err
	}
	summary := models.SummarizeRatings(count, avg)
	return summary, s.tours.SetRatings(ctx, tourID, summary)
}

// AfterWrite runs after a review is created, updated or deleted.
func (s *ReviewService) AfterWrite(ctx context.Context, r *models.Review) error {
	_, err := s.RecalculateRatings(ctx, r.Tour)
	return err
}

// CheckTour rejects reviews of tours that do not exist.
func (s *ReviewService) CheckTour(ctx context.Context, r *models.Review) error {
	if r.Tour.IsZero() {
		return nil
	}
	_, err := s.lookup.FindByID(ctx, r.Tour)
	if errors.Is(err, db.ErrNotFound) {
		return validation.Fail("tour", "No tour found with that ID")
	}
	return err
}

// PopulateAuthors attaches each review's author name and photo.
func (s *ReviewService) PopulateAuthors(ctx context.Context, reviews []models.Review) error {
	ids := make([]primitive.ObjectID, 0, len(reviews))
	for _, r := range reviews {
		ids = append(ids, r.User)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range reviews {
		if u, ok := users[reviews[i].User]; ok {
			reviews[i].Author = u.Summary()
		}
	}
	return nil
}

func (s *ReviewService) Populate(ctx context.Context, r *models.Review) error {
	one := []models.Review{*r}
	if err := s.PopulateAuthors(ctx, one); err != nil {
		return err
	}
	r.Author = one[0].Author
	return nil
}
