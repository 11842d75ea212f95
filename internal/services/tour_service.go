package services

import (
	"context"
	"fmt"

	"github.com/arzan03/natours/internal/geo"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/utils"
	"github.com/arzan03/natours/internal/validation"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TourReports interface {
	Stats(ctx context.Context) ([]models.TourStat, error)
	MonthlyPlan(ctx context.Context, year int) ([]models.MonthPlan, error)
	Within(ctx context.Context, center []float64, radius float64) ([]models.Tour, error)
	Distances(ctx context.Context, point []float64, multiplier float64) ([]models.TourDistance, error)
}

type ReviewLister interface {
	FindByTour(ctx context.Context, tourID primitive.ObjectID) ([]models.Review, error)
}

// TourService serves the tour reports and searches and assembles populated
// tours.
type TourService struct {
	tours   TourReports
	users   UserLookup
	reviews ReviewLister
	authors *ReviewService
}

func NewTourService(tours TourReports, users UserLookup, reviews ReviewLister, authors *ReviewService) *TourService {
	return &TourService{tours: tours, users: users, reviews: reviews, authors: authors}
}

func (s *TourService) Stats(ctx context.Context) ([]models.TourStat, error) {
	return s.tours.Stats(ctx)
}

func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]models.MonthPlan, error) {
	return s.tours.MonthlyPlan(ctx, year)
}

// Within lists tours starting no further than distance from center.
func (s *TourService) Within(ctx context.Context, distance float64, center geo.Point, unit geo.Unit) ([]models.Tour, error) {
	return s.tours.Within(ctx, center.Coordinates(), geo.RadiusRadians(distance, unit))
}

// Distances ranks every tour by distance from p in unit.
func (s *TourService) Distances(ctx context.Context, p geo.Point, unit geo.Unit) ([]models.TourDistance, error) {
	return s.tours.Distances(ctx, p.Coordinates(), geo.DistanceMultiplier(unit))
}

// CheckGuides requires every guide to be an active user allowed to lead tours.
func (s *TourService) CheckGuides(ctx context.Context, t *models.Tour) error {
	if len(t.Guides) == 0 {
		return nil
	}
	users, err := s.users.FindByIDs(ctx, t.Guides)
	if err != nil {
		return err
	}
	for _, id := range t.Guides {
		u, ok := users[id]
		if !ok || !u.Role.Can(models.LeadTours) {
			return validation.Fail("guides", fmt.Sprintf("Guide %s must be an active guide or lead-guide", id.Hex()))
		}
	}
	return nil
}

// PopulateGuides replaces guide ids with the guides' public profiles.
func (s *TourService) PopulateGuides(ctx context.Context, tours []models.Tour) error {
	var ids []primitive.ObjectID
	for _, t := range tours {
		ids = append(ids, t.Guides...)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}

	for i := range tours {
		guides := make([]models.User, 0, len(tours[i].Guides))
		for _, id := range tours[i].Guides {
			if u, ok := users[id]; ok {
				u.PasswordChangedAt = nil
				guides = append(guides, u)
			}
		}
		tours[i].GuideUsers = guides
	}
	return nil
}

// Populate loads guides and reviews of one tour concurrently.
func (s *TourService) Populate(ctx context.Context, t *models.Tour) error {
	one := []models.Tour{*t}
	var reviews []models.Review

	_, errs := utils.RunParallelTasks([]utils.ParallelTask[struct{}]{
		func() (struct{}, error) {
			return struct{}{}, s.PopulateGuides(ctx, one)
		},
		func() (struct{}, error) {
			list, err := s.reviews.FindByTour(ctx, t.ID)
			if err != nil {
				return struct{}{}, err
			}
			reviews = list
			return struct{}{}, s.authors.PopulateAuthors(ctx, reviews)
		},
	})
	if err := utils.JoinErrors(errs); err != nil {
		return err
	}

	t.GuideUsers = one[0].GuideUsers
	t.Reviews = reviews
	return nil
}
