package handlers

import (
	"context"

	"github.com/arzan03/natours/internal/middleware"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
)

// NewReviewResource wires reviews into the factory. Under /tours/:tourId the
// tour comes from the route; the author is always the logged-in user.
func NewReviewResource(store Store[models.Review], reviews *services.ReviewService) *Resource[models.Review] {
	return &Resource[models.Review]{
		Store:   store,
		Kinds:   models.ReviewKinds,
		Prepare: (*models.Review).Prepare,
		Validate: func(_ context.Context, r *models.Review) error {
			return r.Validate()
		},
		ValidateCreate: reviews.CheckTour,
		BeforeCreate: func(c *fiber.Ctx, r *models.Review) error {
			if c.Params("tourId") != "" {
				id, err := ParamID(c, "tourId")
				if err != nil {
					return err
				}
				r.Tour = id
			}
			if user := middleware.CurrentUser(c); user != nil {
				r.User = user.ID
			}
			return nil
		},
		AfterWrite:   reviews.AfterWrite,
		Populate:     reviews.Populate,
		PopulateList: reviews.PopulateAuthors,
		ParentScope: func(c *fiber.Ctx) (bson.M, error) {
			if c.Params("tourId") == "" {
				return nil, nil
			}
			id, err := ParamID(c, "tourId")
			if err != nil {
				return nil, err
			}
			return bson.M{"tour": id}, nil
		},
		Immutable: models.ReviewImmutable,
	}
}
