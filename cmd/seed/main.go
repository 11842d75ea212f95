// Command seed fills the database with generated users, tours and reviews,
// or wipes those collections.
//
//	go run ./cmd/seed -import [-users 30] [-tours 9] [-reviews 5]
//	go run ./cmd/seed -delete
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/arzan03/natours/internal/config"
	"github.com/arzan03/natours/internal/db"
	"github.com/arzan03/natours/internal/logging"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/services"
	"github.com/arzan03/natours/internal/utils"
	"github.com/arzan03/natours/internal/validation"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type options struct {
	users   int
	tours   int
	reviews int
	seed    int64
}

func main() {
	importData := flag.Bool("import", false, "insert generated users, tours and reviews")
	deleteData := flag.Bool("delete", false, "delete all users, tours and reviews")
	var opts options
	flag.IntVar(&opts.users, "users", 30, "number of users to create")
	flag.IntVar(&opts.tours, "tours", 9, "number of tours to create")
	flag.IntVar(&opts.reviews, "reviews", 5, "reviews per tour")
	flag.Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	if *importData == *deleteData {
		fmt.Fprintln(os.Stderr, "choose exactly one of -import or -delete")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx := context.Background()
	client, err := db.Connect(ctx, cfg.DatabaseURI())
	if err != nil {
		logging.Fatal().Err(err).Msg("database connection failed")
	}
	database := client.Database(cfg.DatabaseName)

	if *deleteData {
		err = deleteAll(ctx, database)
	} else {
		err = importAll(ctx, database, cfg.BcryptCost, opts)
	}

	disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if derr := client.Disconnect(disconnectCtx); derr != nil {
		logging.Error().Err(derr).Msg("database disconnect failed")
	}
	cancel()

	if err != nil {
		logging.Fatal().Err(err).Msg("seeding failed")
	}
}

func importAll(ctx context.Context, database *mongo.Database, cost int, opts options) error {
	if err := db.EnsureIndexes(ctx, database); err != nil {
		return err
	}
	users := db.NewUserRepository(database)
	tours := db.NewTourRepository(database)
	reviews := db.NewReviewRepository(database)
	g := newGenerator(opts.seed)

	accounts := g.users(opts.users)
	if err := hashPasswords(ctx, accounts, cost); err != nil {
		return err
	}
	byRole := map[models.Role][]primitive.ObjectID{}
	for i := range accounts {
		u := &accounts[i]
		u.Prepare(true)
		if err := u.Validate(); err != nil {
			return errors.Wrapf(err, "user %s", u.Email)
		}
		if err := users.Insert(ctx, u); err != nil {
			return errors.Wrapf(err, "user %s", u.Email)
		}
		byRole[u.Role] = append(byRole[u.Role], u.ID)
	}
	logging.Info().Int("count", len(accounts)).Str("password", seedPassword).Msg("users imported")

	trips := g.tours(opts.tours, byRole[models.RoleLeadGuide], byRole[models.RoleGuide])
	for i := range trips {
		t := &trips[i]
		t.Prepare(true)
		if err := validation.Merge(t.Validate(), t.ValidateCreate()); err != nil {
			return errors.Wrapf(err, "tour %q", t.Name)
		}
		if err := tours.Insert(ctx, t); err != nil {
			return errors.Wrapf(err, "tour %q", t.Name)
		}
	}
	logging.Info().Int("count", len(trips)).Msg("tours imported")

	written := g.reviews(trips, byRole[models.RoleUser], opts.reviews)
	for i := range written {
		r := &written[i]
		r.Prepare(true)
		if err := r.Validate(); err != nil {
			return errors.Wrap(err, "review")
		}
		if err := reviews.Insert(ctx, r); err != nil {
			return errors.Wrap(err, "review")
		}
	}
	logging.Info().Int("count", len(written)).Msg("reviews imported")

	ratings := services.NewReviewService(reviews, tours, tours, users)
	tasks := make([]utils.ParallelTask[models.RatingSummary], 0, len(trips))
	for _, t := range trips {
		id := t.ID
		tasks = append(tasks, func() (models.RatingSummary, error) {
			return ratings.RecalculateRatings(ctx, id)
		})
	}
	_, errs := utils.RunParallelTasks(tasks)
	if err := utils.JoinErrors(errs); err != nil {
		return errors.Wrap(err, "recalculate ratings")
	}
	logging.Info().Msg("tour ratings recalculated")
	return nil
}

// hashPasswords runs bcrypt on a bounded pool; it dominates import time.
func hashPasswords(ctx context.Context, accounts []models.User, cost int) error {
	pool := utils.NewWorkerPool(ctx, runtime.NumCPU())
	for i := range accounts {
		u := &accounts[i]
		pool.Go(func(context.Context) error {
			return u.SetPassword(seedPassword, cost, false)
		})
	}
	return pool.Wait()
}

func deleteAll(ctx context.Context, database *mongo.Database) error {
	removed := map[string]func(context.Context) (int64, error){
		"reviews": db.NewReviewRepository(database).DeleteAll,
		"tours":   db.NewTourRepository(database).DeleteAll,
		"users":   db.NewUserRepository(database).DeleteAll,
	}
	for name, del := range removed {
		n, err := del(ctx)
		if err != nil {
			return errors.Wrapf(err, "delete %s", name)
		}
		logging.Info().Int64("count", n).Str("collection", name).Msg("deleted")
	}
	return nil
}
