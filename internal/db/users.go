package db

import (
	"context"
	"time"

	"github.com/arzan03/natours/internal/models"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository adds the lookups authentication needs on top of the
// generic repository. Deactivated users are out of scope.
type UserRepository struct {
	*Repository[models.User]
}

func NewUserRepository(database *mongo.Database) *UserRepository {
	return &UserRepository{NewRepository[models.User](database.Collection(UsersCollection), models.UserScope())}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.FindOne(ctx, bson.M{"email": email})
}

// FindByResetToken matches a hashed reset token that has not expired.
func (r *UserRepository) FindByResetToken(ctx context.Context, hashed string, now time.Time) (*models.User, error) {
	return r.FindOne(ctx, bson.M{
		"passwordResetToken":   hashed,
		"passwordResetExpires": bson.M{"$gt": now},
	})
}

// SaveResetToken stores the hashed token and its expiry.
func (r *UserRepository) SaveResetToken(ctx context.Context, u *models.User) error {
	_, err := r.UpdateByID(ctx, u.ID, bson.M{
		"passwordResetToken":   u.PasswordResetToken,
		"passwordResetExpires": u.PasswordResetExpires,
	})
	return err
}

// SavePassword writes a new hash and change time and consumes any reset token.
func (r *UserRepository) SavePassword(ctx context.Context, u *models.User) (*models.User, error) {
	set := bson.M{"password": u.Password}
	if u.PasswordChangedAt != nil {
		set["passwordChangedAt"] = u.PasswordChangedAt
	}

	var out models.User
	err := r.Collection().FindOneAndUpdate(ctx, r.scoped(bson.M{"_id": u.ID}), bson.M{
		"$set":   set,
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	}, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.WithStack(ErrNotFound)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &out, nil
}

// ClearResetToken drops an issued reset token, e.g. after a failed email.
func (r *UserRepository) ClearResetToken(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.Collection().UpdateByID(ctx, id, bson.M{
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	})
	return errors.WithStack(err)
}

// FindByIDs loads the in-scope users among ids, keyed by id.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := r.FindWhere(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
