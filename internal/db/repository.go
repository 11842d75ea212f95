package db

import (
	"context"

	"github.com/arzan03/natours/internal/query"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no document in scope matches.
var ErrNotFound = errors.New("document not found")

// Repository is a typed collection with a fixed scope filter. The scope is
// merged into every read and write so hidden documents (secret tours,
// deactivated users) never surface through it.
type Repository[T any] struct {
	coll  *mongo.Collection
	scope bson.M
}

func NewRepository[T any](coll *mongo.Collection, scope bson.M) *Repository[T] {
	return &Repository[T]{coll: coll, scope: scope}
}

func (r *Repository[T]) Collection() *mongo.Collection { return r.coll }

// Scope returns a copy of the scope filter.
func (r *Repository[T]) Scope() bson.M {
	out := make(bson.M, len(r.scope))
	for k, v := range r.scope {
		out[k] = v
	}
	return out
}

func (r *Repository[T]) scoped(filter bson.M) bson.M {
	out := r.Scope()
	for k, v := range filter {
		if _, fixed := r.scope[k]; fixed {
			continue
		}
		out[k] = v
	}
	return out
}

// Insert stores doc, assigning an _id when it has none, and reloads doc from
// what was written.
func (r *Repository[T]) Insert(ctx context.Context, doc *T) error {
	m, err := toM(doc)
	if err != nil {
		return err
	}
	if id, ok := m["_id"]; !ok || id == primitive.NilObjectID {
		m["_id"] = primitive.NewObjectID()
	}

	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return errors.WithStack(err)
	}
	return fromM(m, doc)
}

func (r *Repository[T]) FindByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	return r.FindOne(ctx, bson.M{"_id": id})
}

func (r *Repository[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	var doc T
	err := r.coll.FindOne(ctx, r.scoped(filter)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.WithStack(ErrNotFound)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &doc, nil
}

// Find runs a composed query. The scope is re-applied even if the query was
// built without it.
func (r *Repository[T]) Find(ctx context.Context, q query.Query) ([]T, error) {
	return r.FindWhere(ctx, q.Filter, q.FindOptions())
}

func (r *Repository[T]) FindWhere(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := r.coll.Find(ctx, r.scoped(filter), opts...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer cursor.Close(ctx)

	docs := make([]T, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.WithStack(err)
	}
	return docs, nil
}

func (r *Repository[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, r.scoped(filter))
	return n, errors.WithStack(err)
}

// UpdateByID applies $set and returns the updated document.
func (r *Repository[T]) UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) (*T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc T
	err := r.coll.FindOneAndUpdate(ctx, r.scoped(bson.M{"_id": id}), bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.WithStack(ErrNotFound)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &doc, nil
}

// DeleteByID removes the document and returns it as it was.
func (r *Repository[T]) DeleteByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	var doc T
	err := r.coll.FindOneAndDelete(ctx, r.scoped(bson.M{"_id": id})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.WithStack(ErrNotFound)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &doc, nil
}

// DeleteAll clears the collection, ignoring the scope.
func (r *Repository[T]) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return res.DeletedCount, nil
}

// toM round-trips a struct through BSON so the driver sees exactly the
// stored field names.
func toM(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, errors.WithStack(err)
	}
	return m, nil
}

func fromM(m bson.M, doc any) error {
	raw, err := bson.Marshal(m)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(bson.Unmarshal(raw, doc))
}

// Fields picks keys out of the stored form of doc. Used to build a $set from
// a patched document.
func Fields(doc any, keys []string) (bson.M, error) {
	m, err := toM(doc)
	if err != nil {
		return nil, err
	}
	out := bson.M{}
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}
