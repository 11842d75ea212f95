package handlers

import (
	"context"
	"net/url"

	"github.com/arzan03/natours/internal/apperror"
	"github.com/arzan03/natours/internal/db"
	"github.com/arzan03/natours/internal/query"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the persistence a Resource needs. db.Repository implements it.
type Store[T any] interface {
	Insert(ctx context.Context, doc *T) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*T, error)
	Find(ctx context.Context, q query.Query) ([]T, error)
	UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) (*T, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) (*T, error)
	Scope() bson.M
}

// Resource builds the five generic CRUD handlers for one entity. Every hook
// is optional and runs synchronously in the request.
type Resource[T any] struct {
	Store Store[T]
	Kinds map[string]query.Kind

	// Prepare fills defaults and derived fields before validation.
	Prepare func(doc *T, creating bool)
	// Validate runs on create and update.
	Validate func(ctx context.Context, doc *T) error
	// ValidateCreate runs on create only.
	ValidateCreate func(ctx context.Context, doc *T) error
	// BeforeCreate copies request context (route params, current user) into
	// a new document.
	BeforeCreate func(c *fiber.Ctx, doc *T) error
	// AfterWrite keeps dependent documents consistent. It receives the
	// created, updated or deleted document.
	AfterWrite func(ctx context.Context, doc *T) error
	// Populate loads related documents for GetOne.
	Populate func(ctx context.Context, doc *T) error
	// PopulateList loads related documents for GetAll.
	PopulateList func(ctx context.Context, docs []T) error
	// ParentScope narrows GetAll under a nested route.
	ParentScope func(c *fiber.Ctx) (bson.M, error)

	// Immutable fields are dropped from update bodies.
	Immutable []string
	// Derived fields are recomputed by Prepare and always written on update.
	Derived []string
}

// CreateOne inserts the request body and answers 201.
func (r *Resource[T]) CreateOne() fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc := new(T)
		if err := decodeBody(c, doc); err != nil {
			return err
		}
		if r.BeforeCreate != nil {
			if err := r.BeforeCreate(c, doc); err != nil {
				return err
			}
		}

		ctx := c.UserContext()
		if err := r.check(ctx, doc, true); err != nil {
			return err
		}
		if err := r.Store.Insert(ctx, doc); err != nil {
			return err
		}
		if err := r.afterWrite(ctx, doc); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(envelope(doc))
	}
}

// GetOne answers 200 with one document or 404.
func (r *Resource[T]) GetOne() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := ParamID(c, "id")
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		doc, err := r.Store.FindByID(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if r.Populate != nil {
			if err := r.Populate(ctx, doc); err != nil {
				return err
			}
		}
		return c.JSON(envelope(doc))
	}
}

// GetAll runs the query-feature builder over the store scope, narrowed by
// the parent route when there is one.
func (r *Resource[T]) GetAll() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope := r.Store.Scope()
		if r.ParentScope != nil {
			parent, err := r.ParentScope(c)
			if err != nil {
				return err
			}
			for k, v := range parent {
				scope[k] = v
			}
		}

		features := query.New(scope, QueryParams(c), query.WithKinds(r.Kinds)).
			Filter().
			Sort().
			LimitFields().
			Paginate()
		if err := features.Err(); err != nil {
			return err
		}

		ctx := c.UserContext()
		docs, err := r.Store.Find(ctx, features.Query())
		if err != nil {
			return err
		}
		if r.PopulateList != nil && len(docs) > 0 {
			if err := r.PopulateList(ctx, docs); err != nil {
				return err
			}
		}
		return c.JSON(listEnvelope(docs))
	}
}

// UpdateOne merges the body onto the stored document, re-validates and
// writes only the fields that were sent.
func (r *Resource[T]) UpdateOne() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := ParamID(c, "id")
		if err != nil {
			return err
		}
		patch, err := r.patchFrom(c.Body())
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		doc, err := r.Store.FindByID(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if len(patch) == 0 {
			return c.JSON(envelope(doc))
		}

		merged, err := json.Marshal(patch)
		if err != nil {
			return errors.WithStack(err)
		}
		if err := json.Unmarshal(merged, doc); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := r.check(ctx, doc, false); err != nil {
			return err
		}

		keys := append(mapKeys(patch), r.Derived...)
		set, err := db.Fields(doc, keys)
		if err != nil {
			return err
		}
		updated, err := r.Store.UpdateByID(ctx, id, set)
		if err != nil {
			return notFound(err)
		}
		if err := r.afterWrite(ctx, updated); err != nil {
			return err
		}
		return c.JSON(envelope(updated))
	}
}

// DeleteOne answers 204 with no body, or 404.
func (r *Resource[T]) DeleteOne() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := ParamID(c, "id")
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		deleted, err := r.Store.DeleteByID(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if err := r.afterWrite(ctx, deleted); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (r *Resource[T]) check(ctx context.Context, doc *T, creating bool) error {
	if r.Prepare != nil {
		r.Prepare(doc, creating)
	}
	if r.Validate != nil {
		if err := r.Validate(ctx, doc); err != nil {
			return err
		}
	}
	if creating && r.ValidateCreate != nil {
		return r.ValidateCreate(ctx, doc)
	}
	return nil
}

func (r *Resource[T]) afterWrite(ctx context.Context, doc *T) error {
	if r.AfterWrite == nil || doc == nil {
		return nil
	}
	return r.AfterWrite(ctx, doc)
}

func (r *Resource[T]) patchFrom(body []byte) (map[string]json.RawMessage, error) {
	patch := map[string]json.RawMessage{}
	if len(body) == 0 {
		return patch, nil
	}
	if err := json.Unmarshal(body, &patch); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid JSON body")
	}
	delete(patch, "id")
	delete(patch, "_id")
	for _, field := range r.Immutable {
		delete(patch, field)
	}
	for key := range patch {
		if key == "" || key[0] == '$' {
			delete(patch, key)
		}
	}
	return patch, nil
}

// ParamID parses an ObjectID route parameter.
func ParamID(c *fiber.Ctx, name string) (primitive.ObjectID, error) {
	raw := c.Params(name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, &apperror.CastError{Path: "_id", Value: raw, Err: err}
	}
	return id, nil
}

// QueryParams returns the raw query string as url.Values, keeping repeated
// keys.
func QueryParams(c *fiber.Ctx) url.Values {
	params := url.Values{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		params.Add(string(key), string(value))
	})
	return params
}

func decodeBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Body(), out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid JSON body")
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperror.NotFound()
	}
	return err
}

func envelope(doc any) fiber.Map {
	return fiber.Map{"status": "success", "data": fiber.Map{"data": doc}}
}

func listEnvelope[T any](docs []T) fiber.Map {
	return fiber.Map{"status": "success", "results": len(docs), "data": fiber.Map{"data": docs}}
}

func mapKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
