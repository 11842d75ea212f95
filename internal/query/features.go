// Package query turns URL query parameters into a MongoDB find query.
//
// Four stages run in order, each returning the builder:
//
//	q := query.New(scope, params, query.WithKinds(kinds)).
//		Filter().
//		Sort().
//		LimitFields().
//		Paginate()
//	if err := q.Err(); err != nil { ... }
//	cursor, err := coll.Find(ctx, q.Query().Filter, q.Query().FindOptions())
package query

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arzan03/natours/internal/apperror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
)

// reserved keys drive the later stages and never become filters.
var reserved = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

var operators = map[string]string{"gte": "$gte", "gt": "$gt", "lte": "$lte", "lt": "$lt"}

// DefaultWhitelist lists the fields that may repeat in a query string; the
// repeated values are matched with $in. Any other repeated key keeps its last
// value.
var DefaultWhitelist = []string{"duration", "ratingsQuantity", "ratingsAverage", "maxGroupSize", "difficulty", "price"}

var bracketKey = regexp.MustCompile(`^([^\[\]]+)\[([^\[\]]*)\]$`)

// Kind is the stored type of a field, used to cast query string values.
type Kind int

const (
	String Kind = iota
	Number
	Bool
	Date
	ObjectID
)

// Query is the composed result of the builder.
type Query struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.D
	Skip       int64
	Limit      int64
}

// FindOptions converts the sort, projection and window into driver options.
func (q Query) FindOptions() *options.FindOptions {
	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}
	if len(q.Projection) > 0 {
		opts.SetProjection(q.Projection)
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	return opts
}

// APIFeatures accumulates a Query from request parameters.
type APIFeatures struct {
	query     Query
	params    url.Values
	scope     bson.M
	kinds     map[string]Kind
	whitelist map[string]bool
	err       error
}

type Option func(*APIFeatures)

// WithKinds sets the field types used to cast filter values.
func WithKinds(kinds map[string]Kind) Option {
	return func(f *APIFeatures) { f.kinds = kinds }
}

// WithWhitelist replaces DefaultWhitelist.
func WithWhitelist(fields ...string) Option {
	return func(f *APIFeatures) {
		f.whitelist = make(map[string]bool, len(fields))
		for _, field := range fields {
			f.whitelist[field] = true
		}
	}
}

// New starts a builder. scope is always part of the final filter and cannot
// be overridden by params.
func New(scope bson.M, params url.Values, opts ...Option) *APIFeatures {
	f := &APIFeatures{
		params: params,
		scope:  scope,
		query:  Query{Filter: bson.M{}},
	}
	WithWhitelist(DefaultWhitelist...)(f)
	for _, opt := range opts {
		opt(f)
	}
	for k, v := range scope {
		f.query.Filter[k] = v
	}
	return f
}

// Filter copies non-reserved params into the filter, rewriting field[op]
// into comparison operators. Keys are visited in sorted order. A plain value
// next to operators on the same field joins them as $eq (or $in).
func (f *APIFeatures) Filter() *APIFeatures {
	if f.err != nil {
		return f
	}

	keys := make([]string, 0, len(f.params))
	for key := range f.params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	equals := map[string]any{}
	conds := map[string]bson.M{}
	var fields []string
	for _, key := range keys {
		values := f.params[key]
		if len(values) == 0 || reserved[key] || unsafeKey(key) {
			continue
		}

		field, op := key, ""
		if m := bracketKey.FindStringSubmatch(key); m != nil {
			field, op = m[1], m[2]
			if unsafeKey(field) {
				continue
			}
		}
		if _, scoped := f.scope[field]; scoped {
			continue
		}
		if _, seen := equals[field]; !seen && conds[field] == nil {
			fields = append(fields, field)
		}

		if op == "" {
			value, err := f.equality(field, values)
			if err != nil {
				f.err = err
				return f
			}
			equals[field] = value
			continue
		}

		mongoOp, ok := operators[op]
		if !ok {
			f.err = apperror.BadRequest("Invalid query operator: " + op)
			return f
		}
		value, err := f.cast(field, values[len(values)-1])
		if err != nil {
			f.err = err
			return f
		}
		if conds[field] == nil {
			conds[field] = bson.M{}
		}
		conds[field][mongoOp] = value
	}

	for _, field := range fields {
		eq, hasEq := equals[field]
		cond := conds[field]
		switch {
		case cond == nil:
			f.query.Filter[field] = eq
		case !hasEq:
			f.query.Filter[field] = cond
		default:
			if in, ok := eq.(bson.M); ok {
				cond["$in"] = in["$in"]
			} else {
				cond["$eq"] = eq
			}
			f.query.Filter[field] = cond
		}
	}
	return f
}

func (f *APIFeatures) equality(field string, values []string) (any, error) {
	if len(values) > 1 && f.whitelist[field] {
		in := make(bson.A, 0, len(values))
		for _, v := range values {
			cv, err := f.cast(field, v)
			if err != nil {
				return nil, err
			}
			in = append(in, cv)
		}
		return bson.M{"$in": in}, nil
	}
	return f.cast(field, values[len(values)-1])
}

func (f *APIFeatures) cast(field, raw string) (any, error) {
	switch f.kinds[field] {
	case Number:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &apperror.CastError{Path: field, Value: raw, Err: err}
		}
		return n, nil
	case Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, &apperror.CastError{Path: field, Value: raw, Err: err}
		}
		return b, nil
	case Date:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return nil, &apperror.CastError{Path: field, Value: raw}
	case ObjectID:
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, &apperror.CastError{Path: field, Value: raw, Err: err}
		}
		return id, nil
	default:
		return raw, nil
	}
}

// Sort orders by the comma-separated sort param; "-" means descending.
// Without it results are newest first with _id as a tiebreak.
func (f *APIFeatures) Sort() *APIFeatures {
	if f.err != nil {
		return f
	}

	raw := f.params.Get("sort")
	if raw == "" {
		f.query.Sort = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
		return f
	}

	order := bson.D{}
	for _, field := range splitList(raw) {
		dir := 1
		if strings.HasPrefix(field, "-") {
			dir, field = -1, field[1:]
		}
		if field == "" || unsafeKey(field) {
			continue
		}
		order = append(order, bson.E{Key: field, Value: dir})
	}
	f.query.Sort = order
	return f
}

// LimitFields projects the comma-separated fields param. A list made only of
// "-field" entries excludes those fields instead.
func (f *APIFeatures) LimitFields() *APIFeatures {
	if f.err != nil {
		return f
	}

	raw := f.params.Get("fields")
	if raw == "" {
		f.query.Projection = bson.D{{Key: "__v", Value: 0}}
		return f
	}

	fields := splitList(raw)
	exclude := len(fields) > 0
	for _, field := range fields {
		if !strings.HasPrefix(field, "-") {
			exclude = false
			break
		}
	}

	projection := bson.D{}
	for _, field := range fields {
		if exclude {
			projection = append(projection, bson.E{Key: strings.TrimPrefix(field, "-"), Value: 0})
			continue
		}
		if strings.HasPrefix(field, "-") || unsafeKey(field) {
			continue
		}
		projection = append(projection, bson.E{Key: field, Value: 1})
	}
	f.query.Projection = projection
	return f
}

// Paginate applies page and limit. A page past the end is not an error; the
// store simply returns nothing.
func (f *APIFeatures) Paginate() *APIFeatures {
	if f.err != nil {
		return f
	}

	page := positiveInt(f.params.Get("page"), DefaultPage)
	limit := positiveInt(f.params.Get("limit"), DefaultLimit)

	f.query.Skip = int64((page - 1) * limit)
	f.query.Limit = int64(limit)
	return f
}

// Query returns the composed query.
func (f *APIFeatures) Query() Query { return f.query }

// Err reports the first stage failure (bad operator or uncastable value).
func (f *APIFeatures) Err() error { return f.err }

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// unsafeKey drops operator injection such as "$where" or "a.$ne".
func unsafeKey(key string) bool {
	return strings.HasPrefix(key, "$") || strings.Contains(key, ".") || key == ""
}
