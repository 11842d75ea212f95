package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/arzan03/natours/internal/config"
	"github.com/arzan03/natours/internal/db"
	"github.com/arzan03/natours/internal/middleware"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/query"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore keeps documents in insertion order and applies $set through a
// BSON round trip, the way the Mongo repository stores them.
type memStore[T any] struct {
	mu    sync.Mutex
	docs  map[primitive.ObjectID]T
	order []primitive.ObjectID
	id    func(*T) *primitive.ObjectID
}

func newMemStore[T any](id func(*T) *primitive.ObjectID) *memStore[T] {
	return &memStore[T]{docs: map[primitive.ObjectID]T{}, id: id}
}

func (s *memStore[T]) Insert(_ context.Context, doc *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id(doc)
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
	// Stored times lose sub-millisecond precision, as in Mongo.
	m, err := toBSON(doc)
	if err != nil {
		return err
	}
	var stored T
	if err := fromBSON(m, &stored); err != nil {
		return err
	}
	if err := fromBSON(m, doc); err != nil {
		return err
	}
	if _, ok := s.docs[*id]; !ok {
		s.order = append(s.order, *id)
	}
	s.docs[*id] = stored
	return nil
}

func (s *memStore[T]) FindByID(_ context.Context, id primitive.ObjectID) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, errors.WithStack(db.ErrNotFound)
	}
	return &doc, nil
}

// Find honours plain equality filters and ignores operator expressions.
func (s *memStore[T]) Find(_ context.Context, q query.Query) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []T{}
	for _, id := range s.order {
		doc, ok := s.docs[id]
		if !ok {
			continue
		}
		m, err := toBSON(doc)
		if err != nil {
			return nil, err
		}
		if matches(m, q.Filter) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *memStore[T]) UpdateByID(_ context.Context, id primitive.ObjectID, set bson.M) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, errors.WithStack(db.ErrNotFound)
	}
	m, err := toBSON(doc)
	if err != nil {
		return nil, err
	}
	for k, v := range set {
		m[k] = v
	}
	var updated T
	if err := fromBSON(m, &updated); err != nil {
		return nil, err
	}
	s.docs[id] = updated
	return &updated, nil
}

func (s *memStore[T]) DeleteByID(_ context.Context, id primitive.ObjectID) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, errors.WithStack(db.ErrNotFound)
	}
	delete(s.docs, id)
	return &doc, nil
}

func (s *memStore[T]) Scope() bson.M { return bson.M{} }

func (s *memStore[T]) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func toBSON(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	return m, bson.Unmarshal(raw, &m)
}

func fromBSON(m bson.M, doc any) error {
	raw, err := bson.Marshal(m)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, doc)
}

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		if _, isOp := want.(bson.M); isOp {
			continue
		}
		if !reflect.DeepEqual(doc[k], want) {
			return false
		}
	}
	return true
}

// memUsers adds the account lookups authentication needs.
type memUsers struct {
	*memStore[models.User]
}

func newMemUsers() *memUsers {
	return &memUsers{newMemStore(func(u *models.User) *primitive.ObjectID { return &u.ID })}
}

func (s *memUsers) first(match func(*models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.docs {
		if u.IsActive() && match(&u) {
			return &u, nil
		}
	}
	return nil, errors.WithStack(db.ErrNotFound)
}

// FindByID hides deactivated accounts like the user repository scope does.
func (s *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.first(func(u *models.User) bool { return u.ID == id })
}

func (s *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return s.first(func(u *models.User) bool { return u.Email == email })
}

func (s *memUsers) FindByResetToken(_ context.Context, hashed string, now time.Time) (*models.User, error) {
	return s.first(func(u *models.User) bool {
		return u.PasswordResetToken == hashed && u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now)
	})
}

func (s *memUsers) SaveResetToken(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[u.ID] = *u
	return nil
}

func (s *memUsers) SavePassword(_ context.Context, u *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := *u
	saved.PasswordResetToken, saved.PasswordResetExpires = "", nil
	s.docs[u.ID] = saved
	return &saved, nil
}

func (s *memUsers) ClearResetToken(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.docs[id]
	u.PasswordResetToken, u.PasswordResetExpires = "", nil
	s.docs[id] = u
	return nil
}

func (s *memUsers) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[primitive.ObjectID]models.User{}
	for _, id := range ids {
		if u, ok := s.docs[id]; ok && u.IsActive() {
			out[id] = u
		}
	}
	return out, nil
}

// asUser authenticates every request as u.
type asUser struct{ u *models.User }

func (a asUser) Verify(context.Context, string) (*models.User, error) { return a.u, nil }

func loggedIn(u *models.User) fiber.Handler { return middleware.Protect(asUser{u}) }

func newTestApp(mode config.Mode) *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(mode),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
}

type response struct {
	status  int
	header  http.Header
	raw     []byte
	body    map[string]any
	cookies []*http.Cookie
}

func (r response) message() string {
	msg, _ := r.body["message"].(string)
	return msg
}

// data returns body.data.<key> as a map.
func (r response) data(key string) map[string]any {
	data, _ := r.body["data"].(map[string]any)
	out, _ := data[key].(map[string]any)
	return out
}

func (r response) cookie(name string) *http.Cookie {
	for _, c := range r.cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// do sends body as JSON unless it is already a string.
func do(t *testing.T, app *fiber.App, method, target string, body any) response {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return send(t, app, req)
}

// doWithToken is do with the token sent in the jwt cookie.
func doWithToken(t *testing.T, app *fiber.App, method, target, token string, body any) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: token})
	return send(t, app, req)
}

func send(t *testing.T, app *fiber.App, req *http.Request) response {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	out := response{status: resp.StatusCode, header: resp.Header, raw: raw, cookies: resp.Cookies()}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out.body)
	}
	return out
}
