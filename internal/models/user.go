package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/arzan03/natours/internal/query"
	"github.com/arzan03/natours/internal/validation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultPhoto       = "default.jpg"
	PasswordResetValid = 10 * time.Minute
)

type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name                 string             `bson:"name" json:"name" validate:"required"`
	Email                string             `bson:"email" json:"email" validate:"required,email"`
	Photo                string             `bson:"photo" json:"photo"`
	Role                 Role               `bson:"role" json:"role" validate:"required,oneof=user guide lead-guide admin"`
	Password             string             `bson:"password" json:"-"`
	PasswordChangedAt    *time.Time         `bson:"passwordChangedAt,omitempty" json:"passwordChangedAt,omitempty"`
	PasswordResetToken   string             `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires *time.Time         `bson:"passwordResetExpires,omitempty" json:"-"`
	Active               *bool              `bson:"active,omitempty" json:"-"`
}

// UserSummary is the slice of a user embedded in other documents' responses.
type UserSummary struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Photo string             `json:"photo"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Photo: u.Photo}
}

// UserScope hides deactivated accounts from every standard read.
func UserScope() bson.M {
	return bson.M{"active": bson.M{"$ne": false}}
}

var UserKinds = map[string]query.Kind{
	"_id":               query.ObjectID,
	"passwordChangedAt": query.Date,
}

// UserImmutable lists the fields the generic update may not touch.
var UserImmutable = []string{"password", "passwordConfirm", "passwordChangedAt", "passwordResetToken", "passwordResetExpires", "active"}

var userMessages = validation.Messages{
	"name.required":  "Please, tell us your name!",
	"email.required": "Please, provide your email!",
	"role":           "Role is either: user, guide, lead-guide, admin",
}

// Prepare normalizes input and fills defaults.
func (u *User) Prepare(creating bool) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Photo == "" {
		u.Photo = DefaultPhoto
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if creating && u.Active == nil {
		active := true
		u.Active = &active
	}
}

func (u *User) Validate() error {
	return validation.StructWith(u, userMessages)
}

// ValidatePassword checks a new password and its confirmation.
func ValidatePassword(password, confirm string) error {
	errs := &validation.Error{}
	switch {
	case password == "":
		errs.Add("password", "Please, provide a password!")
	case len(password) < 8:
		errs.Add("password", "password must have more or equal than 8 characters")
	}
	switch {
	case confirm == "":
		errs.Add("passwordConfirm", "Please, confirm your password!")
	case confirm != password:
		errs.Add("passwordConfirm", "Passwords are not the same!")
	}
	return errs.OrNil()
}

// SetPassword hashes password. passwordChangedAt is backdated one second so a
// token issued right after the change is still accepted.
func (u *User) SetPassword(password string, cost int, changed bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	if changed {
		at := time.Now().Add(-time.Second)
		u.PasswordChangedAt = &at
	}
	return nil
}

// CorrectPassword compares a candidate with the stored hash.
func (u *User) CorrectPassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate)) == nil
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at iat (unix seconds).
func (u *User) ChangedPasswordAfter(iat int64) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat < u.PasswordChangedAt.Unix()
}

// CreatePasswordResetToken stores the SHA-256 of a fresh random token and
// returns the plain token for delivery.
func (u *User) CreatePasswordResetToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)
	expires := time.Now().Add(PasswordResetValid)

	u.PasswordResetToken = HashResetToken(token)
	u.PasswordResetExpires = &expires
	return token, nil
}

func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (u *User) IsActive() bool { return u.Active == nil || *u.Active }
