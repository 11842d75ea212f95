package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/arzan03/natours/internal/apperror"
	"github.com/arzan03/natours/internal/db"
	"github.com/arzan03/natours/internal/logging"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/validation"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotLoggedIn       = apperror.Unauthorized("You are not logged in! Please log in to get access.")
	ErrUserGone          = apperror.Unauthorized("The user belonging to this token does no longer exist.")
	ErrPasswordChanged   = apperror.Unauthorized("User recently changed password! Please log in again.")
	ErrMissingLogin      = apperror.BadRequest("Please provide email and password!")
	ErrBadCredentials    = apperror.Unauthorized("Incorrect email or password")
	ErrWrongPassword     = apperror.Unauthorized("Your current password is wrong.")
	ErrResetTokenInvalid = apperror.BadRequest("Token is invalid or has expired")
	ErrNoSuchEmail       = apperror.New(http.StatusNotFound, "There is no user with that email address.")
	ErrResetMail         = apperror.New(http.StatusInternalServerError, "There was an error sending the email. Try again later!")
)

// UserStore is the persistence authentication needs.
type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetToken(ctx context.Context, hashed string, now time.Time) (*models.User, error)
	SaveResetToken(ctx context.Context, u *models.User) error
	SavePassword(ctx context.Context, u *models.User) (*models.User, error)
	ClearResetToken(ctx context.Context, id primitive.ObjectID) error
}

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to *models.User, resetURL string) error
}

// LogMailer writes reset links to the log instead of sending mail.
type LogMailer struct{}

func (LogMailer) SendPasswordReset(_ context.Context, to *models.User, resetURL string) error {
	logging.Info().Str("email", to.Email).Str("reset_url", resetURL).Msg("password reset requested")
	return nil
}

type AuthConfig struct {
	Secret     string
	ExpiresIn  time.Duration
	BcryptCost int
}

// Claims is the token payload: the user id plus iat and exp.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users  UserStore
	mailer Mailer
	cfg    AuthConfig
}

func NewAuthService(users UserStore, mailer Mailer, cfg AuthConfig) *AuthService {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &AuthService{users: users, mailer: mailer, cfg: cfg}
}

type SignupInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Signup creates a regular user. The role is always user.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, string, error) {
	u := &models.User{Name: in.Name, Email: in.Email, Role: models.RoleUser}
	u.Prepare(true)
	if err := validation.Merge(u.Validate(), models.ValidatePassword(in.Password, in.PasswordConfirm)); err != nil {
		return nil, "", err
	}
	if err := u.SetPassword(in.Password, s.cfg.BcryptCost, false); err != nil {
		return nil, "", errors.WithStack(err)
	}
	if err := s.users.Insert(ctx, u); err != nil {
		return nil, "", err
	}
	return s.withToken(u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", ErrMissingLogin
	}

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, "", ErrBadCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if !u.CorrectPassword(password) {
		return nil, "", ErrBadCredentials
	}
	return s.withToken(u)
}

// Verify resolves a token to its still-active user.
func (s *AuthService) Verify(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotLoggedIn
	}
	claims, err := s.ParseToken(token)
	if err != nil {
		return nil, err
	}

	id, err := primitive.ObjectIDFromHex(claims.ID)
	if err != nil {
		return nil, ErrUserGone
	}
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrUserGone
	}
	if err != nil {
		return nil, err
	}

	if claims.IssuedAt != nil && u.ChangedPasswordAfter(claims.IssuedAt.Unix()) {
		return nil, ErrPasswordChanged
	}
	return u, nil
}

// ForgotPassword issues a reset token and mails resetURL(token).
func (s *AuthService) ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error {
	u, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, db.ErrNotFound) {
		return ErrNoSuchEmail
	}
	if err != nil {
		return err
	}

	token, err := u.CreatePasswordResetToken()
	if err != nil {
		return errors.WithStack(err)
	}
	if err := s.users.SaveResetToken(ctx, u); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, u, resetURL(token)); err != nil {
		logging.Error().Err(err).Str("user", u.ID.Hex()).Msg("reset mail failed")
		if cerr := s.users.ClearResetToken(ctx, u.ID); cerr != nil {
			logging.Error().Err(cerr).Str("user", u.ID.Hex()).Msg("could not clear reset token")
		}
		return ErrResetMail
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) (*models.User, string, error) {
	u, err := s.users.FindByResetToken(ctx, models.HashResetToken(token), time.Now())
	if errors.Is(err, db.ErrNotFound) {
		return nil, "", ErrResetTokenInvalid
	}
	if err != nil {
		return nil, "", err
	}
	return s.changePassword(ctx, u, password, confirm)
}

// UpdatePassword changes the password of a logged-in user after checking the
// current one.
func (s *AuthService) UpdatePassword(ctx context.Context, id primitive.ObjectID, current, password, confirm string) (*models.User, string, error) {
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, "", ErrUserGone
	}
	if err != nil {
		return nil, "", err
	}
	if !u.CorrectPassword(current) {
		return nil, "", ErrWrongPassword
	}
	return s.changePassword(ctx, u, password, confirm)
}

func (s *AuthService) changePassword(ctx context.Context, u *models.User, password, confirm string) (*models.User, string, error) {
	if err := models.ValidatePassword(password, confirm); err != nil {
		return nil, "", err
	}
	if err := u.SetPassword(password, s.cfg.BcryptCost, true); err != nil {
		return nil, "", errors.WithStack(err)
	}
	saved, err := s.users.SavePassword(ctx, u)
	if err != nil {
		return nil, "", err
	}
	return s.withToken(saved)
}

// SignToken issues an HS256 token for a user id.
func (s *AuthService) SignToken(id primitive.ObjectID) (string, error) {
	now := time.Now()
	claims := Claims{
		ID: id.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.ExpiresIn)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	return signed, errors.WithStack(err)
}

// ParseToken verifies signature and expiry. jwt errors are returned as is so
// the error handler can tell an expired token from a forged one.
func (s *AuthService) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuedAt())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *AuthService) withToken(u *models.User) (*models.User, string, error) {
	token, err := s.SignToken(u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}
