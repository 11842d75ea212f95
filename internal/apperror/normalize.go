package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/arzan03/natours/internal/validation"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/mongo"
)

// quotedValue finds the first quoted token in a duplicate-key message,
// e.g. `"The Forest Hiker"` or `'5c88fa8cf4afda39709c2955'`. Escaped quotes
// stay inside the token.
var quotedValue = regexp.MustCompile(`"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`)

// Normalize maps known store, validation, token and framework errors onto
// operational AppErrors. Anything unrecognised becomes a non-operational 500.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}

	if ae, ok := As(err); ok {
		return ae
	}

	var castErr *CastError
	if errors.As(err, &castErr) {
		return Newf(http.StatusBadRequest, "Invalid %s: %s.", castErr.Path, castErr.Value)
	}

	if mongo.IsDuplicateKeyError(err) {
		value := "value"
		if m := quotedValue.FindString(err.Error()); m != "" {
			value = m
		}
		return Newf(http.StatusBadRequest, "Duplicate field value: %s. Please use another value!", value)
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		return BadRequest(fmt.Sprintf("Invalid input data. %s", strings.Join(verr.Messages(), ". ")))
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return Unauthorized("Your token has expired! Please log in again!")
	}
	if isJWTError(err) {
		return Unauthorized("Invalid token. Please log in again!")
	}

	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < 500 {
		return New(fe.Code, fe.Message)
	}

	return Internal(err)
}

func isJWTError(err error) bool {
	for _, target := range []error{
		jwt.ErrTokenMalformed,
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenUnverifiable,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenInvalidClaims,
		jwt.ErrSignatureInvalid,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
