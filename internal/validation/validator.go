// Package validation runs go-playground/validator over entity structs and
// turns failures into per-field messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

// Error collects every failed rule of a document.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	return strings.Join(e.Messages(), ". ")
}

func (e *Error) Messages() []string {
	out := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f.Message
	}
	return out
}

// Add appends a hand-written rule failure.
func (e *Error) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Tag: "custom", Message: message})
}

// OrNil returns nil when nothing failed.
func (e *Error) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Fail builds a single-field validation error.
func Fail(field, message string) error {
	e := &Error{}
	e.Add(field, message)
	return e
}

// GetValidator returns the shared validator. Field names are reported by
// their json tag so messages match the API payload.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return fld.Name
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Messages overrides the generated text for a rule. Keys are "field.tag", or
// just "field" to cover every rule on that field.
type Messages map[string]string

func (m Messages) lookup(field, tag string) (string, bool) {
	if msg, ok := m[field+"."+tag]; ok {
		return msg, true
	}
	msg, ok := m[field]
	return msg, ok
}

// Struct validates s and returns *Error on failure.
func Struct(s any) error {
	return StructWith(s, nil)
}

// StructWith is Struct with per-field message overrides.
func StructWith(s any, overrides Messages) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		msg, ok := overrides.lookup(fe.Field(), fe.Tag())
		if !ok {
			msg = translate(fe)
		}
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: msg,
		})
	}
	return out
}

// Merge combines several validation results, keeping every field message.
func Merge(errs ...error) error {
	out := &Error{}
	for _, err := range errs {
		if err == nil {
			continue
		}
		var ve *Error
		if errors.As(err, &ve) {
			out.Fields = append(out.Fields, ve.Fields...)
			continue
		}
		return err
	}
	return out.OrNil()
}

var messages = map[string]string{
	"required": "%s is required",
	"email":    "Please, provide a valid email!",
}

var messagesWithParam = map[string]string{
	"oneof": "%s is either: %s",
	"gte":   "%s must be above %s",
	"lte":   "%s must be below %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
	"len":   "%s must have exactly %s items",
}

func translate(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if tmpl, ok := messages[tag]; ok {
		if strings.Contains(tmpl, "%s") {
			return fmt.Sprintf(tmpl, field)
		}
		return tmpl
	}
	if tmpl, ok := messagesWithParam[tag]; ok {
		if tag == "oneof" {
			param = strings.Join(strings.Fields(param), ", ")
		}
		return fmt.Sprintf(tmpl, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must have more or equal than %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must have less or equal than %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
