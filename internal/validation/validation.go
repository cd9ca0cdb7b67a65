// Package validation provides input validation utilities
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"quill/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their JSON names so messages match the request body.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates v against its `validate` tags. Failures are returned as a
// models.AppError with one FieldError per offending field.
func Struct(v any) error {
	return toAppError(instance().Struct(v))
}

// StructPartial validates only the named Go fields of v, e.g. "Title".
func StructPartial(v any, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return toAppError(instance().StructPartial(v, fields...))
}

func toAppError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.NewValidationError(err.Error())
	}

	fields := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, models.FieldError{
			Field:   fe.Field(),
			Message: messageFor(fe.Field(), fe.Tag(), fe.Param()),
		})
	}
	return models.NewValidationError(fields[0].Message, fields...)
}

// Var validates a single value against a tag expression such as "required,mongodb".
func Var(field string, value any, tag string) error {
	err := instance().Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		msg := messageFor(field, verrs[0].Tag(), verrs[0].Param())
		return models.NewValidationError(msg, models.FieldError{Field: field, Message: msg})
	}
	return models.NewValidationError(err.Error())
}

func messageFor(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "please enter a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "eqfield":
		return "Passwords do not match"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "mongodb":
		return fmt.Sprintf("%s must be a valid ID", field)
	case "dive":
		return fmt.Sprintf("%s contains an invalid item", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
