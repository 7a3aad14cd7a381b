package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "guardian/pkg/domain-errors"
)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	// attested is for legal attestations: the box must be ticked.
	_ = v.RegisterValidation("attested", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.Bool && fl.Field().Bool()
	})
	return v
}

// Validate checks req against its struct tags plus any extra violations the
// caller found by hand, and reports all of them in one validation error.
func Validate(req any, extra ...dErrors.FieldError) error {
	fields := append([]dErrors.FieldError(nil), extra...)
	if err := defaultValidator.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return dErrors.New(dErrors.CodeValidation, "invalid request body")
		}
		for _, fe := range validationErrs {
			fields = append(fields, dErrors.FieldError{
				Field:  fieldPath(fe),
				Reason: reason(fe),
			})
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return dErrors.NewValidation(fields...)
}

// fieldPath drops the root struct name from the namespace so nested fields
// read as "attestations.perjury_statement".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func reason(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required", "notblank":
		return "required"
	case "attested":
		return "must be attested"
	case "email":
		return "must be a valid email"
	case "iso3166_1_alpha2":
		return "must be an ISO 3166-1 alpha-2 country code"
	case "datetime":
		return fmt.Sprintf("must match %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return "invalid"
	}
}
