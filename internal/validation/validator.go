// Package validation checks request bodies and user input.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ngoconnect/apiserver/types"
)

// Validator wraps go-playground/validator with the tags this API needs.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
	v.validate.RegisterTagNameFunc(jsonName)
	v.register()
	return v
}

func (v *Validator) register() {
	_ = v.validate.RegisterValidation("isemail", isEmail)
	_ = v.validate.RegisterValidation("experience", func(fl validator.FieldLevel) bool {
		return types.Experience(fl.Field().String()).Valid()
	})
	_ = v.validate.RegisterValidation("availability", func(fl validator.FieldLevel) bool {
		return types.Availability(fl.Field().String()).Valid()
	})
	_ = v.validate.RegisterValidation("orgsize", func(fl validator.FieldLevel) bool {
		return types.OrgSize(fl.Field().String()).Valid()
	})
	_ = v.validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return types.Role(fl.Field().String()).Valid()
	})
}

func isEmail(fl validator.FieldLevel) bool {
	return ValidateEmail(types.NormalizeEmail(fl.Field().String())) == nil
}

func jsonName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

// Struct validates s and returns a single readable error describing the
// first failing field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	return errors.New(describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "isemail", "email":
		return "Please provide a valid email"
	case "experience":
		return fmt.Sprintf("%s must be one of %s", field, join(types.Experiences))
	case "availability":
		return fmt.Sprintf("%s must be one of %s", field, join(types.Availabilities))
	case "orgsize":
		return fmt.Sprintf("%s must be one of %s", field, join(types.OrgSizes))
	case "role":
		return "userType must be volunteer or ngo"
	case "min", "max", "len":
		return fmt.Sprintf("%s has an invalid length", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func join[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
