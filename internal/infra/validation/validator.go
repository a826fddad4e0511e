package validation

import (
	"context"
	"errors"
	"reflect"

	"github.com/go-playground/validator/v10"

	"rentme-reservations/internal/app/middleware"
)

// StructValidator checks `validate` struct tags on commands and queries.
type StructValidator struct {
	validate *validator.Validate
}

func New() *StructValidator {
	return &StructValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Engine exposes the underlying validator so transport binding shares its rules.
func (v *StructValidator) Engine() *validator.Validate {
	return v.validate
}

func (v *StructValidator) Validate(ctx context.Context, message any) error {
	if !isStruct(message) {
		return nil
	}
	err := v.validate.StructCtx(ctx, message)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &middleware.ValidationError{Message: err.Error()}
	}
	out := &middleware.ValidationError{Message: "invalid request", Fields: make([]middleware.FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, middleware.FieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

func isStruct(message any) bool {
	if message == nil {
		return false
	}
	t := reflect.TypeOf(message)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

var _ middleware.Validator = (*StructValidator)(nil)
