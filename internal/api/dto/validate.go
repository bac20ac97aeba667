package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/task-service/pkg/util"
)

// Validator checks request payloads and reports failures per JSON field.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a validator. titleMax bounds task titles in characters.
func NewValidator(titleMax int) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("task_title", func(fl validator.FieldLevel) bool {
		return titleMax <= 0 || utf8.RuneCountInString(fl.Field().String()) <= titleMax
	})
	return &Validator{validate: v}
}

// Struct validates payload and converts failures into a 422 validation error.
func (v *Validator) Struct(payload any) error {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewInternalError(err)
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = describe(fe)
	}
	return apperrors.NewValidationError("request validation failed", details)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "email":
		return "value is not a valid email address"
	case "oneof":
		return fmt.Sprintf("value must be one of: %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("value must be a date formatted as %s", fe.Param())
	case "task_title":
		return "title is too long"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
