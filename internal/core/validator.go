package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/pkg/utils"
)

// Validator checks pipeline payloads against their struct tags. Field paths
// in errors use JSON names, e.g. "owner.type".
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v := &Validator{validate: validate}
	v.registerCustomValidators()
	return v
}

// ValidateCreate checks a create or create-or-update request.
func (v *Validator) ValidateCreate(req *models.CreatePipeline) error {
	if req == nil {
		return utils.NewAppError(utils.CodeInvalidInput, "request body is required", utils.ErrInvalidInput)
	}
	return v.check(req)
}

// ValidatePipeline checks a full pipeline, typically the result of a patch.
func (v *Validator) ValidatePipeline(p *models.Pipeline) error {
	return v.check(p)
}

func (v *Validator) check(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return utils.NewAppError(utils.CodeInvalidInput, "invalid request", err)
	}

	messages := make([]string, 0, len(verrs))
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe)
		fields = append(fields, field)
		messages = append(messages, describe(field, fe))
	}
	return utils.NewAppError(utils.CodeInvalidInput, strings.Join(messages, "; "), utils.ErrInvalidInput).
		WithDetail("fields", fields)
}

func (v *Validator) registerCustomValidators() {
	_ = v.validate.RegisterValidation("notblank", validators.NotBlank)
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "notblank":
		return field + " must not be blank"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "url":
		return field + " must be a valid URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "unique":
		return fmt.Sprintf("%s must not repeat %s", field, strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
