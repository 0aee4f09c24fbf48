// Package validation normalizes and validates integration definitions before
// they enter the registry.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/domain/shared"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// DefinitionValidator checks integration definitions with struct tags plus the
// graph and configuration schema rules struct tags cannot express.
// It is safe for concurrent use.
type DefinitionValidator struct {
	validate *validator.Validate
}

// NewDefinitionValidator creates a validator with the integration tags registered
func NewDefinitionValidator() *DefinitionValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return integration.Category(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("field_type", func(fl validator.FieldLevel) bool {
		return integration.FieldType(fl.Field().String()).IsValid()
	})
	return &DefinitionValidator{validate: v}
}

// Validate normalizes in place and then validates the definition.
// Structural problems wrap shared.ErrInvalidInput; configuration schema and
// value problems wrap integration.ErrInvalidSchema.
func (v *DefinitionValidator) Validate(in *integration.Integration) error {
	if in == nil {
		return fmt.Errorf("%w: integration is nil", shared.ErrInvalidInput)
	}
	Normalize(in)

	if err := v.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %s", shared.ErrInvalidInput, describe(err))
	}
	if err := v.validate.Var(in.ID, "slug"); err != nil {
		return fmt.Errorf("%w: id %q must be a lowercase slug", shared.ErrInvalidInput, in.ID)
	}
	if err := v.validate.Var(string(in.Category), "category"); err != nil {
		return fmt.Errorf("%w: unknown category %q", shared.ErrInvalidInput, in.Category)
	}
	if in.Status != "" && !in.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, in.Status)
	}
	for _, size := range in.SupportedBusinessSizes {
		if !size.IsValid() {
			return fmt.Errorf("%w: unknown business size %q", shared.ErrInvalidInput, size)
		}
	}
	if err := validateEdges(in); err != nil {
		return err
	}
	if err := v.validateSchema(in.ConfigSchema); err != nil {
		return err
	}
	return v.validateConfig(in)
}

func validateEdges(in *integration.Integration) error {
	// Normalize has already merged repeated edges
	deps := make(map[string]struct{}, len(in.Dependencies))
	for _, dep := range in.Dependencies {
		if dep.IntegrationID == in.ID {
			return fmt.Errorf("%w: SELF_DEPENDENCY: %s depends on itself", shared.ErrInvalidInput, in.ID)
		}
		deps[dep.IntegrationID] = struct{}{}
	}
	for _, id := range in.Conflicts {
		if id == in.ID {
			return fmt.Errorf("%w: %s conflicts with itself", shared.ErrInvalidInput, in.ID)
		}
		if _, ok := deps[id]; ok {
			return fmt.Errorf("%w: %s both depends on and conflicts with %s", shared.ErrInvalidInput, in.ID, id)
		}
	}
	if slices.Contains(in.Enhances, in.ID) {
		return fmt.Errorf("%w: %s enhances itself", shared.ErrInvalidInput, in.ID)
	}
	return nil
}

func (v *DefinitionValidator) validateSchema(schema []integration.ConfigField) error {
	keys := make(map[string]struct{}, len(schema))
	for _, field := range schema {
		if err := v.validate.Var(string(field.Type), "field_type"); err != nil {
			return fmt.Errorf("%w: field %s has unknown type %q", integration.ErrInvalidSchema, field.Key, field.Type)
		}
		if _, dup := keys[field.Key]; dup {
			return fmt.Errorf("%w: duplicate field %s", integration.ErrInvalidSchema, field.Key)
		}
		keys[field.Key] = struct{}{}

		if field.Type == integration.FieldTypeSelect && len(field.Options) == 0 {
			return fmt.Errorf("%w: select field %s has no options", integration.ErrInvalidSchema, field.Key)
		}
		if field.Type != integration.FieldTypeSelect && len(field.Options) > 0 {
			return fmt.Errorf("%w: field %s declares options but is %s", integration.ErrInvalidSchema, field.Key, field.Type)
		}
		if field.Default != nil {
			if err := v.checkValue(field, field.Default); err != nil {
				return fmt.Errorf("%w: default of %s: %s", integration.ErrInvalidSchema, field.Key, err)
			}
		}
	}
	return nil
}

func (v *DefinitionValidator) validateConfig(in *integration.Integration) error {
	fields := make(map[string]integration.ConfigField, len(in.ConfigSchema))
	for _, field := range in.ConfigSchema {
		fields[field.Key] = field
	}

	for key, value := range in.Config {
		field, ok := fields[key]
		if !ok {
			return fmt.Errorf("%w: unknown config key %s", integration.ErrInvalidSchema, key)
		}
		if err := v.checkValue(field, value); err != nil {
			return fmt.Errorf("%w: config %s: %s", integration.ErrInvalidSchema, key, err)
		}
	}
	for _, field := range in.ConfigSchema {
		if !field.Required {
			continue
		}
		if _, ok := in.Config[field.Key]; !ok {
			return fmt.Errorf("%w: missing required config %s", integration.ErrInvalidSchema, field.Key)
		}
	}
	return nil
}

var errWrongType = errors.New("wrong value type")

func (v *DefinitionValidator) checkValue(field integration.ConfigField, value any) error {
	switch field.Type {
	case integration.FieldTypeString, integration.FieldTypeSecret:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: want string, got %T", errWrongType, value)
		}
	case integration.FieldTypeURL:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: want url string, got %T", errWrongType, value)
		}
		if err := v.validate.Var(s, "url"); err != nil {
			return fmt.Errorf("invalid url %q", s)
		}
	case integration.FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: want boolean, got %T", errWrongType, value)
		}
	case integration.FieldTypeNumber:
		if !isNumber(value) {
			return fmt.Errorf("%w: want number, got %T", errWrongType, value)
		}
	case integration.FieldTypeSelect:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: want string, got %T", errWrongType, value)
		}
		if !slices.Contains(field.Options, s) {
			return fmt.Errorf("%q is not one of %s", s, strings.Join(field.Options, ", "))
		}
	}
	return nil
}

func isNumber(value any) bool {
	switch reflect.ValueOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// describe flattens validator errors into "field: rule" pairs
func describe(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	parts := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		parts = append(parts, fmt.Sprintf("%s: %s", fieldPath(e), message(e)))
	}
	return strings.Join(parts, "; ")
}

func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "url":
		return "invalid URL format"
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	default:
		return "invalid value"
	}
}
