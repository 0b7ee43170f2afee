package crm

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if amount, ok := field.Interface().(decimal.Decimal); ok {
			value, _ := amount.Float64()
			return value
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Validate checks input against its validate tags and reports every failing
// field in a ValidationError.
func Validate(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		details := make(map[string]string, len(fieldErrors))
		for _, fieldErr := range fieldErrors {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return &ValidationError{Fields: details}
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return "must not be empty"
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return "is invalid"
}
