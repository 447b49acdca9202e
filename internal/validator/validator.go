package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"ledger/internal/money"
	"ledger/internal/period"

	"github.com/go-playground/validator/v10"
)

const DateLayout = "2006-01-02"

var (
	ErrValidationFailed       = errors.New("validation failed")
	ErrFieldRequired          = errors.New("field is required")
	ErrFieldPeriod            = errors.New("field must be a YYYY-MM period")
	ErrFieldDate              = errors.New("field must be a YYYY-MM-DD date")
	ErrFieldPositiveAmount    = errors.New("field must be a positive amount")
	ErrFieldNonNegativeAmount = errors.New("field must be a non-negative amount")
	ErrFieldOneOf             = errors.New("field must be one of allowed values")
	ErrFieldUnique            = errors.New("field must not repeat values")
	ErrFieldMinItems          = errors.New("field needs more items")
)

var (
	validate    *validator.Validate
	once        sync.Once
	errValidate error
)

func initValidator() (*validator.Validate, error) {
	vld := validator.New(validator.WithRequiredStructEnabled())
	vld.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	custom := map[string]validator.Func{
		"period": func(fl validator.FieldLevel) bool {
			return period.Valid(fl.Field().String())
		},
		"date": func(fl validator.FieldLevel) bool {
			_, err := time.Parse(DateLayout, fl.Field().String())
			return err == nil
		},
		"positive_amount": func(fl validator.FieldLevel) bool {
			value, err := money.ParseMinor(fl.Field().String())
			return err == nil && value > 0
		},
		"nonnegative_amount": func(fl validator.FieldLevel) bool {
			value, err := money.ParseMinor(fl.Field().String())
			return err == nil && value >= 0
		},
	}
	for tag, fn := range custom {
		if err := vld.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return vld, nil
}

// Struct validates payload against its `validate` tags and reports the first
// failing field by its JSON name.
func Struct(payload any) error {
	once.Do(func() {
		validate, errValidate = initValidator()
	})
	if errValidate != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, errValidate)
	}
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		return formatFieldError(fieldErrors[0])
	}
	return fmt.Errorf("%w: %w", ErrValidationFailed, err)
}

var tagErrors = map[string]error{
	"required":           ErrFieldRequired,
	"period":             ErrFieldPeriod,
	"date":               ErrFieldDate,
	"positive_amount":    ErrFieldPositiveAmount,
	"nonnegative_amount": ErrFieldNonNegativeAmount,
	"oneof":              ErrFieldOneOf,
	"unique":             ErrFieldUnique,
	"min":                ErrFieldMinItems,
}

func formatFieldError(fe validator.FieldError) error {
	if base, ok := tagErrors[fe.Tag()]; ok {
		return fmt.Errorf("%w: '%s'", base, fe.Field())
	}
	return fmt.Errorf("%w: '%s' failed '%s' check", ErrValidationFailed, fe.Field(), fe.Tag())
}

// ParseDate reads a YYYY-MM-DD date as UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: '%s'", ErrFieldDate, raw)
	}
	return parsed, nil
}
