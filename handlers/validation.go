package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// maxAmount is the exclusive bound of a NUMERIC(10,2) column.
var maxAmount = decimal.New(1, 8)

// bcryptMaxBytes is the longest input bcrypt accepts, counted in bytes.
const bcryptMaxBytes = 72

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("money", validateMoney)
	_ = v.RegisterValidation("bcryptmax", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= bcryptMaxBytes
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validateMoney accepts at most two fraction digits and |amount| < 10^8.
func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.Equal(d.Truncate(2)) && d.Abs().LessThan(maxAmount)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s: field required", fe.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s: value is not a valid email address", fe.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s: must be at least %s characters", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s: must be at most %s characters", fe.Field(), fe.Param()))
		case "bcryptmax":
			msgs = append(msgs, fmt.Sprintf("%s: must be at most %d bytes", fe.Field(), bcryptMaxBytes))
		case "notblank":
			msgs = append(msgs, fmt.Sprintf("%s: must not be blank", fe.Field()))
		case "money":
			msgs = append(msgs, fmt.Sprintf("%s: must be a decimal with at most 2 places and below 100000000", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
