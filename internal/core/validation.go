package core

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	PriceMax        = 1_000_000
	CourierPriceMax = 10_000
	QuantityMax     = 100_000
	MaxOrderItems   = 50
)

// DefaultPhonePattern accepts an optional leading plus and 9 to 15 digits,
// matched after spaces, dashes and parentheses are stripped.
var DefaultPhonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// validateStruct runs tag validation and reports the first failure.
func validateStruct(prefix string, s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return newValidationError(prefix, "is invalid")
	}
	fe := errs[0]
	field := fe.Field()
	if prefix != "" {
		field = prefix + "." + field
	}
	return &ValidationError{Field: field, Message: validationMessage(fe)}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "http_url":
		return "must be an absolute http(s) URL"
	}
	return "is invalid"
}

// validateMoney rejects negative amounts, amounts above max and amounts with
// more than two decimal places.
func validateMoney(field string, v decimal.Decimal, max int64) error {
	if v.IsNegative() {
		return newValidationError(field, "must not be negative")
	}
	if v.GreaterThan(decimal.NewFromInt(max)) {
		return newValidationError(field, "must be at most %d", max)
	}
	if !v.Equal(v.Round(2)) {
		return newValidationError(field, "must have at most 2 decimal places")
	}
	return nil
}

func validateProductInput(in ProductInput) error {
	if err := validateStruct("", in); err != nil {
		return err
	}
	if !in.Price.Valid {
		return newValidationError("price", "is required")
	}
	if err := validateMoney("price", in.Price.Decimal, PriceMax); err != nil {
		return err
	}
	if in.CostPrice.Valid {
		if err := validateMoney("cost_price", in.CostPrice.Decimal, PriceMax); err != nil {
			return err
		}
		if !in.CostPrice.Decimal.LessThan(in.Price.Decimal) {
			return newValidationError("cost_price", "must be less than price")
		}
	}
	return nil
}

func validateCustomer(c CustomerFields, phone *regexp.Regexp) error {
	if err := validateStruct("", c); err != nil {
		return err
	}
	if phone == nil {
		phone = DefaultPhonePattern
	}
	if !phone.MatchString(c.Phone) {
		return newValidationError("phone", "is not a valid phone number")
	}
	return nil
}

// validateItems checks the item list of a new order: 1..MaxOrderItems lines,
// each product at most once, each line within bounds.
func validateItems(items []OrderItemInput) error {
	if len(items) == 0 {
		return newValidationError("items", "must contain at least one item")
	}
	if len(items) > MaxOrderItems {
		return newValidationError("items", "must contain at most %d items", MaxOrderItems)
	}
	seen := make(map[int]struct{}, len(items))
	for i, it := range items {
		prefix := fmt.Sprintf("items[%d]", i)
		if err := validateStruct(prefix, it); err != nil {
			return err
		}
		if _, dup := seen[it.ProductID]; dup {
			return newValidationError(prefix+".product_id", "duplicates product %d", it.ProductID)
		}
		seen[it.ProductID] = struct{}{}
		if err := validateMoney(prefix+".unit_price", it.UnitPrice, PriceMax); err != nil {
			return err
		}
		if err := validateMoney(prefix+".courier_price", it.CourierPrice, CourierPriceMax); err != nil {
			return err
		}
	}
	return nil
}
