package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"deenice_finds/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so field paths read like the request body
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var fieldMessages = map[string]string{
	"customer.name": "Customer name is required",
	"customer.city": "Customer city is required",
	"items":         "At least one item is required",
}

// validateCreateOrder trims the customer fields in place and collects every failure.
func validateCreateOrder(req *domain.CreateOrderRequest) error {
	req.Customer.Name = strings.TrimSpace(req.Customer.Name)
	req.Customer.City = strings.TrimSpace(req.Customer.City)
	for i := range req.Items {
		req.Items[i].Title = strings.TrimSpace(req.Items[i].Title)
	}

	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate order: %w", err)
	}

	out := &domain.ValidationError{}
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		out.Add(field, fieldMessage(field, fe))
	}
	return out
}

func fieldMessage(field string, fe validator.FieldError) string {
	if msg, ok := fieldMessages[field]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
