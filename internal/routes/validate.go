package routes

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

var validate = validator.New()

// FieldError describes one invalid route query parameter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateRouteParams checks a route query and returns one message per
// invalid field. An empty slice means the query is valid.
func ValidateRouteParams(q types.RouteQuery) []FieldError {
	err := validate.Struct(q)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	ok := false
	if errs, ok = err.(validator.ValidationErrors); !ok {
		return []FieldError{{Field: "", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
