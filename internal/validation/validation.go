// Package validation is the boundary every create or update passes through
// before a request is built. It runs the validate:"..." struct tags of
// types.StudentInput through go-playground/validator and turns each failure
// into a message fit for an inline form error.
//
// Nothing here performs I/O; Validate is a pure function of its input.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/aanand-mishra/students-client/internal/types"
	"github.com/go-playground/validator/v10"
)

// validate is safe for concurrent use and caches struct metadata, so one
// instance is shared by the whole process.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names ("name", "email") instead of Go field names so the
	// errors line up with the form fields and the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// FieldError is a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the ValidationError of the client: input rejected locally,
// before any transport call. It lists every failing field in struct order.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

// Validate checks a student input against the form rules.
// It returns nil for valid input and an *Error otherwise.
func Validate(in types.StudentInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation.Validate: %w", err)
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}

	return out
}

// Fields flattens a validation error into field → message, which is what a
// form needs to render inline feedback. Any other error yields nil.
func Fields(err error) map[string]string {
	var verr *Error
	if !errors.As(err, &verr) {
		return nil
	}

	m := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		m[f.Field] = f.Message
	}
	return m
}

func message(fe validator.FieldError) string {
	switch fe.Field() {
	case "name":
		return "Name must be at least 2 characters"
	case "email":
		return "Please enter a valid email"
	case "course":
		return "Course is required"
	case "age":
		if fe.Tag() == "lte" {
			return "Age must be less than 100"
		}
		return "Age must be at least 16"
	}

	// Catch-all for fields added to StudentInput later.
	return fmt.Sprintf("field %s is invalid", fe.Field())
}
