package ui

import (
	"github.com/aanand-mishra/students-client/internal/types"
	"github.com/aanand-mishra/students-client/internal/validation"
)

// DefaultAge pre-fills the age of a new student.
const DefaultAge = 18

// Form holds the values being edited and the errors of the last Submit.
type Form struct {
	Values types.StudentInput
	Errors map[string]string
}

// NewForm returns a form pre-filled from student, or with defaults when
// student is nil.
func NewForm(student *types.Student) *Form {
	if student != nil {
		return &Form{Values: student.Input()}
	}
	return &Form{Values: types.StudentInput{Age: DefaultAge}}
}

// Submit validates the values. On failure the per-field messages are kept
// in Errors and the *validation.Error is returned; nothing should be sent.
func (f *Form) Submit() (types.StudentInput, error) {
	if err := validation.Validate(f.Values); err != nil {
		f.Errors = validation.Fields(err)
		return types.StudentInput{}, err
	}

	f.Errors = nil
	return f.Values, nil
}

// Error returns the message for field ("name", "email", "course", "age").
func (f *Form) Error(field string) string {
	return f.Errors[field]
}
