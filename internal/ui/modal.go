package ui

import "github.com/aanand-mishra/students-client/internal/types"

// Modal is the add/edit dialog.
type Modal struct {
	visible bool
	editing *types.Student
	form    *Form
}

// Open shows the modal. A nil student opens it for a new record.
func (m *Modal) Open(student *types.Student) {
	if student != nil {
		s := *student
		student = &s
	}

	m.visible = true
	m.editing = student
	m.form = NewForm(student)
}

// Close hides the modal and forgets the record being edited.
func (m *Modal) Close() {
	m.visible = false
	m.editing = nil
	m.form = nil
}

func (m *Modal) Visible() bool { return m.visible }

// Editing returns the record being edited, or nil when adding.
func (m *Modal) Editing() *types.Student { return m.editing }

// Form returns the open form, or nil when the modal is hidden.
func (m *Modal) Form() *Form { return m.form }

func (m *Modal) Title() string {
	if m.editing != nil {
		return "Edit Student"
	}
	return "Add New Student"
}

// SubmitLabel is the text of the submit button.
func (m *Modal) SubmitLabel(pending bool) string {
	switch {
	case m.editing != nil && pending:
		return "Updating..."
	case m.editing != nil:
		return "Update Student"
	case pending:
		return "Creating..."
	default:
		return "Create Student"
	}
}
