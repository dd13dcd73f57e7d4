package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"github.com/aanand-mishra/students-client/internal/studentsync"
	"github.com/aanand-mishra/students-client/internal/types"
)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// List shows the students handed to it, filtered by its own search text.
type List struct {
	del     *studentsync.Mutation[string, struct{}]
	confirm Confirmer

	mu       sync.Mutex
	search   string
	students []types.Student
	loading  bool
}

// NewList creates a list whose Delete runs del after confirm agrees.
func NewList(del *studentsync.Mutation[string, struct{}], confirm Confirmer) *List {
	return &List{
		del:      del,
		confirm:  confirm,
		students: []types.Student{},
	}
}

// SetStudents replaces the data shown.
func (l *List) SetStudents(students []types.Student, loading bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.students = students
	l.loading = loading
}

// SetSearch sets the filter text.
func (l *List) SetSearch(term string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.search = term
}

// Search returns the filter text.
func (l *List) Search() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.search
}

// Visible returns the students that pass the filter.
func (l *List) Visible() []types.Student {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Filter(l.students, l.search)
}

// DeletePending reports whether a delete is in flight.
func (l *List) DeletePending() bool {
	return l.del.IsPending()
}

// Delete asks for confirmation and then deletes the student. It reports
// whether the delete was attempted.
func (l *List) Delete(ctx context.Context, id, name string) (bool, error) {
	if !l.confirm.Confirm(fmt.Sprintf("Are you sure you want to delete %s?", name)) {
		return false, nil
	}

	_, err := l.del.Mutate(ctx, id)
	return true, err
}

// Render writes the list as a table.
func (l *List) Render(w io.Writer) error {
	l.mu.Lock()
	loading, search := l.loading, l.search
	visible := Filter(l.students, search)
	l.mu.Unlock()

	if loading {
		_, err := fmt.Fprintln(w, "Loading...")
		return err
	}

	if search != "" {
		fmt.Fprintf(w, "Search: %s\n", search)
	}

	if len(visible) == 0 {
		hint := "No students have been added yet."
		if search != "" {
			hint = "Try adjusting your search terms."
		}
		_, err := fmt.Fprintf(w, "No students found\n%s\n", hint)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tEMAIL\tCOURSE\tAGE\tID")
	for _, s := range visible {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.Name, s.Email, s.Course, s.Age, s.ID)
	}
	return tw.Flush()
}
