package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aanand-mishra/students-client/internal/query"
	"github.com/aanand-mishra/students-client/internal/studentsync"
	"github.com/aanand-mishra/students-client/internal/types"
)

// ErrModalClosed is returned by Submit when there is no open form.
var ErrModalClosed = errors.New("ui: modal is not open")

// App is the shell: it observes the full collection and owns the list, the
// modal and the create and update mutations.
type App struct {
	store  *studentsync.Store
	create *studentsync.Mutation[types.StudentInput, types.Student]
	update *studentsync.Mutation[studentsync.UpdateArgs, types.Student]
	list   *List
	obs    *query.Observer[[]types.Student]
	render func(*App)

	// ready is closed once obs is set; listener calls wait for it.
	ready chan struct{}

	mu    sync.Mutex
	modal Modal
}

// NewApp subscribes to the full collection. render, if not nil, is called
// with the app every time the collection changes or the modal closes after a
// successful submit; it runs on the goroutine that caused the change and
// never before NewApp has finished wiring the app.
func NewApp(store *studentsync.Store, confirm Confirmer, render func(*App)) *App {
	a := &App{
		store:  store,
		create: store.Create(),
		update: store.Update(),
		list:   NewList(store.Delete(), confirm),
		render: render,
		ready:  make(chan struct{}),
	}

	a.obs = store.Collection("", a.onResult)
	res := a.obs.Result()
	a.list.SetStudents(res.Data, res.IsLoading)
	close(a.ready)

	return a
}

// onResult runs on a fetch goroutine, never inside Collection, so waiting
// for ready cannot deadlock.
func (a *App) onResult(res query.Result[[]types.Student]) {
	<-a.ready
	a.list.SetStudents(res.Data, res.IsLoading)
	a.rerender()
}

func (a *App) rerender() {
	if a.render != nil {
		a.render(a)
	}
}

// Close stops observing the collection.
func (a *App) Close() {
	a.obs.Close()
}

func (a *App) List() *List { return a.list }

// Students returns the last synchronized collection.
func (a *App) Students() []types.Student {
	return a.obs.Result().Data
}

func (a *App) Result() query.Result[[]types.Student] {
	return a.obs.Result()
}

// Stats summarises the full collection, regardless of the search text.
func (a *App) Stats() Stats {
	return ComputeStats(a.Students())
}

// Refresh refetches the collection.
func (a *App) Refresh(ctx context.Context) error {
	_, err := a.obs.Refetch(ctx)
	return err
}

// Find returns the student with id from the synchronized collection.
func (a *App) Find(id string) (types.Student, bool) {
	for _, s := range a.Students() {
		if s.ID == id {
			return s, true
		}
	}
	return types.Student{}, false
}

// OpenAdd opens the modal for a new student.
func (a *App) OpenAdd() *Form {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.modal.Open(nil)
	return a.modal.Form()
}

// OpenEdit opens the modal pre-filled with student.
func (a *App) OpenEdit(student types.Student) *Form {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.modal.Open(&student)
	return a.modal.Form()
}

// CloseModal hides the modal without submitting.
func (a *App) CloseModal() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.modal.Close()
}

// ModalVisible reports whether the modal is open.
func (a *App) ModalVisible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.modal.Visible()
}

// Pending reports whether a create or update is in flight.
func (a *App) Pending() bool {
	return a.create.IsPending() || a.update.IsPending()
}

// Submit validates the open form and runs create or update depending on
// whether the modal is editing a record. Invalid input returns the
// *validation.Error without calling the transport. The modal closes only
// when the mutation succeeds.
func (a *App) Submit(ctx context.Context) (types.Student, error) {
	a.mu.Lock()
	if !a.modal.Visible() {
		a.mu.Unlock()
		return types.Student{}, ErrModalClosed
	}
	editing := a.modal.Editing()
	in, err := a.modal.Form().Submit()
	a.mu.Unlock()

	if err != nil {
		return types.Student{}, err
	}

	var saved types.Student
	if editing != nil {
		saved, err = a.update.Mutate(ctx, studentsync.UpdateArgs{ID: editing.ID, Student: in})
	} else {
		saved, err = a.create.Mutate(ctx, in)
	}
	if err != nil {
		return types.Student{}, err
	}

	a.CloseModal()
	a.rerender()

	return saved, nil
}

// Render writes the header, the stats, the list and, when open, the modal.
func (a *App) Render(w io.Writer) error {
	st := a.Stats()

	fmt.Fprintln(w, "Student Management System")
	fmt.Fprintf(w, "Total Students: %d   Courses: %d   Avg Age: %d   Active: %d\n\n",
		st.Total, st.Courses, st.AvgAge, st.Active)

	if err := a.list.Render(w); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.modal.Visible() {
		return nil
	}

	f := a.modal.Form()
	fmt.Fprintf(w, "\n[%s]\n", a.modal.Title())
	for _, field := range []struct{ label, key, value string }{
		{"Name", "name", f.Values.Name},
		{"Email", "email", f.Values.Email},
		{"Course", "course", f.Values.Course},
		{"Age", "age", fmt.Sprint(f.Values.Age)},
	} {
		fmt.Fprintf(w, "  %-7s %s", field.label+":", field.value)
		if msg := f.Error(field.key); msg != "" {
			fmt.Fprintf(w, "  (%s)", msg)
		}
		fmt.Fprintln(w)
	}
	_, err := fmt.Fprintf(w, "  <%s>\n", a.modal.SubmitLabel(a.Pending()))
	return err
}
