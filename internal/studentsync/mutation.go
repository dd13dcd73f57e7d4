package studentsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aanand-mishra/students-client/internal/api"
	"github.com/aanand-mishra/students-client/internal/query"
	"github.com/aanand-mishra/students-client/internal/types"
)

// Notification texts.
const (
	MsgCreated      = "Student created successfully!"
	MsgUpdated      = "Student updated successfully!"
	MsgDeleted      = "Student deleted successfully!"
	MsgCreateFailed = "Failed to create student"
	MsgUpdateFailed = "Failed to update student"
	MsgDeleteFailed = "Failed to delete student"
)

// UpdateArgs is the input of the update mutation.
type UpdateArgs struct {
	ID      string
	Student types.StudentInput
}

// MutationState is a snapshot of a mutation.
type MutationState[Out any] struct {
	IsPending bool
	Data      Out
	Err       error
}

// Mutation runs one kind of write. Calls are not queued: concurrent
// Mutate calls race and IsPending stays true until all of them return.
type Mutation[In, Out any] struct {
	op       string
	run      func(ctx context.Context, in In) (Out, error)
	success  func(in In, out Out)
	okMsg    string
	errMsg   string
	store    *Store
	inflight atomic.Int32

	mu   sync.Mutex
	data Out
	err  error
}

// Mutate performs the write. On success it invalidates the collection
// family and notifies; on failure it notifies and returns the error
// unchanged. Refetches triggered by the invalidation run in the background
// and may complete after Mutate returns.
func (m *Mutation[In, Out]) Mutate(ctx context.Context, in In) (Out, error) {
	m.inflight.Add(1)
	defer m.inflight.Add(-1)

	out, err := m.run(ctx, in)

	m.mu.Lock()
	m.data, m.err = out, err
	m.mu.Unlock()

	m.store.recorder.RecordMutation(m.op, err)

	if err != nil {
		m.store.logFailure(m.op, err)
		m.store.notifier.NotifyError(m.errMsg)
		return out, err
	}

	m.store.cache.Invalidate(query.Key{CollectionFamily})
	if m.success != nil {
		m.success(in, out)
	}
	m.store.notifier.NotifySuccess(m.okMsg)

	return out, nil
}

// IsPending reports whether a call is in flight.
func (m *Mutation[In, Out]) IsPending() bool {
	return m.inflight.Load() > 0
}

// State returns the pending flag and the outcome of the last call to finish.
func (m *Mutation[In, Out]) State() MutationState[Out] {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MutationState[Out]{
		IsPending: m.IsPending(),
		Data:      m.data,
		Err:       m.err,
	}
}

// Reset clears the last outcome.
func (m *Mutation[In, Out]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero Out
	m.data, m.err = zero, nil
}

// Create returns the create mutation.
func (s *Store) Create() *Mutation[types.StudentInput, types.Student] {
	return &Mutation[types.StudentInput, types.Student]{
		op:     "create",
		run:    s.transport.Create,
		okMsg:  MsgCreated,
		errMsg: MsgCreateFailed,
		store:  s,
	}
}

// Update returns the update mutation. Besides the collection family it
// invalidates the updated record.
func (s *Store) Update() *Mutation[UpdateArgs, types.Student] {
	return &Mutation[UpdateArgs, types.Student]{
		op: "update",
		run: func(ctx context.Context, args UpdateArgs) (types.Student, error) {
			return s.transport.Update(ctx, args.ID, args.Student)
		},
		success: func(args UpdateArgs, _ types.Student) {
			s.cache.Invalidate(RecordKey(args.ID))
		},
		okMsg:  MsgUpdated,
		errMsg: MsgUpdateFailed,
		store:  s,
	}
}

// Delete returns the delete mutation. Besides the collection family it
// drops the cached record.
func (s *Store) Delete() *Mutation[string, struct{}] {
	return &Mutation[string, struct{}]{
		op: "delete",
		run: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, s.transport.Delete(ctx, id)
		},
		success: func(id string, _ struct{}) {
			s.cache.Remove(RecordKey(id))
		},
		okMsg:  MsgDeleted,
		errMsg: MsgDeleteFailed,
		store:  s,
	}
}

// logFailure records the detail the notification leaves out.
func (s *Store) logFailure(op string, err error) {
	attrs := []any{
		slog.String("op", op),
		slog.String("error", err.Error()),
	}

	var terr *api.TransportError
	var nerr *api.NetworkError
	switch {
	case errors.As(err, &terr):
		attrs = append(attrs, slog.String("kind", "transport"), slog.Int("status", terr.StatusCode))
	case errors.As(err, &nerr):
		attrs = append(attrs, slog.String("kind", "network"))
	}

	s.logger.Error("mutation failed", attrs...)
}
