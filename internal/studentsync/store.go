// Package studentsync mediates every read and write between the
// presentation layer and the transport client.
//
// Reads go through the query cache under two key families:
//
//	["students", search]  the collection, one entry per search string
//	["student", id]       a single record
//
// Writes are Mutations. A mutation that succeeds invalidates the whole
// "students" family, so every observed collection refetches, and then
// emits a fixed success notification. A mutation that fails leaves the
// cache alone and emits a fixed error notification. There is no
// optimistic local write: the UI only ever shows server-confirmed state.
package studentsync

import (
	"context"
	"log/slog"

	"github.com/aanand-mishra/students-client/internal/metrics"
	"github.com/aanand-mishra/students-client/internal/query"
	"github.com/aanand-mishra/students-client/internal/types"
)

// Key families.
const (
	CollectionFamily = "students"
	RecordFamily     = "student"
)

// Transport is the subset of the API client the store needs.
// *api.Client satisfies it.
type Transport interface {
	ListAll(ctx context.Context) ([]types.Student, error)
	Search(ctx context.Context, query string) ([]types.Student, error)
	GetByID(ctx context.Context, id string) (types.Student, error)
	Create(ctx context.Context, in types.StudentInput) (types.Student, error)
	Update(ctx context.Context, id string, in types.StudentInput) (types.Student, error)
	Delete(ctx context.Context, id string) error
}

// Notifier receives the user-facing outcome of each mutation.
type Notifier interface {
	NotifySuccess(msg string)
	NotifyError(msg string)
}

// Store is the synchronization layer.
type Store struct {
	transport Transport
	cache     *query.Client
	notifier  Notifier
	logger    *slog.Logger
	recorder  metrics.Recorder
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for failure details.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithRecorder reports mutation outcomes.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// New creates a Store.
func New(transport Transport, cache *query.Client, notifier Notifier, opts ...Option) *Store {
	s := &Store{
		transport: transport,
		cache:     cache,
		notifier:  notifier,
		logger:    slog.Default(),
		recorder:  metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Cache exposes the underlying query cache.
func (s *Store) Cache() *query.Client {
	return s.cache
}

// CollectionKey is the cache key for a collection read.
func CollectionKey(search string) query.Key {
	return query.Key{CollectionFamily, search}
}

// RecordKey is the cache key for a single record.
func RecordKey(id string) query.Key {
	return query.Key{RecordFamily, id}
}

func (s *Store) collectionQuery(search string) query.Query[[]types.Student] {
	return query.Query[[]types.Student]{
		Key: CollectionKey(search),
		Fetch: func(ctx context.Context) ([]types.Student, error) {
			var (
				students []types.Student
				err      error
			)
			if search != "" {
				students, err = s.transport.Search(ctx, search)
			} else {
				students, err = s.transport.ListAll(ctx)
			}
			if err != nil {
				return nil, err
			}
			return s.withIDs(students), nil
		},
		Placeholder: []types.Student{},
	}
}

// withIDs drops records the server returned without an id. Such a record
// is pending creation and never enters a synchronized collection.
func (s *Store) withIDs(students []types.Student) []types.Student {
	out := make([]types.Student, 0, len(students))
	for _, st := range students {
		if st.ID == "" {
			s.logger.Warn("dropping student without id", slog.String("name", st.Name))
			continue
		}
		out = append(out, st)
	}
	return out
}

func (s *Store) recordQuery(id string) query.Query[types.Student] {
	return query.Query[types.Student]{
		Key: RecordKey(id),
		Fetch: func(ctx context.Context) (types.Student, error) {
			return s.transport.GetByID(ctx, id)
		},
		Disabled: id == "",
	}
}

// Collection subscribes to the collection for search. An empty search
// lists every record; anything else goes to the search endpoint. Data is an
// empty slice until the first successful fetch. The caller must Close the
// observer when it no longer needs updates.
func (s *Store) Collection(search string, listener func(query.Result[[]types.Student])) *query.Observer[[]types.Student] {
	return query.Observe(s.cache, s.collectionQuery(search), listener)
}

// FetchCollection reads the collection for search through the cache.
func (s *Store) FetchCollection(ctx context.Context, search string) ([]types.Student, error) {
	q := s.collectionQuery(search)
	students, err := query.FetchAs(ctx, s.cache, q.Key, q.Fetch)
	if err != nil {
		return nil, err
	}
	if students == nil {
		return []types.Student{}, nil
	}
	return students, nil
}

// Student subscribes to a single record. An empty id registers a disabled
// observer that never fetches.
func (s *Store) Student(id string, listener func(query.Result[types.Student])) *query.Observer[types.Student] {
	return query.Observe(s.cache, s.recordQuery(id), listener)
}

// FetchStudent reads a single record through the cache.
func (s *Store) FetchStudent(ctx context.Context, id string) (types.Student, error) {
	q := s.recordQuery(id)
	return query.FetchAs(ctx, s.cache, q.Key, q.Fetch)
}
