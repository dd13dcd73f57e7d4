package query

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Query describes a typed read: where it is cached and how it is fetched.
type Query[T any] struct {
	Key   Key
	Fetch func(ctx context.Context) (T, error)

	// Placeholder is reported as Result.Data until the first success.
	Placeholder T

	// Disabled queries are registered but never fetched.
	Disabled bool
}

// Result is what an observer sees.
type Result[T any] struct {
	Data       T
	Err        error
	Status     Status
	IsLoading  bool // no data yet and a fetch is in flight
	IsError    bool
	IsFetching bool
	IsStale    bool
	UpdatedAt  time.Time
}

// Observer is a registered interest in one key. Its listener is called after
// each change to the entry (a fetch completing, or a refetch starting after
// an invalidation) until Close.
type Observer[T any] struct {
	client   *Client
	query    Query[T]
	listener func(Result[T])

	id     uint64
	closed atomic.Bool

	// mu serialises listener calls for this observer.
	mu sync.Mutex
}

// Observe registers an observer for q and starts a fetch when the entry has
// no fresh data. listener may be nil; it is called on the goroutine that
// completed the change, never with the cache locked.
func Observe[T any](c *Client, q Query[T], listener func(Result[T])) *Observer[T] {
	o := &Observer[T]{
		client:   c,
		query:    q,
		listener: listener,
	}

	c.mu.Lock()
	e := c.entryLocked(q.Key)
	if !q.Disabled && q.Fetch != nil {
		e.fn = typed(q.Fetch)
	}
	o.id = c.observeLocked(e, o.deliver)
	if !q.Disabled && e.fn != nil && e.call == nil && !c.freshLocked(e) {
		c.startLocked(e)
	}
	c.mu.Unlock()

	return o
}

// Key returns the observed key.
func (o *Observer[T]) Key() Key {
	return o.query.Key
}

// Result returns the current view of the entry.
func (o *Observer[T]) Result() Result[T] {
	c := o.client

	c.mu.Lock()
	e, ok := c.entries[o.query.Key.String()]
	var s State
	if ok {
		s = c.stateLocked(e)
	}
	c.mu.Unlock()

	r := Result[T]{
		Data:       o.query.Placeholder,
		Err:        s.Err,
		Status:     s.Status,
		IsLoading:  !s.HasData && s.IsFetching,
		IsError:    s.Err != nil,
		IsFetching: s.IsFetching,
		IsStale:    s.IsStale,
		UpdatedAt:  s.UpdatedAt,
	}
	if s.HasData {
		if v, ok := s.Data.(T); ok {
			r.Data = v
		}
	}

	return r
}

// Refetch fetches the key again and waits for the result. A disabled query
// returns its placeholder without fetching.
func (o *Observer[T]) Refetch(ctx context.Context) (T, error) {
	if o.query.Disabled {
		return o.query.Placeholder, nil
	}

	v, err := o.client.Refetch(ctx, o.query.Key)
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// Close unregisters the observer. No listener call starts after Close
// returns. Close is idempotent.
func (o *Observer[T]) Close() {
	if o.closed.Swap(true) {
		return
	}
	o.client.unobserve(o.query.Key, o.id)
}

func (o *Observer[T]) deliver() {
	if o.listener == nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed.Load() {
		return
	}
	o.listener(o.Result())
}

// FetchAs is the typed form of Client.Fetch.
func FetchAs[T any](ctx context.Context, c *Client, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Fetch(ctx, key, typed(fn))
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

func typed[T any](fn func(ctx context.Context) (T, error)) FetchFunc {
	return func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}
