/*
Package query implements the client-side cache behind the synchronization
layer: entries keyed by Key, observers with an explicit subscribe/close
lifecycle, de-duplication of identical in-flight fetches, and invalidation by
key prefix.

The cache table is only written in two places: when a fetch completes (its
result is stored under its key) and when a key is invalidated (the entry is
marked stale and, if observed, refetched).
*/
package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aanand-mishra/students-client/internal/metrics"
)

// DefaultGCTime is how long an entry nobody observes survives.
const DefaultGCTime = 5 * time.Minute

// FetchFunc loads the data for one key.
type FetchFunc func(ctx context.Context) (any, error)

// Status is the coarse state of an entry.
type Status int

const (
	// StatusPending means no fetch has succeeded or failed yet.
	StatusPending Status = iota
	// StatusSuccess means the last fetch succeeded.
	StatusSuccess
	// StatusError means the last fetch failed. Earlier data, if any, is kept.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "pending"
	}
}

// State is a point-in-time snapshot of an entry.
type State struct {
	Data       any
	HasData    bool
	Err        error
	Status     Status
	IsFetching bool
	IsStale    bool
	UpdatedAt  time.Time
}

type call struct {
	done chan struct{}
	val  any
	err  error
	gen  uint64
}

type entry struct {
	key       Key
	fn        FetchFunc
	data      any
	hasData   bool
	err       error
	updatedAt time.Time
	stale     bool

	// gen is bumped by every invalidation. A fetch that started under an
	// older gen leaves the entry stale when it completes.
	gen  uint64
	call *call

	observers map[uint64]func()
	gcTimer   *time.Timer
}

// Client is the cache. The zero value is not usable; call NewClient.
type Client struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextID  uint64

	staleTime time.Duration
	gcTime    time.Duration
	logger    *slog.Logger
	recorder  metrics.Recorder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRecorder reports fetches, de-dup hits, invalidations and evictions.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithStaleTime sets how long a successful result counts as fresh.
// Zero (the default) keeps results fresh until they are invalidated.
func WithStaleTime(d time.Duration) Option {
	return func(c *Client) {
		c.staleTime = d
	}
}

// WithGCTime sets how long an unobserved entry is kept.
// A non-positive value keeps entries forever.
func WithGCTime(d time.Duration) Option {
	return func(c *Client) {
		c.gcTime = d
	}
}

// NewClient creates an empty cache.
func NewClient(opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		entries:  make(map[string]*entry),
		gcTime:   DefaultGCTime,
		logger:   slog.Default(),
		recorder: metrics.Nop{},
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Close cancels background refetches, waits for them to return and stops
// all GC timers. Observers stay registered but receive no further results.
func (c *Client) Close() {
	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.gcTimer != nil {
			e.gcTimer.Stop()
		}
	}
}

// Fetch returns the data for key. Fresh cached data is returned without
// calling fn. Otherwise the caller joins the fetch already in flight for key,
// or starts one. Fetches run under the client's own context and are shared
// by every waiter, so ctx only bounds how long this caller waits.
func (c *Client) Fetch(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	if fn != nil {
		e.fn = fn
	}
	if e.fn == nil {
		c.scheduleGCLocked(e)
		c.mu.Unlock()
		return nil, fmt.Errorf("query: no fetch function for key %v", []string(key))
	}

	if e.call == nil && c.freshLocked(e) {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}

	cl, joined := c.startLocked(e)
	c.mu.Unlock()

	if joined {
		c.recorder.RecordDedup(key.Family())
	}

	return wait(ctx, cl)
}

// Refetch fetches key again even if its data is fresh, reusing the last
// fetch function registered for it. It joins a fetch already in flight.
func (c *Client) Refetch(ctx context.Context, key Key) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if !ok || e.fn == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("query: nothing to refetch for key %v", []string(key))
	}

	cl, joined := c.startLocked(e)
	c.mu.Unlock()

	if joined {
		c.recorder.RecordDedup(key.Family())
	}

	return wait(ctx, cl)
}

// Invalidate marks every entry whose key starts with prefix stale. Observed
// entries are refetched in the background; unobserved ones are refetched by
// their next read. It returns the number of entries marked.
func (c *Client) Invalidate(prefix Key) int {
	var (
		notify   []func()
		families = make(map[string]int)
	)

	c.mu.Lock()
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}

		e.stale = true
		e.gen++
		families[e.key.Family()]++

		if len(e.observers) == 0 {
			continue
		}
		if e.call == nil && e.fn != nil {
			c.startLocked(e)
		}
		notify = appendObservers(notify, e)
	}
	c.mu.Unlock()

	n := 0
	for family, count := range families {
		c.recorder.RecordInvalidation(family, count)
		n += count
	}

	c.logger.Debug("query: invalidated",
		slog.Any("prefix", []string(prefix)),
		slog.Int("entries", n),
	)

	for _, fn := range notify {
		fn()
	}

	return n
}

// Remove drops the entry for key. A fetch still in flight for it completes
// for its waiters but is not written back. An observed entry is not dropped:
// its data is cleared and it is refetched.
func (c *Client) Remove(key Key) {
	var notify []func()

	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if !ok {
		c.mu.Unlock()
		return
	}

	if len(e.observers) == 0 {
		c.deleteLocked(e)
		c.mu.Unlock()
		return
	}

	e.data, e.hasData, e.err = nil, false, nil
	e.updatedAt = time.Time{}
	e.stale = true
	e.gen++
	if e.call == nil && e.fn != nil {
		c.startLocked(e)
	}
	notify = appendObservers(notify, e)
	c.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
}

// State returns a snapshot of the entry for key.
func (c *Client) State(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return State{}, false
	}
	return c.stateLocked(e), true
}

// Len returns the number of entries.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *Client) entryLocked(key Key) *entry {
	k := key.String()
	if e, ok := c.entries[k]; ok {
		return e
	}

	e := &entry{
		key:       key.clone(),
		observers: make(map[uint64]func()),
	}
	c.entries[k] = e
	return e
}

func (c *Client) freshLocked(e *entry) bool {
	if !e.hasData || e.err != nil || e.stale {
		return false
	}
	if c.staleTime > 0 && time.Since(e.updatedAt) >= c.staleTime {
		return false
	}
	return true
}

func (c *Client) stateLocked(e *entry) State {
	s := State{
		Data:       e.data,
		HasData:    e.hasData,
		Err:        e.err,
		IsFetching: e.call != nil,
		IsStale:    e.hasData && !c.freshLocked(e),
		UpdatedAt:  e.updatedAt,
	}

	switch {
	case e.err != nil:
		s.Status = StatusError
	case e.hasData:
		s.Status = StatusSuccess
	default:
		s.Status = StatusPending
	}

	return s
}

// startLocked returns the call in flight for e, or starts a new one.
// joined is true when an existing call was returned.
func (c *Client) startLocked(e *entry) (cl *call, joined bool) {
	if e.call != nil {
		return e.call, true
	}

	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}

	cl = &call{done: make(chan struct{}), gen: e.gen}
	e.call = cl

	c.wg.Add(1)
	go c.run(e, cl, e.fn)

	return cl, false
}

func (c *Client) run(e *entry, cl *call, fn FetchFunc) {
	defer c.wg.Done()

	c.logger.Debug("query: fetching", slog.Any("key", []string(e.key)))

	start := time.Now()
	val, err := safeFetch(c.ctx, fn)
	c.recorder.RecordFetch(e.key.Family(), time.Since(start), err)

	if err != nil {
		c.logger.Debug("query: fetch failed",
			slog.Any("key", []string(e.key)),
			slog.String("error", err.Error()),
		)
	}

	var notify []func()

	c.mu.Lock()
	cl.val, cl.err = val, err
	e.call = nil

	if c.entries[e.key.String()] == e {
		if err == nil {
			e.data, e.hasData, e.err = val, true, nil
			e.updatedAt = time.Now()
			e.stale = e.gen != cl.gen
		} else {
			e.err = err
		}

		// Invalidated while in flight: the result may predate the change
		// that caused the invalidation, so observed keys fetch once more.
		if err == nil && e.stale && len(e.observers) > 0 && c.ctx.Err() == nil {
			c.startLocked(e)
		} else {
			c.scheduleGCLocked(e)
		}

		if c.ctx.Err() == nil {
			notify = appendObservers(notify, e)
		}
	}
	c.mu.Unlock()

	close(cl.done)

	for _, fn := range notify {
		fn()
	}
}

func (c *Client) observeLocked(e *entry, notify func()) uint64 {
	c.nextID++
	id := c.nextID
	e.observers[id] = notify

	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}

	return id
}

func (c *Client) unobserve(key Key, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return
	}
	delete(e.observers, id)
	c.scheduleGCLocked(e)
}

func (c *Client) scheduleGCLocked(e *entry) {
	if c.gcTime <= 0 || len(e.observers) > 0 || e.call != nil || e.gcTimer != nil {
		return
	}

	e.gcTimer = time.AfterFunc(c.gcTime, func() {
		c.collect(e)
	})
}

func (c *Client) collect(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries[e.key.String()] != e || len(e.observers) > 0 || e.call != nil {
		return
	}

	c.deleteLocked(e)
	c.recorder.RecordEviction(e.key.Family())
	c.logger.Debug("query: evicted", slog.Any("key", []string(e.key)))
}

func (c *Client) deleteLocked(e *entry) {
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
	delete(c.entries, e.key.String())
}

func appendObservers(dst []func(), e *entry) []func() {
	for _, fn := range e.observers {
		dst = append(dst, fn)
	}
	return dst
}

func wait(ctx context.Context, cl *call) (any, error) {
	select {
	case <-cl.done:
		return cl.val, cl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func safeFetch(ctx context.Context, fn FetchFunc) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			val, err = nil, fmt.Errorf("query: fetch panicked: %v", r)
		}
	}()

	return fn(ctx)
}
