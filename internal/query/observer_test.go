package query_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aanand-mishra/students-client/internal/query"
	. "github.com/onsi/gomega"
)

// recorder collects listener results.
type recorder[T any] struct {
	mu      sync.Mutex
	results []query.Result[T]
}

func (r *recorder[T]) listen(res query.Result[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func (r *recorder[T]) last() query.Result[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return query.Result[T]{}
	}
	return r.results[len(r.results)-1]
}

// versioned returns a typed fetch whose result is its call count.
func versioned(calls *atomic.Int32) func(context.Context) (int, error) {
	return func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}
}

func TestObserve_FetchesAndNotifies(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)

	var calls atomic.Int32
	var rec recorder[[]string]

	release := make(chan struct{})
	o := query.Observe(c, query.Query[[]string]{
		Key: query.Key{"students", ""},
		Fetch: func(ctx context.Context) ([]string, error) {
			calls.Add(1)
			<-release
			return []string{"Ann Lee"}, nil
		},
		Placeholder: []string{},
	}, rec.listen)
	defer o.Close()

	r := o.Result()
	g.Expect(r.Data).To(BeEmpty())
	g.Expect(r.Data).NotTo(BeNil())
	g.Expect(r.IsLoading).To(BeTrue())
	g.Expect(r.IsError).To(BeFalse())

	close(release)

	g.Eventually(rec.count).Should(Equal(1))
	g.Expect(rec.last().Data).To(Equal([]string{"Ann Lee"}))
	g.Expect(rec.last().IsLoading).To(BeFalse())
	g.Expect(o.Result().Status).To(Equal(query.StatusSuccess))
	g.Expect(calls.Load()).To(BeEquivalentTo(1))
}

func TestObserve_SharedKeyFetchesOnce(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)

	var calls atomic.Int32
	release := make(chan struct{})
	q := query.Query[int]{
		Key: query.Key{"students", "ann"},
		Fetch: func(context.Context) (int, error) {
			calls.Add(1)
			<-release
			return 7, nil
		},
	}

	a := query.Observe(c, q, nil)
	defer a.Close()
	b := query.Observe(c, q, nil)
	defer b.Close()

	close(release)

	g.Eventually(func() int { return a.Result().Data }).Should(Equal(7))
	g.Expect(b.Result().Data).To(Equal(7))
	g.Expect(calls.Load()).To(BeEquivalentTo(1))
}

func TestObserve_InvalidationRefetchesObservedKey(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)

	var calls atomic.Int32
	var rec recorder[int]
	o := query.Observe(c, query.Query[int]{
		Key:   query.Key{"students", ""},
		Fetch: versioned(&calls),
	}, rec.listen)
	defer o.Close()

	g.Eventually(func() int { return o.Result().Data }).Should(Equal(1))

	c.Invalidate(query.Key{"students"})

	g.Eventually(func() int { return o.Result().Data }).Should(Equal(2))
	g.Eventually(func() bool { return rec.last().Data == 2 && !rec.last().IsFetching }).Should(BeTrue())
	g.Expect(o.Result().IsStale).To(BeFalse())
}

func TestObserve_KeepsDataWhileRefetching(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)

	var calls atomic.Int32
	release := make(chan struct{})
	o := query.Observe(c, query.Query[int]{
		Key: query.Key{"students", ""},
		Fetch: func(context.Context) (int, error) {
			n := int(calls.Add(1))
			if n > 1 {
				<-release
			}
			return n, nil
		},
	}, nil)
	defer o.Close()

	g.Eventually(func() int { return o.Result().Data }).Should(Equal(1))

	c.Invalidate(query.Key{"students"})

	r := o.Result()
	g.Expect(r.Data).To(Equal(1))
	g.Expect(r.IsFetching).To(BeTrue())
	g.Expect(r.IsLoading).To(BeFalse())
	g.Expect(r.IsStale).To(BeTrue())

	close(release)
	g.Eventually(func() int { return o.Result().Data }).Should(Equal(2))
}

func TestObserve_InvalidatedWhileInFlightFetchesAgain(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)

	var calls atomic.Int32
	release := make(chan struct{})
	o := query.Observe(c, query.Query[int]{
		Key: query.Key{"students", ""},
		Fetch: func(context.Context) (int, error) {
			n := int(calls.Add(1))
			if n == 1 {
				<-release
			}
			return n, nil
		},
	}, nil)
	defer o.Close()

	g.Eventually(calls.Load).Should(BeEquivalentTo(1))

	// The first fetch may have read pre-mutation data.
	c.Invalidate(query.Key{"students"})
	close(release)

	g.Eventually(func() int { return o.Result().Data }).Should(Equal(2))
	g.Expect(o.Result().IsStale).To(BeFalse())
	g.Consistently(calls.Load, 50*time.Millisecond).Should(BeEquivalentTo(2))
}

func TestObserve_ClosedObserverIsNotNotified(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)

	var calls atomic.Int32
	release := make(chan struct{})
	var rec recorder[int]
	o := query.Observe(c, query.Query[int]{
		Key: query.Key{"students", ""},
		Fetch: func(context.Context) (int, error) {
			calls.Add(1)
			<-release
			return 1, nil
		},
	}, rec.listen)

	g.Eventually(calls.Load).Should(BeEquivalentTo(1))
	o.Close()
	o.Close()
	close(release)

	g.Eventually(func() bool {
		s, ok := c.State(query.Key{"students", ""})
		return ok && s.HasData
	}).Should(BeTrue())
	g.Consistently(rec.count, 50*time.Millisecond).Should(BeZero())
}

func TestObserve_ErrorKeepsPreviousData(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)

	var calls atomic.Int32
	boom := errors.New("server down")
	o := query.Observe(c, query.Query[int]{
		Key: query.Key{"students", ""},
		Fetch: func(context.Context) (int, error) {
			if calls.Add(1) > 1 {
				return 0, boom
			}
			return 1, nil
		},
	}, nil)
	defer o.Close()

	g.Eventually(func() int { return o.Result().Data }).Should(Equal(1))

	c.Invalidate(query.Key{"students"})

	g.Eventually(func() bool { return o.Result().IsError }).Should(BeTrue())
	r := o.Result()
	g.Expect(r.Data).To(Equal(1))
	g.Expect(r.Err).To(MatchError(boom))
	g.Expect(r.Status).To(Equal(query.StatusError))
}

func TestObserve_DisabledQueryNeverFetches(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)

	var calls atomic.Int32
	o := query.Observe(c, query.Query[int]{
		Key:         query.Key{"student", ""},
		Fetch:       versioned(&calls),
		Placeholder: -1,
		Disabled:    true,
	}, nil)
	defer o.Close()

	c.Invalidate(query.Key{"student"})

	g.Consistently(calls.Load, 50*time.Millisecond).Should(BeZero())
	r := o.Result()
	g.Expect(r.Data).To(Equal(-1))
	g.Expect(r.IsLoading).To(BeFalse())

	v, err := o.Refetch(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(Equal(-1))
}

func TestObserve_Refetch(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)

	var calls atomic.Int32
	o := query.Observe(c, query.Query[int]{
		Key:   query.Key{"student", "1"},
		Fetch: versioned(&calls),
	}, nil)
	defer o.Close()

	g.Eventually(func() int { return o.Result().Data }).Should(Equal(1))

	v, err := o.Refetch(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(Equal(2))
}

func TestObserve_RemoveRefetchesObservedEntry(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)

	var calls atomic.Int32
	o := query.Observe(c, query.Query[int]{
		Key:   query.Key{"student", "1"},
		Fetch: versioned(&calls),
	}, nil)
	defer o.Close()

	g.Eventually(func() int { return o.Result().Data }).Should(Equal(1))

	c.Remove(query.Key{"student", "1"})

	g.Eventually(func() int { return o.Result().Data }).Should(Equal(2))
}

func TestFetchAs_Typed(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)

	var calls atomic.Int32
	v, err := query.FetchAs(context.Background(), c, query.Key{"n"}, versioned(&calls))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(Equal(1))

	v, err = query.FetchAs(context.Background(), c, query.Key{"n"}, versioned(&calls))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(Equal(1))
}
