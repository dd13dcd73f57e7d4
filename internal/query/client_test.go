package query_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aanand-mishra/students-client/internal/query"
	. "github.com/onsi/gomega"
)

func newClient(t *testing.T, opts ...query.Option) *query.Client {
	t.Helper()
	opts = append([]query.Option{
		query.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	c := query.NewClient(opts...)
	t.Cleanup(c.Close)
	return c
}

// counter returns a fetch function that counts its calls and returns
// "v<n>" for the n-th call.
func counter(calls *atomic.Int32) query.FetchFunc {
	return func(context.Context) (any, error) {
		n := calls.Add(1)
		return []string{"v", string(rune('0' + n))}, nil
	}
}

// gate returns a fetch function that blocks until release is closed.
func gate(calls *atomic.Int32, release <-chan struct{}, value any) query.FetchFunc {
	return func(ctx context.Context) (any, error) {
		calls.Add(1)
		select {
		case <-release:
			return value, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestFetch_CachesUntilInvalidated(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)
	key := query.Key{"students", ""}

	var calls atomic.Int32
	fn := counter(&calls)

	first, err := c.Fetch(context.Background(), key, fn)
	g.Expect(err).NotTo(HaveOccurred())

	second, err := c.Fetch(context.Background(), key, fn)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(second).To(Equal(first))
	g.Expect(calls.Load()).To(BeEquivalentTo(1))

	g.Expect(c.Invalidate(query.Key{"students"})).To(Equal(1))

	// Nobody observes the key, so invalidation alone does not refetch.
	g.Consistently(calls.Load, 50*time.Millisecond).Should(BeEquivalentTo(1))

	third, err := c.Fetch(context.Background(), key, fn)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(third).NotTo(Equal(first))
	g.Expect(calls.Load()).To(BeEquivalentTo(2))
}

func TestFetch_ConcurrentReadsShareOneCall(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)
	key := query.Key{"students", "ann"}

	var calls atomic.Int32
	release := make(chan struct{})
	fn := gate(&calls, release, []string{"Ann Lee"})

	var wg sync.WaitGroup
	results := make([]any, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Fetch(context.Background(), key, fn)
			g.Expect(err).NotTo(HaveOccurred())
			results[i] = v
		}(i)
	}

	g.Eventually(func() bool {
		s, ok := c.State(key)
		return ok && s.IsFetching
	}).Should(BeTrue())
	close(release)
	wg.Wait()

	g.Expect(calls.Load()).To(BeEquivalentTo(1))
	g.Expect(results[0]).To(Equal(results[1]))
}

func TestFetch_WaiterCancellationDoesNotCancelSharedCall(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)
	key := query.Key{"student", "1"}

	var calls atomic.Int32
	release := make(chan struct{})
	fn := gate(&calls, release, "record")

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, key, fn)
		errc <- err
	}()

	g.Eventually(calls.Load).Should(BeEquivalentTo(1))
	cancel()
	g.Eventually(errc).Should(Receive(MatchError(context.Canceled)))

	done := make(chan any, 1)
	go func() {
		v, _ := c.Fetch(context.Background(), key, fn)
		done <- v
	}()
	close(release)

	g.Eventually(done).Should(Receive(Equal("record")))
	g.Expect(calls.Load()).To(BeEquivalentTo(1))
}

func TestFetch_ErrorIsNotCached(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)
	key := query.Key{"students", ""}

	boom := errors.New("boom")
	_, err := c.Fetch(context.Background(), key, func(context.Context) (any, error) {
		return nil, boom
	})
	g.Expect(err).To(MatchError(boom))

	s, ok := c.State(key)
	g.Expect(ok).To(BeTrue())
	g.Expect(s.Status).To(Equal(query.StatusError))

	v, err := c.Fetch(context.Background(), key, func(context.Context) (any, error) {
		return "ok", nil
	})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(Equal("ok"))
}

func TestFetch_PanicBecomesError(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)

	_, err := c.Fetch(context.Background(), query.Key{"x"}, func(context.Context) (any, error) {
		panic("kaboom")
	})
	g.Expect(err).To(MatchError(ContainSubstring("kaboom")))
}

func TestFetch_StaleTimeExpires(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t, query.WithStaleTime(20*time.Millisecond))
	key := query.Key{"students", ""}

	var calls atomic.Int32
	fn := counter(&calls)

	_, err := c.Fetch(context.Background(), key, fn)
	g.Expect(err).NotTo(HaveOccurred())
	_, err = c.Fetch(context.Background(), key, fn)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(calls.Load()).To(BeEquivalentTo(1))

	time.Sleep(30 * time.Millisecond)

	_, err = c.Fetch(context.Background(), key, fn)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(calls.Load()).To(BeEquivalentTo(2))
}

func TestInvalidate_OnlyMatchingFamily(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)

	var calls atomic.Int32
	fn := counter(&calls)

	for _, k := range []query.Key{{"students", ""}, {"students", "ann"}, {"student", "1"}} {
		_, err := c.Fetch(context.Background(), k, fn)
		g.Expect(err).NotTo(HaveOccurred())
	}

	g.Expect(c.Invalidate(query.Key{"students"})).To(Equal(2))

	s, _ := c.State(query.Key{"student", "1"})
	g.Expect(s.IsStale).To(BeFalse())

	s, _ = c.State(query.Key{"students", "ann"})
	g.Expect(s.IsStale).To(BeTrue())
	g.Expect(s.HasData).To(BeTrue())
}

func TestRemove_DiscardsInFlightResult(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t)
	key := query.Key{"student", "1"}

	var calls atomic.Int32
	release := make(chan struct{})

	done := make(chan any, 1)
	go func() {
		v, _ := c.Fetch(context.Background(), key, gate(&calls, release, "old"))
		done <- v
	}()

	g.Eventually(calls.Load).Should(BeEquivalentTo(1))
	c.Remove(key)
	close(release)

	// The waiter still gets its answer.
	g.Eventually(done).Should(Receive(Equal("old")))

	_, ok := c.State(key)
	g.Expect(ok).To(BeFalse())
}

func TestGC_DropsUnobservedEntries(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t, query.WithGCTime(20*time.Millisecond))

	var calls atomic.Int32
	_, err := c.Fetch(context.Background(), query.Key{"students", ""}, counter(&calls))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(c.Len()).To(Equal(1))

	g.Eventually(c.Len).Should(BeZero())
}

func TestGC_KeepsObservedEntries(t *testing.T) {
	g := NewWithT(t)
	c := newClient(t, query.WithGCTime(20*time.Millisecond))

	var calls atomic.Int32
	fn := counter(&calls)

	o := query.Observe(c, query.Query[any]{
		Key:   query.Key{"students", ""},
		Fetch: func(ctx context.Context) (any, error) { return fn(ctx) },
	}, nil)

	g.Eventually(func() bool { return o.Result().Status == query.StatusSuccess }).Should(BeTrue())
	g.Consistently(c.Len, 60*time.Millisecond).Should(Equal(1))

	o.Close()
	g.Eventually(c.Len).Should(BeZero())
}
