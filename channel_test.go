package boundedring

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastrand"

	cerrors "github.com/aradilov/boundedring/errors"
)

func mustNew[T any](t testing.TB, capacity int, opts ...Option[T]) *Channel[T] {
	t.Helper()
	c, err := New[T](capacity, opts...)
	require.NoError(t, err)
	return c
}

func TestNewInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -1024} {
		c, err := New[int](capacity)
		require.Error(t, err, "capacity %d", capacity)
		assert.Nil(t, c)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
		assert.True(t, cerrors.IsInvalid(err))
	}
}

// Basic sanity: sequential produce/consume without blocking.
func TestChannelSequential(t *testing.T) {
	const (
		capacity = 1024
		N        = 4 * capacity
	)

	c := mustNew[int](t, capacity)

	for i := 0; i < N; i++ {
		ok := c.TryProduce(i)
		if i < capacity {
			if !ok {
				t.Fatalf("produce failed at %d (channel unexpectedly full)", i)
			}
		} else if ok {
			t.Fatalf("produce succeeded at %d (channel unexpectedly not full)", i)
		}
	}

	if n := c.Len(); n != capacity {
		t.Fatalf("expected %d resident items, got %d", capacity, n)
	}

	for i := 0; i < N; i++ {
		v, ok := c.TryConsume()
		if i < capacity {
			if !ok {
				t.Fatalf("consume failed at %d (channel unexpectedly empty)", i)
			}
			if v != i {
				t.Fatalf("expected %d, got %d (FIFO violated)", i, v)
			}
		} else if ok {
			t.Fatalf("consume succeeded at %d (channel unexpectedly not empty)", i)
		}
	}

	if v, ok := c.TryConsume(); ok {
		t.Fatalf("expected empty channel at the end, got value=%v", v)
	}
}

// Capacity 3, items 0..4: the fourth produce must wait for a consume, and a
// single consumer then drains all five in order.
func TestChannelBlocksWhenFull(t *testing.T) {
	ctx := context.Background()
	c := mustNew[int](t, 3)

	var producedN atomic.Int32
	produced := make(chan error, 1)
	go func() {
		for i := 0; i < 5; i++ {
			if err := c.Produce(ctx, i); err != nil {
				produced <- err
				return
			}
			producedN.Add(1)
		}
		produced <- nil
	}()

	require.Eventually(t, func() bool { return producedN.Load() == 3 }, time.Second, time.Millisecond)
	// the producer is parked on the fourth item
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), producedN.Load())
	assert.Equal(t, 3, c.Len())

	var got []int
	for i := 0; i < 5; i++ {
		v, err := c.Consume(ctx)
		require.NoError(t, err)
		got = append(got, v)
	}

	select {
	case err := <-produced:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("producer did not finish after the consumer drained the channel")
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Equal(t, 0, c.Len())
	assert.GreaterOrEqual(t, c.Stats().ProduceWaits, uint64(1))
	assert.LessOrEqual(t, c.Stats().MaxResident, 3)
}

func TestChannelBlocksWhenEmpty(t *testing.T) {
	ctx := context.Background()
	c := mustNew[string](t, 2)

	consumed := make(chan string, 1)
	go func() {
		v, err := c.Consume(ctx)
		if err != nil {
			t.Errorf("consume: %v", err)
		}
		consumed <- v
	}()

	select {
	case v := <-consumed:
		t.Fatalf("consume on an empty channel returned early with %q", v)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, c.Produce(ctx, "hello"))

	select {
	case v := <-consumed:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("consume still blocked after a produce")
	}
	assert.GreaterOrEqual(t, c.Stats().ConsumeWaits, uint64(1))
}

// Capacity 1: produces must strictly alternate with consumes.
func TestChannelCapacityOneAlternates(t *testing.T) {
	const N = 2000
	ctx := context.Background()
	c := mustNew[int](t, 1)

	require.True(t, c.TryProduce(-1))
	require.False(t, c.TryProduce(-2), "second produce succeeded without a consume")
	v, ok := c.TryConsume()
	require.True(t, ok)
	require.Equal(t, -1, v)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < N; i++ {
			if err := c.Produce(ctx, i); err != nil {
				t.Errorf("produce %d: %v", i, err)
				return
			}
		}
	}()

	for i := 0; i < N; i++ {
		v, err := c.Consume(ctx)
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
	wg.Wait()

	st := c.Stats()
	assert.Equal(t, 1, st.MaxResident)
	assert.Equal(t, uint64(N+1), st.Produced)
	assert.Equal(t, uint64(N+1), st.Consumed)
}

// Single producer, single consumer: output order equals input order.
func TestChannelFIFO(t *testing.T) {
	const N = 20_000
	ctx := context.Background()
	c := mustNew[uint32](t, 7)

	want := make([]uint32, N)
	for i := range want {
		want[i] = fastrand.Uint32()
	}

	go func() {
		for _, v := range want {
			if err := c.Produce(ctx, v); err != nil {
				t.Errorf("produce: %v", err)
				return
			}
		}
	}()

	got := make([]uint32, 0, N)
	for i := 0; i < N; i++ {
		v, err := c.Consume(ctx)
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, want, got)
}

// Concurrent test: many producers, many consumers.
// Checks that all values [0..N) appear exactly once.
func TestChannelConcurrent(t *testing.T) {
	const (
		capacity    = 64
		N           = 200_000
		producers   = 8
		consumers   = 4
		perProducer = N / producers
		perConsumer = N / consumers
	)

	ctx := context.Background()
	c := mustNew[int](t, capacity)
	seen := make([]int32, N)

	var wg sync.WaitGroup
	wg.Add(producers + consumers)

	for p := 0; p < producers; p++ {
		start := p * perProducer
		go func(from, to int) {
			defer wg.Done()
			for i := from; i < to; i++ {
				if err := c.Produce(ctx, i); err != nil {
					t.Errorf("produce %d: %v", i, err)
					return
				}
			}
		}(start, start+perProducer)
	}

	for i := 0; i < consumers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perConsumer; j++ {
				v, err := c.Consume(ctx)
				if err != nil {
					t.Errorf("consume: %v", err)
					return
				}
				if v < 0 || v >= N {
					t.Errorf("consumer: out-of-range value %d", v)
					continue
				}
				atomic.AddInt32(&seen[v], 1)
			}
		}()
	}

	wg.Wait()

	for i := 0; i < N; i++ {
		if seen[i] != 1 {
			t.Fatalf("value %d seen %d times (expected 1)", i, seen[i])
		}
	}

	st := c.Stats()
	assert.Equal(t, uint64(N), st.Produced)
	assert.Equal(t, uint64(N), st.Consumed)
	assert.LessOrEqual(t, st.MaxResident, capacity)
	assert.Equal(t, 0, c.Len())
}

// Resident count sampled under load never leaves [0, capacity].
func TestChannelCapacityBound(t *testing.T) {
	const (
		capacity = 5
		N        = 50_000
	)

	ctx := context.Background()
	c := mustNew[int](t, capacity)

	stop := make(chan struct{})
	sampled := make(chan error, 1)
	go func() {
		for {
			select {
			case <-stop:
				sampled <- nil
				return
			default:
			}
			if n := c.Len(); n < 0 || n > capacity {
				sampled <- assert.AnError
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(4)
	for p := 0; p < 2; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < N/2; i++ {
				if err := c.Produce(ctx, i); err != nil {
					t.Errorf("produce: %v", err)
					return
				}
			}
		}()
	}
	for k := 0; k < 2; k++ {
		go func() {
			defer wg.Done()
			for i := 0; i < N/2; i++ {
				if _, err := c.Consume(ctx); err != nil {
					t.Errorf("consume: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(stop)

	require.NoError(t, <-sampled, "resident count left [0, %d]", capacity)
	assert.LessOrEqual(t, c.Stats().MaxResident, capacity)
}

func TestChannelObserver(t *testing.T) {
	const capacity = 3
	ctx := WithActor(context.Background(), "producer-1")

	var (
		mu     sync.Mutex
		events []Event[string]
	)
	c := mustNew[string](t, capacity, WithObserver[string](func(ev Event[string]) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))

	items := []string{"a", "b", "c", "d", "e"}
	for _, it := range items {
		require.NoError(t, c.Produce(ctx, it))
		v, err := c.Consume(WithActor(context.Background(), "consumer-1"))
		require.NoError(t, err)
		require.Equal(t, it, v)
	}

	require.Len(t, events, 2*len(items))
	for i, it := range items {
		p, q := events[2*i], events[2*i+1]

		assert.Equal(t, OpProduce, p.Op)
		assert.Equal(t, it, p.Item)
		assert.Equal(t, i%capacity, p.Index)
		assert.Equal(t, uint64(i), p.Seq)
		assert.Equal(t, "producer-1", p.Actor)
		assert.False(t, p.At.IsZero())

		assert.Equal(t, OpConsume, q.Op)
		assert.Equal(t, it, q.Item)
		assert.Equal(t, p.Index, q.Index)
		assert.Equal(t, p.Seq, q.Seq)
		assert.Equal(t, "consumer-1", q.Actor)
	}
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "produce", OpProduce.String())
	assert.Equal(t, "consume", OpConsume.String())
	assert.Equal(t, "unknown", Op(0).String())
}

func TestActorFromEmpty(t *testing.T) {
	assert.Equal(t, "", ActorFrom(context.Background()))
}

// Benchmark: single producer, single consumer.
func BenchmarkChannel_1P1C(b *testing.B) {
	const capacity = 1 << 10
	ctx := context.Background()
	c := mustNew[int](b, capacity)

	done := make(chan struct{})

	go func() {
		for i := 0; i < b.N; i++ {
			if _, err := c.Consume(ctx); err != nil {
				b.Error(err)
				break
			}
		}
		close(done)
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := c.Produce(ctx, i); err != nil {
			b.Fatal(err)
		}
	}
	<-done
	b.StopTimer()
}

// Benchmark: many producers, many consumers.
func BenchmarkChannel_MPMC(b *testing.B) {
	const (
		capacity  = 1 << 10
		producers = 8
		consumers = 8
	)

	ctx := context.Background()
	c := mustNew[int](b, capacity)
	perProducer := b.N / producers
	total := perProducer * producers
	perConsumer := total / consumers

	var wg sync.WaitGroup
	wg.Add(producers + consumers)

	for i := 0; i < consumers; i++ {
		n := perConsumer
		if i == consumers-1 {
			n = total - perConsumer*(consumers-1)
		}
		go func(n int) {
			defer wg.Done()
			for j := 0; j < n; j++ {
				if _, err := c.Consume(ctx); err != nil {
					b.Error(err)
					return
				}
			}
		}(n)
	}

	b.ResetTimer()
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := c.Produce(ctx, i); err != nil {
					b.Error(err)
					return
				}
			}
		}()
	}

	wg.Wait()
	b.StopTimer()
}
