package boundedring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	cerrors "github.com/aradilov/boundedring/errors"
)

// Channel is a fixed-capacity FIFO ring shared by any number of producer and
// consumer goroutines.
//
// Flow control uses two counting semaphores: free counts empty slots and
// occupied counts stored items. A one-slot token channel serializes the
// critical section that touches the ring. Waiters on each semaphore are
// served in arrival order.
type Channel[T any] struct {
	capacity int

	free     *semaphore.Weighted
	occupied *semaphore.Weighted

	// token is held (filled) while a goroutine is inside the critical section
	token chan struct{}
	ring  ring[T]

	stats    stats
	metrics  *channelMetrics
	observer Observer[T]
	logger   *slog.Logger
}

// New creates a channel holding at most capacity items.
// capacity must be positive; anything else fails with ErrInvalidCapacity.
func New[T any](capacity int, opts ...Option[T]) (*Channel[T], error) {
	if capacity <= 0 {
		return nil, cerrors.WrapInvalid(fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity),
			"Channel", "New", "validate capacity")
	}

	o := applyOptions(opts...)

	occupied := semaphore.NewWeighted(int64(capacity))
	// the channel starts empty: hold every unit so consumers wait for the first produce
	if !occupied.TryAcquire(int64(capacity)) {
		panic("unreached")
	}

	c := &Channel[T]{
		capacity: capacity,
		free:     semaphore.NewWeighted(int64(capacity)),
		occupied: occupied,
		token:    make(chan struct{}, 1),
		ring:     newRing[T](capacity),
		observer: o.observer,
		logger:   o.logger,
	}

	if o.registerer != nil {
		metrics, err := newChannelMetrics(o.registerer, o.name, capacity)
		if err != nil {
			return nil, cerrors.WrapTransient(err, "Channel", "New", "metrics registration")
		}
		c.metrics = metrics
	}

	return c, nil
}

// Produce stores item, waiting while the channel is full.
// If ctx is done before a slot is claimed, Produce returns an error matching
// ErrCancelled and ctx.Err(), and the channel is unchanged.
// Safe to call concurrently from many goroutines.
func (c *Channel[T]) Produce(ctx context.Context, item T) error {
	if err := c.produce(ctx, item); err != nil {
		return c.abort(ctx, OpProduce, "Produce", ErrCancelled, err)
	}
	return nil
}

// Consume removes and returns the oldest item, waiting while the channel is empty.
// Cancellation behaves as for Produce; the zero value is returned with the error.
// Safe to call concurrently from many goroutines.
func (c *Channel[T]) Consume(ctx context.Context) (T, error) {
	v, err := c.consume(ctx)
	if err != nil {
		return v, c.abort(ctx, OpConsume, "Consume", ErrCancelled, err)
	}
	return v, nil
}

// TryProduce stores item only if a slot is free right now.
// Returns false (would block) otherwise.
func (c *Channel[T]) TryProduce(item T) bool {
	if !c.free.TryAcquire(1) {
		return false
	}
	c.token <- struct{}{}
	c.commitProduce(context.Background(), item)
	return true
}

// TryConsume removes the oldest item only if one is available right now.
// Returns (zero, false) otherwise.
func (c *Channel[T]) TryConsume() (T, bool) {
	if !c.occupied.TryAcquire(1) {
		var zero T
		return zero, false
	}
	c.token <- struct{}{}
	return c.commitConsume(context.Background()), true
}

// ProduceTimeout is Produce bounded by timeout. When the timeout expires
// first it returns an error matching ErrWouldBlock; cancellation of ctx itself
// still yields ErrCancelled. A non-positive timeout never waits.
func (c *Channel[T]) ProduceTimeout(ctx context.Context, item T, timeout time.Duration) error {
	if timeout <= 0 {
		if ctx.Err() == nil && c.TryProduce(item) {
			return nil
		}
		return c.abort(ctx, OpProduce, "ProduceTimeout", c.timeoutKind(ctx), noWaitCause(ctx))
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.produce(tctx, item); err != nil {
		return c.abort(ctx, OpProduce, "ProduceTimeout", c.timeoutKind(ctx), err)
	}
	return nil
}

// ConsumeTimeout is Consume bounded by timeout, with the same error contract
// as ProduceTimeout.
func (c *Channel[T]) ConsumeTimeout(ctx context.Context, timeout time.Duration) (T, error) {
	if timeout <= 0 {
		if ctx.Err() == nil {
			if v, ok := c.TryConsume(); ok {
				return v, nil
			}
		}
		var zero T
		return zero, c.abort(ctx, OpConsume, "ConsumeTimeout", c.timeoutKind(ctx), noWaitCause(ctx))
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := c.consume(tctx)
	if err != nil {
		return v, c.abort(ctx, OpConsume, "ConsumeTimeout", c.timeoutKind(ctx), err)
	}
	return v, nil
}

// Capacity returns the fixed channel capacity.
func (c *Channel[T]) Capacity() int {
	return c.capacity
}

// Len returns the number of items stored at the moment of the call.
// It is meant for observation only; the value may be stale once returned.
func (c *Channel[T]) Len() int {
	c.token <- struct{}{}
	defer c.unlock()
	return c.ring.resident()
}

// Stats returns a snapshot of the channel counters.
func (c *Channel[T]) Stats() Stats {
	return c.stats.snapshot()
}

func (c *Channel[T]) produce(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.reserve(ctx, c.free, OpProduce); err != nil {
		return err
	}
	if err := c.lock(ctx); err != nil {
		// hand the claimed slot back; nothing was written
		c.free.Release(1)
		return err
	}
	c.commitProduce(ctx, item)
	return nil
}

func (c *Channel[T]) consume(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := c.reserve(ctx, c.occupied, OpConsume); err != nil {
		return zero, err
	}
	if err := c.lock(ctx); err != nil {
		c.occupied.Release(1)
		return zero, err
	}
	return c.commitConsume(ctx), nil
}

// commitProduce must be called with a free slot claimed and the token held.
// It releases the token before signalling consumers.
func (c *Channel[T]) commitProduce(ctx context.Context, item T) {
	idx, seq := c.put(item)
	c.occupied.Release(1)
	c.finish(ctx, OpProduce, item, idx, seq)
}

// commitConsume must be called with an item claimed and the token held.
func (c *Channel[T]) commitConsume(ctx context.Context) T {
	item, idx, seq := c.take()
	c.free.Release(1)
	c.finish(ctx, OpConsume, item, idx, seq)
	return item
}

// put is the producer critical section.
func (c *Channel[T]) put(item T) (int, uint64) {
	defer c.unlock()
	idx, seq := c.ring.put(item)
	c.observeResident()
	return idx, seq
}

// take is the consumer critical section.
func (c *Channel[T]) take() (T, int, uint64) {
	defer c.unlock()
	item, idx, seq := c.ring.take()
	c.observeResident()
	return item, idx, seq
}

func (c *Channel[T]) observeResident() {
	n := c.ring.resident()
	c.stats.resident(n)
	if c.metrics != nil {
		c.metrics.setResident(n)
	}
}

// reserve claims one unit of sem, recording whether the caller had to wait.
func (c *Channel[T]) reserve(ctx context.Context, sem *semaphore.Weighted, op Op) error {
	if sem.TryAcquire(1) {
		return nil
	}

	c.stats.waited(op)
	start := time.Now()
	err := sem.Acquire(ctx, 1)
	if c.metrics != nil {
		c.metrics.recordWait(op, time.Since(start))
	}
	return err
}

func (c *Channel[T]) lock(ctx context.Context) error {
	select {
	case c.token <- struct{}{}:
		return nil
	default:
	}

	select {
	case c.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel[T]) unlock() {
	<-c.token
}

func (c *Channel[T]) finish(ctx context.Context, op Op, item T, idx int, seq uint64) {
	c.stats.done(op)
	if c.metrics != nil {
		c.metrics.recordDone(op)
	}
	if c.observer != nil {
		c.observer(Event[T]{
			Op:    op,
			Item:  item,
			Index: idx,
			Seq:   seq,
			Actor: ActorFrom(ctx),
			At:    time.Now(),
		})
	}
}

// timeoutKind picks the sentinel for an aborted bounded wait: the caller's own
// cancellation wins over the local deadline.
func (c *Channel[T]) timeoutKind(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	return ErrWouldBlock
}

// noWaitCause is the cause reported when a non-positive timeout fails without
// waiting: the caller's cancellation if any, else an immediate deadline.
func noWaitCause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.DeadlineExceeded
}

func (c *Channel[T]) abort(ctx context.Context, op Op, method string, kind, cause error) error {
	c.stats.cancelled(op)
	if c.metrics != nil {
		c.metrics.recordCancel(op)
	}
	c.logger.DebugContext(ctx, "channel wait aborted",
		"op", op.String(),
		"actor", ActorFrom(ctx),
		"error", cause)

	return cerrors.WrapTransient(fmt.Errorf("%w: %w", kind, cause),
		"Channel", method, "wait for "+op.resource())
}
