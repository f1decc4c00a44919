package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fastrand"

	"github.com/aradilov/boundedring"
)

// Outcome of one simulated process.
type Outcome string

const (
	Finished    Outcome = "finished"
	Interrupted Outcome = "interrupted"
)

// Options tune a simulation run.
type Options struct {
	// Unit is the length of one arrival/burst tick. Zero runs without delays.
	Unit time.Duration
	// Jitter in [0, 1] randomizes item spacing by up to that fraction.
	Jitter float64
	Logger *slog.Logger
}

// TaskResult reports what one process did.
type TaskResult struct {
	PID     int
	Role    Role
	Outcome Outcome
	Items   int // items produced or consumed before finishing or interruption
	Err     error
}

// Report summarizes a run.
type Report struct {
	RunID    string
	Tasks    []TaskResult
	Produced int
	Consumed int
	Elapsed  time.Duration
	Stats    boundedring.Stats
}

// Interrupted returns the number of tasks that did not finish.
func (r Report) Interrupted() int {
	n := 0
	for _, t := range r.Tasks {
		if t.Outcome == Interrupted {
			n++
		}
	}
	return n
}

// Run starts one goroutine per descriptor and waits for all of them.
// Each task waits for its arrival, then runs its burst; producers and
// consumers spread their items over the burst. Cancelling ctx interrupts the
// remaining tasks, which are reported rather than returned as an error.
func Run(ctx context.Context, ch *boundedring.Channel[Item], ds []Descriptor, opts Options) Report {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	report := Report{
		RunID: uuid.NewString(),
		Tasks: make([]TaskResult, len(ds)),
	}
	logger = logger.With("run_id", report.RunID)

	if b := Balance(ds); b != 0 {
		logger.Warn("unbalanced process table, some tasks can only end by cancellation",
			"balance", b)
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(len(ds))
	for i, d := range ds {
		go func() {
			defer wg.Done()
			t := task{
				d:      d,
				ch:     ch,
				unit:   opts.Unit,
				jitter: opts.Jitter,
				logger: logger.With("pid", d.PID, "role", string(d.Role)),
			}
			report.Tasks[i] = t.run(ctx)
		}()
	}
	wg.Wait()

	report.Elapsed = time.Since(start)
	report.Stats = ch.Stats()
	for _, t := range report.Tasks {
		switch t.Role {
		case RoleProducer:
			report.Produced += t.Items
		case RoleConsumer:
			report.Consumed += t.Items
		}
	}
	return report
}

type task struct {
	d      Descriptor
	ch     *boundedring.Channel[Item]
	unit   time.Duration
	jitter float64
	logger *slog.Logger
}

func (t *task) run(ctx context.Context) TaskResult {
	res := TaskResult{PID: t.d.PID, Role: t.d.Role, Outcome: Finished}

	if err := sleep(ctx, t.ticks(t.d.Arrival)); err != nil {
		return t.interrupted(res, err)
	}
	t.logger.Info("process starting", "priority", t.d.Priority)

	var err error
	switch t.d.Role {
	case RoleProducer:
		res.Items, err = t.produce(ctx)
	case RoleConsumer:
		res.Items, err = t.consume(ctx)
	default:
		err = sleep(ctx, t.ticks(t.d.Burst))
	}
	if err != nil {
		return t.interrupted(res, err)
	}

	t.logger.Info("process finished", "items", res.Items)
	return res
}

func (t *task) produce(ctx context.Context) (int, error) {
	ctx = boundedring.WithActor(ctx, fmt.Sprintf("producer-%d", t.d.PID))
	spacing := t.spacing()
	for n := 0; n < t.d.Items; n++ {
		if err := t.ch.Produce(ctx, Item{PID: t.d.PID, N: n}); err != nil {
			return n, err
		}
		if err := sleep(ctx, t.jittered(spacing)); err != nil {
			return n + 1, err
		}
	}
	return t.d.Items, nil
}

func (t *task) consume(ctx context.Context) (int, error) {
	ctx = boundedring.WithActor(ctx, fmt.Sprintf("consumer-%d", t.d.PID))
	spacing := t.spacing()
	for n := 0; n < t.d.Items; n++ {
		if _, err := t.ch.Consume(ctx); err != nil {
			return n, err
		}
		if err := sleep(ctx, t.jittered(spacing)); err != nil {
			return n + 1, err
		}
	}
	return t.d.Items, nil
}

func (t *task) interrupted(res TaskResult, err error) TaskResult {
	res.Outcome = Interrupted
	res.Err = err
	if errors.Is(err, boundedring.ErrCancelled) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		t.logger.Warn("process interrupted", "items", res.Items)
	} else {
		t.logger.Error("process failed", "items", res.Items, "error", err)
	}
	return res
}

func (t *task) ticks(n int) time.Duration {
	return time.Duration(n) * t.unit
}

// spacing spreads a task's items evenly over its burst.
func (t *task) spacing() time.Duration {
	if t.d.Items == 0 {
		return 0
	}
	return t.ticks(t.d.Burst) / time.Duration(t.d.Items)
}

func (t *task) jittered(d time.Duration) time.Duration {
	if t.jitter <= 0 || d <= 0 {
		return d
	}
	span := int64(float64(d) * t.jitter)
	if span <= 0 {
		return d
	}
	// uniform in [d-span, d+span]
	offset := int64(rand64()%uint64(2*span+1)) - span
	return d + time.Duration(offset)
}

// rand64 joins two fastrand draws; Uint32n alone cannot cover spans past 2^31ns.
func rand64() uint64 {
	return uint64(fastrand.Uint32())<<32 | uint64(fastrand.Uint32())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
