package boundedring

import (
	"context"
	"time"
)

// Op identifies a channel operation.
type Op uint8

const (
	OpProduce Op = iota + 1
	OpConsume
)

func (op Op) String() string {
	switch op {
	case OpProduce:
		return "produce"
	case OpConsume:
		return "consume"
	default:
		return "unknown"
	}
}

// resource names what an operation of this kind waits for.
func (op Op) resource() string {
	if op == OpProduce {
		return "free slot"
	}
	return "item"
}

// Event describes one completed Produce or Consume.
type Event[T any] struct {
	Op    Op
	Item  T
	Index int    // slot the item was written to or read from
	Seq   uint64 // logical position of the item, increasing across wraps
	Actor string // caller label set with WithActor, empty if none
	At    time.Time
}

// Observer receives an Event after each successful operation. It runs on the
// caller's goroutine once the critical section has been left, so it may block
// without holding up other tasks, but events from different goroutines can
// arrive out of Seq order.
type Observer[T any] func(Event[T])

type contextKey string

const actorKey contextKey = "boundedring-actor"

// WithActor labels the caller of Produce/Consume for events and logs.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the label set with WithActor, or "".
func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey).(string)
	return actor
}
