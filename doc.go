// Package boundedring provides Channel, a fixed-capacity ring buffer shared by
// producer and consumer goroutines. Produce blocks while the ring is full,
// Consume blocks while it is empty, and both can be aborted through their
// context without disturbing the ring.
//
// Unlike a native Go channel, a Channel reports per-operation events through
// an optional Observer, keeps always-on counters (Stats), and can export
// Prometheus metrics:
//
//	reg := prometheus.NewRegistry()
//	ch, err := boundedring.New[int](3,
//		boundedring.WithMetrics[int](reg, "jobs"),
//		boundedring.WithObserver[int](func(ev boundedring.Event[int]) {
//			slog.Info("channel event", "op", ev.Op, "item", ev.Item, "index", ev.Index)
//		}),
//	)
package boundedring
