package sim

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aradilov/boundedring"
)

// Item is what simulated producers put on the channel: the producing process
// and the ordinal of the item within that process.
type Item struct {
	PID int
	N   int
}

// LogValue implements slog.LogValuer.
func (it Item) LogValue() slog.Value {
	return slog.GroupValue(slog.Int("pid", it.PID), slog.Int("n", it.N))
}

// NewChannel builds the shared channel with every event logged at info level.
// reg may be nil to skip metrics.
func NewChannel[T any](capacity int, name string, logger *slog.Logger, reg prometheus.Registerer) (*boundedring.Channel[T], error) {
	return boundedring.New[T](capacity,
		boundedring.WithLogger[T](logger),
		boundedring.WithMetrics[T](reg, name),
		boundedring.WithObserver[T](LogEvents[T](logger)),
	)
}

// LogEvents returns an observer writing one record per produce/consume.
func LogEvents[T any](logger *slog.Logger) boundedring.Observer[T] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(ev boundedring.Event[T]) {
		msg := "produced"
		if ev.Op == boundedring.OpConsume {
			msg = "consumed"
		}
		logger.Info(msg,
			"actor", ev.Actor,
			"item", ev.Item,
			"index", ev.Index,
			"seq", ev.Seq)
	}
}
