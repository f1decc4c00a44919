package boundedring

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Channel.
type Option[T any] func(*options[T])

type options[T any] struct {
	observer Observer[T]
	logger   *slog.Logger

	// registerer is optional; when set the channel exports Prometheus metrics
	registerer prometheus.Registerer
	name       string
}

// WithObserver installs a callback invoked after every successful operation.
func WithObserver[T any](observer Observer[T]) Option[T] {
	return func(o *options[T]) {
		o.observer = observer
	}
}

// WithLogger sets the logger used for debug records about aborted waits.
// A nil logger is ignored.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(o *options[T]) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics registers the channel's collectors on registerer, labelled with
// name. It is ignored if registerer is nil or name is empty.
func WithMetrics[T any](registerer prometheus.Registerer, name string) Option[T] {
	return func(o *options[T]) {
		if registerer != nil && name != "" {
			o.registerer = registerer
			o.name = name
		}
	}
}

func applyOptions[T any](opts ...Option[T]) *options[T] {
	o := &options[T]{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
