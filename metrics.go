package boundedring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// channelMetrics holds the Prometheus collectors of one channel.
type channelMetrics struct {
	produced  prometheus.Counter
	consumed  prometheus.Counter
	cancelled *prometheus.CounterVec
	wait      *prometheus.HistogramVec

	resident    prometheus.Gauge
	utilization prometheus.Gauge
	capacity    float64
}

func newChannelMetrics(registerer prometheus.Registerer, name string, capacity int) (*channelMetrics, error) {
	labels := prometheus.Labels{"channel": name}
	m := &channelMetrics{
		produced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "boundedring",
			Subsystem:   "channel",
			Name:        "produced_total",
			ConstLabels: labels,
			Help:        "Total number of items produced into the channel",
		}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "boundedring",
			Subsystem:   "channel",
			Name:        "consumed_total",
			ConstLabels: labels,
			Help:        "Total number of items consumed from the channel",
		}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "boundedring",
			Subsystem:   "channel",
			Name:        "cancelled_total",
			ConstLabels: labels,
			Help:        "Total number of waits aborted by cancellation or timeout",
		}, []string{"op"}),
		wait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "boundedring",
			Subsystem:   "channel",
			Name:        "wait_seconds",
			ConstLabels: labels,
			Help:        "Time spent suspended waiting for a free slot or an item",
			Buckets:     []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"op"}),
		resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "boundedring",
			Subsystem:   "channel",
			Name:        "resident",
			ConstLabels: labels,
			Help:        "Current number of items stored in the channel",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "boundedring",
			Subsystem:   "channel",
			Name:        "utilization",
			ConstLabels: labels,
			Help:        "Channel utilization as a fraction of capacity (0.0 to 1.0)",
		}),
		capacity: float64(capacity),
	}

	collectors := []prometheus.Collector{
		m.produced, m.consumed, m.cancelled, m.wait, m.resident, m.utilization,
	}
	for i, c := range collectors {
		if err := registerer.Register(c); err != nil {
			for _, registered := range collectors[:i] {
				registerer.Unregister(registered)
			}
			return nil, err
		}
	}

	return m, nil
}

// setResident runs inside the critical section so the gauge never goes
// backwards relative to the ring.
func (m *channelMetrics) setResident(n int) {
	m.resident.Set(float64(n))
	m.utilization.Set(float64(n) / m.capacity)
}

func (m *channelMetrics) recordDone(op Op) {
	if op == OpProduce {
		m.produced.Inc()
	} else {
		m.consumed.Inc()
	}
}

func (m *channelMetrics) recordCancel(op Op) {
	m.cancelled.WithLabelValues(op.String()).Inc()
}

func (m *channelMetrics) recordWait(op Op, d time.Duration) {
	m.wait.WithLabelValues(op.String()).Observe(d.Seconds())
}
