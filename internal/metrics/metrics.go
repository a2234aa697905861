// Package metrics exposes poll cycle metrics in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/power-monitor/internal/monitor"
)

const namespace = "power_monitor"

// Recorder holds the daemon's collectors on a private registry.
type Recorder struct {
	registry    *prometheus.Registry
	polls       *prometheus.CounterVec
	powerOn     prometheus.Gauge
	cellCorrupt prometheus.Gauge
	attempts    prometheus.Gauge
	notifySecs  prometheus.Histogram
}

// NewRecorder creates and registers the collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll cycles by outcome.",
		}, []string{"outcome"}),
		powerOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_on",
			Help:      "1 when the probe last read power present, 0 otherwise.",
		}),
		cellCorrupt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cell_corrupt",
			Help:      "1 while the state cell is flagged invalid and persistence is suspended.",
		}),
		attempts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_notify_attempts",
			Help:      "Notification attempts for the transition currently awaiting delivery.",
		}),
		notifySecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notify_duration_seconds",
			Help:      "Time spent in the notifier per attempt.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
	}

	r.registry.MustRegister(r.polls, r.powerOn, r.cellCorrupt, r.attempts, r.notifySecs)
	return r
}

// Observe records one poll cycle.
func (r *Recorder) Observe(res monitor.Result, sess monitor.Session) {
	r.polls.WithLabelValues(string(res.Outcome)).Inc()

	if res.Outcome != monitor.OutcomeSignalError {
		r.powerOn.Set(boolFloat(res.PowerOn))
	}
	r.cellCorrupt.Set(boolFloat(sess.CellCorrupt))
	r.attempts.Set(float64(sess.Attempts))

	if res.Transitioned() && res.Outcome != monitor.OutcomeClockUnavailable {
		r.notifySecs.Observe(res.NotifyDuration.Seconds())
	}
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
