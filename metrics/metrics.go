// Package metrics exports simulation statistics to Prometheus.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	obs := metrics.New(reg)
//	sim, err := fluid.New(w, h, fluid.WithObserver(obs))
//	http.Handle("/metrics", metrics.Handler(reg))
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gogpu/fluid"
)

const namespace = "fluid"

// Observer records fluid.TickStats and fluid.GridStats as Prometheus
// metrics. It implements fluid.Observer.
type Observer struct {
	tickDuration prometheus.Histogram
	ticks        *prometheus.CounterVec
	dispatches   prometheus.Counter
	splats       prometheus.Counter
	grid         *prometheus.GaugeVec
	reallocs     *prometheus.CounterVec
}

var _ fluid.Observer = (*Observer)(nil)

// New creates an Observer whose metrics are registered with reg.
// A nil reg selects prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Observer{
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one simulation tick",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of ticks by state",
		}, []string{"state"}),
		dispatches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Total number of kernel dispatches",
		}),
		splats: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "splats_total",
			Help:      "Total number of injection requests applied",
		}),
		grid: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_texels",
			Help:      "Current grid dimension by field group and axis",
		}, []string{"field", "axis"}),
		reallocs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_allocations_total",
			Help:      "Total number of grid (re)allocations by storage format",
		}, []string{"format"}),
	}
}

// ObserveTick implements fluid.Observer.
func (o *Observer) ObserveTick(s fluid.TickStats) {
	o.tickDuration.Observe(s.Duration.Seconds())
	state := "running"
	if s.Paused {
		state = "paused"
	}
	o.ticks.WithLabelValues(state).Inc()
	o.dispatches.Add(float64(s.Dispatches))
	o.splats.Add(float64(s.Splats))
}

// ObserveGrid implements fluid.Observer.
func (o *Observer) ObserveGrid(g fluid.GridStats) {
	o.grid.WithLabelValues("velocity", "width").Set(float64(g.VelocityWidth))
	o.grid.WithLabelValues("velocity", "height").Set(float64(g.VelocityHeight))
	o.grid.WithLabelValues("dye", "width").Set(float64(g.DyeWidth))
	o.grid.WithLabelValues("dye", "height").Set(float64(g.DyeHeight))
	o.reallocs.WithLabelValues(g.Format).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
