package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Default bucket presets shared by component metrics.
var (
	// DurationBuckets covers sub-second RPC calls up to multi-minute waits.
	DurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}

	// SizeBuckets covers payload sizes from small JSON bodies to encoded requests.
	SizeBuckets = prometheus.ExponentialBuckets(64, 4, 8)

	// CountBuckets covers small discrete counts (attempts, replacements, results).
	CountBuckets = []float64{0, 1, 2, 3, 5, 8, 13, 21, 50}
)

// ComponentRegistry namespaces metrics per component and registers them
// against the default registerer.
type ComponentRegistry struct {
	namespace  string
	subsystem  string
	registerer prometheus.Registerer
}

// NewComponentRegistry creates a registry scoped to namespace/subsystem.
func NewComponentRegistry(namespace, subsystem string) *ComponentRegistry {
	return &ComponentRegistry{
		namespace:  namespace,
		subsystem:  subsystem,
		registerer: prometheus.DefaultRegisterer,
	}
}

// register returns the collector that is actually live in the
// registerer. On duplicate registration that is the previously
// registered collector, so rebuilt components keep observing into the
// same series.
func (r *ComponentRegistry) register(c prometheus.Collector) prometheus.Collector {
	if err := r.registerer.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// NewCounter creates and registers a counter.
func (r *ComponentRegistry) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return r.register(prometheus.NewCounter(opts)).(prometheus.Counter)
}

// NewCounterVec creates and registers a counter vector.
func (r *ComponentRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return r.register(prometheus.NewCounterVec(opts, labels)).(*prometheus.CounterVec)
}

// NewGauge creates and registers a gauge.
func (r *ComponentRegistry) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return r.register(prometheus.NewGauge(opts)).(prometheus.Gauge)
}

// NewGaugeVec creates and registers a gauge vector.
func (r *ComponentRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return r.register(prometheus.NewGaugeVec(opts, labels)).(*prometheus.GaugeVec)
}

// NewHistogram creates and registers a histogram.
func (r *ComponentRegistry) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return r.register(prometheus.NewHistogram(opts)).(prometheus.Histogram)
}

// NewHistogramVec creates and registers a histogram vector.
func (r *ComponentRegistry) NewHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return r.register(prometheus.NewHistogramVec(opts, labels)).(*prometheus.HistogramVec)
}
