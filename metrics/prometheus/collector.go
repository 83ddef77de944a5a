// Package prometheus exports vecflat operation metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc, _ := vfprom.New(reg)
//	idx, _ := vecflat.New(128, vecflat.WithMetricsCollector(mc))
package prometheus

import (
	"time"

	"github.com/hupe1980/vecflat"
	"github.com/prometheus/client_golang/prometheus"
)

// Compile-time check to ensure Collector satisfies vecflat.MetricsCollector.
var _ vecflat.MetricsCollector = (*Collector)(nil)

// Options configure New.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "vecflat".
	Namespace string

	// Buckets for the latency histogram, in seconds.
	Buckets []float64

	// ConstLabels are attached to every metric, e.g. an index name.
	ConstLabels prometheus.Labels
}

// DefaultBuckets covers microsecond searches up to multi-second snapshots.
var DefaultBuckets = prometheus.ExponentialBuckets(0.00005, 4, 10)

// Collector records index operations as Prometheus metrics.
type Collector struct {
	opLatency     *prometheus.HistogramVec
	vectorsAdded  prometheus.Counter
	vectorsLoaded prometheus.Counter
	snapshotBytes prometheus.Counter
	resets        prometheus.Counter
}

// New creates a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer, optFns ...func(o *Options)) (*Collector, error) {
	opts := Options{Namespace: "vecflat", Buckets: DefaultBuckets}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "operation_duration_seconds",
			Help:        "Latency of index operations.",
			Buckets:     opts.Buckets,
			ConstLabels: opts.ConstLabels,
		}, []string{"op", "status"}),
		vectorsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "vectors_added_total",
			Help:        "Vectors stored by successful AddVectors calls.",
			ConstLabels: opts.ConstLabels,
		}),
		vectorsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "vectors_loaded_total",
			Help:        "Vectors restored from snapshots.",
			ConstLabels: opts.ConstLabels,
		}),
		snapshotBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "snapshot_written_bytes_total",
			Help:        "Bytes written by successful snapshot saves.",
			ConstLabels: opts.ConstLabels,
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "resets_total",
			Help:        "Number of index resets.",
			ConstLabels: opts.ConstLabels,
		}),
	}

	for _, m := range []prometheus.Collector{c.opLatency, c.vectorsAdded, c.vectorsLoaded, c.snapshotBytes, c.resets} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) RecordAdd(count int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("add", status(err)).Observe(d.Seconds())
	if err == nil {
		c.vectorsAdded.Add(float64(count))
	}
}

func (c *Collector) RecordSearch(_ int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("search", status(err)).Observe(d.Seconds())
}

func (c *Collector) RecordSave(bytes int64, d time.Duration, err error) {
	c.opLatency.WithLabelValues("save", status(err)).Observe(d.Seconds())
	if err == nil {
		c.snapshotBytes.Add(float64(bytes))
	}
}

func (c *Collector) RecordLoad(count int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("load", status(err)).Observe(d.Seconds())
	if err == nil {
		c.vectorsLoaded.Add(float64(count))
	}
}

func (c *Collector) RecordReset(int) {
	c.resets.Inc()
}
