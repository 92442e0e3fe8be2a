package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "dataupgrader"

// Collector holds the runner's Prometheus metrics on its own registry.
// All methods are safe to call on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	RowsUpgraded      *prometheus.CounterVec
	RowFailures       *prometheus.CounterVec
	UpgradesAbandoned *prometheus.CounterVec
	UpgradeFailures   *prometheus.CounterVec
	RowsCleaned       *prometheus.CounterVec
	CleanupFailures   *prometheus.CounterVec
	BatchDuration     *prometheus.HistogramVec
	Sleep             prometheus.Gauge
	Paused            prometheus.Gauge
}

// New creates a Collector registered under namespace.
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	labels := []string{"table", "upgrade"}

	c := &Collector{
		registry: reg,
		RowsUpgraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_upgraded_total",
			Help:      "Rows that received an upgrade marker",
		}, labels),
		RowFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_failures_total",
			Help:      "Rows whose upgrade transaction was rolled back",
		}, labels),
		UpgradesAbandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upgrades_abandoned_total",
			Help:      "Upgrades skipped because a whole batch failed",
		}, labels),
		UpgradeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upgrade_failures_total",
			Help:      "Upgrades left incomplete after an unrecoverable error",
		}, labels),
		RowsCleaned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_cleaned_total",
			Help:      "Rows whose obsolete markers were stripped",
		}, labels),
		CleanupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_failures_total",
			Help:      "Cleanups left incomplete after a failed batch",
		}, labels),
		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall-clock duration of one upgrade batch",
			Buckets:   prometheus.DefBuckets,
		}, labels),
		Sleep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sleep_seconds",
			Help:      "Current sleep between batches",
		}),
		Paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "paused",
			Help:      "1 while upgrades are disabled",
		}),
	}

	reg.MustRegister(
		c.RowsUpgraded,
		c.RowFailures,
		c.UpgradesAbandoned,
		c.UpgradeFailures,
		c.RowsCleaned,
		c.CleanupFailures,
		c.BatchDuration,
		c.Sleep,
		c.Paused,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RowUpgraded(table, upgrade string) {
	if c == nil {
		return
	}
	c.RowsUpgraded.WithLabelValues(table, upgrade).Inc()
}

func (c *Collector) RowFailed(table, upgrade string) {
	if c == nil {
		return
	}
	c.RowFailures.WithLabelValues(table, upgrade).Inc()
}

func (c *Collector) UpgradeAbandoned(table, upgrade string) {
	if c == nil {
		return
	}
	c.UpgradesAbandoned.WithLabelValues(table, upgrade).Inc()
}

func (c *Collector) UpgradeFailed(table, upgrade string) {
	if c == nil {
		return
	}
	c.UpgradeFailures.WithLabelValues(table, upgrade).Inc()
}

func (c *Collector) RowsCleanedUp(table, cleanup string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.RowsCleaned.WithLabelValues(table, cleanup).Add(float64(n))
}

func (c *Collector) CleanupFailed(table, cleanup string) {
	if c == nil {
		return
	}
	c.CleanupFailures.WithLabelValues(table, cleanup).Inc()
}

// ObserveBatch records how long one batch took.
func (c *Collector) ObserveBatch(table, upgrade string, d time.Duration) {
	if c == nil {
		return
	}
	c.BatchDuration.WithLabelValues(table, upgrade).Observe(d.Seconds())
}

// SetSleep records the sleep chosen before the next batch.
func (c *Collector) SetSleep(d time.Duration) {
	if c == nil {
		return
	}
	c.Sleep.Set(d.Seconds())
}

// SetPaused flips the paused gauge.
func (c *Collector) SetPaused(paused bool) {
	if c == nil {
		return
	}
	if paused {
		c.Paused.Set(1)
		return
	}
	c.Paused.Set(0)
}
