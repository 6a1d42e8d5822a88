package bloomstore

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type storeMetrics struct {
	// Operation counters
	addTotal      prometheus.Counter
	itemsAdded    prometheus.Counter
	retrieveTotal prometheus.Counter

	retrieveLatency prometheus.Histogram
	retrieveResults prometheus.Histogram

	universeSize prometheus.Gauge
	fillRatio    prometheus.Gauge

	// Journal
	journalAppendTotal   prometheus.Counter
	journalAppendLatency prometheus.Histogram
	journalErrors        prometheus.Counter
}

func initMetrics(registry *prometheus.Registry) (*storeMetrics, error) {
	metrics := &storeMetrics{
		addTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bloomstore_add_total",
			Help: "Total number of Add operations",
		}),
		itemsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bloomstore_items_added_total",
			Help: "Total number of (user, item) pairs written to the filter",
		}),
		retrieveTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bloomstore_retrieve_total",
			Help: "Total number of Retrieve operations",
		}),
		retrieveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bloomstore_retrieve_duration_seconds",
			Help:    "Duration of Retrieve operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10us to ~80ms
		}),
		retrieveResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bloomstore_retrieve_result_items",
			Help:    "Number of items returned by Retrieve",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		universeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bloomstore_universe_size",
			Help: "Number of distinct item ids ever added",
		}),
		fillRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bloomstore_filter_fill_ratio",
			Help: "Fraction of filter bits set",
		}),
		journalAppendTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bloomstore_journal_append_total",
			Help: "Total number of journal records appended",
		}),
		journalAppendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bloomstore_journal_append_duration_seconds",
			Help:    "Duration of journal appends in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 10), // 0.1ms to ~100ms
		}),
		journalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bloomstore_journal_errors_total",
			Help: "Total number of failed journal operations",
		}),
	}
	if registry == nil {
		return metrics, nil
	}
	// a store reopened on the same registry keeps feeding the collectors
	// registered by its predecessor
	var err error
	if metrics.addTotal, err = register(registry, metrics.addTotal); err != nil {
		return nil, err
	}
	if metrics.itemsAdded, err = register(registry, metrics.itemsAdded); err != nil {
		return nil, err
	}
	if metrics.retrieveTotal, err = register(registry, metrics.retrieveTotal); err != nil {
		return nil, err
	}
	if metrics.retrieveLatency, err = register(registry, metrics.retrieveLatency); err != nil {
		return nil, err
	}
	if metrics.retrieveResults, err = register(registry, metrics.retrieveResults); err != nil {
		return nil, err
	}
	if metrics.universeSize, err = register(registry, metrics.universeSize); err != nil {
		return nil, err
	}
	if metrics.fillRatio, err = register(registry, metrics.fillRatio); err != nil {
		return nil, err
	}
	if metrics.journalAppendTotal, err = register(registry, metrics.journalAppendTotal); err != nil {
		return nil, err
	}
	if metrics.journalAppendLatency, err = register(registry, metrics.journalAppendLatency); err != nil {
		return nil, err
	}
	if metrics.journalErrors, err = register(registry, metrics.journalErrors); err != nil {
		return nil, err
	}
	return metrics, nil
}

// register adds c to r, returning the collector already registered
// under the same descriptor when there is one.
func register[C prometheus.Collector](r *prometheus.Registry, c C) (C, error) {
	err := r.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, errors.Wrap(err, "register metrics")
}
