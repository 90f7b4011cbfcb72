// Package metrics holds the prometheus collectors of the service. Every
// method is safe on a nil *Collectors so components can run without metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nftmarket"

// Collectors groups the service's prometheus collectors
type Collectors struct {
	ledgerCalls      *prometheus.CounterVec
	ledgerLatency    *prometheus.HistogramVec
	submissions      *prometheus.CounterVec
	offerTransitions *prometheus.CounterVec
	recoveries       *prometheus.CounterVec
	dbEvents         *prometheus.CounterVec
	dbDurations      *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		ledgerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "requests_total",
			Help:      "Ledger JSON-RPC requests by method and outcome.",
		}, []string{"method", "outcome"}),
		ledgerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "request_duration_seconds",
			Help:      "Ledger JSON-RPC request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "submissions_total",
			Help:      "Submitted transactions by type and final result.",
		}, []string{"tx_type", "result"}),
		offerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offers",
			Name:      "operations_total",
			Help:      "Offer lifecycle operations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "recoveries_total",
			Help:      "Pending submission intents resolved at recovery, by outcome.",
		}, []string{"outcome"}),
		dbEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "events_total",
			Help:      "Database manager events.",
		}, []string{"event", "driver"}),
		dbDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "operation_duration_seconds",
			Help:      "Database manager operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "driver"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120},
		}, []string{"route"}),
	}

	for _, col := range []prometheus.Collector{
		c.ledgerCalls, c.ledgerLatency, c.submissions,
		c.offerTransitions, c.recoveries, c.dbEvents, c.dbDurations,
		c.httpRequests, c.httpLatency,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveLedgerCall records one JSON-RPC request
func (c *Collectors) ObserveLedgerCall(method, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.ledgerCalls.WithLabelValues(method, outcome).Inc()
	c.ledgerLatency.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveSubmission records the outcome of one submitted transaction
func (c *Collectors) ObserveSubmission(txType, result string) {
	if c == nil {
		return
	}
	c.submissions.WithLabelValues(txType, result).Inc()
}

// ObserveOffer records one offer lifecycle operation
func (c *Collectors) ObserveOffer(kind, outcome string) {
	if c == nil {
		return
	}
	c.offerTransitions.WithLabelValues(kind, outcome).Inc()
}

// ObserveRecovery records one recovered journal intent
func (c *Collectors) ObserveRecovery(outcome string) {
	if c == nil {
		return
	}
	c.recoveries.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one API request
func (c *Collectors) ObserveHTTP(route, method string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

// DB adapts the collectors to the relational database manager
func (c *Collectors) DB() *DBMetrics {
	return &DBMetrics{c: c}
}

// DBMetrics implements relationaldb.Metrics
type DBMetrics struct {
	c *Collectors
}

func (m *DBMetrics) IncrementCounter(name string, tags map[string]string) {
	if m == nil || m.c == nil {
		return
	}
	m.c.dbEvents.WithLabelValues(name, tags["driver"]).Inc()
}

func (m *DBMetrics) RecordDuration(name string, duration time.Duration, tags map[string]string) {
	if m == nil || m.c == nil {
		return
	}
	m.c.dbDurations.WithLabelValues(name, tags["driver"]).Observe(duration.Seconds())
}
