// Package metrics exposes Prometheus counters and histograms for the auction
// core. All Collector methods are nil-safe so callers can pass a nil
// collector in tests or when metrics are disabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the instrument set for the auction service.
type Collector struct {
	registry *prometheus.Registry

	bidsAccepted       prometheus.Counter
	bidsRejected       *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	notificationsBuilt prometheus.Counter
	reconcileDuration  prometheus.Histogram
	disputes           *prometheus.CounterVec
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		bidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auctionhouse",
			Name:      "bids_accepted_total",
			Help:      "Number of bids accepted into the ledger.",
		}),
		bidsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionhouse",
			Name:      "bids_rejected_total",
			Help:      "Number of bids rejected, by reason.",
		}, []string{"reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionhouse",
			Name:      "lifecycle_transitions_total",
			Help:      "Number of applied lifecycle transitions, by kind.",
		}, []string{"kind"}),
		notificationsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auctionhouse",
			Name:      "notifications_total",
			Help:      "Number of user notifications written.",
		}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "auctionhouse",
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of single-auction reconcile calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		disputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionhouse",
			Name:      "disputes_total",
			Help:      "Number of resolved disputes, by action.",
		}, []string{"action"}),
	}

	registry.MustRegister(
		c.bidsAccepted,
		c.bidsRejected,
		c.transitions,
		c.notificationsBuilt,
		c.reconcileDuration,
		c.disputes,
	)
	return c
}

// Handler returns an http.Handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// BidAccepted counts an accepted bid.
func (c *Collector) BidAccepted() {
	if c == nil {
		return
	}
	c.bidsAccepted.Inc()
}

// BidRejected counts a rejected bid with the given reason.
func (c *Collector) BidRejected(reason string) {
	if c == nil {
		return
	}
	c.bidsRejected.WithLabelValues(reason).Inc()
}

// Transition counts an applied lifecycle transition of the given kind.
func (c *Collector) Transition(kind string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(kind).Inc()
}

// NotificationsWritten counts n persisted user notifications.
func (c *Collector) NotificationsWritten(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.notificationsBuilt.Add(float64(n))
}

// ObserveReconcile records the duration of one reconcile call.
func (c *Collector) ObserveReconcile(d time.Duration) {
	if c == nil {
		return
	}
	c.reconcileDuration.Observe(d.Seconds())
}

// DisputeResolved counts a resolved dispute with the given action.
func (c *Collector) DisputeResolved(action string) {
	if c == nil {
		return
	}
	c.disputes.WithLabelValues(action).Inc()
}
