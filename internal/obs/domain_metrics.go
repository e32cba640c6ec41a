package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// InvoicesTotal counts invoice submission outcomes.
	InvoicesTotal *prometheus.CounterVec
	// HeldBills tracks the number of bills currently parked across terminals.
	HeldBills prometheus.Gauge
	// SearchDispatchTotal counts quick-search dispatches by mode and outcome.
	SearchDispatchTotal *prometheus.CounterVec
	// UpstreamRequestLatency records store gateway call latency in milliseconds.
	UpstreamRequestLatency *prometheus.HistogramVec
	// BreakerTransitions counts circuit breaker state changes for the store gateway.
	BreakerTransitions *prometheus.CounterVec
	// NotificationDeliveries counts outbound notification outcomes.
	NotificationDeliveries *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		InvoicesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_total",
			Help:      "Count of invoice submissions by outcome.",
		}, []string{"result"})
		HeldBills = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "held_bills",
			Help:      "Bills currently parked across all terminals.",
		})
		SearchDispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_dispatch_total",
			Help:      "Quick-search dispatches by mode and outcome.",
		}, []string{"mode", "result"})
		UpstreamRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_ms",
			Help:      "Latency of store gateway calls in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"operation", "result"})
		BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions for the store gateway.",
		}, []string{"target", "state"})
		NotificationDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_deliveries_total",
			Help:      "Outbound notification delivery outcomes.",
		}, []string{"result"})

		registerOrReuse(reg, InvoicesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InvoicesTotal = v
			}
		})
		registerOrReuse(reg, HeldBills, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				HeldBills = v
			}
		})
		registerOrReuse(reg, SearchDispatchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SearchDispatchTotal = v
			}
		})
		registerOrReuse(reg, UpstreamRequestLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				UpstreamRequestLatency = v
			}
		})
		registerOrReuse(reg, BreakerTransitions, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BreakerTransitions = v
			}
		})
		registerOrReuse(reg, NotificationDeliveries, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				NotificationDeliveries = v
			}
		})
	})
}
