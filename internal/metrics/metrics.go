// Package metrics holds the process's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	Registry *prometheus.Registry

	Updates        *prometheus.CounterVec
	Commands       *prometheus.CounterVec
	TelegramCalls  *prometheus.CounterVec
	RateLimited    prometheus.Counter
	PanelsOpen     prometheus.Gauge
	DeletesPending prometheus.Gauge
	SweepDuration  *prometheus.HistogramVec
	SweepMessages  *prometheus.CounterVec
}

// New registers every collector, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groupkeeper",
			Name:      "updates_total",
			Help:      "Inbound updates by kind.",
		}, []string{"kind"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groupkeeper",
			Name:      "commands_total",
			Help:      "Dispatched commands by name and outcome.",
		}, []string{"command", "outcome"}),
		TelegramCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groupkeeper",
			Name:      "telegram_calls_total",
			Help:      "Bot API calls by method and outcome.",
		}, []string{"method", "outcome"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groupkeeper",
			Name:      "rate_limited_total",
			Help:      "Updates dropped by flood control.",
		}),
		PanelsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "groupkeeper",
			Name:      "panels_open",
			Help:      "Panels currently registered.",
		}),
		DeletesPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "groupkeeper",
			Name:      "auto_deletes_pending",
			Help:      "Scheduled deletions not yet fired.",
		}),
		SweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "groupkeeper",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of daily sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"sweep"}),
		SweepMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groupkeeper",
			Name:      "sweep_messages_total",
			Help:      "Sweep notifications by sweep and result.",
		}, []string{"sweep", "result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Updates,
		m.Commands,
		m.TelegramCalls,
		m.RateLimited,
		m.PanelsOpen,
		m.DeletesPending,
		m.SweepDuration,
		m.SweepMessages,
	)
	return m
}

// ObserveSweep records one sweep run.
func (m *Metrics) ObserveSweep(sweep string, d time.Duration, notified, failed int) {
	m.SweepDuration.WithLabelValues(sweep).Observe(d.Seconds())
	m.SweepMessages.WithLabelValues(sweep, "sent").Add(float64(notified))
	m.SweepMessages.WithLabelValues(sweep, "failed").Add(float64(failed))
}

// ObserveCall records one Bot API call.
func (m *Metrics) ObserveCall(method string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.TelegramCalls.WithLabelValues(method, outcome).Inc()
}
