package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeFailure  = "failure"
)

type Metrics struct {
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	statusRefreshes  *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contentfactory_dispatches_total",
			Help: "Total number of provider dispatches",
		}, []string{"provider", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contentfactory_dispatch_duration_seconds",
			Help:    "Duration of provider dispatches in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		statusRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contentfactory_status_refreshes_total",
			Help: "Total number of provider status refreshes by resulting status",
		}, []string{"status"}),
	}
	reg.MustRegister(m.dispatches, m.dispatchDuration, m.statusRefreshes)
	return m
}

func (m *Metrics) ObserveDispatch(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(provider, outcome).Inc()
	m.dispatchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveRefresh(status string) {
	if m == nil {
		return
	}
	m.statusRefreshes.WithLabelValues(status).Inc()
}
