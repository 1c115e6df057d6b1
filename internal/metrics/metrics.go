package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking core. All
// observe methods are nil-safe so wiring metrics stays optional.
type BookingMetrics struct {
	holdsTotal     *prometheus.CounterVec
	confirmsTotal  *prometheus.CounterVec
	holdsReaped    prometheus.Counter
	searchDuration prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		holdsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "booking",
			Name:      "holds_total",
			Help:      "Slot hold attempts by outcome",
		}, []string{"outcome"}),
		confirmsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "booking",
			Name:      "confirms_total",
			Help:      "Appointment confirm attempts by outcome",
		}, []string{"outcome"}),
		holdsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "booking",
			Name:      "holds_reaped_total",
			Help:      "Expired holds reclaimed by the reaper",
		}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: "matching",
			Name:      "search_duration_seconds",
			Help:      "Latency of specialist searches",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.holdsTotal, m.confirmsTotal, m.holdsReaped, m.searchDuration)
	return m
}

func (m *BookingMetrics) ObserveHold(outcome string) {
	if m == nil {
		return
	}
	m.holdsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveConfirm(outcome string) {
	if m == nil {
		return
	}
	m.confirmsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveReaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.holdsReaped.Add(float64(n))
}

func (m *BookingMetrics) ObserveSearchDuration(seconds float64) {
	if m == nil {
		return
	}
	m.searchDuration.Observe(seconds)
}
