package auth

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the Session Authority's Prometheus instruments.
type Metrics struct {
	logins         *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	sessionsActive prometheus.Gauge
	sweptSessions  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "surakshanet",
				Subsystem: "auth",
				Name:      "logins_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "surakshanet",
				Subsystem: "auth",
				Name:      "refreshes_total",
				Help:      "Refresh attempts by result",
			},
			[]string{"result"},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "surakshanet",
				Subsystem: "auth",
				Name:      "sessions_active",
				Help:      "Sessions currently held in the store",
			},
		),
		sweptSessions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "surakshanet",
				Subsystem: "auth",
				Name:      "sessions_swept_total",
				Help:      "Expired sessions removed by the TTL sweeper",
			},
		),
	}
	reg.MustRegister(m.logins, m.refreshes, m.sessionsActive, m.sweptSessions)
	return m
}

func (m *Metrics) login(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) refresh(result string) {
	if m != nil {
		m.refreshes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) setActiveSessions(n int) {
	if m != nil {
		m.sessionsActive.Set(float64(n))
	}
}

func (m *Metrics) swept(n int) {
	if m != nil {
		m.sweptSessions.Add(float64(n))
	}
}
