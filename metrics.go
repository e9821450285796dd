package sessionbridge

import "github.com/prometheus/client_golang/prometheus"

// Request outcomes recorded by session_bridge_requests_total.
const (
	outcomeSuccess   = "success"
	outcomeError     = "error"
	outcomeRenewed   = "renewed"
	outcomeExhausted = "exhausted"
	outcomeExpired   = "expired"
)

// Metrics holds the Prometheus collectors for a SessionBridge.
// A nil *Metrics records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	renewals  *prometheus.CounterVec
	redirects *prometheus.CounterVec
	waiters   *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_bridge_requests_total",
			Help: "Requests completed through the bridge, by final outcome.",
		}, []string{"provider", "outcome"}),
		renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_bridge_renewals_total",
			Help: "Session renewal calls issued, by outcome.",
		}, []string{"provider", "outcome"}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_bridge_redirects_total",
			Help: "Login redirects issued after a terminal renewal failure.",
		}, []string{"provider"}),
		waiters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "session_bridge_renewal_waiters",
			Help: "Callers currently queued behind an in-flight renewal.",
		}, []string{"provider"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.renewals, m.redirects, m.waiters)
	}
	return m
}

func (m *Metrics) observeRequest(provider, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) observeRenewal(provider string, err error) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
	}
	m.renewals.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) observeRedirect(provider string) {
	if m == nil {
		return
	}
	m.redirects.WithLabelValues(provider).Inc()
}

func (m *Metrics) setWaiters(provider string, n int) {
	if m == nil {
		return
	}
	m.waiters.WithLabelValues(provider).Set(float64(n))
}
