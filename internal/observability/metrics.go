package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/maskproxy/maskproxy/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	requestsTotal       *prometheus.CounterVec
	redactionsTotal     *prometheus.CounterVec
	upstreamErrorsTotal *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "maskproxy_requests_total", Help: "Total requests"},
			[]string{"method", "outcome", "code"},
		),
		redactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "maskproxy_redactions_total", Help: "Total PII substitutions in forwarded bodies"},
			[]string{"category"},
		),
		upstreamErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "maskproxy_upstream_errors_total", Help: "Upstream failures before or during relay"},
			[]string{"outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maskproxy_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.requestsTotal,
		m.redactionsTotal,
		m.upstreamErrorsTotal,
		m.requestDuration,
	)

	return m
}

func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Observe(ex logging.Exchange) {
	if m == nil {
		return
	}

	outcome := string(ex.Outcome)
	m.requestsTotal.WithLabelValues(methodLabel(ex.Method), outcome, strconv.Itoa(ex.StatusCode)).Inc()
	m.requestDuration.WithLabelValues(outcome).Observe((time.Duration(ex.DurationMS) * time.Millisecond).Seconds())

	for category, n := range ex.Redactions {
		m.redactionsTotal.WithLabelValues(category).Add(float64(n))
	}

	switch ex.Outcome {
	case logging.OutcomeUpstreamError, logging.OutcomeAborted:
		m.upstreamErrorsTotal.WithLabelValues(outcome).Inc()
	}
}

// methodLabel keeps the method label bounded: net/http accepts any token
// as a method.
func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return method
	default:
		return "OTHER"
	}
}

// AdminMux serves /metrics and a plain-text /healthz.
func AdminMux(m *Metrics, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("maskproxy is running"))
	})
	return mux
}
