package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine and HTTP collectors on a private registry.
type Metrics struct {
	Registry          *prometheus.Registry
	FlightTransitions *prometheus.CounterVec
	PlaneStatus       *prometheus.CounterVec
	EngineErrors      *prometheus.CounterVec
	OperationTime     *prometheus.HistogramVec
	HTTPRequests      *prometheus.CounterVec
	RateLimited       prometheus.Counter
}

// New registers all collectors under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		FlightTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flight_transitions_total",
			Help:      "Flight status transitions applied",
		}, []string{"from", "to"}),
		PlaneStatus: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plane_status_changes_total",
			Help:      "Plane status writes by resulting status",
		}, []string{"status"}),
		EngineErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Failed engine operations by error kind",
		}, []string{"operation", "kind"}),
		OperationTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_operation_seconds",
			Help:      "Engine operation latency including lock wait",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}
}

// ObserveOperation records latency and, on failure, the error kind.
// A nil receiver is a no-op.
func (m *Metrics) ObserveOperation(op string, start time.Time, kind string) {
	if m == nil {
		return
	}
	m.OperationTime.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if kind != "" {
		m.EngineErrors.WithLabelValues(op, kind).Inc()
	}
}

func (m *Metrics) Transition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.FlightTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) PlaneStatusChanged(status string) {
	if m == nil {
		return
	}
	m.PlaneStatus.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Request counts one served HTTP request.
func (m *Metrics) Request(method string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

func (m *Metrics) Limited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
