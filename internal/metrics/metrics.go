// Package metrics exposes Prometheus collectors for the queue engine and the
// HTTP adapter.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/queue"
)

const namespace = "qflow"

var _ queue.Observer = (*Collector)(nil)

// Collector records engine events and HTTP traffic on its own registry.
type Collector struct {
	registry *prometheus.Registry

	enqueued    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	completed   *prometheus.CounterVec
	ledgerValue *prometheus.CounterVec
	failures    *prometheus.CounterVec

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Collector with Go and process collectors registered.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newCollector(reg)
}

func newCollector(reg *prometheus.Registry) *Collector {
	f := promauto.With(reg)
	return &Collector{
		registry: reg,
		enqueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "requests_enqueued_total",
			Help:      "Requests filed, by account class.",
		}, []string{"class"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "transitions_total",
			Help:      "Committed status changes.",
		}, []string{"from", "to"}),
		completed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "records_total",
			Help:      "Transaction records written, by account class.",
		}, []string{"class"}),
		ledgerValue: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "value_total",
			Help:      "Summed value of transaction records, by account class.",
		}, []string{"class"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "operation_failures_total",
			Help:      "Rejected or failed engine operations, by error kind.",
		}, []string{"op", "kind"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of HTTP requests.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RequestEnqueued implements queue.Observer.
func (c *Collector) RequestEnqueued(req model.QueueRequest) {
	c.enqueued.WithLabelValues(string(req.AccountClass)).Inc()
}

// RequestTransitioned implements queue.Observer.
func (c *Collector) RequestTransitioned(req model.QueueRequest, from model.Status) {
	c.transitions.WithLabelValues(string(from), string(req.Status)).Inc()
}

// RequestCompleted implements queue.Observer.
func (c *Collector) RequestCompleted(_ model.QueueRequest, record model.TransactionRecord) {
	class := string(record.AccountClass)
	c.completed.WithLabelValues(class).Inc()
	c.ledgerValue.WithLabelValues(class).Add(record.Value.InexactFloat64())
}

// OperationFailed implements queue.Observer.
func (c *Collector) OperationFailed(op string, err error) {
	c.failures.WithLabelValues(op, common.Kind(err)).Inc()
}

// Middleware records request counts and latency, labelled by mux route template.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		c.httpInFlight.Inc()
		defer c.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := routeTemplate(r)
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
