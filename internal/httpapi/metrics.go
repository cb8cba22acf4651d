package httpapi

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Transport and outcome label values for generation metrics.
const (
	transportREST   = "rest"
	transportSocket = "socket"

	outcomeOK           = "ok"
	outcomeDisconnected = "disconnected"
	outcomeFailed       = "failed"
	outcomeMalformed    = "malformed"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minivault",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "minivault",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "minivault",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)

	generateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minivault",
			Name:      "generate_total",
			Help:      "Generation requests by transport and outcome",
		},
		[]string{"transport", "outcome"},
	)

	fragmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minivault",
			Name:      "fragments_total",
			Help:      "Token fragments pulled from the model",
		},
		[]string{"transport"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight, generateTotal, fragmentsTotal)
}

// statusRecorder wraps http.ResponseWriter to capture status code.
// It passes Hijack and Flush through so socket upgrades keep working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	// a hijacked upgrade is reported as 101
	sr.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method
		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		// the route pattern is only known once chi has routed the request
		inflightPath := r.URL.Path
		httpInflight.WithLabelValues(inflightPath).Inc()
		defer httpInflight.WithLabelValues(inflightPath).Dec()
		next.ServeHTTP(sr, r)
		path := routePatternOrPath(r)
		statusLabel := strconv.Itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, method, statusLabel).Observe(dur)
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func observeGeneration(transport, outcome string, fragments int) {
	generateTotal.WithLabelValues(transport, outcome).Inc()
	if fragments > 0 {
		fragmentsTotal.WithLabelValues(transport).Add(float64(fragments))
	}
}
