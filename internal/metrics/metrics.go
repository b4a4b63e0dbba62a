package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheOperation identifies the object cache method being instrumented.
type CacheOperation string

const (
	// CacheOperationLookup records object cache lookup calls.
	CacheOperationLookup CacheOperation = "lookup"
	// CacheOperationStore records object cache store attempts.
	CacheOperationStore CacheOperation = "store"
	// CacheOperationRemove records object cache removals.
	CacheOperationRemove CacheOperation = "remove"
	// CacheOperationTouch records lifetime extensions on cached objects.
	CacheOperationTouch CacheOperation = "touch"
)

// CacheLookupOutcome captures the result of a cache lookup.
type CacheLookupOutcome string

const (
	// CacheLookupHit indicates the lookup reused a cached object.
	CacheLookupHit CacheLookupOutcome = "hit"
	// CacheLookupMiss indicates no cached object was present.
	CacheLookupMiss CacheLookupOutcome = "miss"
	// CacheLookupError indicates the lookup failed due to an error.
	CacheLookupError CacheLookupOutcome = "error"
)

// CacheWriteOutcome captures the result of a cache store, remove or touch.
type CacheWriteOutcome string

const (
	// CacheWriteApplied indicates the cache mutation was persisted.
	CacheWriteApplied CacheWriteOutcome = "applied"
	// CacheWriteError indicates the cache mutation failed.
	CacheWriteError CacheWriteOutcome = "error"
)

// DispatchMode labels how a request was answered.
type DispatchMode string

const (
	// DispatchModeBackend marks requests answered by waiting on a backend
	// service.
	DispatchModeBackend DispatchMode = "backend"
	// DispatchModeLocal marks requests synthesized from cached state.
	DispatchModeLocal DispatchMode = "local"
)

// RPCOutcome captures how a backend call concluded.
type RPCOutcome string

const (
	// RPCOutcomeOK indicates the backend replied in time.
	RPCOutcomeOK RPCOutcome = "ok"
	// RPCOutcomeTimeout indicates the call exceeded its deadline.
	RPCOutcomeTimeout RPCOutcome = "timeout"
	// RPCOutcomeError indicates a transport failure before a reply arrived.
	RPCOutcomeError RPCOutcome = "error"
)

// Recorder publishes Prometheus metrics for gateway activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec

	cacheOperations *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec

	rpcCalls   *prometheus.CounterVec
	rpcLatency *prometheus.HistogramVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist without conflicting with
// the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sogate",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Total requests dispatched by the gateway.",
	}, []string{"service", "endpoint", "status_code", "mode"})

	requestLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sogate",
		Subsystem: "gateway",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for completed gateway requests.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"service", "endpoint", "mode"})

	cacheOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sogate",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Object cache operations executed by the gateway.",
	}, []string{"operation", "result"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sogate",
		Subsystem: "cache",
		Name:      "operation_duration_seconds",
		Help:      "Latency distribution for object cache operations.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"operation", "result"})

	rpcCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sogate",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Backend service calls issued by the gateway.",
	}, []string{"service", "mode", "result"})

	rpcLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sogate",
		Subsystem: "rpc",
		Name:      "call_duration_seconds",
		Help:      "Latency distribution for backend service calls.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"service", "mode", "result"})

	reg.MustRegister(requests, requestLatency, cacheOperations, cacheLatency, rpcCalls, rpcLatency)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:        reg,
		handler:         handler,
		requests:        requests,
		requestLatency:  requestLatency,
		cacheOperations: cacheOperations,
		cacheLatency:    cacheLatency,
		rpcCalls:        rpcCalls,
		rpcLatency:      rpcLatency,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveRequest records the outcome and latency for a completed dispatch.
func (r *Recorder) ObserveRequest(service, endpoint string, statusCode int, mode DispatchMode, duration time.Duration) {
	if r == nil {
		return
	}
	serviceLabel := normalizeLabel(service)
	endpointLabel := normalizeLabel(endpoint)
	statusLabel := strconv.Itoa(statusCode)
	if statusCode <= 0 {
		statusLabel = "unknown"
	}
	modeLabel := normalizeLabel(string(mode))
	r.requests.WithLabelValues(serviceLabel, endpointLabel, statusLabel, modeLabel).Inc()
	r.requestLatency.WithLabelValues(serviceLabel, endpointLabel, modeLabel).Observe(duration.Seconds())
}

// ObserveCacheLookup records the result of an object cache lookup.
func (r *Recorder) ObserveCacheLookup(result CacheLookupOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	resultLabel := string(result)
	if resultLabel == "" {
		resultLabel = string(CacheLookupMiss)
	}
	r.observeCache(CacheOperationLookup, resultLabel, duration)
}

// ObserveCacheWrite records the result of a store, remove or touch.
func (r *Recorder) ObserveCacheWrite(operation CacheOperation, result CacheWriteOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	resultLabel := string(result)
	if resultLabel == "" {
		resultLabel = string(CacheWriteError)
	}
	r.observeCache(operation, resultLabel, duration)
}

// ObserveRPC records one backend service call.
func (r *Recorder) ObserveRPC(service string, mode DispatchMode, result RPCOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	serviceLabel := normalizeLabel(service)
	modeLabel := normalizeLabel(string(mode))
	resultLabel := normalizeLabel(string(result))
	r.rpcCalls.WithLabelValues(serviceLabel, modeLabel, resultLabel).Inc()
	r.rpcLatency.WithLabelValues(serviceLabel, modeLabel, resultLabel).Observe(duration.Seconds())
}

func (r *Recorder) observeCache(operation CacheOperation, result string, duration time.Duration) {
	opLabel := string(operation)
	if opLabel == "" {
		opLabel = string(CacheOperationLookup)
	}
	resLabel := normalizeLabel(result)
	r.cacheOperations.WithLabelValues(opLabel, resLabel).Inc()
	r.cacheLatency.WithLabelValues(opLabel, resLabel).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
