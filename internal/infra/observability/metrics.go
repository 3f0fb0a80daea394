package observability

import (
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	entityWrites     *prometheus.CounterVec
	tenantViolations *prometheus.CounterVec
	staleLoads       prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ku_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ku_external_errors_total",
				Help: "Total errors from the store of record and other upstreams.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ku_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ku_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		entityWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ku_entity_writes_total",
				Help: "Persisted entity writes by kind and operation.",
			},
			[]string{"kind", "op"},
		),
		tenantViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ku_tenant_violations_total",
				Help: "Operations rejected for a missing or invalid store context.",
			},
			[]string{"operation"},
		),
		staleLoads: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ku_stale_loads_total",
				Help: "Responses discarded because the tenant context changed.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrEntityWrite counts one persisted create, update or delete.
func (m *Metrics) IncrEntityWrite(kind domain.Kind, op string) {
	m.entityWrites.WithLabelValues(string(kind), op).Inc()
}

// IncrTenantViolation counts a rejected tenant-less operation.
func (m *Metrics) IncrTenantViolation(operation string) {
	m.tenantViolations.WithLabelValues(operation).Inc()
}

// IncrStaleLoad counts a discarded late response.
func (m *Metrics) IncrStaleLoad() {
	m.staleLoads.Inc()
}

// Snapshot summarises the counters for GET /v1/admin/ops.
func (m *Metrics) Snapshot() *domain.OpsSnapshot {
	writes := make(map[string]float64)
	for _, kind := range domain.Kinds {
		for _, op := range []string{"create", "update", "delete"} {
			if v := getCounterValue(m.entityWrites, string(kind), op); v > 0 {
				writes[string(kind)+"."+op] = v
			}
		}
	}

	hits := getCounterValue(m.cacheHits, "profile") + getCounterValue(m.cacheHits, "store")
	misses := getCounterValue(m.cacheMisses, "profile") + getCounterValue(m.cacheMisses, "store")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.OpsSnapshot{
		EntityWrites:     writes,
		TenantViolations: sumCounter(m.tenantViolations),
		StaleLoads:       metricValue(m.staleLoads),
		ExternalErrors:   sumCounter(m.externalErrors),
		CacheHitRate:     hitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	return metricValue(cv.WithLabelValues(labels...))
}

func metricValue(c prometheus.Metric) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounter adds every series of a CounterVec.
func sumCounter(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()
	var total float64
	for metric := range ch {
		total += metricValue(metric)
	}
	return total
}
