package domain

// ============================================================
// Health API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Data    []T    `json:"data"`
	Total   int    `json:"total"`
	StoreID string `json:"storeId"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// OpsSnapshot is the operator view of the service counters.
type OpsSnapshot struct {
	EntityWrites     map[string]float64 `json:"entityWrites"`
	TenantViolations float64            `json:"tenantViolations"`
	StaleLoads       float64            `json:"staleLoads"`
	ExternalErrors   float64            `json:"externalErrors"`
	CacheHitRate     float64            `json:"cacheHitRate"`
}
