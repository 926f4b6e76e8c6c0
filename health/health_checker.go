// Package health computes the health report of the leaflet API.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/leaflet-api/interfaces"
)

// StaleFetchThreshold is how long failing fetches may go without a success before the report degrades
const StaleFetchThreshold = 24 * time.Hour

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	status        interfaces.PipelineStatus
	cache         interfaces.IndexStore
	llmConfigured bool
	maxSessions   int64
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(status interfaces.PipelineStatus, cache interfaces.IndexStore, llmConfigured bool, maxSessions int64) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		status:        status,
		cache:         cache,
		llmConfigured: llmConfigured,
		maxSessions:   maxSessions,
	}
}

// HealthCheck reports "healthy", "degraded" or "unhealthy". Degraded keeps a 200
// because part of the API still works; unhealthy returns 503.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	lastFetch := h.status.LastSuccessfulFetch()
	found, missed := h.status.FetchCounts()
	sessions := h.status.ActiveSessions()
	startTime := h.status.GetServerStartTime()

	reference := lastFetch
	if reference.IsZero() {
		reference = startTime
	}
	failingLong := missed > 0 && !reference.IsZero() && time.Since(reference) > StaleFetchThreshold

	switch {
	case h.maxSessions > 0 && sessions > h.maxSessions:
		// more sessions than the limiter allows means teardown is leaking browsers
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case !h.llmConfigured || failingLong:
		status = "degraded"
		httpStatus = http.StatusOK

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"browser_sessions": sessions,
		"fetches_found":    found,
		"fetches_missed":   missed,
		"llm_configured":   h.llmConfigured,
		"cache_enabled":    h.cache != nil && h.cache.Enabled(),
		"cache_entries":    0,
	}
	if h.cache != nil {
		data["cache_entries"] = h.cache.Len()
	}

	if lastFetch.IsZero() {
		data["last_successful_fetch"] = nil
	} else {
		data["last_successful_fetch"] = lastFetch.Format(time.RFC3339)
		data["hours_since_fetch"] = math.Round(time.Since(lastFetch).Hours()*10) / 10
	}

	if !startTime.IsZero() {
		data["uptime_seconds"] = math.Round(time.Since(startTime).Seconds())
	}

	return status, data, httpStatus
}
