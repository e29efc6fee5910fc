// Package health reports whether the approvals collection is loaded and
// fresh enough to serve.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/mfds-oncology-api/interfaces"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Sweeps run twice a day, so data older than a day means at least one
// scheduled refresh was missed.
const (
	staleAfter        = 24 * time.Hour
	unhealthyAfter    = 48 * time.Hour
	slowUpdateAfter   = 6 * time.Hour
	defaultMorningRun = 6
	defaultEveningRun = 18
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
	scheduler interfaces.Scheduler
	now       func() time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies.
// scheduler may be nil, in which case the next update is computed from the
// default 06:00 and 18:00 refresh times.
func NewHealthChecker(dataStore interfaces.DataStore, scheduler interfaces.Scheduler) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore: dataStore,
		scheduler: scheduler,
		now:       time.Now,
	}
}

// HealthCheck returns HTTP-specific health data. A partial sweep (some
// keywords failed) is degraded but still served with 200; stale data is
// degraded with 503.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	approvals := h.dataStore.GetApprovals()
	failed := h.dataStore.GetFailedKeywords()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := h.now().Sub(lastUpdate)

	switch {
	case len(approvals) == 0 || lastUpdate.IsZero():
		status = StatusUnhealthy
		httpStatus = http.StatusServiceUnavailable

	case dataAge > unhealthyAfter:
		status = StatusUnhealthy
		httpStatus = http.StatusServiceUnavailable

	case dataAge > staleAfter:
		status = StatusDegraded
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > slowUpdateAfter:
		status = StatusDegraded
		httpStatus = http.StatusServiceUnavailable

	case len(failed) > 0:
		status = StatusDegraded
		httpStatus = http.StatusOK

	default:
		status = StatusHealthy
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"last_update":     lastUpdate.Format(time.RFC3339),
		"data_age_hours":  math.Round(dataAge.Hours()*10) / 10,
		"approvals":       len(approvals),
		"original_count":  h.dataStore.GetOriginalCount(),
		"failed_keywords": len(failed),
		"is_updating":     isUpdating,
		"next_update":     h.CalculateNextUpdate().Format(time.RFC3339),
	}
	if lastUpdate.IsZero() {
		data["last_update"] = nil
		data["data_age_hours"] = nil
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled sweep
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	if h.scheduler != nil {
		if next := h.scheduler.NextRun(); !next.IsZero() {
			return next
		}
	}
	return nextDefaultRun(h.now())
}

func nextDefaultRun(now time.Time) time.Time {
	morning := time.Date(now.Year(), now.Month(), now.Day(), defaultMorningRun, 0, 0, 0, now.Location())
	evening := time.Date(now.Year(), now.Month(), now.Day(), defaultEveningRun, 0, 0, 0, now.Location())

	if now.Before(morning) {
		return morning
	}
	if now.Before(evening) {
		return evening
	}
	return morning.AddDate(0, 0, 1)
}
