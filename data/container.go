// Package data provides thread-safe storage for the working collection of
// oncology approvals. The DataContainer swaps whole snapshots atomically so
// readers never observe a partially refreshed collection.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/interfaces"
	"github.com/giygas/mfds-oncology-api/logging"
	"github.com/giygas/mfds-oncology-api/metrics"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds all the data with atomic pointers for zero-downtime updates
type DataContainer struct {
	approvals       atomic.Value // []entities.ExtendedDrugApproval
	approvalsMap    atomic.Value // map[string]entities.ExtendedDrugApproval
	originalCount   atomic.Int64
	failedKeywords  atomic.Value // []string
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Int32
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with empty data
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.approvals.Store(make([]entities.ExtendedDrugApproval, 0))
	dc.approvalsMap.Store(make(map[string]entities.ExtendedDrugApproval))
	dc.failedKeywords.Store([]string(nil))
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// Thread-safe getters with type check

// GetApprovals returns the collection sorted by approval date, newest first
func (dc *DataContainer) GetApprovals() []entities.ExtendedDrugApproval {
	if v := dc.approvals.Load(); v != nil {
		if approvals, ok := v.([]entities.ExtendedDrugApproval); ok {
			return approvals
		}
	}

	logging.Warn("Approvals list is empty or invalid")
	return []entities.ExtendedDrugApproval{}
}

// GetApprovalsMap returns the approvals keyed by id for O(1) lookups
func (dc *DataContainer) GetApprovalsMap() map[string]entities.ExtendedDrugApproval {
	if v := dc.approvalsMap.Load(); v != nil {
		if approvalsMap, ok := v.(map[string]entities.ExtendedDrugApproval); ok {
			return approvalsMap
		}
	}

	logging.Warn("ApprovalsMap is empty or invalid")
	return make(map[string]entities.ExtendedDrugApproval)
}

// GetOriginalCount returns the registry total summed over the keywords of
// the last refresh, before deduplication and the oncology filter
func (dc *DataContainer) GetOriginalCount() int {
	return int(dc.originalCount.Load())
}

// GetFailedKeywords returns the keywords that failed during the last refresh
func (dc *DataContainer) GetFailedKeywords() []string {
	if v := dc.failedKeywords.Load(); v != nil {
		if keywords, ok := v.([]string); ok {
			return keywords
		}
	}
	return nil
}

// GetLastUpdated returns the timestamp of the last data update
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true while at least one refresh is in flight
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load() > 0
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateData atomically replaces the collection with a fetch result
func (dc *DataContainer) UpdateData(result *entities.FetchResult) {
	if result == nil {
		return
	}

	records := result.Records
	if records == nil {
		records = make([]entities.ExtendedDrugApproval, 0)
	}
	approvalsMap := make(map[string]entities.ExtendedDrugApproval, len(records))
	for _, r := range records {
		if _, seen := approvalsMap[r.ID]; !seen {
			approvalsMap[r.ID] = r
		}
	}

	updated := result.FetchedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	// Atomic swap (zero downtime replacement)
	dc.approvals.Store(records)
	dc.approvalsMap.Store(approvalsMap)
	dc.originalCount.Store(int64(result.OriginalCount))
	dc.failedKeywords.Store(append([]string(nil), result.FailedKeywords...))
	dc.lastUpdated.Store(updated)

	metrics.ApprovalRecords.Set(float64(len(records)))
}

// BeginUpdate marks the start of a refresh. It returns true when no other
// refresh was in flight. A superseding refresh may begin while the stale one
// is still winding down, so callers pair every BeginUpdate with EndUpdate
// regardless of the result.
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.Add(1) == 1
}

// EndUpdate marks the end of a refresh
func (dc *DataContainer) EndUpdate() {
	if dc.updating.Add(-1) < 0 {
		dc.updating.Store(0)
	}
}
