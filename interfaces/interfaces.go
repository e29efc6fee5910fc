// Package interfaces defines the contracts shared between the approvals
// API packages so each can be tested against hand-written mocks.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/mfds-oncology-api/entities"
)

// DataQualityReport summarizes quality issues found in a collection.
type DataQualityReport struct {
	DuplicateIDs        []string
	InvalidDates        []string
	MissingIndication   int // records carrying the placeholder indication
	UnclassifiedCancer  int // records that fell through to 기타
	MissingGenericName  int
	MissingApprovalType int
}

// DataStore holds the working collection served by the API. Updates swap
// the whole collection atomically.
type DataStore interface {
	GetApprovals() []entities.ExtendedDrugApproval
	GetApprovalsMap() map[string]entities.ExtendedDrugApproval
	GetOriginalCount() int
	GetFailedKeywords() []string
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	UpdateData(result *entities.FetchResult)
	BeginUpdate() bool
	EndUpdate()
}

// RegistrySearcher queries the external approval registry for one keyword.
type RegistrySearcher interface {
	Search(ctx context.Context, itemName string) (*entities.RegistryPage, error)
}

// Fetcher runs a keyword fetch (single term, default set or full sweep).
type Fetcher interface {
	Fetch(ctx context.Context, req entities.FetchRequest) (*entities.FetchResult, error)
}

// Scheduler manages the periodic full sweep.
type Scheduler interface {
	Start() error
	Stop()
	Refresh(ctx context.Context) error
	NextRun() time.Time
}

// ReportSender dispatches the statistics report email.
type ReportSender interface {
	SendReport(ctx context.Context, email entities.ReportEmail) (*entities.DispatchResult, error)
}

// HTTPHandler defines the API endpoints.
type HTTPHandler interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)

	ServeApprovals(w http.ResponseWriter, r *http.Request)
	FindApproval(w http.ResponseWriter, r *http.Request)
	ServeStatistics(w http.ResponseWriter, r *http.Request)
	ServeOptions(w http.ResponseWriter, r *http.Request)
	ExportApprovals(w http.ResponseWriter, r *http.Request)
	FetchApprovals(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)

	// Admin
	Login(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	RefreshData(w http.ResponseWriter, r *http.Request)
	GetWorkspaceFilters(w http.ResponseWriter, r *http.Request)
	PutWorkspaceFilters(w http.ResponseWriter, r *http.Request)
	ResetWorkspace(w http.ResponseWriter, r *http.Request)
	ServeWorkspaceApprovals(w http.ResponseWriter, r *http.Request)
	ExportWorkspace(w http.ResponseWriter, r *http.Request)
	UploadDataset(w http.ResponseWriter, r *http.Request)
	ClearUpload(w http.ResponseWriter, r *http.Request)
	PreviewEmail(w http.ResponseWriter, r *http.Request)
	SendReportEmail(w http.ResponseWriter, r *http.Request)
	DispatchEmail(w http.ResponseWriter, r *http.Request)
}

// HealthChecker reports service health.
type HealthChecker interface {
	HealthCheck() (status string, details map[string]any, httpStatus int)
	CalculateNextUpdate() time.Time
}

// DataValidator checks records and user input.
type DataValidator interface {
	ValidateApproval(a *entities.ExtendedDrugApproval) error
	ValidateCollection(approvals []entities.ExtendedDrugApproval) error
	ReportDataQuality(approvals []entities.ExtendedDrugApproval) *DataQualityReport
	ValidateSearchTerm(input string) error
	ValidateRecipients(recipients []string) error
}
