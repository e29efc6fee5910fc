package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/giygas/mfds-oncology-api/auth"
	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/interfaces"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// TEST DATA FACTORY
// ============================================================================

type TestDataFactory struct{}

func NewTestDataFactory() *TestDataFactory {
	return &TestDataFactory{}
}

func (f *TestDataFactory) CreateApproval(id, drugName, cancerType, date string) entities.ExtendedDrugApproval {
	return entities.ExtendedDrugApproval{
		DrugApproval: entities.DrugApproval{
			ID:           id,
			DrugName:     drugName,
			GenericName:  "pembrolizumab",
			Company:      "한국엠에스디(유)",
			Indication:   "이전에 치료받은 적이 없는 전이성 비소세포폐암 환자의 1차 치료로서 펨브롤리주맙과 페메트렉시드 및 백금기반 화학요법 병용요법. 이 약은 PD-L1 발현 여부와 관계없이 투여할 수 있으며 EGFR 또는 ALK 변이가 없는 경우에 한한다.",
			CancerType:   cancerType,
			ApprovalDate: date,
			Status:       entities.StatusApproved,
		},
		ApprovalType:    "신약, 희귀",
		ManufactureType: "수입",
		Notes:           "면역관문억제제 PD-1",
	}
}

// CreateApprovals returns three records across two cancer types.
func (f *TestDataFactory) CreateApprovals() []entities.ExtendedDrugApproval {
	domestic := f.CreateApproval("201900003", "렌비마캡슐4밀리그램", "간암", "2024-11-20")
	domestic.ManufactureType = "제조"
	domestic.Company = "한국에자이(주)"
	return []entities.ExtendedDrugApproval{
		f.CreateApproval("201900001", "키트루다주(펨브롤리주맙)", "폐암", "2025-03-02"),
		f.CreateApproval("201900002", "옵디보주", "폐암", "2025-01-15"),
		domestic,
	}
}

func (f *TestDataFactory) CreateApprovalsMap(records []entities.ExtendedDrugApproval) map[string]entities.ExtendedDrugApproval {
	m := make(map[string]entities.ExtendedDrugApproval, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return m
}

// ============================================================================
// MOCKS
// ============================================================================

type MockDataStore struct {
	approvals      []entities.ExtendedDrugApproval
	approvalsMap   map[string]entities.ExtendedDrugApproval
	failedKeywords []string
	lastUpdated    time.Time
	startTime      time.Time
	updating       bool
}

func (m *MockDataStore) GetApprovals() []entities.ExtendedDrugApproval { return m.approvals }
func (m *MockDataStore) GetApprovalsMap() map[string]entities.ExtendedDrugApproval {
	return m.approvalsMap
}
func (m *MockDataStore) GetOriginalCount() int                   { return len(m.approvals) }
func (m *MockDataStore) GetFailedKeywords() []string             { return m.failedKeywords }
func (m *MockDataStore) GetLastUpdated() time.Time               { return m.lastUpdated }
func (m *MockDataStore) IsUpdating() bool                        { return m.updating }
func (m *MockDataStore) GetServerStartTime() time.Time           { return m.startTime }
func (m *MockDataStore) UpdateData(result *entities.FetchResult) {}
func (m *MockDataStore) BeginUpdate() bool                       { return true }
func (m *MockDataStore) EndUpdate()                              {}

type MockDataStoreBuilder struct {
	store *MockDataStore
}

func NewMockDataStoreBuilder() *MockDataStoreBuilder {
	return &MockDataStoreBuilder{store: &MockDataStore{
		lastUpdated: time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC),
		startTime:   time.Now().Add(-90 * time.Minute),
	}}
}

func (b *MockDataStoreBuilder) WithApprovals(records []entities.ExtendedDrugApproval) *MockDataStoreBuilder {
	b.store.approvals = records
	b.store.approvalsMap = NewTestDataFactory().CreateApprovalsMap(records)
	return b
}

func (b *MockDataStoreBuilder) WithUpdating(updating bool) *MockDataStoreBuilder {
	b.store.updating = updating
	return b
}

func (b *MockDataStoreBuilder) Build() *MockDataStore {
	return b.store
}

type MockDataValidator struct {
	searchErr     error
	recipientErr  error
	collectionErr error
}

func (m *MockDataValidator) ValidateApproval(a *entities.ExtendedDrugApproval) error { return nil }
func (m *MockDataValidator) ValidateCollection(approvals []entities.ExtendedDrugApproval) error {
	return m.collectionErr
}
func (m *MockDataValidator) ReportDataQuality(approvals []entities.ExtendedDrugApproval) *interfaces.DataQualityReport {
	return &interfaces.DataQualityReport{}
}
func (m *MockDataValidator) ValidateSearchTerm(input string) error { return m.searchErr }
func (m *MockDataValidator) ValidateRecipients(recipients []string) error {
	return m.recipientErr
}

type MockDataValidatorBuilder struct {
	validator *MockDataValidator
}

func NewMockDataValidatorBuilder() *MockDataValidatorBuilder {
	return &MockDataValidatorBuilder{validator: &MockDataValidator{}}
}

func (b *MockDataValidatorBuilder) WithSearchError(err error) *MockDataValidatorBuilder {
	b.validator.searchErr = err
	return b
}

func (b *MockDataValidatorBuilder) WithRecipientError(err error) *MockDataValidatorBuilder {
	b.validator.recipientErr = err
	return b
}

func (b *MockDataValidatorBuilder) WithCollectionError(err error) *MockDataValidatorBuilder {
	b.validator.collectionErr = err
	return b
}

func (b *MockDataValidatorBuilder) Build() *MockDataValidator {
	return b.validator
}

type mockFetcher struct {
	result  *entities.FetchResult
	err     error
	lastReq entities.FetchRequest
}

func (m *mockFetcher) Fetch(ctx context.Context, req entities.FetchRequest) (*entities.FetchResult, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockScheduler struct {
	refreshed chan struct{}
}

func (m *mockScheduler) Start() error       { return nil }
func (m *mockScheduler) Stop()              {}
func (m *mockScheduler) NextRun() time.Time { return time.Time{} }
func (m *mockScheduler) Refresh(ctx context.Context) error {
	close(m.refreshed)
	return nil
}

type mockHealthChecker struct{}

func (m *mockHealthChecker) HealthCheck() (string, map[string]any, int) {
	return "degraded", map[string]any{"approvals": 3, "failed_keywords": 1}, http.StatusOK
}

func (m *mockHealthChecker) CalculateNextUpdate() time.Time { return time.Time{} }

type mockMailer struct {
	mu      sync.Mutex
	enabled bool
	err     error
	sent    []entities.ReportEmail
}

func (m *mockMailer) Enabled() bool        { return m.enabled }
func (m *mockMailer) DashboardURL() string { return "https://dashboard.example" }

func (m *mockMailer) SendReport(ctx context.Context, email entities.ReportEmail) (*entities.DispatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, email)
	return &entities.DispatchResult{
		Success: true,
		Message: fmt.Sprintf("Email sent to %d recipient(s)", len(email.Recipients)),
		ID:      "msg-1",
	}, nil
}

// ============================================================================
// HTTP HELPERS
// ============================================================================

// HTTPTestHelper provides utilities for HTTP handler testing
type HTTPTestHelper struct {
	t *testing.T
}

func NewHTTPTestHelper(t *testing.T) *HTTPTestHelper {
	return &HTTPTestHelper{t: t}
}

// ExecuteRequest executes an HTTP handler with given parameters
func (h *HTTPTestHelper) ExecuteRequest(handler http.HandlerFunc, method, path string, urlParams map[string]string) *httptest.ResponseRecorder {
	return h.ExecuteWithBody(handler, method, path, nil, urlParams, nil)
}

// ExecuteWithBody executes a handler with an optional JSON body and session.
func (h *HTTPTestHelper) ExecuteWithBody(handler http.HandlerFunc, method, path string, body any, urlParams map[string]string, session *auth.Session) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				h.t.Fatalf("Failed to marshal body: %v", err)
			}
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if len(urlParams) > 0 {
		rctx := chi.NewRouteContext()
		for key, value := range urlParams {
			rctx.URLParams.Add(key, value)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	if session != nil {
		req = req.WithContext(auth.WithSession(req.Context(), session))
	}

	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

// AssertJSONResponse asserts that response contains valid JSON with expected status
func (h *HTTPTestHelper) AssertJSONResponse(resp *httptest.ResponseRecorder, expectedStatus int, target any) {
	h.t.Helper()
	if resp.Code != expectedStatus {
		h.t.Errorf("Expected status %d, got %d: %s", expectedStatus, resp.Code, resp.Body.String())
	}

	if err := json.Unmarshal(resp.Body.Bytes(), target); err != nil {
		h.t.Errorf("Response should be valid JSON, got error: %v", err)
	}
}

// AssertErrorResponse asserts that response contains an error with expected status
func (h *HTTPTestHelper) AssertErrorResponse(resp *httptest.ResponseRecorder, expectedStatus int) {
	h.t.Helper()
	if resp.Code != expectedStatus {
		h.t.Errorf("Expected status %d, got %d: %s", expectedStatus, resp.Code, resp.Body.String())
	}

	var errorResp map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &errorResp); err != nil {
		h.t.Fatalf("Error response should be valid JSON, got error: %v", err)
	}
	for _, field := range []string{"error", "message", "code"} {
		if _, ok := errorResp[field]; !ok {
			h.t.Errorf("Error response should have %s field", field)
		}
	}
}

// newTestAuthenticator returns an enabled authenticator for password "s3cret".
func newTestAuthenticator(t *testing.T) *auth.Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	return auth.New(auth.Config{PasswordHash: string(hash), TokenSecret: "handler-test-secret", SessionTTL: time.Hour})
}
