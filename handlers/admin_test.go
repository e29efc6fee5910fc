package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giygas/mfds-oncology-api/auth"
	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/filter"
	"github.com/giygas/mfds-oncology-api/mailer"
	"github.com/giygas/mfds-oncology-api/workspace"
	"github.com/xuri/excelize/v2"
)

type adminFixture struct {
	handler *HTTPHandlerImpl
	auth    *auth.Authenticator
	session *auth.Session
	mailer  *mockMailer
	helper  *HTTPTestHelper
}

func newAdminFixture(t *testing.T, opts ...Option) *adminFixture {
	t.Helper()
	a := newTestAuthenticator(t)
	_, session, err := a.Login("s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	m := &mockMailer{enabled: true}
	opts = append([]Option{WithAuthenticator(a), WithMailer(m)}, opts...)
	return &adminFixture{
		handler: newApprovalsHandler(opts...),
		auth:    a,
		session: session,
		mailer:  m,
		helper:  NewHTTPTestHelper(t),
	}
}

func (f *adminFixture) do(h http.HandlerFunc, method, path string, body any) *httptest.ResponseRecorder {
	return f.helper.ExecuteWithBody(h, method, path, body, nil, f.session)
}

// ============================================================================
// LOGIN / LOGOUT
// ============================================================================

func TestLogin(t *testing.T) {
	f := newAdminFixture(t)

	tests := []struct {
		name           string
		body           any
		expectedStatus int
	}{
		{"valid password", loginRequest{Password: "s3cret"}, http.StatusOK},
		{"wrong password", loginRequest{Password: "nope"}, http.StatusUnauthorized},
		{"empty body", nil, http.StatusBadRequest},
		{"malformed body", "password=s3cret", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.helper.ExecuteWithBody(f.handler.Login, http.MethodPost, "/v1/admin/login", tt.body, nil, nil)
			if tt.expectedStatus != http.StatusOK {
				f.helper.AssertErrorResponse(rr, tt.expectedStatus)
				return
			}
			var result auth.LoginResult
			f.helper.AssertJSONResponse(rr, http.StatusOK, &result)
			if result.Token == "" || result.ExpiresAt.Before(time.Now()) {
				t.Errorf("Unexpected login result %+v", result)
			}
			if _, err := f.auth.Authenticate(result.Token); err != nil {
				t.Errorf("Issued token should authenticate: %v", err)
			}
		})
	}
}

func TestLogin_Disabled(t *testing.T) {
	helper := NewHTTPTestHelper(t)
	for _, h := range []*HTTPHandlerImpl{
		newApprovalsHandler(),
		newApprovalsHandler(WithAuthenticator(auth.New(auth.Config{}))),
	} {
		rr := helper.ExecuteWithBody(h.Login, http.MethodPost, "/v1/admin/login", loginRequest{Password: "x"}, nil, nil)
		helper.AssertErrorResponse(rr, http.StatusServiceUnavailable)
	}
}

func TestLogout(t *testing.T) {
	f := newAdminFixture(t)

	rr := f.do(f.handler.Logout, http.MethodPost, "/v1/admin/logout", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if _, ok := f.auth.Sessions().Get(f.session.ID); ok {
		t.Error("Session should be gone after logout")
	}
}

func TestAdminHandlersRequireSession(t *testing.T) {
	f := newAdminFixture(t)
	handlers := map[string]http.HandlerFunc{
		"logout":    f.handler.Logout,
		"filters":   f.handler.GetWorkspaceFilters,
		"approvals": f.handler.ServeWorkspaceApprovals,
		"export":    f.handler.ExportWorkspace,
		"upload":    f.handler.UploadDataset,
		"preview":   f.handler.PreviewEmail,
		"email":     f.handler.SendReportEmail,
	}
	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			rr := f.helper.ExecuteRequest(h, http.MethodPost, "/v1/admin/x", nil)
			f.helper.AssertErrorResponse(rr, http.StatusUnauthorized)
		})
	}
}

// ============================================================================
// REFRESH
// ============================================================================

func TestRefreshData(t *testing.T) {
	s := &mockScheduler{refreshed: make(chan struct{})}
	f := newAdminFixture(t, WithScheduler(s))

	rr := f.do(f.handler.RefreshData, http.MethodPost, "/v1/admin/refresh", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rr.Code)
	}

	select {
	case <-s.refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("Refresh was not started")
	}
}

func TestRefreshData_NoScheduler(t *testing.T) {
	f := newAdminFixture(t)
	rr := f.do(f.handler.RefreshData, http.MethodPost, "/v1/admin/refresh", nil)
	f.helper.AssertErrorResponse(rr, http.StatusServiceUnavailable)
}

// ============================================================================
// WORKSPACE
// ============================================================================

func TestWorkspaceFilters(t *testing.T) {
	f := newAdminFixture(t)

	rr := f.do(f.handler.GetWorkspaceFilters, http.MethodGet, "/v1/admin/workspace/filters", nil)
	var view WorkspaceResponse
	f.helper.AssertJSONResponse(rr, http.StatusOK, &view)
	if view.Criteria != filter.DefaultCriteria() || view.Upload != nil || view.RecordCount != 3 {
		t.Errorf("Unexpected initial workspace %+v", view)
	}

	rr = f.do(f.handler.PutWorkspaceFilters, http.MethodPut, "/v1/admin/workspace/filters",
		map[string]string{"cancerType": "폐암", "startDate": "2025-02-01"})
	f.helper.AssertJSONResponse(rr, http.StatusOK, &view)
	if view.Criteria.CancerType != "폐암" || view.Criteria.Company != filter.All {
		t.Errorf("Omitted dimensions should default, got %+v", view.Criteria)
	}
	if view.DateRangeText != "25-02-01 ~" {
		t.Errorf("Unexpected date range text %q", view.DateRangeText)
	}

	rr = f.do(f.handler.ServeWorkspaceApprovals, http.MethodGet, "/v1/admin/workspace/approvals", nil)
	var listing WorkspaceApprovalsResponse
	f.helper.AssertJSONResponse(rr, http.StatusOK, &listing)
	if listing.TotalCount != 1 || listing.Data[0].ID != "201900001" {
		t.Errorf("Expected only the March lung cancer record, got %+v", listing.Data)
	}
	if listing.Source != workspace.SourceRegistry || listing.Statistics.TotalCount != 1 {
		t.Errorf("Unexpected listing metadata %+v", listing)
	}

	rr = f.do(f.handler.ResetWorkspace, http.MethodPost, "/v1/admin/workspace/reset", nil)
	f.helper.AssertJSONResponse(rr, http.StatusOK, &view)
	if view.Criteria != filter.DefaultCriteria() {
		t.Errorf("Reset should restore defaults, got %+v", view.Criteria)
	}
}

func TestPutWorkspaceFilters_Invalid(t *testing.T) {
	f := newAdminFixture(t)
	before := f.session.Workspace.Criteria()

	for name, body := range map[string]any{
		"bad date":      map[string]string{"startDate": "03/01/2025"},
		"reversed":      map[string]string{"startDate": "2025-03-01", "endDate": "2025-01-01"},
		"unknown field": map[string]string{"drug": "x"},
	} {
		t.Run(name, func(t *testing.T) {
			rr := f.do(f.handler.PutWorkspaceFilters, http.MethodPut, "/v1/admin/workspace/filters", body)
			f.helper.AssertErrorResponse(rr, http.StatusBadRequest)
		})
	}

	if f.session.Workspace.Criteria() != before {
		t.Error("Invalid criteria must leave the workspace unchanged")
	}
}

func TestExportWorkspace(t *testing.T) {
	f := newAdminFixture(t)
	if err := f.session.Workspace.SetCriteria(filter.Criteria{ManufactureType: "제조"}); err != nil {
		t.Fatal(err)
	}

	rr := f.do(f.handler.ExportWorkspace, http.MethodGet, "/v1/admin/workspace/export", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	wb, err := excelize.OpenReader(rr.Body)
	if err != nil {
		t.Fatalf("Export is not a workbook: %v", err)
	}
	defer wb.Close()
	rows, _ := wb.GetRows("Detail")
	if len(rows) != 2 {
		t.Errorf("Expected header plus 1 row, got %d", len(rows))
	}
}

// ============================================================================
// UPLOAD
// ============================================================================

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func (f *adminFixture) upload(body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/upload", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(auth.WithSession(req.Context(), f.session))
	rr := httptest.NewRecorder()
	f.handler.UploadDataset(rr, req)
	return rr
}

const uploadCSV = "품목기준코드,제품명,업체명,허가일,주성분,적응증,암종\n" +
	"U1,엔허투주100밀리그램,한국다이이찌산쿄(주),2025-02-10,trastuzumab deruxtecan,HER2 양성 유방암,유방암\n" +
	"U2,타그리소정80밀리그램,한국아스트라제네카(주),20250105,osimertinib,EGFR 변이 비소세포폐암,\n"

func TestUploadDataset(t *testing.T) {
	f := newAdminFixture(t)

	body, ct := multipartUpload(t, "file", "approvals.csv", []byte(uploadCSV))
	rr := f.upload(body, ct)

	var resp UploadResponse
	f.helper.AssertJSONResponse(rr, http.StatusOK, &resp)
	if !resp.Success || resp.Records != 2 || resp.Filename != "approvals.csv" {
		t.Errorf("Unexpected upload response %+v", resp)
	}

	ds := f.session.Workspace.Dataset(f.handler.dataStore.GetApprovals())
	if ds.Source != workspace.SourceUpload || len(ds.Records) != 2 {
		t.Fatalf("Upload should override the shared collection, got %+v", ds)
	}
	if ds.Records[1].CancerType != "폐암" {
		t.Errorf("Blank cancer type should be classified, got %q", ds.Records[1].CancerType)
	}

	rr = f.do(f.handler.ClearUpload, http.MethodDelete, "/v1/admin/upload", nil)
	var view WorkspaceResponse
	f.helper.AssertJSONResponse(rr, http.StatusOK, &view)
	if view.Upload != nil || view.RecordCount != 3 {
		t.Errorf("Clearing the upload should restore the shared collection, got %+v", view)
	}
}

func TestUploadDataset_Failures(t *testing.T) {
	tests := []struct {
		name           string
		field          string
		filename       string
		content        []byte
		expectedStatus int
	}{
		{"wrong field", "upload", "a.csv", []byte(uploadCSV), http.StatusBadRequest},
		{"empty file", "file", "a.csv", []byte("   "), http.StatusUnprocessableEntity},
		{"header only", "file", "a.csv", []byte("제품명,허가일\n"), http.StatusUnprocessableEntity},
		{"unsupported", "file", "a.pdf", []byte("%PDF-1.4"), http.StatusUnsupportedMediaType},
		{"malformed date", "file", "a.csv", []byte("제품명,허가일\n키트루다주,someday\n"), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture(t)
			f.session.Workspace.SetUpload("previous.xlsx", NewTestDataFactory().CreateApprovals()[:1])

			body, ct := multipartUpload(t, tt.field, tt.filename, tt.content)
			rr := f.upload(body, ct)
			f.helper.AssertErrorResponse(rr, tt.expectedStatus)

			if u := f.session.Workspace.Upload(); u == nil || u.Filename != "previous.xlsx" {
				t.Errorf("A failed upload must keep the previous dataset, got %+v", u)
			}
		})
	}
}

func TestUploadDataset_InvalidCollection(t *testing.T) {
	f := newAdminFixture(t)
	f.session.Workspace.SetUpload("previous.xlsx", NewTestDataFactory().CreateApprovals()[:1])
	f.handler.validator = NewMockDataValidatorBuilder().
		WithCollectionError(errors.New("duplicate id found: 1")).Build()

	body, ct := multipartUpload(t, "file", "approvals.csv", []byte(uploadCSV))
	rr := f.upload(body, ct)
	f.helper.AssertErrorResponse(rr, http.StatusUnprocessableEntity)

	if u := f.session.Workspace.Upload(); u == nil || u.Filename != "previous.xlsx" {
		t.Errorf("A rejected upload must keep the previous dataset, got %+v", u)
	}
}

func TestUploadDataset_TooLarge(t *testing.T) {
	f := newAdminFixture(t, WithMaxUploadSize(256))

	body, ct := multipartUpload(t, "file", "big.csv", bytes.Repeat([]byte("x"), 4096))
	rr := f.upload(body, ct)
	f.helper.AssertErrorResponse(rr, http.StatusRequestEntityTooLarge)
}

// ============================================================================
// EMAIL
// ============================================================================

func TestPreviewEmail(t *testing.T) {
	f := newAdminFixture(t)

	rr := f.do(f.handler.PreviewEmail, http.MethodPost, "/v1/admin/email/preview",
		previewRequest{AdditionalNote: "3월 신규 승인 확인 바랍니다."})

	var preview EmailPreviewResponse
	f.helper.AssertJSONResponse(rr, http.StatusOK, &preview)

	for _, want := range []string{"총 승인 품목: 3건", "폐암(2)", "3월 신규 승인 확인 바랍니다.", "https://dashboard.example"} {
		if !strings.Contains(preview.Text, want) {
			t.Errorf("Preview should contain %q, got:\n%s", want, preview.Text)
		}
	}
	if preview.Subject == "" || preview.Statistics.TotalCount != 3 {
		t.Errorf("Unexpected preview %+v", preview)
	}
}

func TestSendReportEmail(t *testing.T) {
	f := newAdminFixture(t)

	rr := f.do(f.handler.SendReportEmail, http.MethodPost, "/v1/admin/email", sendReportRequest{
		Recipients:  "a@example.com; b@example.com\nnot-an-address",
		AttachExcel: true,
	})

	var result entities.DispatchResult
	f.helper.AssertJSONResponse(rr, http.StatusOK, &result)
	if !result.Success || result.ID != "msg-1" || result.Message != "Email sent to 2 recipient(s)" {
		t.Errorf("Unexpected dispatch result %+v", result)
	}

	if len(f.mailer.sent) != 1 {
		t.Fatalf("Expected one email, got %d", len(f.mailer.sent))
	}
	email := f.mailer.sent[0]
	if email.Subject == "" || email.DateRangeText != "전체 기간" || email.Statistics.TotalCount != 3 {
		t.Errorf("Unexpected email %+v", email)
	}
	if !strings.HasSuffix(email.ExcelFilename, ".xlsx") {
		t.Errorf("Unexpected attachment name %q", email.ExcelFilename)
	}
	content, err := base64.StdEncoding.DecodeString(email.ExcelBase64)
	if err != nil || !bytes.HasPrefix(content, []byte("PK")) {
		t.Errorf("Attachment should be a base64 xlsx, err=%v", err)
	}
}

func TestSendReportEmail_Failures(t *testing.T) {
	tests := []struct {
		name           string
		mailer         *mockMailer
		validator      *MockDataValidator
		expectedStatus int
	}{
		{"mail disabled", &mockMailer{}, NewMockDataValidatorBuilder().Build(), http.StatusServiceUnavailable},
		{"bad recipients", &mockMailer{enabled: true},
			NewMockDataValidatorBuilder().WithRecipientError(errors.New("at least one recipient is required")).Build(), http.StatusBadRequest},
		{"provider failure", &mockMailer{enabled: true, err: errors.New("resend: 422 invalid from")},
			NewMockDataValidatorBuilder().Build(), http.StatusBadGateway},
		{"invalid request", &mockMailer{enabled: true, err: mailer.ErrInvalidRequest},
			NewMockDataValidatorBuilder().Build(), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture(t, WithMailer(tt.mailer))
			f.handler.validator = tt.validator

			rr := f.do(f.handler.SendReportEmail, http.MethodPost, "/v1/admin/email",
				sendReportRequest{Recipients: "a@example.com"})
			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestDispatchEmail(t *testing.T) {
	f := newAdminFixture(t)
	stats := entities.Statistics{TotalCount: 1}

	rr := f.do(f.handler.DispatchEmail, http.MethodPost, "/v1/admin/email/dispatch", entities.ReportEmail{
		Recipients:    []string{"a@example.com"},
		Subject:       "MFDS 항암제 승인현황 리포트",
		DateRangeText: "25-01-01 ~ 25-03-31",
		Statistics:    &stats,
	})

	var result entities.DispatchResult
	f.helper.AssertJSONResponse(rr, http.StatusOK, &result)
	if !result.Success || len(f.mailer.sent) != 1 {
		t.Errorf("Expected one dispatched email, got %+v", result)
	}
}
