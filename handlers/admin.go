package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/mfds-oncology-api/auth"
	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/filter"
	"github.com/giygas/mfds-oncology-api/importer"
	"github.com/giygas/mfds-oncology-api/logging"
	"github.com/giygas/mfds-oncology-api/mailer"
	"github.com/giygas/mfds-oncology-api/report"
	"github.com/giygas/mfds-oncology-api/scheduler"
	"github.com/giygas/mfds-oncology-api/workspace"
)

type loginRequest struct {
	Password string `json:"password"`
}

func (h *HTTPHandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	if h.authenticator == nil || !h.authenticator.Enabled() {
		h.RespondWithError(w, http.StatusServiceUnavailable, "admin access is not configured")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, session, err := h.authenticator.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logging.Warn("Failed admin login", "remote_addr", r.RemoteAddr)
			h.RespondWithError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		logging.Error("Admin login failed", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "login failed")
		return
	}

	logging.Info("Admin session created", "session_id", session.ID, "remote_addr", r.RemoteAddr)
	h.RespondWithJSON(w, http.StatusOK, result)
}

// session returns the session attached by auth.Middleware. Routes using it
// are mounted behind that middleware.
func (h *HTTPHandlerImpl) session(w http.ResponseWriter, r *http.Request) (*auth.Session, bool) {
	s := auth.SessionFrom(r.Context())
	if s == nil {
		h.RespondWithError(w, http.StatusUnauthorized, "missing session")
		return nil, false
	}
	return s, true
}

func (h *HTTPHandlerImpl) Logout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.authenticator.Logout(s)
	h.RespondWithJSON(w, http.StatusOK, map[string]any{"success": true})
}

// RefreshData starts a full registry sweep in the background. A refresh
// already running is superseded.
func (h *HTTPHandlerImpl) RefreshData(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		h.RespondWithError(w, http.StatusServiceUnavailable, "scheduler is not configured")
		return
	}

	wasUpdating := h.dataStore.IsUpdating()
	go func() {
		// The sweep outlives the request; the scheduler applies its own timeout.
		err := h.scheduler.Refresh(context.Background())
		switch {
		case err == nil:
		case errors.Is(err, scheduler.ErrSuperseded):
			logging.Info("Manual refresh superseded")
		default:
			logging.Error("Manual refresh failed", "error", err)
		}
	}()

	message := "Refresh started"
	if wasUpdating {
		message = "Refresh restarted; the running sweep will be discarded"
	}
	h.RespondWithJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": message,
	})
}

// WorkspaceResponse describes a session's criteria and dataset.
type WorkspaceResponse struct {
	Criteria      filter.Criteria   `json:"criteria"`
	DateRangeText string            `json:"dateRangeText"`
	Upload        *workspace.Upload `json:"upload"`
	RecordCount   int               `json:"recordCount"`
}

func (h *HTTPHandlerImpl) workspaceView(state *workspace.State) WorkspaceResponse {
	c := state.Criteria()
	return WorkspaceResponse{
		Criteria:      c,
		DateRangeText: report.DateRangeText(c),
		Upload:        state.Upload(),
		RecordCount:   len(state.Dataset(h.dataStore.GetApprovals()).Records),
	}
}

func (h *HTTPHandlerImpl) GetWorkspaceFilters(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.RespondWithJSON(w, http.StatusOK, h.workspaceView(s.Workspace))
}

// PutWorkspaceFilters replaces the session's criteria. Omitted dimensions
// are reset to 전체.
func (h *HTTPHandlerImpl) PutWorkspaceFilters(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	c := filter.DefaultCriteria()
	if err := decodeJSON(w, r, &c); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q := strings.TrimSpace(c.Query); q != "" {
		if err := h.validator.ValidateSearchTerm(q); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := s.Workspace.SetCriteria(c); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.RespondWithJSON(w, http.StatusOK, h.workspaceView(s.Workspace))
}

func (h *HTTPHandlerImpl) ResetWorkspace(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Workspace.Reset()
	h.RespondWithJSON(w, http.StatusOK, h.workspaceView(s.Workspace))
}

// WorkspaceApprovalsResponse adds statistics to a workspace listing.
type WorkspaceApprovalsResponse struct {
	ApprovalsResponse
	Statistics entities.Statistics `json:"statistics"`
}

func (h *HTTPHandlerImpl) ServeWorkspaceApprovals(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	ds, c := s.Workspace.Filtered(h.dataStore.GetApprovals())
	stats := report.CalculateStatistics(ds.Records)

	records := ds.Records
	if wantsTable(r.URL.Query()) {
		records = tableView(records)
	}

	h.RespondWithJSON(w, http.StatusOK, WorkspaceApprovalsResponse{
		ApprovalsResponse: ApprovalsResponse{
			Data:          records,
			TotalCount:    len(records),
			Criteria:      c,
			DateRangeText: report.DateRangeText(c),
			Source:        ds.Source,
			Filename:      ds.Filename,
			LastUpdated:   formatTime(h.dataStore.GetLastUpdated()),
		},
		Statistics: stats,
	})
}

func (h *HTTPHandlerImpl) ExportWorkspace(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ds, c := s.Workspace.Filtered(h.dataStore.GetApprovals())
	h.export(w, ds.Records, c)
}

// UploadResponse reports what a spreadsheet import produced.
type UploadResponse struct {
	Success    bool   `json:"success"`
	Filename   string `json:"filename"`
	Records    int    `json:"records"`
	Rows       int    `json:"rows"`
	Skipped    int    `json:"skipped"`
	Duplicates int    `json:"duplicates"`
}

// UploadDataset imports a spreadsheet from the multipart field "file" and
// makes it the session's dataset. A failed import keeps the previous one.
func (h *HTTPHandlerImpl) UploadDataset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if r.ContentLength > h.maxUploadSize {
		h.RespondWithError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.RespondWithError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
			return
		}
		h.RespondWithError(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	result, err := h.importer.Import(r.Context(), file, header.Filename)
	if err != nil {
		status := http.StatusUnprocessableEntity
		var rowErr *importer.RowError
		switch {
		case errors.Is(err, importer.ErrUnsupportedFormat):
			status = http.StatusUnsupportedMediaType
		case errors.Is(err, importer.ErrEmptyFile), errors.Is(err, importer.ErrReadFailure), errors.As(err, &rowErr):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, context.Canceled):
			return
		}
		logging.Warn("Spreadsheet import failed", "filename", header.Filename, "error", err)
		h.RespondWithError(w, status, err.Error())
		return
	}

	if quality := h.validator.ReportDataQuality(result.Records); len(quality.InvalidDates) > 0 {
		logging.Warn("Uploaded records have unreadable dates", "filename", header.Filename, "examples", quality.InvalidDates)
	}

	if err := h.validator.ValidateCollection(result.Records); err != nil {
		logging.Warn("Uploaded records failed validation", "filename", header.Filename, "error", err)
		h.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.Workspace.SetUpload(result.Filename, result.Records)
	h.RespondWithJSON(w, http.StatusOK, UploadResponse{
		Success:    true,
		Filename:   result.Filename,
		Records:    len(result.Records),
		Rows:       result.Rows,
		Skipped:    result.Skipped,
		Duplicates: result.Duplicates,
	})
}

func (h *HTTPHandlerImpl) ClearUpload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Workspace.ClearUpload()
	h.RespondWithJSON(w, http.StatusOK, h.workspaceView(s.Workspace))
}

type previewRequest struct {
	AdditionalNote string `json:"additionalNote"`
}

// EmailPreviewResponse is what the email form shows before sending.
type EmailPreviewResponse struct {
	Subject       string              `json:"subject"`
	DateRangeText string              `json:"dateRangeText"`
	Text          string              `json:"text"`
	Statistics    entities.Statistics `json:"statistics"`
	DashboardURL  string              `json:"dashboardUrl"`
}

func (h *HTTPHandlerImpl) PreviewEmail(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req previewRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ds, c := s.Workspace.Filtered(h.dataStore.GetApprovals())
	stats := report.CalculateStatistics(ds.Records)
	rangeText := report.DateRangeText(c)

	h.RespondWithJSON(w, http.StatusOK, EmailPreviewResponse{
		Subject:       report.DefaultSubject,
		DateRangeText: rangeText,
		Text:          report.PreviewText(rangeText, stats, req.AdditionalNote, h.dashboardURL()),
		Statistics:    stats,
		DashboardURL:  h.dashboardURL(),
	})
}

// sendReportRequest is the email form: recipients as typed by the user.
type sendReportRequest struct {
	Recipients     string `json:"recipients"`
	Subject        string `json:"subject"`
	AdditionalNote string `json:"additionalNote"`
	AttachExcel    bool   `json:"attachExcel"`
}

// SendReportEmail sends the statistics of the session's filtered dataset,
// optionally with the workbook attached.
func (h *HTTPHandlerImpl) SendReportEmail(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if !h.mailEnabled(w) {
		return
	}

	var req sendReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	recipients := mailer.ParseRecipients(req.Recipients)
	if err := h.validator.ValidateRecipients(recipients); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = report.DefaultSubject
	}

	ds, c := s.Workspace.Filtered(h.dataStore.GetApprovals())
	stats := report.CalculateStatistics(ds.Records)
	email := entities.ReportEmail{
		Recipients:     recipients,
		Subject:        subject,
		DateRangeText:  report.DateRangeText(c),
		Statistics:     &stats,
		AdditionalNote: req.AdditionalNote,
		AttachExcel:    req.AttachExcel,
	}

	if req.AttachExcel {
		now := h.now()
		content, err := report.BuildWorkbook(ds.Records, report.SummaryInfo{Period: email.DateRangeText, GeneratedAt: now})
		if err != nil {
			logging.Error("Failed to build email attachment", "error", err)
			h.RespondWithError(w, http.StatusInternalServerError, "Failed to build workbook")
			return
		}
		email.ExcelBase64 = base64.StdEncoding.EncodeToString(content)
		email.ExcelFilename = report.ExportFilename(c, now)
	}

	h.dispatch(w, r, email)
}

// DispatchEmail accepts a complete report email payload.
func (h *HTTPHandlerImpl) DispatchEmail(w http.ResponseWriter, r *http.Request) {
	if !h.mailEnabled(w) {
		return
	}

	var email entities.ReportEmail
	if err := decodeJSON(w, r, &email); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.ValidateRecipients(email.Recipients); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.dispatch(w, r, email)
}

func (h *HTTPHandlerImpl) mailEnabled(w http.ResponseWriter) bool {
	if h.mailer == nil || !h.mailer.Enabled() {
		h.RespondWithError(w, http.StatusServiceUnavailable, "email dispatch is not configured")
		return false
	}
	return true
}

const dispatchTimeout = 30 * time.Second

func (h *HTTPHandlerImpl) dispatch(w http.ResponseWriter, r *http.Request, email entities.ReportEmail) {
	ctx, cancel := context.WithTimeout(r.Context(), dispatchTimeout)
	defer cancel()

	result, err := h.mailer.SendReport(ctx, email)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, mailer.ErrInvalidRequest):
			status = http.StatusBadRequest
		case errors.Is(err, mailer.ErrDisabled):
			status = http.StatusServiceUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		// Form values stay on the client; the caller may resend as is.
		h.RespondWithJSON(w, status, entities.DispatchResult{Success: false, Message: err.Error()})
		return
	}

	h.RespondWithJSON(w, http.StatusOK, result)
}
