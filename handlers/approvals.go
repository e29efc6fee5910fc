package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/giygas/mfds-oncology-api/aggregator"
	"github.com/giygas/mfds-oncology-api/auth"
	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/filter"
	"github.com/giygas/mfds-oncology-api/logging"
	"github.com/giygas/mfds-oncology-api/report"
	"github.com/go-chi/chi/v5"
)

// criteriaFromRequest reads and validates filter query parameters.
func (h *HTTPHandlerImpl) criteriaFromRequest(r *http.Request) (filter.Criteria, error) {
	c := filter.FromValues(r.URL.Query())
	if err := c.Validate(); err != nil {
		return c, err
	}
	if q := strings.TrimSpace(c.Query); q != "" {
		if err := h.validator.ValidateSearchTerm(q); err != nil {
			return c, err
		}
	}
	return c, nil
}

func (h *HTTPHandlerImpl) filteredApprovals(w http.ResponseWriter, r *http.Request) ([]entities.ExtendedDrugApproval, filter.Criteria, bool) {
	c, err := h.criteriaFromRequest(r)
	if err != nil {
		logging.Warn("Unusual user input", "query", r.URL.RawQuery, "error", err)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return nil, c, false
	}
	return filter.Apply(h.dataStore.GetApprovals(), c), c, true
}

// ServeApprovals returns the shared collection narrowed by the filter query
// parameters. view=table shortens indications.
func (h *HTTPHandlerImpl) ServeApprovals(w http.ResponseWriter, r *http.Request) {
	records, c, ok := h.filteredApprovals(w, r)
	if !ok {
		return
	}
	if wantsTable(r.URL.Query()) {
		records = tableView(records)
	}

	h.RespondWithJSON(w, http.StatusOK, ApprovalsResponse{
		Data:          records,
		TotalCount:    len(records),
		Criteria:      c,
		DateRangeText: report.DateRangeText(c),
		LastUpdated:   formatTime(h.dataStore.GetLastUpdated()),
	})
}

// FindApproval finds an approval by its item sequence id
func (h *HTTPHandlerImpl) FindApproval(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" || len(id) > 64 {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid approval id")
		return
	}

	approval, exists := h.dataStore.GetApprovalsMap()[id]
	if !exists {
		h.RespondWithError(w, http.StatusNotFound, "Approval not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, approval)
}

// StatisticsResponse is the statistics summary of a filtered collection.
type StatisticsResponse struct {
	entities.Statistics
	DateRangeText string `json:"dateRangeText"`
}

func (h *HTTPHandlerImpl) ServeStatistics(w http.ResponseWriter, r *http.Request) {
	records, c, ok := h.filteredApprovals(w, r)
	if !ok {
		return
	}
	h.RespondWithJSON(w, http.StatusOK, StatisticsResponse{
		Statistics:    report.CalculateStatistics(records),
		DateRangeText: report.DateRangeText(c),
	})
}

// ServeOptions lists the dropdown values of the whole collection.
func (h *HTTPHandlerImpl) ServeOptions(w http.ResponseWriter, r *http.Request) {
	h.RespondWithJSON(w, http.StatusOK, filter.BuildOptions(h.dataStore.GetApprovals()))
}

// ExportApprovals streams the filtered collection as an xlsx workbook.
func (h *HTTPHandlerImpl) ExportApprovals(w http.ResponseWriter, r *http.Request) {
	records, c, ok := h.filteredApprovals(w, r)
	if !ok {
		return
	}
	h.export(w, records, c)
}

func (h *HTTPHandlerImpl) export(w http.ResponseWriter, records []entities.ExtendedDrugApproval, c filter.Criteria) {
	now := h.now()
	content, err := report.BuildWorkbook(records, report.SummaryInfo{
		Period:      report.DateRangeText(c),
		GeneratedAt: now,
	})
	if err != nil {
		logging.Error("Failed to build workbook", "records", len(records), "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to build workbook")
		return
	}
	h.writeWorkbook(w, content, report.ExportFilename(c, now))
}

// FetchResponse is the registry proxy contract.
type FetchResponse struct {
	Success        bool                            `json:"success"`
	Data           []entities.ExtendedDrugApproval `json:"data"`
	TotalCount     int                             `json:"totalCount"`
	OriginalCount  int                             `json:"originalCount"`
	FailedKeywords []string                        `json:"failedKeywords,omitempty"`
	Error          string                          `json:"error,omitempty"`
}

// FetchApprovals queries the registry for one term, the default keyword
// set or the full sweep. The result is returned to the caller only; an
// authenticated caller also gets it installed as the session's dataset.
func (h *HTTPHandlerImpl) FetchApprovals(w http.ResponseWriter, r *http.Request) {
	if h.fetcher == nil {
		h.RespondWithError(w, http.StatusServiceUnavailable, "registry fetch is not configured")
		return
	}

	var req entities.FetchRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	req.SearchTerm = strings.TrimSpace(req.SearchTerm)
	if req.SearchTerm != "" {
		if err := h.validator.ValidateSearchTerm(req.SearchTerm); err != nil {
			logging.Warn("Unusual user input", "searchTerm", req.SearchTerm, "error", err)
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.fetchTimeout)
	defer cancel()

	result, err := h.fetcher.Fetch(ctx, req)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case errors.Is(err, context.Canceled):
			// client went away
			return
		case !errors.Is(err, aggregator.ErrAllKeywordsFailed):
			status = http.StatusInternalServerError
		}
		logging.Error("Registry fetch failed", "searchTerm", req.SearchTerm, "sweep", req.IsSweep(), "error", err)
		h.RespondWithJSON(w, status, FetchResponse{
			Success: false,
			Data:    []entities.ExtendedDrugApproval{},
			Error:   err.Error(),
		})
		return
	}

	if session := auth.SessionFrom(r.Context()); session != nil {
		session.Workspace.SetSearchResult(fetchLabel(req), result.Records)
	}

	records := result.Records
	if records == nil {
		records = []entities.ExtendedDrugApproval{}
	}
	h.RespondWithJSON(w, http.StatusOK, FetchResponse{
		Success:        true,
		Data:           records,
		TotalCount:     result.TotalCount,
		OriginalCount:  result.OriginalCount,
		FailedKeywords: result.FailedKeywords,
	})
}

func fetchLabel(req entities.FetchRequest) string {
	switch {
	case req.SearchTerm != "":
		return req.SearchTerm
	case req.IsSweep():
		return "전체 검색"
	default:
		return "기본 검색"
	}
}
