// Package handlers provides the HTTP handlers of the approvals API.
// This file implements the HTTPHandler interface with dependency injection.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/giygas/mfds-oncology-api/auth"
	"github.com/giygas/mfds-oncology-api/importer"
	"github.com/giygas/mfds-oncology-api/interfaces"
	"github.com/giygas/mfds-oncology-api/logging"
	"github.com/giygas/mfds-oncology-api/report"
)

const (
	defaultMaxUploadSize = 10 * 1024 * 1024
	defaultFetchTimeout  = 2 * time.Minute
	maxJSONBody          = 12 * 1024 * 1024 // email payloads carry a base64 workbook
)

// ReportMailer sends report emails. Enabled reports whether a mail provider
// is configured.
type ReportMailer interface {
	interfaces.ReportSender
	Enabled() bool
	DashboardURL() string
}

var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	fetcher       interfaces.Fetcher
	scheduler     interfaces.Scheduler
	healthChecker interfaces.HealthChecker
	authenticator *auth.Authenticator
	mailer        ReportMailer
	importer      *importer.Importer
	maxUploadSize int64
	fetchTimeout  time.Duration
	now           func() time.Time
}

type Option func(*HTTPHandlerImpl)

// WithFetcher enables POST /v1/fetch.
func WithFetcher(f interfaces.Fetcher) Option {
	return func(h *HTTPHandlerImpl) { h.fetcher = f }
}

// WithScheduler enables the admin refresh endpoint.
func WithScheduler(s interfaces.Scheduler) Option {
	return func(h *HTTPHandlerImpl) { h.scheduler = s }
}

func WithHealthChecker(hc interfaces.HealthChecker) Option {
	return func(h *HTTPHandlerImpl) { h.healthChecker = hc }
}

func WithAuthenticator(a *auth.Authenticator) Option {
	return func(h *HTTPHandlerImpl) { h.authenticator = a }
}

func WithMailer(m ReportMailer) Option {
	return func(h *HTTPHandlerImpl) { h.mailer = m }
}

// WithMaxUploadSize bounds spreadsheet uploads in bytes.
func WithMaxUploadSize(n int64) Option {
	return func(h *HTTPHandlerImpl) {
		if n > 0 {
			h.maxUploadSize = n
		}
	}
}

// WithFetchTimeout bounds a single POST /v1/fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(h *HTTPHandlerImpl) {
		if d > 0 {
			h.fetchTimeout = d
		}
	}
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, validator interfaces.DataValidator, opts ...Option) *HTTPHandlerImpl {
	h := &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		importer:      importer.New(),
		maxUploadSize: defaultMaxUploadSize,
		fetchTimeout:  defaultFetchTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements the http.Handler interface
func (h *HTTPHandlerImpl) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Routing is handled by chi
	h.RespondWithError(w, http.StatusNotImplemented, "Not implemented")
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", h.lastModified().Format(http.TimeFormat))
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logging.Debug("Failed to write response", "error", err)
	}
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	h.RespondWithJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	})
}

func (h *HTTPHandlerImpl) lastModified() time.Time {
	if h.dataStore != nil {
		if t := h.dataStore.GetLastUpdated(); !t.IsZero() {
			return t.UTC()
		}
	}
	return h.now().UTC()
}

// decodeJSON reads a bounded JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// writeWorkbook sends an xlsx attachment with a UTF-8 filename.
func (h *HTTPHandlerImpl) writeWorkbook(w http.ResponseWriter, content []byte, filename string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", contentDisposition(filename))
	w.Header().Set("Content-Length", fmt.Sprint(len(content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		logging.Debug("Failed to write workbook", "error", err)
	}
}

func contentDisposition(filename string) string {
	ascii := strings.Map(func(r rune) rune {
		if r > 0x7e || r < 0x20 || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, filename)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, ascii, pathEscape(filename))
}

// HealthResponse keeps a stable JSON field order.
type HealthResponse struct {
	Status        string         `json:"status"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Uptime        string         `json:"uptime"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.healthChecker == nil {
		h.RespondWithError(w, http.StatusServiceUnavailable, "health checker is not configured")
		return
	}

	status, data, httpStatus := h.healthChecker.HealthCheck()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := h.now().Sub(h.dataStore.GetServerStartTime())

	h.RespondWithJSON(w, httpStatus, HealthResponse{
		Status:        status,
		UptimeSeconds: uptime.Seconds(),
		Uptime:        formatUptimeHuman(uptime),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	})
}

func (h *HTTPHandlerImpl) dashboardURL() string {
	if h.mailer != nil {
		return h.mailer.DashboardURL()
	}
	return report.DefaultDashboardURL
}
