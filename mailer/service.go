package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/logging"
	"github.com/giygas/mfds-oncology-api/metrics"
	"github.com/giygas/mfds-oncology-api/report"
)

var (
	ErrInvalidRequest = errors.New("invalid email request")
	ErrDisabled       = errors.New("email dispatch is not configured")
)

var recipientSeparator = regexp.MustCompile(`[,;\n]`)

// Service turns a report email request into a rendered message and hands it
// to the configured Sender.
type Service struct {
	sender       Sender
	from         string
	dashboardURL string
}

// NewService returns a report email service. A nil sender yields a service
// that rejects every dispatch with ErrDisabled.
func NewService(sender Sender, from, dashboardURL string) *Service {
	if strings.TrimSpace(from) == "" {
		from = DefaultFrom
	}
	if strings.TrimSpace(dashboardURL) == "" {
		dashboardURL = report.DefaultDashboardURL
	}
	return &Service{sender: sender, from: from, dashboardURL: dashboardURL}
}

// Enabled reports whether a sender is configured.
func (s *Service) Enabled() bool {
	return s.sender != nil
}

func (s *Service) DashboardURL() string {
	return s.dashboardURL
}

// SendReport validates the request, renders the HTML body and sends it to
// all recipients in one message.
func (s *Service) SendReport(ctx context.Context, email entities.ReportEmail) (*entities.DispatchResult, error) {
	if err := validateRequest(email); err != nil {
		metrics.EmailDispatchTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if s.sender == nil {
		return nil, ErrDisabled
	}

	html, err := report.RenderEmailHTML(email, s.dashboardURL)
	if err != nil {
		return nil, err
	}

	msg := Message{
		From:    s.from,
		To:      email.Recipients,
		Subject: email.Subject,
		HTML:    html,
	}
	if email.AttachExcel && email.ExcelBase64 != "" && email.ExcelFilename != "" {
		content, err := decodeAttachment(email.ExcelBase64)
		if err != nil {
			metrics.EmailDispatchTotal.WithLabelValues("invalid").Inc()
			return nil, fmt.Errorf("%w: attachment is not valid base64", ErrInvalidRequest)
		}
		msg.Attachments = []Attachment{{Filename: email.ExcelFilename, Content: content}}
	}

	id, err := s.sender.Send(ctx, msg)
	if err != nil {
		metrics.EmailDispatchTotal.WithLabelValues("failed").Inc()
		logging.Error("Report email dispatch failed", "recipients", len(email.Recipients), "error", err)
		return nil, err
	}

	metrics.EmailDispatchTotal.WithLabelValues("sent").Inc()
	logging.Info("Report email sent", "recipients", len(email.Recipients), "id", id, "attachments", len(msg.Attachments))

	return &entities.DispatchResult{
		Success: true,
		Message: fmt.Sprintf("Email sent to %d recipient(s)", len(email.Recipients)),
		ID:      id,
	}, nil
}

func validateRequest(email entities.ReportEmail) error {
	if len(email.Recipients) == 0 {
		return fmt.Errorf("%w: recipients are required", ErrInvalidRequest)
	}
	for _, r := range email.Recipients {
		if _, err := mail.ParseAddress(r); err != nil {
			return fmt.Errorf("%w: invalid recipient %q", ErrInvalidRequest, r)
		}
	}
	if strings.TrimSpace(email.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(email.DateRangeText) == "" {
		return fmt.Errorf("%w: dateRangeText is required", ErrInvalidRequest)
	}
	if email.Statistics == nil {
		return fmt.Errorf("%w: statistics are required", ErrInvalidRequest)
	}
	return nil
}

// decodeAttachment accepts raw base64 or a data URL.
func decodeAttachment(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

// ParseRecipients splits a free-form recipient list on commas, semicolons
// and newlines, keeping entries that look like addresses.
func ParseRecipients(s string) []string {
	var out []string
	for _, part := range recipientSeparator.Split(s, -1) {
		part = strings.TrimSpace(part)
		if strings.Contains(part, "@") {
			out = append(out, part)
		}
	}
	return out
}
