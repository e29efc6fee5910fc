package handlers

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/filter"
	"github.com/giygas/mfds-oncology-api/report"
)

// ApprovalsResponse is the body of every approval listing.
type ApprovalsResponse struct {
	Data          []entities.ExtendedDrugApproval `json:"data"`
	TotalCount    int                             `json:"totalCount"`
	Criteria      filter.Criteria                 `json:"criteria"`
	DateRangeText string                          `json:"dateRangeText"`
	Source        string                          `json:"source,omitempty"`
	Filename      string                          `json:"filename,omitempty"`
	LastUpdated   string                          `json:"lastUpdated,omitempty"`
}

// tableView shortens indications for the dashboard table. The input slice
// is not modified.
func tableView(records []entities.ExtendedDrugApproval) []entities.ExtendedDrugApproval {
	out := make([]entities.ExtendedDrugApproval, len(records))
	for i, r := range records {
		r.Indication = report.DisplayIndication(r.Indication, report.DefaultIndicationLength)
		out[i] = r
	}
	return out
}

func wantsTable(v url.Values) bool {
	return strings.EqualFold(v.Get("view"), "table")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func pathEscape(s string) string {
	return url.PathEscape(s)
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}
