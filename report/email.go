package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/giygas/mfds-oncology-api/entities"
)

// DefaultDashboardURL is linked from report emails when none is configured.
const DefaultDashboardURL = "https://mfds-cancer-watch.lovable.app"

// DefaultSubject is the subject line the email form starts with.
const DefaultSubject = "MFDS 항암제 승인현황 리포트"

const mechanismPending = "분석 중"

//go:embed templates/report_email.html
var emailTemplateSource string

var emailTemplate = template.Must(template.New("report_email").Funcs(template.FuncMap{
	"even": func(i int) bool { return i%2 == 0 },
}).Parse(emailTemplateSource))

type emailSection struct {
	Title string
	Body  string
}

type emailView struct {
	DateRangeText  string
	TotalCount     int
	Sections       []emailSection
	AdditionalNote string
	AttachmentName string
	DashboardURL   string
}

// RenderEmailHTML renders the HTML body of a report email. The attachment
// line appears only when an attachment was requested and named.
func RenderEmailHTML(email entities.ReportEmail, dashboardURL string) (string, error) {
	if email.Statistics == nil {
		return "", fmt.Errorf("statistics are required")
	}
	stats := email.Statistics

	mechanisms := FormatCounts(stats.MechanismStats, "건")
	if mechanisms == "" {
		mechanisms = mechanismPending
	}

	view := emailView{
		DateRangeText: email.DateRangeText,
		TotalCount:    stats.TotalCount,
		Sections: []emailSection{
			{Title: "암종별 분포", Body: FormatCounts(stats.CancerTypeStats, "건")},
			{Title: "허가유형별 분포", Body: FormatCounts(stats.ApprovalTypeStats, "건")},
			{Title: "제조/수입 비율", Body: fmt.Sprintf("수입(%d건), 제조(%d건)", stats.ManufactureStats.Import, stats.ManufactureStats.Domestic)},
			{Title: "작용기전별 분포", Body: mechanisms},
		},
		AdditionalNote: strings.TrimSpace(email.AdditionalNote),
		DashboardURL:   dashboardURL,
	}
	if email.AttachExcel {
		view.AttachmentName = email.ExcelFilename
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

// PreviewText renders the plain-text version of the report shown before
// sending.
func PreviewText(dateRangeText string, stats entities.Statistics, additionalNote, dashboardURL string) string {
	var b strings.Builder

	b.WriteString("📋 MFDS 항암제 승인현황 리포트\n\n")
	fmt.Fprintf(&b, "📅 승인기간: %s\n\n", dateRangeText)
	b.WriteString("📊 요약 통계\n")
	fmt.Fprintf(&b, "• 총 승인 품목: %d건\n\n", stats.TotalCount)
	fmt.Fprintf(&b, "🔹 암종별 분포:\n   %s\n\n", FormatCounts(stats.CancerTypeStats, ""))
	fmt.Fprintf(&b, "🔹 허가유형별 분포:\n   %s\n\n", FormatCounts(stats.ApprovalTypeStats, ""))
	fmt.Fprintf(&b, "🔹 제조/수입 비율:\n   수입(%d), 제조(%d)\n\n", stats.ManufactureStats.Import, stats.ManufactureStats.Domestic)

	if len(stats.MechanismStats) > 0 {
		fmt.Fprintf(&b, "🔹 작용기전별 분포:\n   %s\n\n", FormatCounts(stats.MechanismStats, ""))
	}
	if note := strings.TrimSpace(additionalNote); note != "" {
		fmt.Fprintf(&b, "📝 추가 메모:\n%s\n\n", note)
	}
	fmt.Fprintf(&b, "🔗 대시보드: %s", dashboardURL)

	return b.String()
}
