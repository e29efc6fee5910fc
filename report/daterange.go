package report

import (
	"strings"
	"time"

	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/filter"
)

const (
	shortDateLayout = "06-01-02"
	filenamePrefix  = "MFDS_항암제_승인현황"
	AllPeriods      = "전체 기간"
)

func shortDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == filter.All {
		return ""
	}
	t, err := time.Parse(entities.DateLayout, s)
	if err != nil {
		return s
	}
	return t.Format(shortDateLayout)
}

// DateRangeText describes the approval period of the criteria.
func DateRangeText(c filter.Criteria) string {
	start, end := shortDate(c.StartDate), shortDate(c.EndDate)
	switch {
	case start != "" && end != "":
		return start + " ~ " + end
	case start != "":
		return start + " ~"
	case end != "":
		return "~ " + end
	default:
		return AllPeriods
	}
}

// ExportFilename names the workbook after the period and the day it was
// generated.
func ExportFilename(c filter.Criteria, now time.Time) string {
	period := "전체"
	start, end := shortDate(c.StartDate), shortDate(c.EndDate)
	if start != "" && end != "" {
		period = start + "_" + end
	}
	return filenamePrefix + "_" + period + "_" + now.Format(entities.DateLayout) + ".xlsx"
}
