package report

import (
	"fmt"
	"time"

	"github.com/giygas/mfds-oncology-api/classifier"
	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet = "Summary"
	DetailSheet  = "Detail"

	workbookTitle = "MFDS 항암제 승인현황"
	headerFont    = "맑은 고딕"
	headerFill    = "374151"
)

// DetailColumns is the fixed column order of the Detail sheet.
var DetailColumns = []string{
	"품목기준코드", "제품명", "업체명", "허가일", "주성분", "적응증", "암종",
	"약효분류", "허가유형", "제조/수입", "제조국", "위탁제조업체", "비고",
}

var detailWidths = []float64{14, 40, 22, 12, 36, 70, 16, 16, 20, 10, 18, 50, 28}

// SummaryInfo carries the header lines of the Summary sheet.
type SummaryInfo struct {
	Period      string
	GeneratedAt time.Time
}

// DetailRow returns the Detail sheet cells of one record in DetailColumns
// order.
func DetailRow(r entities.ExtendedDrugApproval) []any {
	return []any{
		r.ID,
		r.DrugName,
		r.Company,
		r.ApprovalDate,
		r.GenericName,
		r.Indication,
		r.CancerType,
		dash(r.DrugCategory),
		dash(r.ApprovalType),
		string(classifier.ResolveOrigin(r.ManufactureType, r.Company)),
		dash(r.ManufacturingCountry),
		r.ConsignedManufacturer,
		r.Notes,
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// BuildWorkbook renders records into an xlsx workbook with exactly the
// Summary and Detail sheets.
func BuildWorkbook(records []entities.ExtendedDrugApproval, info SummaryInfo) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(DetailSheet); err != nil {
		return nil, fmt.Errorf("failed to create detail sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Family: headerFont, Color: "FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Family: headerFont, Size: 14},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create title style: %w", err)
	}
	sectionStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Family: headerFont},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create section style: %w", err)
	}

	if err := writeSummary(f, records, info, titleStyle, sectionStyle, headerStyle); err != nil {
		return nil, err
	}
	if err := writeDetail(f, records, headerStyle); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, records []entities.ExtendedDrugApproval, info SummaryInfo, titleStyle, sectionStyle, headerStyle int) error {
	stats := CalculateStatistics(records)
	period := info.Period
	if period == "" {
		period = AllPeriods
	}

	w := &sheetWriter{f: f, sheet: SummarySheet}
	w.row(workbookTitle)
	w.style(titleStyle, 1)
	w.skip()
	w.row("데이터 기준", period)
	w.row("생성일시", info.GeneratedAt.Format("2006-01-02 15:04:05"))
	w.row("총 승인 건수", stats.TotalCount)
	w.skip()

	w.row("=== 허가유형별 현황 ===")
	w.style(sectionStyle, 1)
	for _, c := range SortedCounts(stats.ApprovalTypeStats) {
		w.row(c.Key, c.Count)
	}
	w.skip()

	w.row("=== 제조/수입 현황 ===")
	w.style(sectionStyle, 1)
	w.row(string(classifier.OriginImport), stats.ManufactureStats.Import)
	w.row(string(classifier.OriginDomestic), stats.ManufactureStats.Domestic)
	w.skip()

	w.row("=== 암종별 현황 ===")
	w.style(sectionStyle, 1)
	for _, c := range SortedCounts(stats.CancerTypeStats) {
		w.row(c.Key, c.Count)
	}
	w.skip()

	w.row("=== 제조사별 현황 ===")
	w.style(sectionStyle, 1)
	for _, c := range SortedCounts(CompanyCounts(records)) {
		w.row(c.Key, c.Count)
	}
	w.skip()

	w.row("=== 품목 목록 ===")
	w.style(sectionStyle, 1)
	w.row("허가일", "제품명", "업체명", "암종", "허가유형")
	w.style(headerStyle, 5)
	for _, r := range records {
		w.row(r.ApprovalDate, r.DrugName, r.Company, r.CancerType, dash(r.ApprovalType))
	}

	if w.err != nil {
		return fmt.Errorf("failed to write summary sheet: %w", w.err)
	}

	for col, width := range []float64{22, 40, 22, 12, 20} {
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(SummarySheet, name, name, width); err != nil {
			return fmt.Errorf("failed to size summary columns: %w", err)
		}
	}
	return nil
}

func writeDetail(f *excelize.File, records []entities.ExtendedDrugApproval, headerStyle int) error {
	w := &sheetWriter{f: f, sheet: DetailSheet}

	header := make([]any, len(DetailColumns))
	for i, c := range DetailColumns {
		header[i] = c
	}
	w.row(header...)
	w.style(headerStyle, len(DetailColumns))

	for _, r := range records {
		w.row(DetailRow(r)...)
	}
	if w.err != nil {
		return fmt.Errorf("failed to write detail sheet: %w", w.err)
	}

	for i, width := range detailWidths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(DetailSheet, name, name, width); err != nil {
			return fmt.Errorf("failed to size detail columns: %w", err)
		}
	}
	if err := f.SetRowHeight(DetailSheet, 1, 36); err != nil {
		return fmt.Errorf("failed to size detail header: %w", err)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(DetailColumns))
	if err := f.AutoFilter(DetailSheet, "A1:"+lastCol+"1", nil); err != nil {
		return fmt.Errorf("failed to add detail filter: %w", err)
	}
	return f.SetPanes(DetailSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// sheetWriter appends rows top to bottom and keeps the first error.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	next  int
	err   error
}

func (w *sheetWriter) row(values ...any) {
	w.next++
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, w.next)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(w.sheet, cell, &values)
}

func (w *sheetWriter) skip() {
	w.next++
}

// style applies styleID to the first cols cells of the last written row.
func (w *sheetWriter) style(styleID, cols int) {
	if w.err != nil {
		return
	}
	start, _ := excelize.CoordinatesToCellName(1, w.next)
	end, _ := excelize.CoordinatesToCellName(cols, w.next)
	w.err = w.f.SetCellStyle(w.sheet, start, end, styleID)
}
