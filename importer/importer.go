// Package importer reads uploaded spreadsheets (xlsx or csv) into approval
// records through the same normalizer the registry fetch uses.
package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/logging"
	"github.com/giygas/mfds-oncology-api/normalizer"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
)

var (
	ErrEmptyFile         = errors.New("file contains no data rows")
	ErrReadFailure       = errors.New("file could not be read")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// RowError reports the spreadsheet row (1-based, header is row 1) that
// stopped the import.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

type Result struct {
	Records    []entities.ExtendedDrugApproval
	Filename   string
	Rows       int // data rows read, blank rows excluded
	Skipped    int // rows without a product name
	Duplicates int // rows whose id was already imported
}

type Importer struct {
	normalizer *normalizer.Normalizer
}

func New() *Importer {
	return &Importer{normalizer: normalizer.New()}
}

var zipMagic = []byte("PK\x03\x04")

// Import reads the first sheet of an xlsx workbook or a csv file. The
// first row holds the headers. Rows without a product name are dropped;
// any other unreadable row fails the whole import.
func (i *Importer) Import(ctx context.Context, r io.Reader, filename string) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	var rows [][]string
	switch ext := strings.ToLower(filepath.Ext(filename)); {
	case ext == ".xls":
		return nil, fmt.Errorf("%w: legacy .xls workbooks must be saved as .xlsx", ErrUnsupportedFormat)
	case ext == ".xlsx" || ext == ".xlsm" || bytes.HasPrefix(data, zipMagic):
		rows, err = readWorkbook(data)
	case ext == ".csv" || ext == ".txt" || ext == "":
		rows, err = readCSV(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	result, err := i.convert(ctx, rows)
	if err != nil {
		return nil, err
	}
	result.Filename = filename

	logging.Info("Spreadsheet imported",
		"filename", filename,
		"rows", result.Rows,
		"records", len(result.Records),
		"skipped", result.Skipped,
		"duplicates", result.Duplicates,
	)
	return result, nil
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmptyFile
	}
	// Raw values keep date cells as serials instead of locale strings.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, err := korean.EUCKR.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	return rows, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func (i *Importer) convert(ctx context.Context, rows [][]string) (*Result, error) {
	if len(rows) < 2 {
		return nil, ErrEmptyFile
	}

	header := rows[0]
	result := &Result{Records: []entities.ExtendedDrugApproval{}}
	seen := make(map[string]struct{})

	for idx, row := range rows[1:] {
		if idx%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if blank(row) {
			continue
		}
		result.Rows++

		raw := make(normalizer.RawRecord, len(header))
		for col, name := range header {
			if col >= len(row) || strings.TrimSpace(name) == "" {
				continue
			}
			raw[name] = row[col]
		}

		record, err := i.normalizer.Normalize(raw, fmt.Sprintf("upload-%d", idx))
		if errors.Is(err, normalizer.ErrNoDrugName) {
			result.Skipped++
			continue
		}
		if err != nil {
			return nil, &RowError{Row: idx + 2, Err: err}
		}

		if _, dup := seen[record.ID]; dup {
			result.Duplicates++
			continue
		}
		seen[record.ID] = struct{}{}
		result.Records = append(result.Records, record)
	}

	if len(result.Records) == 0 {
		return nil, ErrEmptyFile
	}
	return result, nil
}
