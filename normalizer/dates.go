package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/xuri/excelize/v2"
)

var (
	ErrMissingDate   = errors.New("approval date is missing")
	ErrMalformedDate = errors.New("approval date is malformed")
)

var (
	compactDatePattern = regexp.MustCompile(`^\d{8}$`)
	isoDatePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	serialPattern      = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// Largest serial excelize can represent (9999-12-31).
const maxDateSerial = 2958465

// NormalizeDate converts a source approval date into YYYY-MM-DD. Accepted
// inputs are spreadsheet date serials (numbers or numeric strings),
// YYYYMMDD strings, strings starting with an ISO date, and time.Time.
// Anything else fails with ErrMalformedDate.
func NormalizeDate(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", ErrMissingDate
	case time.Time:
		if x.IsZero() {
			return "", ErrMissingDate
		}
		return x.Format(entities.DateLayout), nil
	case float64:
		return dateFromNumber(x)
	case float32:
		return dateFromNumber(float64(x))
	case int:
		return dateFromNumber(float64(x))
	case int64:
		return dateFromNumber(float64(x))
	case json.Number:
		return normalizeDateString(x.String())
	case string:
		return normalizeDateString(x)
	default:
		return normalizeDateString(fmt.Sprint(x))
	}
}

// dateFromNumber treats an 8-digit integer as YYYYMMDD, anything else as a
// spreadsheet serial.
func dateFromNumber(n float64) (string, error) {
	if n == math.Trunc(n) && n >= 10000000 && n <= 99999999 {
		return normalizeDateString(strconv.FormatInt(int64(n), 10))
	}
	return dateFromSerial(n)
}

func dateFromSerial(serial float64) (string, error) {
	if serial < 1 || serial > maxDateSerial {
		return "", fmt.Errorf("%w: serial %v out of range", ErrMalformedDate, serial)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", fmt.Errorf("%w: serial %v: %v", ErrMalformedDate, serial, err)
	}
	return t.Format(entities.DateLayout), nil
}

func normalizeDateString(s string) (string, error) {
	s = strings.TrimSpace(s)

	var candidate string
	switch {
	case s == "":
		return "", ErrMissingDate
	case compactDatePattern.MatchString(s):
		candidate = s[0:4] + "-" + s[4:6] + "-" + s[6:8]
	case isoDatePattern.MatchString(s):
		candidate = s[:10]
	case serialPattern.MatchString(s):
		serial, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrMalformedDate, s)
		}
		return dateFromSerial(serial)
	default:
		return "", fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}

	if _, err := time.Parse(entities.DateLayout, candidate); err != nil {
		return "", fmt.Errorf("%w: %q is not a calendar date", ErrMalformedDate, s)
	}
	return candidate, nil
}
