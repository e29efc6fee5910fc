// Package validation checks approval records, collection quality and user
// input for the approvals API.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/giygas/mfds-oncology-api/classifier"
	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/interfaces"
	"github.com/giygas/mfds-oncology-api/logging"
	"github.com/giygas/mfds-oncology-api/normalizer"
)

const (
	minSearchRunes = 2
	maxSearchRunes = 50
	maxSearchWords = 6
	maxRecipients  = 50
	maxNameLength  = 300
	// qualitySampleSize caps the ids listed per quality issue
	qualitySampleSize = 10
)

// Pre-compiled regex patterns, reused for all validations
var (
	// Input validation: Hangul, Latin letters, digits and safe punctuation
	inputRegex = regexp.MustCompile(`^[\p{Hangul}a-zA-Z0-9\s\-\.\+'()/]+$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "import ", "@import", "binding(", "behavior(",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "sp_", "exec(", "execute(",
		// Command injection patterns
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
		// NoSQL injection patterns
		"{$ne:", "{$gt:", "{$where:", "{$or:", "{$regex:", "{$expr:",
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateApproval checks the record invariants: non-empty id and product
// name, a calendar approval date, a cancer type and a known status.
func (v *DataValidatorImpl) ValidateApproval(a *entities.ExtendedDrugApproval) error {
	if a == nil {
		return fmt.Errorf("approval is nil")
	}

	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("empty id for %q", a.DrugName)
	}

	if strings.TrimSpace(a.DrugName) == "" {
		return fmt.Errorf("empty drug name for id %s", a.ID)
	}

	if n := utf8.RuneCountInString(a.DrugName); n > maxNameLength {
		return fmt.Errorf("drug name too long for id %s: %d characters", a.ID, n)
	}

	if _, err := time.Parse(entities.DateLayout, a.ApprovalDate); err != nil {
		return fmt.Errorf("invalid approval date %q for id %s", a.ApprovalDate, a.ID)
	}

	if strings.TrimSpace(a.CancerType) == "" {
		return fmt.Errorf("empty cancer type for id %s", a.ID)
	}

	switch a.Status {
	case entities.StatusApproved, entities.StatusPending, entities.StatusRejected:
	default:
		return fmt.Errorf("unknown status %q for id %s", a.Status, a.ID)
	}

	return nil
}

// ValidateCollection validates every record and rejects duplicate ids. An
// empty collection is valid.
func (v *DataValidatorImpl) ValidateCollection(approvals []entities.ExtendedDrugApproval) error {
	seen := make(map[string]bool, len(approvals))
	for i := range approvals {
		a := &approvals[i]
		if seen[a.ID] {
			return fmt.Errorf("duplicate id found: %s", a.ID)
		}
		seen[a.ID] = true

		if err := v.ValidateApproval(a); err != nil {
			return fmt.Errorf("invalid approval at index %d: %w", i, err)
		}
	}
	return nil
}

func (v *DataValidatorImpl) ReportDataQuality(approvals []entities.ExtendedDrugApproval) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		DuplicateIDs: []string{},
		InvalidDates: []string{},
	}

	seen := make(map[string]bool, len(approvals))
	for _, a := range approvals {
		// Check 1: duplicate ids (all of them)
		if seen[a.ID] {
			report.DuplicateIDs = append(report.DuplicateIDs, a.ID)
		}
		seen[a.ID] = true

		// Check 2: invalid dates (first 10 ids)
		if _, err := time.Parse(entities.DateLayout, a.ApprovalDate); err != nil {
			if len(report.InvalidDates) < qualitySampleSize {
				report.InvalidDates = append(report.InvalidDates, a.ID)
			}
		}

		// Check 3-6: counts only
		if a.Indication == "" || a.Indication == normalizer.NoIndication {
			report.MissingIndication++
		}
		if a.CancerType == classifier.OtherCancerType {
			report.UnclassifiedCancer++
		}
		if a.GenericName == "" || a.GenericName == "-" {
			report.MissingGenericName++
		}
		if t := strings.TrimSpace(a.ApprovalType); t == "" || t == "-" {
			report.MissingApprovalType++
		}
	}

	if len(report.DuplicateIDs) > 0 {
		logging.Error("Duplicate approval ids detected",
			"count", len(report.DuplicateIDs),
			"duplicates", report.DuplicateIDs,
		)
	}

	return report
}

// ValidateSearchTerm validates a registry search term with the same
// security checks applied to every user-provided query string.
func (v *DataValidatorImpl) ValidateSearchTerm(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if !utf8.ValidString(input) {
		return fmt.Errorf("input is not valid UTF-8")
	}

	length := utf8.RuneCountInString(strings.TrimSpace(input))
	if length < minSearchRunes {
		return fmt.Errorf("input too short: minimum %d characters", minSearchRunes)
	}

	if length > maxSearchRunes {
		return fmt.Errorf("input too long: maximum %d characters", maxSearchRunes)
	}

	// Word count validation to prevent DoS attacks with many short words
	if len(strings.Fields(input)) > maxSearchWords {
		return fmt.Errorf("search query too complex: maximum %d words allowed", maxSearchWords)
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters. Only Korean and Latin letters, numbers, spaces, hyphens, apostrophes, periods, parentheses, slashes and plus sign are allowed")
	}

	if hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateRecipients checks that there is at least one recipient, that the
// list is bounded, and that every entry is a bare RFC 5322 address.
func (v *DataValidatorImpl) ValidateRecipients(recipients []string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	if len(recipients) > maxRecipients {
		return fmt.Errorf("too many recipients: maximum %d allowed", maxRecipients)
	}

	for _, r := range recipients {
		addr, err := mail.ParseAddress(r)
		if err != nil {
			return fmt.Errorf("invalid recipient %q: %w", r, err)
		}
		if addr.Address != strings.TrimSpace(r) {
			return fmt.Errorf("invalid recipient %q: display names are not accepted", r)
		}
	}
	return nil
}

// hasExcessiveRepetition reports the same rune repeated more than 10 times
// in a row.
func hasExcessiveRepetition(input string) bool {
	var last rune
	run := 0
	for _, r := range input {
		if r == last {
			run++
			if run > 10 {
				return true
			}
			continue
		}
		last = r
		run = 1
	}
	return false
}
