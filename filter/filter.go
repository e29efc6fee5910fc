// Package filter selects the approvals matching a set of dashboard
// criteria and lists the values the dashboard dropdowns offer.
package filter

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/giygas/mfds-oncology-api/classifier"
	"github.com/giygas/mfds-oncology-api/entities"
)

// All is the dropdown sentinel that disables a dimension.
const All = "전체"

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidRange  = errors.New("start date is after end date")
	ErrInvalidOrigin = errors.New("invalid manufacture type")
)

// Criteria holds one value per filter dimension. A blank value or All
// disables the dimension.
type Criteria struct {
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	CancerType      string `json:"cancerType"`
	ManufactureType string `json:"manufactureType"`
	Company         string `json:"company"`
	ApprovalType    string `json:"approvalType"`
	Mechanism       string `json:"mechanism"`
	Query           string `json:"query,omitempty"`
}

func DefaultCriteria() Criteria {
	return Criteria{
		CancerType:      All,
		ManufactureType: All,
		Company:         All,
		ApprovalType:    All,
		Mechanism:       All,
	}
}

// FromValues reads criteria from URL query parameters. Missing parameters
// keep their default.
func FromValues(v url.Values) Criteria {
	c := DefaultCriteria()
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if val := strings.TrimSpace(v.Get(k)); val != "" {
				*dst = val
				return
			}
		}
	}
	set(&c.StartDate, "startDate")
	set(&c.EndDate, "endDate")
	set(&c.CancerType, "cancerType")
	set(&c.ManufactureType, "manufactureType")
	set(&c.Company, "company")
	set(&c.ApprovalType, "approvalType")
	set(&c.Mechanism, "mechanism")
	set(&c.Query, "q", "query")
	return c
}

func active(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != All
}

func (c Criteria) Validate() error {
	var start, end time.Time
	var err error

	if active(c.StartDate) {
		if start, err = time.Parse(entities.DateLayout, strings.TrimSpace(c.StartDate)); err != nil {
			return fmt.Errorf("%w: startDate %q", ErrInvalidDate, c.StartDate)
		}
	}
	if active(c.EndDate) {
		if end, err = time.Parse(entities.DateLayout, strings.TrimSpace(c.EndDate)); err != nil {
			return fmt.Errorf("%w: endDate %q", ErrInvalidDate, c.EndDate)
		}
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return ErrInvalidRange
	}
	if active(c.ManufactureType) {
		if _, ok := classifier.ParseOrigin(c.ManufactureType); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidOrigin, c.ManufactureType)
		}
	}
	return nil
}

// IsDefault reports whether no dimension is active.
func (c Criteria) IsDefault() bool {
	return !active(c.StartDate) && !active(c.EndDate) && !active(c.CancerType) &&
		!active(c.ManufactureType) && !active(c.Company) && !active(c.ApprovalType) &&
		!active(c.Mechanism) && !active(c.Query)
}

type matcher struct {
	start, end   string
	cancerType   string
	origin       classifier.Origin
	company      string
	approvalType string
	mechanism    string
	query        string
}

// compile precomputes the active dimensions. Bounds that do not parse are
// ignored; callers validate criteria before applying them.
func compile(c Criteria) matcher {
	var m matcher
	if active(c.StartDate) {
		if t, err := time.Parse(entities.DateLayout, strings.TrimSpace(c.StartDate)); err == nil {
			m.start = t.Format(entities.DateLayout)
		}
	}
	if active(c.EndDate) {
		if t, err := time.Parse(entities.DateLayout, strings.TrimSpace(c.EndDate)); err == nil {
			m.end = t.Format(entities.DateLayout)
		}
	}
	if active(c.CancerType) {
		m.cancerType = strings.TrimSpace(c.CancerType)
	}
	if active(c.ManufactureType) {
		m.origin, _ = classifier.ParseOrigin(c.ManufactureType)
	}
	if active(c.Company) {
		m.company = strings.TrimSpace(c.Company)
	}
	if active(c.ApprovalType) {
		m.approvalType = strings.TrimSpace(c.ApprovalType)
	}
	if active(c.Mechanism) {
		m.mechanism = strings.TrimSpace(c.Mechanism)
	}
	if active(c.Query) {
		m.query = classifier.Fold(strings.TrimSpace(c.Query))
	}
	return m
}

func (m matcher) match(r *entities.ExtendedDrugApproval) bool {
	// approvalDate is always YYYY-MM-DD, so string order is calendar order.
	if m.start != "" && r.ApprovalDate < m.start {
		return false
	}
	if m.end != "" && r.ApprovalDate > m.end {
		return false
	}
	if m.cancerType != "" && r.CancerType != m.cancerType {
		return false
	}
	if m.origin != "" && classifier.ResolveOrigin(r.ManufactureType, r.Company) != m.origin {
		return false
	}
	if m.company != "" && r.Company != m.company {
		return false
	}
	if m.approvalType != "" && r.ApprovalType != m.approvalType &&
		!classifier.ParseApprovalFacets(r.ApprovalType).Has(classifier.Facet(m.approvalType)) {
		return false
	}
	if m.mechanism != "" && !matchMechanism(r.Notes, m.mechanism) {
		return false
	}
	if m.query != "" && !matchQuery(r, m.query) {
		return false
	}
	return true
}

func matchMechanism(notes, mechanism string) bool {
	if strings.Contains(classifier.Fold(notes), classifier.Fold(mechanism)) {
		return true
	}
	label, ok := classifier.MatchMechanism(notes)
	return ok && label == mechanism
}

func matchQuery(r *entities.ExtendedDrugApproval, query string) bool {
	for _, field := range []string{r.ID, r.DrugName, r.GenericName, r.Company, r.Indication, r.CancerType} {
		if strings.Contains(classifier.Fold(field), query) {
			return true
		}
	}
	return false
}

// Apply returns the records matching every active dimension, in input
// order. The input slice is not modified.
func Apply(records []entities.ExtendedDrugApproval, c Criteria) []entities.ExtendedDrugApproval {
	if c.IsDefault() {
		return append(make([]entities.ExtendedDrugApproval, 0, len(records)), records...)
	}
	m := compile(c)
	out := make([]entities.ExtendedDrugApproval, 0, len(records))
	for i := range records {
		if m.match(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}
