package entities

import (
	"fmt"
	"time"
)

// DateLayout is the canonical approval date form.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
)

// Label returns the Korean label used in exports.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "심사중"
	case StatusRejected:
		return "반려"
	default:
		return "승인"
	}
}

type DrugApproval struct {
	ID           string `json:"id"`
	DrugName     string `json:"drugName"`
	GenericName  string `json:"genericName"`
	Company      string `json:"company"`
	Indication   string `json:"indication"`
	CancerType   string `json:"cancerType"`
	ApprovalDate string `json:"approvalDate"`
	Status       Status `json:"status"`
}

// ApprovalTime parses ApprovalDate as a calendar date.
func (d DrugApproval) ApprovalTime() (time.Time, error) {
	t, err := time.Parse(DateLayout, d.ApprovalDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("approval date of %s: %w", d.ID, err)
	}
	return t, nil
}

type ExtendedDrugApproval struct {
	DrugApproval
	ManufacturingCountry  string `json:"manufacturingCountry,omitempty"`
	ConsignedManufacturer string `json:"consignedManufacturer,omitempty"`
	ApprovalType          string `json:"approvalType,omitempty"`
	DrugCategory          string `json:"drugCategory,omitempty"`
	ManufactureType       string `json:"manufactureType,omitempty"`
	Notes                 string `json:"notes,omitempty"`
}
