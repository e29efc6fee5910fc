package entities

type ManufactureStats struct {
	Import   int `json:"import"`
	Domestic int `json:"domestic"`
}

type Statistics struct {
	TotalCount        int              `json:"totalCount"`
	CancerTypeStats   map[string]int   `json:"cancerTypeStats"`
	ApprovalTypeStats map[string]int   `json:"approvalTypeStats"`
	ManufactureStats  ManufactureStats `json:"manufactureStats"`
	MechanismStats    map[string]int   `json:"mechanismStats"`
	TherapyClassStats map[string]int   `json:"therapyClassStats,omitempty"`
}

// ReportEmail is the payload accepted by the email dispatch endpoint.
type ReportEmail struct {
	Recipients     []string    `json:"recipients"`
	Subject        string      `json:"subject"`
	DateRangeText  string      `json:"dateRangeText"`
	Statistics     *Statistics `json:"statistics"`
	AdditionalNote string      `json:"additionalNote,omitempty"`
	AttachExcel    bool        `json:"attachExcel,omitempty"`
	ExcelBase64    string      `json:"excelBase64,omitempty"`
	ExcelFilename  string      `json:"excelFilename,omitempty"`
}

type DispatchResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
