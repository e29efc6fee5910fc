package classifier

import "strings"

// Facet is the display label of one approval-type marker.
type Facet string

const (
	FacetNewDrug        Facet = "신약"
	FacetGeneric        Facet = "제네릭"
	FacetOrphan         Facet = "희귀"
	FacetBiotech        Facet = "유전자재조합 및 세포배양의약품"
	FacetDataSubmission Facet = "자료제출의약품"
	FacetUnclassified   Facet = "-"
)

// ApprovalFacets holds the independent approval-type markers of a record.
type ApprovalFacets struct {
	NewDrug        bool `json:"newDrug"`
	Generic        bool `json:"generic"`
	Orphan         bool `json:"orphan"`
	Biotech        bool `json:"biotech"`
	DataSubmission bool `json:"dataSubmission"`
}

// ParseApprovalFacets tests each marker on its own; a string may carry any
// number of them.
func ParseApprovalFacets(approvalType string) ApprovalFacets {
	return ApprovalFacets{
		NewDrug:        strings.Contains(approvalType, "신약"),
		Generic:        strings.Contains(approvalType, "제네릭"),
		Orphan:         strings.Contains(approvalType, "희귀"),
		Biotech:        strings.Contains(approvalType, "유전자재조합") || strings.Contains(approvalType, "세포배양"),
		DataSubmission: strings.Contains(approvalType, "자료제출"),
	}
}

// Any reports whether at least one marker matched.
func (f ApprovalFacets) Any() bool {
	return f.NewDrug || f.Generic || f.Orphan || f.Biotech || f.DataSubmission
}

// Labels lists matched facets in badge order, or FacetUnclassified alone.
func (f ApprovalFacets) Labels() []Facet {
	var labels []Facet
	if f.NewDrug {
		labels = append(labels, FacetNewDrug)
	}
	if f.Generic {
		labels = append(labels, FacetGeneric)
	}
	if f.Orphan {
		labels = append(labels, FacetOrphan)
	}
	if f.Biotech {
		labels = append(labels, FacetBiotech)
	}
	if f.DataSubmission {
		labels = append(labels, FacetDataSubmission)
	}
	if len(labels) == 0 {
		return []Facet{FacetUnclassified}
	}
	return labels
}

func (f ApprovalFacets) Has(label Facet) bool {
	for _, l := range f.Labels() {
		if l == label {
			return true
		}
	}
	return false
}

// Facets lists every facet label in badge order, excluding FacetUnclassified.
func Facets() []Facet {
	return []Facet{FacetNewDrug, FacetGeneric, FacetOrphan, FacetBiotech, FacetDataSubmission}
}
