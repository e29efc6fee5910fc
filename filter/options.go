package filter

import (
	"slices"

	"github.com/giygas/mfds-oncology-api/classifier"
	"github.com/giygas/mfds-oncology-api/entities"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Options lists the selectable values of each dropdown. Every list starts
// with All.
type Options struct {
	CancerTypes      []string `json:"cancerTypes"`
	ManufactureTypes []string `json:"manufactureTypes"`
	Companies        []string `json:"companies"`
	ApprovalTypes    []string `json:"approvalTypes"`
	Mechanisms       []string `json:"mechanisms"`
}

// BuildOptions derives dropdown values from the records. Cancer types,
// approval facets and mechanisms follow their table order, with the
// unclassified facet last; companies are sorted in Korean collation order.
func BuildOptions(records []entities.ExtendedDrugApproval) Options {
	cancerSeen := map[string]bool{}
	companySeen := map[string]bool{}
	facetSeen := map[classifier.Facet]bool{}
	mechanismSeen := map[string]bool{}

	for _, r := range records {
		cancerSeen[r.CancerType] = true
		if r.Company != "" {
			companySeen[r.Company] = true
		}
		for _, f := range classifier.ParseApprovalFacets(r.ApprovalType).Labels() {
			facetSeen[f] = true
		}
		if label, ok := classifier.MatchMechanism(r.Notes); ok {
			mechanismSeen[label] = true
		}
	}

	opts := Options{
		CancerTypes:      []string{All},
		ManufactureTypes: []string{All, string(classifier.OriginDomestic), string(classifier.OriginImport)},
		Companies:        []string{All},
		ApprovalTypes:    []string{All},
		Mechanisms:       []string{All},
	}

	known := classifier.CancerTypes()
	for _, name := range known {
		if cancerSeen[name] {
			opts.CancerTypes = append(opts.CancerTypes, name)
		}
	}
	var extra []string
	for name := range cancerSeen {
		if name != "" && !slices.Contains(known, name) {
			extra = append(extra, name)
		}
	}
	opts.CancerTypes = append(opts.CancerTypes, sortKorean(extra)...)

	companies := make([]string, 0, len(companySeen))
	for name := range companySeen {
		companies = append(companies, name)
	}
	opts.Companies = append(opts.Companies, sortKorean(companies)...)

	for _, f := range classifier.Facets() {
		if facetSeen[f] {
			opts.ApprovalTypes = append(opts.ApprovalTypes, string(f))
		}
	}
	// Records with no recognised marker stay selectable through "-".
	if facetSeen[classifier.FacetUnclassified] {
		opts.ApprovalTypes = append(opts.ApprovalTypes, string(classifier.FacetUnclassified))
	}
	for _, label := range classifier.Mechanisms() {
		if mechanismSeen[label] {
			opts.Mechanisms = append(opts.Mechanisms, label)
		}
	}

	return opts
}

func sortKorean(values []string) []string {
	collate.New(language.Korean).SortStrings(values)
	return values
}
