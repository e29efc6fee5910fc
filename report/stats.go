// Package report aggregates approval collections into statistics and
// renders them as a workbook, a plain-text preview or an HTML email body.
package report

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/giygas/mfds-oncology-api/classifier"
	"github.com/giygas/mfds-oncology-api/entities"
)

// CalculateStatistics counts records by cancer type, approval facet,
// origin, mechanism and therapy class. Records without an approval type
// are left out of the approval-type counts; notes without a recognised
// mechanism are left out of the mechanism counts.
func CalculateStatistics(records []entities.ExtendedDrugApproval) entities.Statistics {
	stats := entities.Statistics{
		TotalCount:        len(records),
		CancerTypeStats:   map[string]int{},
		ApprovalTypeStats: map[string]int{},
		MechanismStats:    map[string]int{},
		TherapyClassStats: map[string]int{},
	}

	for _, r := range records {
		stats.CancerTypeStats[r.CancerType]++

		if t := strings.TrimSpace(r.ApprovalType); t != "" && t != string(classifier.FacetUnclassified) {
			for _, label := range classifier.ParseApprovalFacets(t).Labels() {
				stats.ApprovalTypeStats[string(label)]++
			}
		}

		switch classifier.ResolveOrigin(r.ManufactureType, r.Company) {
		case classifier.OriginImport:
			stats.ManufactureStats.Import++
		default:
			stats.ManufactureStats.Domestic++
		}

		if label, ok := classifier.MatchMechanism(r.Notes); ok {
			stats.MechanismStats[label]++
		}

		stats.TherapyClassStats[classifier.TherapyClass(r.DrugName)]++
	}

	return stats
}

// CompanyCounts counts records per company; a blank company counts as "-".
func CompanyCounts(records []entities.ExtendedDrugApproval) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[dash(strings.TrimSpace(r.Company))]++
	}
	return counts
}

type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// SortedCounts orders counts descending, ties by key.
func SortedCounts(m map[string]int) []Count {
	counts := make([]Count, 0, len(m))
	for k, v := range m {
		counts = append(counts, Count{Key: k, Count: v})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Key < counts[j].Key
	})
	return counts
}

// FormatCounts renders "key(n{unit}), ..." in SortedCounts order.
func FormatCounts(m map[string]int, unit string) string {
	parts := make([]string, 0, len(m))
	for _, c := range SortedCounts(m) {
		parts = append(parts, fmt.Sprintf("%s(%d%s)", c.Key, c.Count, unit))
	}
	return strings.Join(parts, ", ")
}

// DefaultIndicationLength is the table-view truncation length.
const DefaultIndicationLength = 80

// DisplayIndication shortens an indication to n runes for table views.
// Exports and emails always use the full text.
func DisplayIndication(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
