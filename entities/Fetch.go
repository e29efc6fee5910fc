package entities

import (
	"strings"
	"time"
)

// FetchRequest selects what the aggregator queries: a single search term,
// the full curated sweep, or (neither set) the default keyword set. A
// non-empty search term wins over the sweep flags.
type FetchRequest struct {
	SearchTerm string `json:"searchTerm,omitempty"`
	FetchAll   bool   `json:"fetchAll,omitempty"`
	SearchType string `json:"searchType,omitempty"`
}

// IsSweep reports whether the request asks for every curated keyword.
func (r FetchRequest) IsSweep() bool {
	if strings.TrimSpace(r.SearchTerm) != "" {
		return false
	}
	return r.FetchAll || r.SearchType == "all"
}

type FetchResult struct {
	Records        []ExtendedDrugApproval `json:"data"`
	TotalCount     int                    `json:"totalCount"`
	OriginalCount  int                    `json:"originalCount"`
	FailedKeywords []string               `json:"failedKeywords,omitempty"`
	RejectedCount  int                    `json:"rejectedCount,omitempty"`
	FetchedAt      time.Time              `json:"fetchedAt"`
}

// RegistryPage is one page of the registry search response, items kept in
// their raw key/value form for the normalizer.
type RegistryPage struct {
	Items      []map[string]any
	TotalCount int
}
