// Package aggregator runs registry keyword queries concurrently and merges
// the results into one deduplicated, date-ordered collection.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/mfds-oncology-api/classifier"
	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/interfaces"
	"github.com/giygas/mfds-oncology-api/logging"
	"github.com/giygas/mfds-oncology-api/metrics"
	"github.com/giygas/mfds-oncology-api/normalizer"
	"golang.org/x/sync/errgroup"
)

// ErrAllKeywordsFailed is returned when no keyword query succeeded.
var ErrAllKeywordsFailed = errors.New("all registry keyword queries failed")

type Aggregator struct {
	searcher    interfaces.RegistrySearcher
	normalizer  *normalizer.Normalizer
	concurrency int
	sweep       []string
	defaults    []string
	now         func() time.Time
}

type Option func(*Aggregator)

// WithConcurrency caps the number of keyword queries in flight. Zero or a
// negative value means no cap.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) { a.concurrency = n }
}

// WithKeywords replaces the sweep and default keyword lists.
func WithKeywords(sweep, defaults []string) Option {
	return func(a *Aggregator) {
		a.sweep = sweep
		a.defaults = defaults
	}
}

func New(searcher interfaces.RegistrySearcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		searcher:   searcher,
		normalizer: normalizer.New(),
		sweep:      classifier.SearchKeywords,
		defaults:   classifier.DefaultSearchKeywords,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ interfaces.Fetcher = (*Aggregator)(nil)

// Keywords returns the queries a request expands to.
func (a *Aggregator) Keywords(req entities.FetchRequest) []string {
	switch {
	case strings.TrimSpace(req.SearchTerm) != "":
		return []string{strings.TrimSpace(req.SearchTerm)}
	case req.IsSweep():
		return a.sweep
	default:
		return a.defaults
	}
}

type keywordResult struct {
	items []map[string]any
	total int
	err   error
}

// Fetch queries every keyword of req concurrently. A failed keyword
// contributes nothing and is reported in FailedKeywords; the fetch only
// fails when every keyword failed or ctx was cancelled.
func (a *Aggregator) Fetch(ctx context.Context, req entities.FetchRequest) (*entities.FetchResult, error) {
	keywords := a.Keywords(req)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("no keywords to query")
	}

	start := time.Now()
	results := a.searchAll(ctx, keywords)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch cancelled: %w", err)
	}

	result := a.merge(keywords, results)
	elapsed := time.Since(start)

	if req.IsSweep() {
		metrics.SweepDuration.Observe(elapsed.Seconds())
	}
	metrics.KeywordFailuresTotal.Add(float64(len(result.FailedKeywords)))

	if len(result.FailedKeywords) == len(keywords) {
		logging.Error("Every registry keyword query failed", "keywords", len(keywords))
		return nil, fmt.Errorf("%w (%d keywords)", ErrAllKeywordsFailed, len(keywords))
	}

	logging.Info("Registry fetch completed",
		"keywords", len(keywords),
		"failed_keywords", len(result.FailedKeywords),
		"original_count", result.OriginalCount,
		"records", result.TotalCount,
		"rejected", result.RejectedCount,
		"duration", elapsed,
	)

	return result, nil
}

// searchAll runs one query per keyword and stores each outcome in the
// keyword's own slot, so completion order never affects the merge.
func (a *Aggregator) searchAll(ctx context.Context, keywords []string) []keywordResult {
	results := make([]keywordResult, len(keywords))

	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}

	for i, keyword := range keywords {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			page, err := a.searcher.Search(ctx, keyword)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i] = keywordResult{items: page.Items, total: page.TotalCount}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (a *Aggregator) merge(keywords []string, results []keywordResult) *entities.FetchResult {
	rejected := make(map[string]struct{})
	records := []entities.ExtendedDrugApproval{}
	result := &entities.FetchResult{FetchedAt: a.now()}

	for i, r := range results {
		if r.err != nil {
			logging.Warn("Registry keyword query failed", "keyword", keywords[i], "error", r.err)
			result.FailedKeywords = append(result.FailedKeywords, keywords[i])
			continue
		}
		result.OriginalCount += r.total

		for j, item := range r.items {
			raw := normalizer.RawRecord(item)
			values := normalizer.Resolve(raw)

			ingredients := values.Text(normalizer.FieldGenericName)
			if ingredients == "" {
				ingredients = values.Text(normalizer.FieldIngredient)
			}
			if !classifier.IsOncologyDrug(values.Text(normalizer.FieldDrugName), ingredients) {
				continue
			}

			fallbackID := keywords[i] + "-" + strconv.Itoa(j+1)
			record, err := a.normalizer.Normalize(raw, fallbackID)
			if err != nil {
				id := values.Text(normalizer.FieldID)
				if _, dup := rejected[id]; id == "" || !dup {
					rejected[id] = struct{}{}
					result.RejectedCount++
				}
				logging.Debug("Rejected registry item", "id", id, "error", err)
				continue
			}
			records = append(records, record)
		}
	}

	// The same product comes back for several keywords; keyword order
	// decides which copy is kept.
	result.Records = Dedupe(records)
	SortByDateDesc(result.Records)
	result.TotalCount = len(result.Records)
	return result
}

// SortByDateDesc orders records newest first; equal dates keep their
// relative order.
func SortByDateDesc(records []entities.ExtendedDrugApproval) {
	slices.SortStableFunc(records, func(x, y entities.ExtendedDrugApproval) int {
		return strings.Compare(y.ApprovalDate, x.ApprovalDate)
	})
}

// Dedupe keeps the first record for every id, preserving order.
func Dedupe(records []entities.ExtendedDrugApproval) []entities.ExtendedDrugApproval {
	seen := make(map[string]struct{}, len(records))
	out := make([]entities.ExtendedDrugApproval, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
