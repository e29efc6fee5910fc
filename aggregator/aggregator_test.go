package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	mu       sync.Mutex
	pages    map[string]*entities.RegistryPage
	failures map[string]error
	delay    map[string]time.Duration
	calls    []string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *stubSearcher) Search(ctx context.Context, keyword string) (*entities.RegistryPage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, keyword)
	s.mu.Unlock()

	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if d := s.delay[keyword]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.failures[keyword]; err != nil {
		return nil, err
	}
	if page, ok := s.pages[keyword]; ok {
		return page, nil
	}
	return &entities.RegistryPage{}, nil
}

func item(seq, name, ingr, date, indication string) map[string]any {
	return map[string]any{
		"ITEM_SEQ":         seq,
		"ITEM_NAME":        name,
		"ENTP_NAME":        "한국MSD",
		"ITEM_PERMIT_DATE": date,
		"MAIN_ITEM_INGR":   ingr,
		"EE_DOC_DATA":      indication,
	}
}

var knownItems = []map[string]any{
	item("1", "키트루다주100mg", "pembrolizumab", "20241215", "<p>비소세포폐암</p>"),
	item("2", "옵디보주", "nivolumab", "20230102", "흑색종"),
	item("3", "허쥬마주150mg", "trastuzumab", "20220510", "HER2 양성 유방암"),
	item("4", "타그리소정80mg", "osimertinib", "20250101", "EGFR 변이 비소세포폐암"),
	item("5", "린파자정150mg", "olaparib", "20210707", "난소암"),
	item("6", "다라잘렉스주", "daratumumab", "20200303", "다발골수종"),
}

func sweepKeywords(n int) []string {
	keywords := make([]string, n)
	for i := range keywords {
		keywords[i] = fmt.Sprintf("kw%02d", i)
	}
	return keywords
}

func TestFetchSweepWithPartialFailures(t *testing.T) {
	keywords := sweepKeywords(45)
	searcher := &stubSearcher{
		pages:    map[string]*entities.RegistryPage{},
		failures: map[string]error{},
	}

	// Six unique items spread across keywords with overlap.
	for i, kw := range keywords {
		a, b := knownItems[i%6], knownItems[(i+1)%6]
		searcher.pages[kw] = &entities.RegistryPage{Items: []map[string]any{a, b}, TotalCount: 2}
	}
	for _, kw := range []string{"kw03", "kw17", "kw40"} {
		searcher.failures[kw] = errors.New("connection refused")
	}

	agg := New(searcher, WithKeywords(keywords, nil))
	result, err := agg.Fetch(context.Background(), entities.FetchRequest{FetchAll: true})
	require.NoError(t, err)

	assert.Len(t, result.Records, 6)
	assert.Equal(t, 6, result.TotalCount)
	assert.Equal(t, 42*2, result.OriginalCount)
	assert.Equal(t, []string{"kw03", "kw17", "kw40"}, result.FailedKeywords)
	assert.Len(t, searcher.calls, 45)
}

func TestFetchMergeIsDeterministic(t *testing.T) {
	keywords := sweepKeywords(6)
	searcher := &stubSearcher{
		pages: map[string]*entities.RegistryPage{},
		delay: map[string]time.Duration{},
	}
	for i, kw := range keywords {
		searcher.pages[kw] = &entities.RegistryPage{Items: []map[string]any{knownItems[i]}, TotalCount: 1}
		searcher.delay[kw] = time.Duration(len(keywords)-i) * 5 * time.Millisecond
	}

	agg := New(searcher, WithKeywords(keywords, nil))
	first, err := agg.Fetch(context.Background(), entities.FetchRequest{FetchAll: true})
	require.NoError(t, err)

	for i := range keywords {
		searcher.delay[keywords[i]] = time.Duration(i) * 5 * time.Millisecond
	}
	second, err := agg.Fetch(context.Background(), entities.FetchRequest{FetchAll: true})
	require.NoError(t, err)

	assert.Equal(t, ids(first.Records), ids(second.Records))
	assert.Equal(t, []string{"4", "1", "2", "3", "5", "6"}, ids(first.Records))
}

func TestFetchFiltersNonOncologyItems(t *testing.T) {
	searcher := &stubSearcher{pages: map[string]*entities.RegistryPage{
		"정": {Items: []map[string]any{
			knownItems[0],
			item("90", "암로디핀정5mg", "amlodipine", "20240101", "고혈압"),
			item("91", "타이레놀정500mg", "acetaminophen", "20240101", "해열"),
		}, TotalCount: 3},
	}}

	result, err := New(searcher).Fetch(context.Background(), entities.FetchRequest{SearchTerm: " 정 "})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(result.Records))
	assert.Equal(t, 3, result.OriginalCount)
	assert.Equal(t, []string{"정"}, searcher.calls)
}

func TestFetchRejectsMalformedDates(t *testing.T) {
	searcher := &stubSearcher{pages: map[string]*entities.RegistryPage{
		"키트루다": {Items: []map[string]any{
			knownItems[0],
			item("50", "키트루다주50mg", "pembrolizumab", "2024년 12월", "폐암"),
		}, TotalCount: 2},
	}}

	result, err := New(searcher, WithKeywords([]string{"키트루다"}, nil)).
		Fetch(context.Background(), entities.FetchRequest{SearchType: "all"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalCount)
	assert.Equal(t, 1, result.RejectedCount)
}

func TestFetchAllKeywordsFailed(t *testing.T) {
	searcher := &stubSearcher{failures: map[string]error{
		"a": errors.New("timeout"),
		"b": errors.New("timeout"),
	}}

	_, err := New(searcher, WithKeywords([]string{"a", "b"}, nil)).
		Fetch(context.Background(), entities.FetchRequest{FetchAll: true})
	assert.ErrorIs(t, err, ErrAllKeywordsFailed)
}

func TestFetchZeroRecordsIsNotAnError(t *testing.T) {
	result, err := New(&stubSearcher{}).Fetch(context.Background(), entities.FetchRequest{})
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.NotNil(t, result.Records)
}

func TestFetchCancelled(t *testing.T) {
	searcher := &stubSearcher{delay: map[string]time.Duration{"slow": time.Second}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := New(searcher, WithKeywords([]string{"slow"}, nil)).
		Fetch(ctx, entities.FetchRequest{FetchAll: true})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchConcurrencyCap(t *testing.T) {
	keywords := sweepKeywords(12)
	searcher := &stubSearcher{delay: map[string]time.Duration{}}
	for _, kw := range keywords {
		searcher.delay[kw] = 5 * time.Millisecond
	}

	_, err := New(searcher, WithKeywords(keywords, nil), WithConcurrency(3)).
		Fetch(context.Background(), entities.FetchRequest{FetchAll: true})
	require.NoError(t, err)
	assert.LessOrEqual(t, searcher.peak.Load(), int32(3))
}

func TestKeywords(t *testing.T) {
	agg := New(&stubSearcher{})

	assert.Len(t, agg.Keywords(entities.FetchRequest{FetchAll: true}), 48)
	assert.Equal(t, []string{"키트루다", "옵디보", "허쥬마"}, agg.Keywords(entities.FetchRequest{}))
	assert.Equal(t, []string{"렌비마"}, agg.Keywords(entities.FetchRequest{SearchTerm: "렌비마"}))
	assert.Len(t, agg.Keywords(entities.FetchRequest{SearchType: "all"}), 48)
	assert.Len(t, agg.Keywords(entities.FetchRequest{SearchTerm: "  ", FetchAll: true}), 48)

	// A search term wins over the sweep flags.
	assert.Equal(t, []string{"렌비마"}, agg.Keywords(entities.FetchRequest{SearchTerm: "렌비마", FetchAll: true}))
	assert.Equal(t, []string{"렌비마"}, agg.Keywords(entities.FetchRequest{SearchTerm: "렌비마", SearchType: "all"}))
}

func TestFetchSearchTermBeatsSweepFlag(t *testing.T) {
	searcher := &stubSearcher{pages: map[string]*entities.RegistryPage{
		"렌비마": {Items: []map[string]any{
			item("7", "렌비마캡슐4mg", "lenvatinib", "20190102", "갑상선암"),
		}, TotalCount: 1},
	}}

	result, err := New(searcher).Fetch(context.Background(),
		entities.FetchRequest{SearchTerm: "렌비마", FetchAll: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"렌비마"}, searcher.calls)
	assert.Equal(t, []string{"7"}, ids(result.Records))
}

func TestDedupeIsIdempotent(t *testing.T) {
	records := []entities.ExtendedDrugApproval{
		{DrugApproval: entities.DrugApproval{ID: "1", DrugName: "a"}},
		{DrugApproval: entities.DrugApproval{ID: "2", DrugName: "b"}},
		{DrugApproval: entities.DrugApproval{ID: "3", DrugName: "c"}},
	}

	merged := Dedupe(append(append([]entities.ExtendedDrugApproval{}, records...), records...))
	assert.Equal(t, records, merged)
	assert.Equal(t, merged, Dedupe(merged))
}

func TestFetchDedupesAcrossKeywords(t *testing.T) {
	page := &entities.RegistryPage{Items: knownItems, TotalCount: len(knownItems)}
	searcher := &stubSearcher{pages: map[string]*entities.RegistryPage{"a": page, "b": page}}
	agg := New(searcher, WithKeywords([]string{"a", "b"}, nil))

	twice, err := agg.Fetch(context.Background(), entities.FetchRequest{FetchAll: true})
	require.NoError(t, err)

	once, err := New(searcher, WithKeywords([]string{"a"}, nil)).
		Fetch(context.Background(), entities.FetchRequest{FetchAll: true})
	require.NoError(t, err)

	assert.Equal(t, ids(once.Records), ids(twice.Records))
	assert.Len(t, twice.Records, len(knownItems))
	assert.Equal(t, 2*len(knownItems), twice.OriginalCount)
}

func TestFetchCountsRepeatedRejectionOnce(t *testing.T) {
	bad := &entities.RegistryPage{Items: []map[string]any{
		item("50", "키트루다주50mg", "pembrolizumab", "2024년 12월", "폐암"),
	}, TotalCount: 1}
	searcher := &stubSearcher{pages: map[string]*entities.RegistryPage{"a": bad, "b": bad}}

	result, err := New(searcher, WithKeywords([]string{"a", "b"}, nil)).
		Fetch(context.Background(), entities.FetchRequest{FetchAll: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RejectedCount)
	assert.Empty(t, result.Records)
}

func TestSortByDateDescIsStable(t *testing.T) {
	records := []entities.ExtendedDrugApproval{
		{DrugApproval: entities.DrugApproval{ID: "a", ApprovalDate: "2024-01-01"}},
		{DrugApproval: entities.DrugApproval{ID: "b", ApprovalDate: "2025-01-01"}},
		{DrugApproval: entities.DrugApproval{ID: "c", ApprovalDate: "2024-01-01"}},
	}
	SortByDateDesc(records)
	assert.Equal(t, []string{"b", "a", "c"}, ids(records))
}

func ids(records []entities.ExtendedDrugApproval) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
