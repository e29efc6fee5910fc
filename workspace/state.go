// Package workspace holds the per-session dashboard state: the active
// filter criteria and an optional uploaded dataset that replaces the
// fetched collection.
package workspace

import (
	"slices"
	"sync"
	"time"

	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/filter"
)

const (
	SourceRegistry = "registry"
	SourceSearch   = "search"
	SourceUpload   = "upload"
)

// Upload is a dataset that overrides the shared collection: a spreadsheet
// import or the result of a session's own registry search.
type Upload struct {
	Source     string                          `json:"source"`
	Filename   string                          `json:"filename"`
	Records    []entities.ExtendedDrugApproval `json:"-"`
	UploadedAt time.Time                       `json:"uploadedAt"`
}

// Dataset is the collection a session currently works on.
type Dataset struct {
	Source   string
	Filename string
	Records  []entities.ExtendedDrugApproval
}

type State struct {
	mu       sync.RWMutex
	criteria filter.Criteria
	upload   *Upload
}

func NewState() *State {
	return &State{criteria: filter.DefaultCriteria()}
}

func (s *State) Criteria() filter.Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

// SetCriteria replaces the active criteria. Invalid criteria leave the
// current ones in place.
func (s *State) SetCriteria(c filter.Criteria) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.criteria = c
	s.mu.Unlock()
	return nil
}

// SetUpload installs records as the session's working collection. The
// slice is copied so later changes by the caller are not visible.
func (s *State) SetUpload(filename string, records []entities.ExtendedDrugApproval) {
	s.setOverride(SourceUpload, filename, records)
}

// SetSearchResult installs the records of a keyword fetch. label names the
// search term.
func (s *State) SetSearchResult(label string, records []entities.ExtendedDrugApproval) {
	s.setOverride(SourceSearch, label, records)
}

func (s *State) setOverride(source, filename string, records []entities.ExtendedDrugApproval) {
	u := &Upload{
		Source:     source,
		Filename:   filename,
		Records:    slices.Clone(records),
		UploadedAt: time.Now(),
	}
	s.mu.Lock()
	s.upload = u
	s.mu.Unlock()
}

// Upload returns the active upload, or nil.
func (s *State) Upload() *Upload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upload
}

func (s *State) ClearUpload() {
	s.mu.Lock()
	s.upload = nil
	s.mu.Unlock()
}

// Reset restores default criteria and drops the upload.
func (s *State) Reset() {
	s.mu.Lock()
	s.criteria = filter.DefaultCriteria()
	s.upload = nil
	s.mu.Unlock()
}

// Dataset returns the override when one is active, otherwise base.
func (s *State) Dataset(base []entities.ExtendedDrugApproval) Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.upload != nil {
		return Dataset{Source: s.upload.Source, Filename: s.upload.Filename, Records: s.upload.Records}
	}
	return Dataset{Source: SourceRegistry, Records: base}
}

// Filtered applies the active criteria to the session's dataset.
func (s *State) Filtered(base []entities.ExtendedDrugApproval) (Dataset, filter.Criteria) {
	ds := s.Dataset(base)
	c := s.Criteria()
	ds.Records = filter.Apply(ds.Records, c)
	return ds, c
}
