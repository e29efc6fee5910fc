package workspace

import (
	"sync"
	"testing"

	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, cancer, date string) entities.ExtendedDrugApproval {
	return entities.ExtendedDrugApproval{DrugApproval: entities.DrugApproval{
		ID: id, DrugName: "약" + id, CancerType: cancer, ApprovalDate: date,
	}}
}

func TestNewStateDefaults(t *testing.T) {
	s := NewState()
	assert.Equal(t, filter.DefaultCriteria(), s.Criteria())
	assert.Nil(t, s.Upload())

	ds := s.Dataset([]entities.ExtendedDrugApproval{record("1", "폐암", "2025-01-01")})
	assert.Equal(t, SourceRegistry, ds.Source)
	assert.Len(t, ds.Records, 1)
}

func TestSetCriteria(t *testing.T) {
	s := NewState()

	c := filter.DefaultCriteria()
	c.CancerType = "폐암"
	require.NoError(t, s.SetCriteria(c))
	assert.Equal(t, "폐암", s.Criteria().CancerType)

	bad := filter.DefaultCriteria()
	bad.StartDate = "2025-12-31"
	bad.EndDate = "2025-01-01"
	assert.ErrorIs(t, s.SetCriteria(bad), filter.ErrInvalidRange)
	assert.Equal(t, "폐암", s.Criteria().CancerType, "invalid criteria must not replace the current ones")
}

func TestUploadOverride(t *testing.T) {
	s := NewState()
	base := []entities.ExtendedDrugApproval{record("1", "폐암", "2025-01-01")}
	uploaded := []entities.ExtendedDrugApproval{
		record("upload-0", "유방암", "2025-02-01"),
		record("upload-1", "폐암", "2025-03-01"),
	}

	s.SetUpload("list.xlsx", uploaded)
	uploaded[0].DrugName = "changed"

	ds := s.Dataset(base)
	assert.Equal(t, SourceUpload, ds.Source)
	assert.Equal(t, "list.xlsx", ds.Filename)
	require.Len(t, ds.Records, 2)
	assert.Equal(t, "약upload-0", ds.Records[0].DrugName)

	s.ClearUpload()
	assert.Equal(t, SourceRegistry, s.Dataset(base).Source)
}

func TestFiltered(t *testing.T) {
	s := NewState()
	base := []entities.ExtendedDrugApproval{
		record("1", "폐암", "2025-01-01"),
		record("2", "유방암", "2025-02-01"),
		record("3", "폐암", "2025-03-01"),
	}
	c := filter.DefaultCriteria()
	c.CancerType = "폐암"
	require.NoError(t, s.SetCriteria(c))

	ds, got := s.Filtered(base)
	assert.Equal(t, c, got)
	require.Len(t, ds.Records, 2)
	assert.Equal(t, "1", ds.Records[0].ID)
	assert.Equal(t, "3", ds.Records[1].ID)
	assert.Len(t, base, 3)
}

func TestReset(t *testing.T) {
	s := NewState()
	c := filter.DefaultCriteria()
	c.Company = "한국화이자제약"
	require.NoError(t, s.SetCriteria(c))
	s.SetUpload("x.csv", []entities.ExtendedDrugApproval{record("1", "폐암", "2025-01-01")})

	s.Reset()

	assert.True(t, s.Criteria().IsDefault())
	assert.Nil(t, s.Upload())
}

func TestConcurrentAccess(t *testing.T) {
	s := NewState()
	base := []entities.ExtendedDrugApproval{record("1", "폐암", "2025-01-01")}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			s.SetUpload("x.csv", base)
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Filtered(base)
		}()
		go func() {
			defer wg.Done()
			s.Reset()
		}()
	}
	wg.Wait()
}

func TestSearchResultOverride(t *testing.T) {
	s := NewState()
	s.SetSearchResult("키트루다", []entities.ExtendedDrugApproval{record("A1", "폐암", "2025-01-01")})

	ds := s.Dataset(nil)
	assert.Equal(t, SourceSearch, ds.Source)
	assert.Equal(t, "키트루다", ds.Filename)
	assert.Len(t, ds.Records, 1)

	s.SetUpload("list.csv", nil)
	assert.Equal(t, SourceUpload, s.Dataset(nil).Source)
}
