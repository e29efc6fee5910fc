package normalizer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Field is a canonical record field that source columns resolve to.
type Field string

const (
	FieldID                    Field = "id"
	FieldDrugName              Field = "drugName"
	FieldGenericName           Field = "genericName"
	FieldIngredient            Field = "ingredient"
	FieldCompany               Field = "company"
	FieldIndication            Field = "indication"
	FieldCancerType            Field = "cancerType"
	FieldApprovalDate          Field = "approvalDate"
	FieldStatus                Field = "status"
	FieldApprovalType          Field = "approvalType"
	FieldManufactureType       Field = "manufactureType"
	FieldManufacturingCountry  Field = "manufacturingCountry"
	FieldConsignedManufacturer Field = "consignedManufacturer"
	FieldNotes                 Field = "notes"
	FieldDrugCategory          Field = "drugCategory"
)

type alias struct {
	field Field
	names []string // highest precedence first
}

// aliasTable covers the registry response fields, the Korean spreadsheet
// headers and the JSON names of exported records.
var aliasTable = []alias{
	{FieldID, []string{"id", "품목기준코드", "ITEM_SEQ"}},
	{FieldDrugName, []string{"drugName", "제품명", "약품명", "품목명", "ITEM_NAME"}},
	{FieldGenericName, []string{"genericName", "성분명", "주성분", "MAIN_INGR", "MAIN_ITEM_INGR"}},
	{FieldIngredient, []string{"ingredient", "원료성분", "INGR_NAME"}},
	{FieldCompany, []string{"company", "업체명", "제조사", "제조/수입사", "ENTP_NAME"}},
	{FieldIndication, []string{"indication", "적응증", "효능효과", "EE_DOC_DATA", "UD_DOC_DATA", "NB_DOC_DATA"}},
	{FieldCancerType, []string{"cancerType", "암종"}},
	{FieldApprovalDate, []string{"approvalDate", "허가일", "승인일", "ITEM_PERMIT_DATE"}},
	{FieldStatus, []string{"status", "상태"}},
	{FieldApprovalType, []string{"approvalType", "허가유형"}},
	{FieldManufactureType, []string{"manufactureType", "제조/수입"}},
	{FieldManufacturingCountry, []string{"manufacturingCountry", "제조국"}},
	{FieldConsignedManufacturer, []string{"consignedManufacturer", "위탁제조업체"}},
	{FieldNotes, []string{"notes", "비고"}},
	{FieldDrugCategory, []string{"drugCategory", "약효분류", "CLASS_NAME"}},
}

type column struct {
	field    Field
	priority int
}

var columnIndex = buildColumnIndex()

func buildColumnIndex() map[string]column {
	index := make(map[string]column)
	for _, a := range aliasTable {
		for i, name := range a.names {
			index[headerKey(name)] = column{field: a.field, priority: i}
		}
	}
	return index
}

// headerKey makes header lookup insensitive to surrounding and inner
// whitespace, Latin case and Hangul normalization form.
func headerKey(header string) string {
	header = norm.NFC.String(header)
	header = strings.Join(strings.Fields(header), "")
	return strings.ToLower(header)
}

// ResolveColumn maps a source column header to its canonical field.
func ResolveColumn(header string) (Field, bool) {
	c, ok := columnIndex[headerKey(header)]
	return c.field, ok
}
