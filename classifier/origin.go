package classifier

import "strings"

// Origin is the import/domestic split shown as 제조/수입.
type Origin string

const (
	OriginImport   Origin = "수입"
	OriginDomestic Origin = "제조"
)

// ResolveOrigin prefers an explicit manufactureType value. The company-name
// heuristic (a Korean subsidiary name means an importer) is used only when
// the explicit field is blank or unrecognised.
func ResolveOrigin(manufactureType, company string) Origin {
	if origin, ok := ParseOrigin(manufactureType); ok {
		return origin
	}
	if strings.Contains(company, "한국") || strings.Contains(Fold(company), "korea") {
		return OriginImport
	}
	return OriginDomestic
}

// ParseOrigin reads an explicit manufacture-type value.
func ParseOrigin(manufactureType string) (Origin, bool) {
	v := Fold(strings.TrimSpace(manufactureType))
	switch {
	case v == "":
		return "", false
	case strings.Contains(v, "수입") || v == "import" || v == "imported":
		return OriginImport, true
	case strings.Contains(v, "제조") || v == "domestic" || v == "manufactured":
		return OriginDomestic, true
	}
	return "", false
}
