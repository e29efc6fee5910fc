// Package classifier decides oncology relevance and derives the category
// fields of a drug approval record from free text, using the ordered
// keyword tables in keywords.go.
package classifier

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Fold puts text into the form every keyword table is written in: NFC
// composed Hangul, lower-case Latin.
func Fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, Fold(kw)) {
			return true
		}
	}
	return false
}

// IsOncologyDrug reports whether a product is in scope for the dashboard.
// An exclusion keyword rejects the product even if an oncology keyword also
// matches.
func IsOncologyDrug(productName, ingredients string) bool {
	text := Fold(productName + " " + ingredients)

	if containsAny(text, ExcludeKeywords) {
		return false
	}
	return containsAny(text, OncologyKeywords)
}

// ClassifyCancerType returns the first CancerTypeTable category matching the
// indication or product name, or OtherCancerType.
func ClassifyCancerType(indication, productName string) string {
	text := Fold(indication + " " + productName)

	for _, category := range CancerTypeTable {
		if containsAny(text, category.Keywords) {
			return category.Name
		}
	}
	return OtherCancerType
}

// TherapyClass buckets a product by its name stem for the chart view.
func TherapyClass(productName string) string {
	name := Fold(productName)

	switch {
	case strings.Contains(name, "mab") || strings.Contains(name, "주맙"):
		return "면역항암제"
	case strings.Contains(name, "nib") || strings.Contains(name, "티닙") || strings.Contains(name, "니브"):
		return "표적치료제"
	case strings.Contains(name, "타미드") || strings.Contains(name, "루타미드"):
		return "호르몬요법"
	default:
		return OtherCancerType
	}
}
