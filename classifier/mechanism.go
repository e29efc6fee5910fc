package classifier

import "strings"

// DefaultMechanism is returned when no MechanismTable entry matches.
const DefaultMechanism = "기타"

type Mechanism struct {
	Label   string
	Markers []string
}

// MechanismTable is matched in order against free-text notes.
var MechanismTable = []Mechanism{
	{Label: "ADC", Markers: []string{"ADC", "항체-약물 접합체", "항체약물접합체"}},
	{Label: "안드로겐 수용체 억제제", Markers: []string{"안드로겐 수용체 억제제", "androgen receptor"}},
	{Label: "SERD", Markers: []string{"SERD", "호르몬요법", "hormone therapy"}},
	{Label: "EGFR TKI", Markers: []string{"EGFR TKI", "EGFR"}},
	{Label: "FLT3 억제제", Markers: []string{"FLT3 억제제", "FLT3"}},
	{Label: "IDH 억제제", Markers: []string{"IDH 억제제", "IDH"}},
	{Label: "표적치료제", Markers: []string{"표적치료", "targeted therapy"}},
	{Label: "면역항암제", Markers: []string{"면역항암", "immunotherapy", "면역관문"}},
}

// MatchMechanism returns the first mechanism label whose marker occurs in
// notes.
func MatchMechanism(notes string) (string, bool) {
	if strings.TrimSpace(notes) == "" {
		return "", false
	}
	text := Fold(notes)
	for _, m := range MechanismTable {
		if containsAny(text, m.Markers) {
			return m.Label, true
		}
	}
	return "", false
}

func ClassifyMechanism(notes string) string {
	if label, ok := MatchMechanism(notes); ok {
		return label
	}
	return DefaultMechanism
}

// Mechanisms lists the mechanism labels in table order.
func Mechanisms() []string {
	labels := make([]string, 0, len(MechanismTable))
	for _, m := range MechanismTable {
		labels = append(labels, m.Label)
	}
	return labels
}
