// Package normalizer converts raw registry items and spreadsheet rows into
// canonical approval records.
package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/giygas/mfds-oncology-api/classifier"
	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/microcosm-cc/bluemonday"
)

// RawRecord is one source record keyed by its original column names.
type RawRecord map[string]any

// NoIndication replaces an indication that is blank after markup removal.
const NoIndication = "정보 없음"

var ErrNoDrugName = errors.New("record has no product name")

var (
	cdataPattern     = regexp.MustCompile(`<!\[CDATA\[|\]\]>`)
	parenPattern     = regexp.MustCompile(`\(([^)]+)\)`)
	ingredientCode   = regexp.MustCompile(`\[[^\]]*\]`)
	componentDivider = regexp.MustCompile(`[,|]`)
)

type Normalizer struct {
	policy *bluemonday.Policy
}

func New() *Normalizer {
	return &Normalizer{policy: bluemonday.StrictPolicy()}
}

// Normalize maps a raw record onto the canonical shape. fallbackID is used
// when the source carries no identifier. Records without a product name
// fail with ErrNoDrugName; records whose approval date cannot be read fail
// with ErrMissingDate or ErrMalformedDate.
func (n *Normalizer) Normalize(raw RawRecord, fallbackID string) (entities.ExtendedDrugApproval, error) {
	values := Resolve(raw)
	text := values.Text

	drugName := text(FieldDrugName)
	if drugName == "" {
		return entities.ExtendedDrugApproval{}, ErrNoDrugName
	}

	approvalDate, err := NormalizeDate(values[FieldApprovalDate])
	if err != nil {
		return entities.ExtendedDrugApproval{}, fmt.Errorf("%s: %w", drugName, err)
	}

	id := text(FieldID)
	if id == "" {
		id = fallbackID
	}

	indication := n.StripMarkup(text(FieldIndication))
	if indication == "" {
		indication = NoIndication
	}

	cancerType := text(FieldCancerType)
	if cancerType == "" || cancerType == "-" {
		cancerType = classifier.ClassifyCancerType(indication, drugName)
	}

	return entities.ExtendedDrugApproval{
		DrugApproval: entities.DrugApproval{
			ID:           id,
			DrugName:     drugName,
			GenericName:  GenericName(CleanIngredient(text(FieldGenericName)), drugName, CleanIngredient(text(FieldIngredient))),
			Company:      text(FieldCompany),
			Indication:   indication,
			CancerType:   cancerType,
			ApprovalDate: approvalDate,
			Status:       ParseStatus(text(FieldStatus)),
		},
		ManufacturingCountry:  text(FieldManufacturingCountry),
		ConsignedManufacturer: text(FieldConsignedManufacturer),
		ApprovalType:          text(FieldApprovalType),
		DrugCategory:          text(FieldDrugCategory),
		ManufactureType:       text(FieldManufactureType),
		Notes:                 text(FieldNotes),
	}, nil
}

// Resolved holds the source value chosen for each canonical field.
type Resolved map[Field]any

// Text returns the trimmed text form of field f, or "" when unresolved.
func (r Resolved) Text(f Field) string {
	return stringValue(r[f])
}

// Resolve picks, for every canonical field, the value of the highest
// precedence alias that is present and not blank. Unknown columns are
// ignored.
func Resolve(raw RawRecord) Resolved {
	best := make(map[Field]column, len(aliasTable))
	values := make(Resolved, len(aliasTable))

	for key, value := range raw {
		col, ok := columnIndex[headerKey(key)]
		if !ok || stringValue(value) == "" {
			continue
		}
		if current, seen := best[col.field]; seen && current.priority <= col.priority {
			continue
		}
		best[col.field] = col
		values[col.field] = value
	}
	return values
}

// StripMarkup removes HTML/XML tags (CDATA content is kept), decodes
// entities and collapses whitespace.
func (n *Normalizer) StripMarkup(s string) string {
	if s == "" {
		return ""
	}
	s = cdataPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(n.policy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// ParseStatus reads a status-like column. Only explicit pending or rejected
// markers move a record out of approved.
func ParseStatus(s string) entities.Status {
	v := strings.ToLower(s)
	switch {
	case strings.Contains(v, "심사") || strings.Contains(v, "pending"):
		return entities.StatusPending
	case strings.Contains(v, "반려") || strings.Contains(v, "reject"):
		return entities.StatusRejected
	default:
		return entities.StatusApproved
	}
}

// GenericName returns the explicit generic name when present. Otherwise it
// tries a parenthetical in the product name that contains Latin letters,
// then the first component of a Latin ingredient, and finally "-".
func GenericName(explicit, drugName, ingredient string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	if m := parenPattern.FindStringSubmatch(drugName); m != nil {
		inner := firstComponent(m[1])
		if hasLatin(inner) {
			return inner
		}
	}
	if ing := firstComponent(ingredient); hasLatin(ing) {
		return ing
	}
	return "-"
}

// CleanIngredient reduces a coded registry ingredient list such as
// "[M223295]펨브롤리주맙(유전자재조합)|[M0001]..." to its first ingredient.
// Values without substance codes are only trimmed.
func CleanIngredient(ingredient string) string {
	if !ingredientCode.MatchString(ingredient) {
		return strings.TrimSpace(ingredient)
	}
	return firstComponent(ingredientCode.ReplaceAllString(ingredient, ""))
}

func firstComponent(s string) string {
	parts := componentDivider.Split(s, 2)
	return strings.TrimSpace(parts[0])
}

func hasLatin(s string) bool {
	for _, r := range s {
		if r <= unicode.MaxASCII && unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(entities.DateLayout)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
