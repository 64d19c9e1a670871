package registration

import "strings"

// Field names one required farmer-profile attribute.
type Field string

const (
	FirstName    Field = "first_name"
	LastName     Field = "last_name"
	PhoneNumber  Field = "phone_number"
	FarmLocation Field = "farm_location"
	PrimaryCrops Field = "primary_crops"
)

// RequiredFields lists every required field in prompting priority order:
// name before phone before location before crops.
var RequiredFields = []Field{FirstName, LastName, PhoneNumber, FarmLocation, PrimaryCrops}

var fieldAliases = map[string]Field{
	"first_name":    FirstName,
	"firstname":     FirstName,
	"first name":    FirstName,
	"name":          FirstName,
	"last_name":     LastName,
	"lastname":      LastName,
	"last name":     LastName,
	"surname":       LastName,
	"family name":   LastName,
	"phone_number":  PhoneNumber,
	"phone":         PhoneNumber,
	"phone number":  PhoneNumber,
	"number":        PhoneNumber,
	"farm_location": FarmLocation,
	"location":      FarmLocation,
	"farm location": FarmLocation,
	"primary_crops": PrimaryCrops,
	"crops":         PrimaryCrops,
	"crop":          PrimaryCrops,
}

// ParseField maps a field name or a common alias onto a Field.
func ParseField(raw string) (Field, bool) {
	f, ok := fieldAliases[strings.ToLower(strings.TrimSpace(raw))]
	return f, ok
}

// Valid reports whether f is one of the required fields.
func (f Field) Valid() bool {
	for _, r := range RequiredFields {
		if r == f {
			return true
		}
	}
	return false
}

// Label is the human-readable name used in prompts.
func (f Field) Label() string {
	switch f {
	case FirstName:
		return "first name"
	case LastName:
		return "last name"
	case PhoneNumber:
		return "phone number"
	case FarmLocation:
		return "farm location"
	case PrimaryCrops:
		return "main crops"
	default:
		return string(f)
	}
}

// Confidence grades an extracted value.
type Confidence string

const (
	ConfidenceLow  Confidence = "low"
	ConfidenceHigh Confidence = "high"
)

// Value is a single extracted field value.
type Value struct {
	Text       string     `json:"value"`
	Confidence Confidence `json:"confidence"`
}

// High returns a confidently extracted value.
func High(text string) Value {
	return Value{Text: text, Confidence: ConfidenceHigh}
}

// Low returns a tentative value that must be confirmed before use.
func Low(text string) Value {
	return Value{Text: text, Confidence: ConfidenceLow}
}

// Confident reports whether v may be written to a profile without asking.
func (v Value) Confident() bool {
	return v.Confidence == ConfidenceHigh
}

// SameValue compares two values of field f the way merges do: phone numbers
// by their normalized digits, everything else case- and space-insensitively.
func SameValue(f Field, a, b string) bool {
	if f == PhoneNumber {
		return NormalizePhone(a) == NormalizePhone(b)
	}
	return strings.EqualFold(collapseSpaces(a), collapseSpaces(b))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
