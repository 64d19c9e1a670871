package registration

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	phonePattern   = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
	phoneSeparator = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "", "/", "", "\u00a0", "")
)

const (
	maxNameLength     = 64
	maxLocationLength = 128
	maxCropsLength    = 256
)

// ValidationError reports a field that failed validation at confirmation or
// completion time.
type ValidationError struct {
	Field  Field
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NormalizePhone strips separators and rewrites a leading 00 to +.
func NormalizePhone(raw string) string {
	cleaned := phoneSeparator.Replace(strings.TrimSpace(raw))
	if strings.HasPrefix(cleaned, "00") {
		cleaned = "+" + cleaned[2:]
	}
	return cleaned
}

// ValidatePhone checks that raw is a structurally plausible phone number.
func ValidatePhone(raw string) error {
	if !phonePattern.MatchString(NormalizePhone(raw)) {
		return &ValidationError{Field: PhoneNumber, Reason: "expected 8 to 15 digits with an optional leading +"}
	}
	return nil
}

// ValidateField checks a single value of field f.
func ValidateField(f Field, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return &ValidationError{Field: f, Reason: "value is required"}
	}

	switch f {
	case PhoneNumber:
		return ValidatePhone(value)
	case FirstName, LastName:
		if utf8.RuneCountInString(value) > maxNameLength {
			return &ValidationError{Field: f, Reason: "name is too long"}
		}
		hasLetter := false
		for _, r := range value {
			if unicode.IsDigit(r) {
				return &ValidationError{Field: f, Reason: "name must not contain digits"}
			}
			if unicode.IsLetter(r) {
				hasLetter = true
			}
		}
		if !hasLetter {
			return &ValidationError{Field: f, Reason: "name must contain letters"}
		}
	case FarmLocation:
		if utf8.RuneCountInString(value) > maxLocationLength {
			return &ValidationError{Field: f, Reason: "location is too long"}
		}
	case PrimaryCrops:
		if utf8.RuneCountInString(value) > maxCropsLength {
			return &ValidationError{Field: f, Reason: "crop list is too long"}
		}
	default:
		return &ValidationError{Field: f, Reason: "unknown field"}
	}
	return nil
}

// ValidateProfile validates every required field in priority order and
// returns the first failure.
func ValidateProfile(p Profile) error {
	for _, f := range RequiredFields {
		if err := ValidateField(f, p.Get(f)); err != nil {
			return err
		}
	}
	return nil
}
