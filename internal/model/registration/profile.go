package registration

import (
	"fmt"
	"strings"
)

// Profile is the partial farmer profile collected so far. A missing key (or an
// empty value) means the field has not been filled yet.
type Profile map[Field]string

// Get returns the value of f, or "" when unset.
func (p Profile) Get(f Field) string {
	if p == nil {
		return ""
	}
	return p[f]
}

// Has reports whether f holds a non-empty value.
func (p Profile) Has(f Field) bool {
	return strings.TrimSpace(p.Get(f)) != ""
}

// Clone returns an independent copy.
func (p Profile) Clone() Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Missing returns the unfilled required fields in priority order.
func (p Profile) Missing() []Field {
	missing := make([]Field, 0, len(RequiredFields))
	for _, f := range RequiredFields {
		if !p.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Summary renders the profile as a confirmation list.
func (p Profile) Summary() string {
	var b strings.Builder
	for i, f := range RequiredFields {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s: %s", f.Label(), p.Get(f))
	}
	return b.String()
}
