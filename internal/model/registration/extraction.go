package registration

import "context"

// Intent classifies what a user turn is trying to do.
type Intent string

const (
	IntentProvide  Intent = "provide"
	IntentAffirm   Intent = "affirm"
	IntentDeny     Intent = "deny"
	IntentOffTopic Intent = "off_topic"
	IntentGreeting Intent = "greeting"
	IntentUnclear  Intent = "unclear"
)

// Source names the extractor implementation that produced a result.
type Source string

const (
	SourceLLM   Source = "llm"
	SourceRules Source = "rules"
)

// ExtractionRequest is everything an extractor sees for one user turn.
type ExtractionRequest struct {
	SessionID string
	History   []Turn
	Utterance string
	Missing   []Field
	Asked     Field
	State     State
	Profile   Profile
	Pending   *Candidate
}

// Extraction is the structured reading of one user turn.
type Extraction struct {
	Fields     map[Field]Value    `json:"fields,omitempty"`
	Negated    map[Field][]string `json:"negated,omitempty"`
	Disputed   []Field            `json:"disputed,omitempty"`
	Correction bool               `json:"correction,omitempty"`
	Intent     Intent             `json:"intent"`
	Language   string             `json:"language,omitempty"`
	Reply      string             `json:"reply,omitempty"`
	Source     Source             `json:"source"`
	Fallback   bool               `json:"fallback,omitempty"`
}

// Set records a value for f, initializing the map on first use.
func (e *Extraction) Set(f Field, v Value) {
	if e.Fields == nil {
		e.Fields = make(map[Field]Value)
	}
	e.Fields[f] = v
}

// Negate records that the user rejected value for f.
func (e *Extraction) Negate(f Field, value string) {
	if e.Negated == nil {
		e.Negated = make(map[Field][]string)
	}
	for _, existing := range e.Negated[f] {
		if SameValue(f, existing, value) {
			return
		}
	}
	e.Negated[f] = append(e.Negated[f], value)
}

// IsNegated reports whether value was rejected for f in this turn.
func (e *Extraction) IsNegated(f Field, value string) bool {
	for _, v := range e.Negated[f] {
		if SameValue(f, v, value) {
			return true
		}
	}
	return false
}

// Dispute marks f as questioned by the user, once.
func (e *Extraction) Dispute(f Field) {
	for _, d := range e.Disputed {
		if d == f {
			return
		}
	}
	e.Disputed = append(e.Disputed, f)
}

// HasFields reports whether any value was extracted.
func (e *Extraction) HasFields() bool {
	return len(e.Fields) > 0
}

// Confident returns the high-confidence values only.
func (e *Extraction) Confident() map[Field]string {
	out := make(map[Field]string)
	for f, v := range e.Fields {
		if v.Confidence == ConfidenceHigh {
			out[f] = v.Text
		}
	}
	return out
}

// Extractor reads one user turn into structured fields. Implementations must
// not touch session state; merging is the caller's job.
//
// An extractor that degrades to a fallback returns the fallback result with
// Fallback set together with the error that caused it. Callers may use such
// a result and treat the error as a warning.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (Extraction, error)
}
