package registration

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is a dialogue state of a registration session.
type State string

const (
	StateCollecting State = "COLLECTING"
	StateConfirming State = "CONFIRMING"
	StateComplete   State = "COMPLETE"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one message in a registration conversation.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Transition records a state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// CandidateReason explains why a value is waiting for a yes/no.
type CandidateReason string

const (
	// ReasonAmbiguous is a low-confidence guess, e.g. a bare city name.
	ReasonAmbiguous CandidateReason = "ambiguous"
	// ReasonConflict is a new value for a field that is already set.
	ReasonConflict CandidateReason = "conflict"
)

// Candidate is a value held back from the profile until the user confirms it.
type Candidate struct {
	Field  Field           `json:"field"`
	Value  string          `json:"value"`
	Reason CandidateReason `json:"reason"`
}

// Session is one registration conversation. It is owned by the session store;
// callers mutate it only inside the store's per-session critical section.
type Session struct {
	ID          string             `json:"id"`
	Instance    string             `json:"instance"` // new for every conversation, even on a reused id
	State       State              `json:"state"`
	Profile     Profile            `json:"profile"`
	Pending     *Candidate         `json:"pending,omitempty"`
	Queued      []Candidate        `json:"queued,omitempty"`
	Negated     map[Field][]string `json:"negated,omitempty"`
	Asked       Field              `json:"asked,omitempty"`
	Language    string             `json:"language,omitempty"`
	Turns       []Turn             `json:"turns"`
	Transitions []Transition       `json:"transitions,omitempty"`
	RecordID    string             `json:"recordId,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// NewSession starts an empty session in COLLECTING.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Instance:  uuid.NewString(),
		State:     StateCollecting,
		Profile:   make(Profile),
		Negated:   make(map[Field][]string),
		Turns:     make([]Turn, 0, 16),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Missing returns the unfilled required fields in priority order.
func (s *Session) Missing() []Field {
	return s.Profile.Missing()
}

// Filled reports whether every required field holds a value.
func (s *Session) Filled() bool {
	return len(s.Missing()) == 0
}

// IsComplete is true iff all required fields are set and the phone number
// passes validation.
func (s *Session) IsComplete() bool {
	return s.Filled() && ValidatePhone(s.Profile.Get(PhoneNumber)) == nil
}

// NextField returns the highest-priority missing field, or "" when filled.
func (s *Session) NextField() Field {
	missing := s.Missing()
	if len(missing) == 0 {
		return ""
	}
	return missing[0]
}

// AppendTurn adds a message to the history.
func (s *Session) AppendTurn(speaker Speaker, text string, at time.Time) {
	s.Turns = append(s.Turns, Turn{Speaker: speaker, Text: text, Timestamp: at})
	s.UpdatedAt = at
}

// Transition moves the session to a new state and records it. Moving to the
// current state is a no-op.
func (s *Session) Transition(to State, at time.Time) {
	if s.State == to {
		return
	}
	s.Transitions = append(s.Transitions, Transition{From: s.State, To: to, At: at})
	s.State = to
	s.UpdatedAt = at
}

// Clear removes the given fields from the profile, along with any candidate
// pending or queued for them.
func (s *Session) Clear(fields ...Field) {
	for _, f := range fields {
		delete(s.Profile, f)
		s.dropCandidates(f)
	}
	s.promote()
}

// IsNegated reports whether the user has ever rejected value for f.
func (s *Session) IsNegated(f Field, value string) bool {
	for _, v := range s.Negated[f] {
		if SameValue(f, v, value) {
			return true
		}
	}
	return false
}

func (s *Session) addNegated(f Field, value string) {
	if s.IsNegated(f, value) {
		return
	}
	if s.Negated == nil {
		s.Negated = make(map[Field][]string)
	}
	s.Negated[f] = append(s.Negated[f], value)
}

// MergeResult reports what a merge changed.
type MergeResult struct {
	Applied   []Field
	Corrected []Field
	Cleared   []Field
	Offered   *Candidate
	Deferred  []Candidate // queued behind the candidate being asked about
}

// Changed reports whether the profile was modified.
func (r MergeResult) Changed() bool {
	return len(r.Applied) > 0 || len(r.Cleared) > 0
}

// Merge folds an extraction into the profile.
//
// A value fills an empty field only when it is confidently extracted; a
// low-confidence value becomes the pending candidate instead. A set field is
// replaced only by a confident value from an explicit correction. Any other
// confident differing value, or a guessed one the user offered as a
// correction, becomes a conflict candidate. Equal values are no-ops, and
// values the user negated are never assigned.
func (s *Session) Merge(ext Extraction) MergeResult {
	var res MergeResult
	if s.Profile == nil {
		s.Profile = make(Profile)
	}

	for _, f := range RequiredFields {
		for _, v := range ext.Negated[f] {
			s.addNegated(f, v)
			if s.Profile.Has(f) && SameValue(f, s.Profile[f], v) {
				delete(s.Profile, f)
				res.Cleared = append(res.Cleared, f)
			}
			if s.Pending != nil && s.Pending.Field == f && SameValue(f, s.Pending.Value, v) {
				s.Pending = nil
			}
			s.Queued = withoutCandidate(s.Queued, func(c Candidate) bool {
				return c.Field == f && SameValue(f, c.Value, v)
			})
		}
	}

	for _, f := range RequiredFields {
		val, ok := ext.Fields[f]
		if !ok {
			continue
		}
		text := strings.TrimSpace(val.Text)
		if text == "" || s.IsNegated(f, text) {
			continue
		}
		if f == PhoneNumber {
			text = NormalizePhone(text)
		}

		current := s.Profile.Get(f)
		switch {
		case current != "" && SameValue(f, current, text):
			// Already known; merging again changes nothing.
		case current == "" && val.Confidence == ConfidenceHigh:
			s.Profile[f] = text
			res.Applied = append(res.Applied, f)
			s.dropCandidates(f)
		case current == "":
			s.offer(Candidate{Field: f, Value: text, Reason: ReasonAmbiguous}, &res)
		case val.Confidence == ConfidenceHigh && ext.Correction:
			s.Profile[f] = text
			res.Applied = append(res.Applied, f)
			res.Corrected = append(res.Corrected, f)
			s.dropCandidates(f)
		case val.Confidence == ConfidenceHigh || ext.Correction:
			s.offer(Candidate{Field: f, Value: text, Reason: ReasonConflict}, &res)
		}
	}

	if s.promote() && res.Offered == nil {
		c := *s.Pending
		res.Offered = &c
	}
	return res
}

// offer parks a candidate. While another field's candidate is waiting for an
// answer the new one is queued behind it.
func (s *Session) offer(c Candidate, res *MergeResult) {
	if s.Pending != nil {
		if s.Pending.Field == c.Field && SameValue(c.Field, s.Pending.Value, c.Value) {
			return
		}
		if s.Pending.Field != c.Field {
			s.Queued = withoutCandidate(s.Queued, func(q Candidate) bool { return q.Field == c.Field })
			s.Queued = append(s.Queued, c)
			res.Deferred = append(res.Deferred, c)
			return
		}
	}
	s.Pending = &c
	res.Offered = &c
}

// dropCandidates forgets the pending and queued candidates for f.
func (s *Session) dropCandidates(f Field) {
	if s.Pending != nil && s.Pending.Field == f {
		s.Pending = nil
	}
	s.Queued = withoutCandidate(s.Queued, func(c Candidate) bool { return c.Field == f })
}

// promote moves the next queued candidate that still matters into Pending.
func (s *Session) promote() bool {
	for s.Pending == nil && len(s.Queued) > 0 {
		c := s.Queued[0]
		s.Queued = s.Queued[1:]
		if s.IsNegated(c.Field, c.Value) {
			continue
		}
		current := s.Profile.Get(c.Field)
		if current != "" && (c.Reason == ReasonAmbiguous || SameValue(c.Field, current, c.Value)) {
			continue
		}
		s.Pending = &c
		return true
	}
	return false
}

func withoutCandidate(queue []Candidate, drop func(Candidate) bool) []Candidate {
	if len(queue) == 0 {
		return queue
	}
	out := queue[:0]
	for _, c := range queue {
		if !drop(c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ResolvePending applies (accept) or discards the pending candidate and
// returns it. A rejected candidate is remembered as negated. The next queued
// candidate, if any, becomes pending.
func (s *Session) ResolvePending(accept bool) (Candidate, bool) {
	if s.Pending == nil {
		return Candidate{}, false
	}
	c := *s.Pending
	s.Pending = nil
	if accept {
		s.Profile[c.Field] = c.Value
	} else {
		s.addNegated(c.Field, c.Value)
	}
	s.promote()
	return c, true
}

// Snapshot returns a deep copy safe to hand outside the store's lock.
func (s *Session) Snapshot() Session {
	out := *s
	out.Profile = s.Profile.Clone()
	if s.Pending != nil {
		c := *s.Pending
		out.Pending = &c
	}
	out.Queued = append([]Candidate(nil), s.Queued...)
	out.Negated = make(map[Field][]string, len(s.Negated))
	for f, vals := range s.Negated {
		out.Negated[f] = append([]string(nil), vals...)
	}
	out.Turns = append([]Turn(nil), s.Turns...)
	out.Transitions = append([]Transition(nil), s.Transitions...)
	return out
}
