package registration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/farmsense/cava/backend/internal/model/registration"
)

// outcome is what one turn produced.
type outcome struct {
	reply  string
	record *registration.FarmerRecord
	err    error
}

// advance runs the state machine for one extracted turn.
func (s *Service) advance(ctx context.Context, sess *registration.Session, ext registration.Extraction) outcome {
	switch sess.State {
	case registration.StateConfirming:
		return s.confirm(ctx, sess, ext)
	case registration.StateComplete:
		return outcome{reply: "You are already registered. Thank you!"}
	default:
		return outcome{reply: s.collect(sess, ext)}
	}
}

// collect handles a turn in COLLECTING: settle the pending candidate, accept
// whatever was volunteered, then ask for what is still missing.
func (s *Service) collect(sess *registration.Session, ext registration.Extraction) string {
	focus, problem := screen(&ext)

	ack := ""
	resolved := false
	if sess.Pending != nil {
		switch ext.Intent {
		case registration.IntentAffirm:
			c, _ := sess.ResolvePending(true)
			ack = fmt.Sprintf("Great, I've noted %s as your %s.", c.Value, c.Field.Label())
			resolved = true
		case registration.IntentDeny:
			sess.ResolvePending(false)
			ack = "OK, I won't use that."
			resolved = true
		}
	}

	res := sess.Merge(ext)
	if ack == "" && len(res.Corrected) > 0 {
		ack = fmt.Sprintf("I've updated your %s.", res.Corrected[0].Label())
	}
	if ack == "" {
		ack = acknowledge(res.Applied, sess.Profile)
	}

	if !resolved && ext.Intent == registration.IntentDeny && !ext.HasFields() && len(ext.Disputed) > 0 {
		sess.Clear(ext.Disputed...)
		focus = ext.Disputed[0]
	}
	if focus == "" && len(res.Cleared) > 0 {
		focus = res.Cleared[0]
	}

	lead := ""
	if !resolved && !res.Changed() && res.Offered == nil && problem == "" {
		switch ext.Intent {
		case registration.IntentOffTopic:
			lead = offTopicText
		case registration.IntentGreeting:
			if !hasAssistantTurn(sess) {
				lead = greetingText
			}
		case registration.IntentUnclear, registration.IntentAffirm, registration.IntentDeny:
			lead = unclearText
		}
	}

	useModelReply := ext.Source == registration.SourceLLM && !ext.Fallback && ext.Reply != "" &&
		problem == "" && focus == "" && sess.Pending == nil
	return s.next(sess, join(problem, ack, lead), focus, useModelReply, ext.Reply)
}

// next moves to CONFIRMING when everything is in, otherwise asks the next
// question. focus, when set and still missing, is asked before the priority
// order.
func (s *Service) next(sess *registration.Session, lead string, focus registration.Field, useModelReply bool, modelReply string) string {
	if sess.Filled() && sess.Pending == nil {
		var vErr *registration.ValidationError
		err := registration.ValidateProfile(sess.Profile)
		if !errors.As(err, &vErr) {
			sess.Transition(registration.StateConfirming, s.now())
			sess.Asked = ""
			return join(lead, confirmSummary(sess.Profile))
		}
		sess.Clear(vErr.Field)
		lead = join(lead, rejected(vErr.Field, err))
		focus = vErr.Field
		useModelReply = false
	}

	asked := sess.NextField()
	if focus != "" && !sess.Profile.Has(focus) {
		asked = focus
	}
	sess.Asked = asked

	if sess.Pending != nil {
		c := *sess.Pending
		return join(lead, askCandidate(c, sess.Profile.Get(c.Field)))
	}
	if useModelReply {
		return modelReply
	}
	return join(lead, askField(asked))
}

// confirm handles a turn in CONFIRMING.
func (s *Service) confirm(ctx context.Context, sess *registration.Session, ext registration.Extraction) outcome {
	focus, problem := screen(&ext)
	changed := changedFields(sess.Profile, ext)
	if focus != "" {
		changed = appendField(changed, focus)
	}

	switch {
	case len(changed) > 0 || negatesProfile(sess.Profile, ext):
		return outcome{reply: s.correct(sess, ext, changed, problem)}

	case ext.Intent == registration.IntentAffirm:
		return s.finish(ctx, sess)

	case ext.Intent == registration.IntentDeny && len(ext.Disputed) > 0:
		sess.Transition(registration.StateCollecting, s.now())
		sess.Clear(ext.Disputed...)
		return outcome{reply: s.next(sess, "OK, let's fix that.", ext.Disputed[0], false, "")}

	case ext.Intent == registration.IntentDeny:
		sess.Asked = ""
		return outcome{reply: askWhichChangeText}

	case ext.Intent == registration.IntentOffTopic:
		return outcome{reply: join(offTopicText, confirmSummary(sess.Profile))}

	default:
		return outcome{reply: join(unclearText, confirmSummary(sess.Profile))}
	}
}

// correct goes back to COLLECTING, replaces the disputed fields with what the
// user just said and moves forward again.
func (s *Service) correct(sess *registration.Session, ext registration.Extraction, changed []registration.Field, problem string) string {
	disputed := changed
	for _, f := range ext.Disputed {
		disputed = appendField(disputed, f)
	}

	sess.Transition(registration.StateCollecting, s.now())
	sess.Clear(disputed...)

	ext.Correction = true
	res := sess.Merge(ext)

	ack := ""
	if len(res.Applied) > 0 {
		ack = fmt.Sprintf("I've updated your %s.", res.Applied[0].Label())
	}

	s.logger.Info("registration corrected",
		zap.String("session_id", sess.ID),
		zap.Strings("fields", fieldNames(disputed)),
	)

	focus := registration.Field("")
	for _, f := range disputed {
		if !sess.Profile.Has(f) {
			focus = f
			break
		}
	}
	return s.next(sess, join(problem, ack), focus, false, "")
}

// finish runs the completion handler on an affirmed summary.
func (s *Service) finish(ctx context.Context, sess *registration.Session) outcome {
	rec, err := s.complete(ctx, sess)
	if err == nil {
		return outcome{reply: registered(rec), record: &rec}
	}

	var vErr *registration.ValidationError
	if errors.As(err, &vErr) {
		s.reopen(sess, vErr.Field)
		return outcome{reply: join(rejected(vErr.Field, err), askField(vErr.Field))}
	}
	return outcome{reply: saveFailedText, err: err}
}

// reopen clears a field that failed validation and asks for it again.
func (s *Service) reopen(sess *registration.Session, f registration.Field) {
	sess.Clear(f)
	sess.Transition(registration.StateCollecting, s.now())
	sess.Asked = f
}

// prompt is the current question without consuming a turn.
func (s *Service) prompt(sess *registration.Session, lead string) string {
	if sess.State == registration.StateConfirming {
		return confirmSummary(sess.Profile)
	}
	if hasAssistantTurn(sess) {
		lead = ""
	}
	return s.next(sess, lead, "", false, "")
}

// screen drops extracted values that fail validation. The first confident
// failure is reported so the user hears why it was not taken.
func screen(ext *registration.Extraction) (registration.Field, string) {
	var (
		focus   registration.Field
		problem string
	)
	kept := make(map[registration.Field]registration.Value, len(ext.Fields))
	for _, f := range registration.RequiredFields {
		v, ok := ext.Fields[f]
		if !ok {
			continue
		}
		err := registration.ValidateField(f, v.Text)
		if err == nil {
			kept[f] = v
			continue
		}
		if v.Confident() && focus == "" {
			focus, problem = f, rejected(f, err)
		}
	}
	ext.Fields = kept
	return focus, problem
}

// changedFields lists confident values that differ from the profile.
func changedFields(p registration.Profile, ext registration.Extraction) []registration.Field {
	var out []registration.Field
	for _, f := range registration.RequiredFields {
		v, ok := ext.Fields[f]
		if !ok || !v.Confident() {
			continue
		}
		if !p.Has(f) || !registration.SameValue(f, p.Get(f), v.Text) {
			out = append(out, f)
		}
	}
	return out
}

func negatesProfile(p registration.Profile, ext registration.Extraction) bool {
	for f, values := range ext.Negated {
		for _, v := range values {
			if p.Has(f) && registration.SameValue(f, p.Get(f), v) {
				return true
			}
		}
	}
	return false
}

func appendField(fields []registration.Field, f registration.Field) []registration.Field {
	for _, existing := range fields {
		if existing == f {
			return fields
		}
	}
	return append(fields, f)
}

func fieldNames(fields []registration.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}

func hasAssistantTurn(sess *registration.Session) bool {
	for _, t := range sess.Turns {
		if t.Speaker == registration.SpeakerAssistant {
			return true
		}
	}
	return false
}
