package registration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/farmsense/cava/backend/internal/model/registration"
)

// Reply templates. The rule-based path has no translation, so these are
// English only; language-aware replies come from the LLM extractor.
const (
	greetingText       = "Hello! I'm CAVA. I'll get your farm registered with a few quick questions."
	offTopicText       = "Good question. I can help with that once your registration is done."
	unclearText        = "Sorry, I didn't quite catch that."
	askWhichChangeText = "No problem. Which detail should I change?"
	saveFailedText     = "I couldn't save your registration just now. Please reply yes to try again."
	confirmAgainText   = "Is everything correct?"
)

var fieldQuestions = map[registration.Field]string{
	registration.FirstName:    "What is your first name?",
	registration.LastName:     "And what is your last name?",
	registration.PhoneNumber:  "What phone number can we reach you on?",
	registration.FarmLocation: "Where is your farm located?",
	registration.PrimaryCrops: "What are the main crops you grow?",
}

func askField(f registration.Field) string {
	if q, ok := fieldQuestions[f]; ok {
		return q
	}
	return fmt.Sprintf("What is your %s?", f.Label())
}

func askCandidate(c registration.Candidate, current string) string {
	if c.Reason == registration.ReasonConflict {
		return fmt.Sprintf("I have %s as your %s. Should I change it to %s?", current, c.Field.Label(), c.Value)
	}
	switch c.Field {
	case registration.FarmLocation:
		return fmt.Sprintf("Is %s where your farm is?", c.Value)
	case registration.PrimaryCrops:
		return fmt.Sprintf("Do you mainly grow %s?", c.Value)
	default:
		return fmt.Sprintf("Is %s your %s?", c.Value, c.Field.Label())
	}
}

func confirmSummary(p registration.Profile) string {
	return "Here is what I have:\n" + p.Summary() + "\n" + confirmAgainText
}

func acknowledge(applied []registration.Field, p registration.Profile) string {
	if len(applied) == 0 {
		return ""
	}
	for _, f := range applied {
		if f == registration.FirstName {
			return fmt.Sprintf("Nice to meet you, %s.", p.Get(registration.FirstName))
		}
	}
	if len(applied) == 1 {
		return fmt.Sprintf("Thanks, I've noted your %s.", applied[0].Label())
	}
	return "Thanks, got it."
}

func rejected(f registration.Field, err error) string {
	var vErr *registration.ValidationError
	if errors.As(err, &vErr) {
		return fmt.Sprintf("That %s doesn't look right: %s.", vErr.Field.Label(), vErr.Reason)
	}
	return fmt.Sprintf("That %s doesn't look right.", f.Label())
}

func registered(rec registration.FarmerRecord) string {
	return fmt.Sprintf("Thank you, %s! Your farm is now registered with CAVA.", rec.FirstName)
}

func join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
