package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	analysis "github.com/farmsense/cava/backend/internal/analysis/extraction"
	"github.com/farmsense/cava/backend/internal/model/registration"
)

// Model confidences at or above this are treated as high.
const highConfidence = 0.7

// Used when the model omits a confidence for a value it did return.
const defaultConfidence = 0.8

type modelPayload struct {
	Fields     map[string]fieldPayload `json:"fields"`
	Negated    map[string]stringList   `json:"negated"`
	Disputed   []string                `json:"disputed"`
	Correction bool                    `json:"correction"`
	Intent     string                  `json:"intent"`
	Language   string                  `json:"language"`
	Reply      string                  `json:"reply"`
}

type fieldPayload struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// UnmarshalJSON accepts both {"value":..,"confidence":..} and a bare string.
func (f *fieldPayload) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Value = s
		return nil
	}
	type plain fieldPayload
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = fieldPayload(p)
	return nil
}

// stringList accepts a JSON array of strings or a single string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = stringList{s}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// parseExtraction carves the JSON object out of the model reply.
func parseExtraction(content string) (registration.Extraction, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return registration.Extraction{}, errors.New("missing json object")
	}

	var payload modelPayload
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err != nil {
		return registration.Extraction{}, fmt.Errorf("decode model output: %w", err)
	}

	ext := registration.Extraction{
		Correction: payload.Correction,
		Language:   strings.ToLower(strings.TrimSpace(payload.Language)),
		Reply:      strings.TrimSpace(payload.Reply),
		Source:     registration.SourceLLM,
	}

	for key, fp := range payload.Fields {
		f, ok := registration.ParseField(key)
		value := strings.TrimSpace(fp.Value)
		if !ok || value == "" || strings.EqualFold(value, "null") {
			continue
		}
		confidence := fp.Confidence
		if confidence <= 0 {
			confidence = defaultConfidence
		}
		if confidence >= highConfidence {
			ext.Set(f, registration.High(value))
		} else {
			ext.Set(f, registration.Low(value))
		}
	}

	for key, values := range payload.Negated {
		f, ok := registration.ParseField(key)
		if !ok {
			continue
		}
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				ext.Negate(f, v)
			}
		}
	}

	for _, key := range payload.Disputed {
		if f, ok := registration.ParseField(key); ok {
			ext.Dispute(f)
		}
	}

	ext.Intent = parseIntent(payload.Intent)
	if ext.Intent == "" {
		if ext.HasFields() {
			ext.Intent = registration.IntentProvide
		} else {
			ext.Intent = registration.IntentUnclear
		}
	}
	return ext, nil
}

func parseIntent(raw string) registration.Intent {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, "-", "_"))) {
	case "provide", "provide_info", "inform":
		return registration.IntentProvide
	case "affirm", "yes", "confirm":
		return registration.IntentAffirm
	case "deny", "no", "reject":
		return registration.IntentDeny
	case "off_topic", "offtopic", "question":
		return registration.IntentOffTopic
	case "greeting", "greet":
		return registration.IntentGreeting
	case "unclear":
		return registration.IntentUnclear
	}
	return ""
}

// reconcile checks the model reading against the rule reading of the same
// utterance.
func reconcile(llm, hint registration.Extraction, req registration.ExtractionRequest, gaz *analysis.Gazetteer) registration.Extraction {
	out := registration.Extraction{
		Disputed:   llm.Disputed,
		Correction: llm.Correction || (hint.Correction && llm.HasFields()),
		Intent:     llm.Intent,
		Language:   llm.Language,
		Reply:      llm.Reply,
		Source:     registration.SourceLLM,
	}

	for _, src := range []registration.Extraction{llm, hint} {
		for f, values := range src.Negated {
			for _, v := range values {
				out.Negate(f, v)
			}
		}
	}

	for _, f := range registration.RequiredFields {
		v, ok := llm.Fields[f]
		if !ok || out.IsNegated(f, v.Text) {
			continue
		}

		switch f {
		case registration.FirstName, registration.LastName:
			if city, isCity := gaz.City(v.Text); isCity && !ruleNamed(hint, f, v.Text) {
				if _, has := llm.Fields[registration.FarmLocation]; !has && !out.IsNegated(registration.FarmLocation, city) {
					out.Set(registration.FarmLocation, registration.Low(city))
				}
				continue
			}
		case registration.PhoneNumber:
			v.Text = registration.NormalizePhone(v.Text)
			if registration.ValidatePhone(v.Text) != nil {
				// Kept only when the user was clearly giving a number, and then
				// at high confidence so validation rejects it with a reason.
				if _, ruled := hint.Fields[registration.PhoneNumber]; !ruled && req.Asked != registration.PhoneNumber {
					continue
				}
				v.Confidence = registration.ConfidenceHigh
			}
		}
		out.Set(f, v)
	}

	// The phone pattern is more reliable than the model at spotting digits.
	if _, ok := out.Fields[registration.PhoneNumber]; !ok {
		if v, ok := hint.Fields[registration.PhoneNumber]; ok && v.Confident() && !out.IsNegated(registration.PhoneNumber, v.Text) {
			out.Set(registration.PhoneNumber, v)
		}
	}

	if out.Intent == registration.IntentUnclear && hint.Intent != registration.IntentUnclear {
		out.Intent = hint.Intent
	}
	if out.Intent == registration.IntentOffTopic && out.HasFields() {
		out.Intent = registration.IntentProvide
	}
	return out
}

// ruleNamed reports whether the rule extractor saw an explicit name cue for value.
func ruleNamed(hint registration.Extraction, f registration.Field, value string) bool {
	v, ok := hint.Fields[f]
	return ok && v.Confident() && registration.SameValue(f, v.Text, value)
}
