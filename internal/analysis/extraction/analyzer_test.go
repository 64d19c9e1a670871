package extraction

import (
	"context"
	"testing"

	"github.com/farmsense/cava/backend/internal/model/registration"
)

func collecting(asked registration.Field, profile registration.Profile, utterance string) registration.ExtractionRequest {
	if profile == nil {
		profile = registration.Profile{}
	}
	return registration.ExtractionRequest{
		SessionID: "s-1",
		Utterance: utterance,
		Missing:   profile.Missing(),
		Asked:     asked,
		State:     registration.StateCollecting,
		Profile:   profile,
	}
}

func TestAnalyzeNegatedNameWithAnaphoricLocation(t *testing.T) {
	ext := Analyze(collecting(registration.FirstName, nil, "My name is not Ljubljana, I live there"))

	if _, ok := ext.Fields[registration.FirstName]; ok {
		t.Fatalf("first name must not be set, got %+v", ext.Fields)
	}
	if !ext.IsNegated(registration.FirstName, "Ljubljana") {
		t.Fatalf("expected Ljubljana negated for first name, got %+v", ext.Negated)
	}
	loc, ok := ext.Fields[registration.FarmLocation]
	if !ok || loc.Text != "Ljubljana" || !loc.Confident() {
		t.Fatalf("expected confident farm location Ljubljana, got %+v", ext.Fields)
	}
	if ext.Intent != registration.IntentProvide {
		t.Fatalf("expected provide intent, got %s", ext.Intent)
	}
	if ext.Source != registration.SourceRules {
		t.Fatalf("expected rules source, got %s", ext.Source)
	}
}

func TestAnalyzeBareCityIsNotAName(t *testing.T) {
	ext := Analyze(collecting(registration.FirstName, nil, "Ljubljana"))

	if _, ok := ext.Fields[registration.FirstName]; ok {
		t.Fatalf("bare city must not become a first name: %+v", ext.Fields)
	}
	loc, ok := ext.Fields[registration.FarmLocation]
	if !ok {
		t.Fatalf("expected a location guess, got %+v", ext.Fields)
	}
	if loc.Confident() {
		t.Fatalf("bare city should stay low confidence, got %+v", loc)
	}
}

func TestAnalyzeConfirmationCorrection(t *testing.T) {
	profile := registration.Profile{
		registration.FirstName:    "Petra",
		registration.LastName:     "Knaflič",
		registration.PhoneNumber:  "+38640123456",
		registration.FarmLocation: "Ljubljana",
		registration.PrimaryCrops: "corn",
	}
	req := registration.ExtractionRequest{
		Utterance: "No, my name is Peter",
		State:     registration.StateConfirming,
		Profile:   profile,
	}
	ext := Analyze(req)

	if ext.Intent != registration.IntentDeny {
		t.Fatalf("expected deny intent, got %s", ext.Intent)
	}
	if !ext.Correction {
		t.Fatalf("expected a correction")
	}
	if got := ext.Fields[registration.FirstName]; got.Text != "Peter" || !got.Confident() {
		t.Fatalf("expected first name Peter, got %+v", got)
	}
	if !containsField(ext.Disputed, registration.FirstName) {
		t.Fatalf("expected first name disputed, got %v", ext.Disputed)
	}
}

func TestAnalyzeBareAnswersFillEveryField(t *testing.T) {
	profile := registration.Profile{}
	turns := []struct {
		asked registration.Field
		text  string
		want  string
	}{
		{registration.FirstName, "Peter", "Peter"},
		{registration.LastName, "Knaflič", "Knaflič"},
		{registration.PhoneNumber, "+38640123456", "+38640123456"},
		{registration.FarmLocation, "Ljubljana", "Ljubljana"},
		{registration.PrimaryCrops, "corn", "corn"},
	}

	for _, turn := range turns {
		ext := Analyze(collecting(turn.asked, profile, turn.text))
		got, ok := ext.Fields[turn.asked]
		if !ok || !got.Confident() {
			t.Fatalf("%s: expected confident %s, got %+v", turn.text, turn.asked, ext.Fields)
		}
		if got.Text != turn.want {
			t.Fatalf("%s: expected %q, got %q", turn.asked, turn.want, got.Text)
		}
		profile[turn.asked] = got.Text
	}
	if missing := profile.Missing(); len(missing) != 0 {
		t.Fatalf("expected profile filled, missing %v", missing)
	}
}

func TestAnalyzeSentenceWithSeveralFields(t *testing.T) {
	ext := Analyze(collecting(registration.FirstName, nil, "Hi, I'm Peter Knaflič and I grow corn, wheat and potatoes. I live in Novo Mesto"))

	want := map[registration.Field]string{
		registration.FirstName:    "Peter",
		registration.LastName:     "Knaflič",
		registration.PrimaryCrops: "corn, wheat, potatoes",
		registration.FarmLocation: "Novo Mesto",
	}
	for f, v := range want {
		if got := ext.Fields[f]; got.Text != v || !got.Confident() {
			t.Fatalf("%s: expected %q, got %+v", f, v, got)
		}
	}
	if ext.Intent != registration.IntentProvide {
		t.Fatalf("expected provide intent, got %s", ext.Intent)
	}
}

func TestAnalyzeImplausiblePhoneIsStillReported(t *testing.T) {
	ext := Analyze(collecting(registration.PhoneNumber, nil, "my number is 040 1234"))

	got, ok := ext.Fields[registration.PhoneNumber]
	if !ok {
		t.Fatalf("expected a phone value, got %+v", ext.Fields)
	}
	if registration.ValidatePhone(got.Text) == nil {
		t.Fatalf("expected %q to fail validation", got.Text)
	}
}

func TestAnalyzeNotButCorrection(t *testing.T) {
	profile := registration.Profile{registration.FirstName: "Peter"}
	ext := Analyze(collecting(registration.LastName, profile, "I'm not Peter but Pavel"))

	if got := ext.Fields[registration.FirstName]; got.Text != "Pavel" {
		t.Fatalf("expected first name Pavel, got %+v", got)
	}
	if !ext.IsNegated(registration.FirstName, "Peter") {
		t.Fatalf("expected Peter negated, got %+v", ext.Negated)
	}
	if !ext.Correction {
		t.Fatalf("expected a correction")
	}
}

func TestAnalyzeIMeantCorrection(t *testing.T) {
	profile := registration.Profile{
		registration.FirstName:    "Peter",
		registration.LastName:     "Knaflič",
		registration.PhoneNumber:  "+38640123456",
		registration.FarmLocation: "Ljubljana",
	}
	cases := []struct {
		asked registration.Field
		text  string
		field registration.Field
		want  string
	}{
		{registration.PrimaryCrops, "No, I meant Maribor", registration.FarmLocation, "Maribor"},
		{registration.PrimaryCrops, "sorry, it's Novo Mesto", registration.FarmLocation, "Novo Mesto"},
		{registration.PrimaryCrops, "I mean wheat and barley", registration.PrimaryCrops, "wheat, barley"},
		{registration.LastName, "no, it should be Novak", registration.LastName, "Novak"},
	}
	for _, tc := range cases {
		ext := Analyze(collecting(tc.asked, profile, tc.text))
		got, ok := ext.Fields[tc.field]
		if !ok || got.Text != tc.want || !got.Confident() {
			t.Fatalf("%q: expected confident %s=%q, got %+v", tc.text, tc.field, tc.want, ext.Fields)
		}
		if !ext.Correction {
			t.Fatalf("%q: expected a correction", tc.text)
		}
	}
}

func TestAnalyzeItIsNeedsAKnownValue(t *testing.T) {
	ext := Analyze(collecting(registration.FirstName, nil, "it's raining today"))
	if _, ok := ext.Fields[registration.FirstName]; ok {
		t.Fatalf("unexpected first name from %+v", ext.Fields)
	}

	ext = Analyze(collecting(registration.FarmLocation, nil, "it's not Maribor"))
	if got, ok := ext.Fields[registration.FarmLocation]; ok && got.Confident() {
		t.Fatalf("negated place must not be taken, got %+v", got)
	}
}

func TestAnalyzeThereResolvesFromHistory(t *testing.T) {
	req := collecting(registration.FarmLocation, nil, "yes, I farm there")
	req.History = []registration.Turn{
		{Speaker: registration.SpeakerUser, Text: "I was born in Celje"},
		{Speaker: registration.SpeakerAssistant, Text: "Where is your farm?"},
	}
	ext := Analyze(req)

	if got := ext.Fields[registration.FarmLocation]; got.Text != "Celje" {
		t.Fatalf("expected Celje, got %+v", ext.Fields)
	}
}

func TestAnalyzeIntents(t *testing.T) {
	cases := []struct {
		text string
		want registration.Intent
	}{
		{"Yes", registration.IntentAffirm},
		{"ja, drži", registration.IntentAffirm},
		{"That's correct", registration.IntentAffirm},
		{"No", registration.IntentDeny},
		{"that's wrong", registration.IntentDeny},
		{"Hello", registration.IntentGreeting},
		{"What's the weather like tomorrow?", registration.IntentOffTopic},
		{"hmm", registration.IntentUnclear},
	}
	for _, tc := range cases {
		req := registration.ExtractionRequest{Utterance: tc.text, State: registration.StateConfirming}
		if got := Analyze(req).Intent; got != tc.want {
			t.Fatalf("%q: expected %s, got %s", tc.text, tc.want, got)
		}
	}
}

func TestAnalyzeOffTopicExtractsNothing(t *testing.T) {
	ext := Analyze(collecting(registration.PhoneNumber, nil, "What's the weather like tomorrow?"))
	if ext.HasFields() {
		t.Fatalf("expected no fields, got %+v", ext.Fields)
	}
}

func TestRuleExtractorNeverFails(t *testing.T) {
	ex := NewRuleExtractor(nil)
	ext, err := ex.Extract(context.Background(), collecting(registration.FirstName, nil, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext.HasFields() || ext.Intent != registration.IntentUnclear {
		t.Fatalf("expected empty unclear extraction, got %+v", ext)
	}
}

func TestParseCropList(t *testing.T) {
	cases := map[string]string{
		"corn":                           "corn",
		"corn, wheat and potatoes":       "corn, wheat, potatoes",
		"sugar beet & barley near Kranj": "sugar beet, barley",
		"apples/pears":                   "apples, pears",
	}
	for in, want := range cases {
		if got := parseCropList(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}

func containsField(fields []registration.Field, f registration.Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}
