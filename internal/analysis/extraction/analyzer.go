package extraction

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/farmsense/cava/backend/internal/model/registration"
)

const (
	tokenRE  = `[^\s,.!?;:]+`
	phraseRE = tokenRE + `(?:\s+` + tokenRE + `){0,2}`
	listRE   = `[^.!?;]+`
)

var (
	firstNameCue = regexp.MustCompile(`(?i)\b(?:(?:my|the)\s+)?first\s+name\s+(?:is\s+)?(not\s+)?(` + tokenRE + `)`)
	lastNameCue  = regexp.MustCompile(`(?i)\b(?:(?:my|the)\s+)?(?:last\s+name|family\s+name|surname)\s+(?:is\s+)?(not\s+)?(` + tokenRE + `(?:\s+` + tokenRE + `)?)`)
	nameCue      = regexp.MustCompile(`(?i)\b((?:my|the)\s+name\s+is|my\s+name's|name's|call\s+me|this\s+is|i\s+am|i'm|im)\s+(not\s+)?(` + tokenRE + `)(?:\s+(` + tokenRE + `))?`)

	locationCue    = regexp.MustCompile(`(?i)\b(?:live|living|farm|farming|based|located|situated|reside)\s+(?:is\s+)?(?:in|at|near|around|close\s+to)\s+(` + phraseRE + `)`)
	farmIsCue      = regexp.MustCompile(`(?i)\b(?:my|our|the)\s+farm\s+is\s+(?:in|at|near|around)\s+(` + phraseRE + `)`)
	locationIsCue  = regexp.MustCompile(`(?i)\b(?:farm\s+location|location|village|town)\s+is\s+(not\s+)?(` + phraseRE + `)`)
	fromCue        = regexp.MustCompile(`(?i)\b(?:i'm|i\s+am|im|we\s+are|we're)\s+from\s+(` + phraseRE + `)`)
	thereCue       = regexp.MustCompile(`(?i)\b(?:live|living|farm|farming|based|located)\s+there\b`)
	locationNegCue = regexp.MustCompile(`(?i)\b(?:don't|dont|do\s+not)\s+(?:live|farm)\s+(?:in|at|near)\s+(` + phraseRE + `)`)

	phoneCandidate = regexp.MustCompile(`(?:\+|00)?\d[\d\s\-().\/]{5,18}\d`)
	phoneCue       = regexp.MustCompile(`(?i)\b(?:phone|number|mobile|cell|telefon|gsm|tel)\b`)

	cropCue     = regexp.MustCompile(`(?i)\b(?:i|we)\s+(?:mainly\s+|mostly\s+|also\s+)?(?:grow|plant|cultivate|produce|raise)\s+(` + listRE + `)`)
	growingCue  = regexp.MustCompile(`(?i)\bgrowing\s+(` + listRE + `)`)
	cropsAreCue = regexp.MustCompile(`(?i)\b(?:my|our|the)\s+(?:main\s+|primary\s+)?crops?\s+(?:are|is)\s+(not\s+)?(` + listRE + `)`)
	cropNegCue  = regexp.MustCompile(`(?i)\b(?:don't|dont|do\s+not)\s+grow\s+(` + listRE + `)`)

	meantCue         = regexp.MustCompile(`(?i)\b(?:i\s+meant?|(?:it\s+)?should\s+be|(?:make|change)\s+it\s+to)\s+(` + phraseRE + `)`)
	itIsCue          = regexp.MustCompile(`(?i)\b(?:it's|it\s+is|its)\s+(` + phraseRE + `)`)
	notButCue        = regexp.MustCompile(`(?i)\bnot\s+(` + tokenRE + `(?:\s+` + tokenRE + `)?)\s*,?\s*but\s+(` + tokenRE + `(?:\s+` + tokenRE + `)?)`)
	correctionMarker = regexp.MustCompile(`(?i)^\s*(?:no|nope|ne|actually|sorry|wait|oops|correction)\b|\bi\s+meant?\b|\bshould\s+be\b|\bchange\b|\binstead\b`)
	cropListSplit    = regexp.MustCompile(`(?i)\s*(?:,|&|/|\band\b|\bplus\b)\s*`)
	cropListStop     = regexp.MustCompile(`(?i)\s(?:in|near|at|on|but|because|since|and\s+(?:i|we|live|my|our))\b`)
)

var disputeKeywords = []struct {
	re    *regexp.Regexp
	field registration.Field
}{
	{regexp.MustCompile(`(?i)\b(?:last|family)\s+name\b|\bsurname\b`), registration.LastName},
	{regexp.MustCompile(`(?i)\bfirst\s+name\b`), registration.FirstName},
	{regexp.MustCompile(`(?i)\bphone\b|\bnumber\b|\bmobile\b`), registration.PhoneNumber},
	{regexp.MustCompile(`(?i)\blocation\b|\bvillage\b|\btown\b|\bcity\b|\baddress\b|\bplace\b`), registration.FarmLocation},
	{regexp.MustCompile(`(?i)\bcrops?\b`), registration.PrimaryCrops},
}

var bareNameKeyword = regexp.MustCompile(`(?i)\bname\b`)

// RuleExtractor is the deterministic fallback extractor. It reads names,
// phone numbers, places and crops with fixed patterns and a gazetteer.
//
// It never detects language or translates: replies built on its output come
// from fixed templates. Anything it is unsure about is returned at low
// confidence so the dialogue asks before using it.
type RuleExtractor struct {
	gazetteer *Gazetteer
}

// NewRuleExtractor builds a rule extractor; nil selects the embedded gazetteer.
func NewRuleExtractor(g *Gazetteer) *RuleExtractor {
	if g == nil {
		g = DefaultGazetteer()
	}
	return &RuleExtractor{gazetteer: g}
}

// Gazetteer exposes the place and crop lists in use.
func (r *RuleExtractor) Gazetteer() *Gazetteer {
	return r.gazetteer
}

// Extract implements registration.Extractor. It never fails.
func (r *RuleExtractor) Extract(_ context.Context, req registration.ExtractionRequest) (registration.Extraction, error) {
	return r.Analyze(req), nil
}

// Analyze runs the rules with the embedded gazetteer.
func Analyze(req registration.ExtractionRequest) registration.Extraction {
	return NewRuleExtractor(nil).Analyze(req)
}

// Analyze reads one utterance.
func (r *RuleExtractor) Analyze(req registration.ExtractionRequest) registration.Extraction {
	text := strings.TrimSpace(req.Utterance)
	lower := strings.ToLower(text)
	words := tokens(text)

	ext := registration.Extraction{Source: registration.SourceRules, Intent: registration.IntentUnclear}
	if text == "" {
		return ext
	}

	explicit := make(map[registration.Field]bool)
	set := func(f registration.Field, v registration.Value) {
		if ext.IsNegated(f, v.Text) {
			return
		}
		if existing, ok := ext.Fields[f]; ok && existing.Confidence == registration.ConfidenceHigh && v.Confidence != registration.ConfidenceHigh {
			return
		}
		ext.Set(f, v)
	}

	r.readNegations(text, req, &ext)
	r.readNames(text, set, explicit)
	r.readLocation(text, req, set, explicit)
	r.readPhone(text, req, set, explicit)
	r.readCrops(text, set, explicit)
	notBut := r.readNotBut(text, req, &ext, set, explicit)
	r.readMeant(text, req, set, explicit)

	question := isQuestion(text, words)
	lead := ""
	if len(words) > 0 {
		lead = strings.ToLower(words[0])
	}
	affirm := affirmWords[lead] || containsAny(lower, affirmPhrases)
	deny := denyWords[lead] || containsAny(lower, denyPhrases)
	if deny {
		affirm = false
	}

	if !question && !affirm && !deny && len(explicit) == 0 {
		r.readBareAnswer(words, req, set)
	}
	if !question {
		r.scanGazetteer(text, &ext, set)
	}

	switch {
	case deny:
		ext.Intent = registration.IntentDeny
	case affirm:
		ext.Intent = registration.IntentAffirm
	case ext.HasFields() || len(ext.Negated) > 0:
		ext.Intent = registration.IntentProvide
	case len(words) > 0 && greetingWords[lead]:
		ext.Intent = registration.IntentGreeting
	case question:
		ext.Intent = registration.IntentOffTopic
	}

	hasValues := ext.HasFields() || len(ext.Negated) > 0
	ext.Correction = hasValues && (deny || notBut || correctionMarker.MatchString(text))

	if deny || ext.Correction {
		for _, f := range registration.RequiredFields {
			if _, ok := ext.Fields[f]; ok {
				ext.Dispute(f)
			}
			if len(ext.Negated[f]) > 0 {
				ext.Dispute(f)
			}
		}
		for _, kw := range disputeKeywords {
			if kw.re.MatchString(text) {
				ext.Dispute(kw.field)
			}
		}
		if bareNameKeyword.MatchString(text) && !disputeKeywords[0].re.MatchString(text) {
			ext.Dispute(registration.FirstName)
		}
	}

	return ext
}

func (r *RuleExtractor) readNegations(text string, req registration.ExtractionRequest, ext *registration.Extraction) {
	for _, m := range firstNameCue.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			ext.Negate(registration.FirstName, trimToken(m[2]))
		}
	}
	for _, m := range lastNameCue.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			ext.Negate(registration.LastName, trimToken(m[2]))
		}
	}
	for _, m := range nameCue.FindAllStringSubmatch(text, -1) {
		if m[2] == "" {
			continue
		}
		tok := trimToken(m[3])
		strict := isStrictNameCue(m[1])
		if strict && !isCapitalized(tok) {
			continue
		}
		if nameStopwords[strings.ToLower(tok)] {
			continue
		}
		ext.Negate(registration.FirstName, tok)
	}
	for _, m := range locationNegCue.FindAllStringSubmatch(text, -1) {
		if place := r.placeFromPhrase(m[1]); place != "" {
			ext.Negate(registration.FarmLocation, place)
		}
	}
	for _, m := range locationIsCue.FindAllStringSubmatch(text, -1) {
		if m[1] == "" {
			continue
		}
		if place := r.placeFromPhrase(m[2]); place != "" {
			ext.Negate(registration.FarmLocation, place)
		}
	}
	for _, m := range cropNegCue.FindAllStringSubmatch(text, -1) {
		if crops := parseCropList(m[1]); crops != "" {
			ext.Negate(registration.PrimaryCrops, crops)
		}
	}
	for _, m := range cropsAreCue.FindAllStringSubmatch(text, -1) {
		if m[1] == "" {
			continue
		}
		if crops := parseCropList(m[2]); crops != "" {
			ext.Negate(registration.PrimaryCrops, crops)
		}
	}
}

func isStrictNameCue(cue string) bool {
	switch strings.Join(strings.Fields(strings.ToLower(cue)), " ") {
	case "this is", "i am", "i'm", "im":
		return true
	}
	return false
}

func (r *RuleExtractor) looksLikeName(tok string, strict bool) bool {
	tok = trimToken(tok)
	if len([]rune(tok)) < 2 {
		return false
	}
	for _, c := range tok {
		if !unicode.IsLetter(c) && c != '-' && c != '\'' && c != '’' {
			return false
		}
	}
	lower := strings.ToLower(tok)
	if nameStopwords[lower] || r.gazetteer.IsCrop(lower) {
		return false
	}
	if strict {
		if !isCapitalized(tok) {
			return false
		}
		if _, isCity := r.gazetteer.City(tok); isCity {
			return false
		}
	}
	return true
}

type setter func(registration.Field, registration.Value)

func (r *RuleExtractor) readNames(text string, set setter, explicit map[registration.Field]bool) {
	for _, m := range firstNameCue.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			continue
		}
		if tok := trimToken(m[2]); r.looksLikeName(tok, false) {
			set(registration.FirstName, registration.High(titleFirst(tok)))
			explicit[registration.FirstName] = true
		}
	}
	for _, m := range lastNameCue.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			continue
		}
		if surname := r.surname(strings.Fields(m[2])); surname != "" {
			set(registration.LastName, registration.High(surname))
			explicit[registration.LastName] = true
		}
	}
	for _, m := range nameCue.FindAllStringSubmatch(text, -1) {
		if m[2] != "" {
			continue
		}
		strict := isStrictNameCue(m[1])
		first := trimToken(m[3])
		if !r.looksLikeName(first, strict) {
			continue
		}
		set(registration.FirstName, registration.High(titleFirst(first)))
		explicit[registration.FirstName] = true

		second := trimToken(m[4])
		if second != "" && r.looksLikeName(second, true) {
			set(registration.LastName, registration.High(second))
			explicit[registration.LastName] = true
		}
	}
}

// surname joins name tokens, allowing lowercase particles such as "van".
func (r *RuleExtractor) surname(parts []string) string {
	var kept []string
	for i, p := range parts {
		p = trimToken(p)
		if p == "" {
			break
		}
		last := i == len(parts)-1
		if !last && surnameParticles[strings.ToLower(p)] {
			kept = append(kept, p)
			continue
		}
		if !r.looksLikeName(p, i > 0) {
			break
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 || surnameParticles[strings.ToLower(kept[len(kept)-1])] {
		return ""
	}
	kept[0] = titleFirst(kept[0])
	return strings.Join(kept, " ")
}

// placeFromPhrase trims a captured phrase down to the place name it starts
// with, preferring a gazetteer spelling.
func (r *RuleExtractor) placeFromPhrase(phrase string) string {
	parts := strings.Fields(phrase)
	for len(parts) > 0 && (strings.EqualFold(parts[0], "the") || strings.EqualFold(parts[0], "a")) {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return ""
	}
	for n := len(parts); n >= 1; n-- {
		if city, ok := r.gazetteer.City(strings.Join(parts[:n], " ")); ok {
			return city
		}
	}

	first := trimToken(parts[0])
	if first == "" || hasDigit(first) {
		return ""
	}
	lower := strings.ToLower(first)
	if nameStopwords[lower] && !isCapitalized(first) {
		return ""
	}
	kept := []string{first}
	for _, p := range parts[1:] {
		p = trimToken(p)
		if p == "" || !isCapitalized(p) || nameStopwords[strings.ToLower(p)] {
			break
		}
		kept = append(kept, p)
	}
	return titleFirst(strings.Join(kept, " "))
}

func negatedBefore(text string, start int) bool {
	from := start - 12
	if from < 0 {
		from = 0
	}
	window := strings.ToLower(text[from:start])
	return strings.Contains(window, "not ") || strings.Contains(window, "n't ") || strings.Contains(window, "dont ")
}

func (r *RuleExtractor) readLocation(text string, req registration.ExtractionRequest, set setter, explicit map[registration.Field]bool) {
	for _, cue := range []*regexp.Regexp{farmIsCue, locationCue, fromCue} {
		for _, idx := range cue.FindAllStringSubmatchIndex(text, -1) {
			if negatedBefore(text, idx[0]) {
				continue
			}
			if place := r.placeFromPhrase(text[idx[2]:idx[3]]); place != "" {
				set(registration.FarmLocation, registration.High(place))
				explicit[registration.FarmLocation] = true
			}
		}
	}
	for _, m := range locationIsCue.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			continue
		}
		if place := r.placeFromPhrase(m[2]); place != "" {
			set(registration.FarmLocation, registration.High(place))
			explicit[registration.FarmLocation] = true
		}
	}

	if explicit[registration.FarmLocation] {
		return
	}
	for _, idx := range thereCue.FindAllStringIndex(text, -1) {
		if negatedBefore(text, idx[0]) {
			continue
		}
		if place := r.referent(text, req); place != "" {
			set(registration.FarmLocation, registration.High(place))
			explicit[registration.FarmLocation] = true
			return
		}
	}
}

// referent resolves "there": a known city in the utterance, else the last
// capitalized word, else a pending location candidate, else the last city a
// previous user turn mentioned.
func (r *RuleExtractor) referent(text string, req registration.ExtractionRequest) string {
	if city, ok := r.gazetteer.FindCity(text); ok {
		return city
	}
	words := tokens(text)
	for i := len(words) - 1; i >= 0; i-- {
		w := words[i]
		if w == "I" || !isCapitalized(w) || nameStopwords[strings.ToLower(w)] || hasDigit(w) {
			continue
		}
		return w
	}
	if req.Pending != nil && req.Pending.Field == registration.FarmLocation {
		return req.Pending.Value
	}
	for i := len(req.History) - 1; i >= 0; i-- {
		turn := req.History[i]
		if turn.Speaker != registration.SpeakerUser {
			continue
		}
		if city, ok := r.gazetteer.FindCity(turn.Text); ok {
			return city
		}
	}
	return ""
}

func (r *RuleExtractor) readPhone(text string, req registration.ExtractionRequest, set setter, explicit map[registration.Field]bool) {
	matches := phoneCandidate.FindAllString(text, -1)
	if len(matches) == 0 {
		return
	}
	for _, m := range matches {
		if registration.ValidatePhone(m) == nil {
			set(registration.PhoneNumber, registration.High(registration.NormalizePhone(m)))
			explicit[registration.PhoneNumber] = true
			return
		}
	}
	// An implausible number is still reported when the user was clearly
	// giving one, so the dialogue can reject it explicitly.
	if req.Asked == registration.PhoneNumber || phoneCue.MatchString(text) {
		set(registration.PhoneNumber, registration.High(registration.NormalizePhone(matches[0])))
		explicit[registration.PhoneNumber] = true
	}
}

func (r *RuleExtractor) readCrops(text string, set setter, explicit map[registration.Field]bool) {
	for _, cue := range []*regexp.Regexp{cropCue, growingCue} {
		for _, m := range cue.FindAllStringSubmatch(text, -1) {
			if crops := parseCropList(m[1]); crops != "" {
				set(registration.PrimaryCrops, registration.High(crops))
				explicit[registration.PrimaryCrops] = true
				return
			}
		}
	}
	for _, m := range cropsAreCue.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			continue
		}
		if crops := parseCropList(m[2]); crops != "" {
			set(registration.PrimaryCrops, registration.High(crops))
			explicit[registration.PrimaryCrops] = true
			return
		}
	}
}

// readNotBut handles "not X but Y", applying Y to the field that holds X.
func (r *RuleExtractor) readNotBut(text string, req registration.ExtractionRequest, ext *registration.Extraction, set setter, explicit map[registration.Field]bool) bool {
	m := notButCue.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	wrong, right := trimToken(m[1]), trimToken(m[2])
	if wrong == "" || right == "" {
		return false
	}

	field := registration.Field("")
	for _, f := range registration.RequiredFields {
		if req.Profile.Has(f) && registration.SameValue(f, req.Profile.Get(f), wrong) {
			field = f
			break
		}
	}
	if field == "" {
		_, isCity := r.gazetteer.City(right)
		switch {
		case r.gazetteer.IsCrop(right):
			field = registration.PrimaryCrops
		case isCity:
			field = registration.FarmLocation
		case req.Asked != "":
			field = req.Asked
		default:
			return false
		}
	}
	if explicit[field] {
		return false
	}

	ext.Negate(field, wrong)
	value := right
	if field == registration.PhoneNumber {
		value = registration.NormalizePhone(right)
	}
	set(field, registration.High(value))
	explicit[field] = true
	return true
}

// readMeant handles "I meant X" and "it's X". X is matched against the
// gazetteer first; only the explicit "I meant" forms fall back to the field
// that was asked.
func (r *RuleExtractor) readMeant(text string, req registration.ExtractionRequest, set setter, explicit map[registration.Field]bool) {
	for _, cue := range []*regexp.Regexp{meantCue, itIsCue} {
		m := cue.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		words := stripPrepositions(tokens(m[1]))
		if len(words) == 0 || strings.EqualFold(words[0], "not") {
			continue
		}
		field, value := r.resolveMeant(words, req, cue == meantCue)
		if field == "" || explicit[field] {
			continue
		}
		set(field, registration.High(value))
		explicit[field] = true
		return
	}
}

func (r *RuleExtractor) resolveMeant(words []string, req registration.ExtractionRequest, fallback bool) (registration.Field, string) {
	for n := len(words); n >= 1; n-- {
		if city, ok := r.gazetteer.City(strings.Join(words[:n], " ")); ok {
			return registration.FarmLocation, city
		}
	}
	if r.gazetteer.IsCrop(strings.ToLower(words[0])) {
		if crops := parseCropList(strings.Join(words, " ")); crops != "" {
			return registration.PrimaryCrops, crops
		}
	}
	if !fallback {
		return "", ""
	}

	switch req.Asked {
	case registration.FirstName:
		if r.looksLikeName(words[0], false) {
			return registration.FirstName, titleFirst(trimToken(words[0]))
		}
	case registration.LastName:
		if surname := r.surname(words); surname != "" {
			return registration.LastName, surname
		}
	case registration.FarmLocation:
		if place := r.placeFromPhrase(strings.Join(words, " ")); place != "" {
			return registration.FarmLocation, place
		}
	case registration.PrimaryCrops:
		if crops := parseCropList(strings.Join(words, " ")); crops != "" {
			return registration.PrimaryCrops, crops
		}
	}
	return "", ""
}

// readBareAnswer treats a short reply as the answer to the field that was
// asked last.
func (r *RuleExtractor) readBareAnswer(words []string, req registration.ExtractionRequest, set setter) {
	if len(words) == 0 || greetingWords[strings.ToLower(words[0])] {
		return
	}
	asked := req.Asked
	if asked == "" && req.State == registration.StateCollecting {
		if missing := req.Profile.Missing(); len(missing) > 0 {
			asked = missing[0]
		}
	}

	switch asked {
	case registration.FirstName:
		if len(words) > 3 {
			return
		}
		if city, ok := r.gazetteer.City(strings.Join(words, " ")); ok {
			r.ambiguousPlace(city, req, set)
			return
		}
		if !r.looksLikeName(words[0], false) {
			return
		}
		set(registration.FirstName, registration.High(titleFirst(words[0])))
		if len(words) > 1 {
			if surname := r.surname(words[1:]); surname != "" {
				set(registration.LastName, registration.High(surname))
			}
		}
	case registration.LastName:
		if len(words) > 3 {
			return
		}
		if city, ok := r.gazetteer.City(strings.Join(words, " ")); ok {
			r.ambiguousPlace(city, req, set)
			return
		}
		if surname := r.surname(words); surname != "" {
			set(registration.LastName, registration.High(surname))
		}
	case registration.FarmLocation:
		if len(words) > 6 {
			return
		}
		if place := r.placeFromPhrase(strings.Join(stripPrepositions(words), " ")); place != "" {
			set(registration.FarmLocation, registration.High(place))
		}
	case registration.PrimaryCrops:
		if crops := parseCropList(strings.Join(words, " ")); crops != "" {
			set(registration.PrimaryCrops, registration.High(crops))
		}
	}
}

// ambiguousPlace records a bare city given where a name was expected: it
// leans towards the farm location but is never taken as a name outright.
func (r *RuleExtractor) ambiguousPlace(city string, req registration.ExtractionRequest, set setter) {
	if !req.Profile.Has(registration.FarmLocation) {
		set(registration.FarmLocation, registration.Low(city))
		return
	}
	if req.Asked == registration.LastName {
		set(registration.LastName, registration.Low(city))
		return
	}
	set(registration.FirstName, registration.Low(city))
}

// scanGazetteer picks up known places and crops mentioned without a cue,
// at low confidence.
func (r *RuleExtractor) scanGazetteer(text string, ext *registration.Extraction, set setter) {
	if _, ok := ext.Fields[registration.FarmLocation]; !ok {
		if city, found := r.gazetteer.FindCity(text); found && !nameHolds(ext, city) {
			set(registration.FarmLocation, registration.Low(city))
		}
	}
	if _, ok := ext.Fields[registration.PrimaryCrops]; !ok {
		if crops := r.gazetteer.FindCrops(text); len(crops) > 0 {
			set(registration.PrimaryCrops, registration.Low(strings.Join(crops, ", ")))
		}
	}
}

func nameHolds(ext *registration.Extraction, value string) bool {
	for _, f := range []registration.Field{registration.FirstName, registration.LastName} {
		if v, ok := ext.Fields[f]; ok && registration.SameValue(f, v.Text, value) {
			return true
		}
	}
	return false
}

func stripPrepositions(words []string) []string {
	for len(words) > 1 {
		switch strings.ToLower(words[0]) {
		case "in", "at", "near", "around", "v", "pri", "blizu":
			words = words[1:]
			continue
		}
		break
	}
	return words
}

// parseCropList turns "corn, wheat and potatoes in Ljubljana" into
// "corn, wheat, potatoes".
func parseCropList(raw string) string {
	raw = strings.TrimSpace(raw)
	if loc := cropListStop.FindStringIndex(" " + raw); loc != nil && loc[0] > 0 {
		raw = raw[:loc[0]-1]
	}

	var crops []string
	for _, part := range cropListSplit.Split(raw, -1) {
		part = strings.ToLower(trimToken(strings.TrimSpace(part)))
		if part == "" || nameStopwords[part] || hasDigit(part) {
			continue
		}
		fields := strings.Fields(part)
		if len(fields) > 3 {
			continue
		}
		crops = append(crops, strings.Join(fields, " "))
	}
	return strings.Join(crops, ", ")
}
