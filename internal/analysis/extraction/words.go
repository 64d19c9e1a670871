package extraction

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var affirmWords = wordSet(
	"yes", "yeah", "yep", "yup", "sure", "correct", "right", "ok", "okay", "exactly",
	"confirm", "confirmed", "absolutely", "da", "ja", "seveda", "drži", "točno", "jasno",
)

var denyWords = wordSet(
	"no", "nope", "nah", "wrong", "incorrect", "ne", "nein", "narobe", "napačno",
)

var greetingWords = wordSet(
	"hi", "hello", "hey", "hiya", "greetings", "zdravo", "živjo", "pozdravljeni", "pozdrav", "hej", "morning", "evening",
)

var questionWords = wordSet(
	"what", "what's", "whats", "how", "why", "when", "where", "who", "which",
	"can", "could", "would", "will", "should", "do", "does", "is", "are", "kaj", "kako", "zakaj", "kdaj", "kje",
)

var affirmPhrases = []string{"that's right", "that is right", "that's correct", "that is correct", "looks good", "all good", "all correct", "sounds good", "go ahead"}

var denyPhrases = []string{"that's wrong", "that is wrong", "not correct", "not right", "that's not right", "that is not right"}

// Words that can never be a person's name.
var nameStopwords = wordSet(
	"i", "me", "a", "an", "the", "and", "or", "but", "from", "in", "at", "on", "to", "of", "for", "with",
	"not", "my", "name", "is", "it", "its", "it's", "this", "that", "here", "there", "farmer", "farm",
	"just", "also", "too", "so", "very", "really", "sure", "fine", "good", "great", "well", "thanks",
	"thank", "you", "please", "going", "growing", "living", "looking", "interested", "new", "back",
	"called", "named", "trying", "happy", "glad", "done", "ready", "asking", "sorry", "actually",
	"wait", "what", "who", "where", "why", "how", "when", "live", "grow", "phone", "number", "crops",
	"crop", "location", "surname", "last", "first", "mr", "mrs", "ms", "dr",
)

// Lowercase particles allowed inside surnames.
var surnameParticles = wordSet("van", "von", "de", "der", "den", "da", "di", "del", "la", "le", "du", "ter")

func init() {
	for _, set := range []map[string]bool{affirmWords, denyWords, greetingWords} {
		for w := range set {
			nameStopwords[w] = true
		}
	}
}

func trimToken(tok string) string {
	return strings.Trim(tok, ".,!?;:\"'()[]{}“”‘’")
}

func tokens(text string) []string {
	raw := strings.Fields(text)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if t = trimToken(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func isCapitalized(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	return unicode.IsUpper(r)
}

func titleFirst(tok string) string {
	r, size := utf8.DecodeRuneInString(tok)
	if r == utf8.RuneError {
		return tok
	}
	return string(unicode.ToUpper(r)) + tok[size:]
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func isQuestion(text string, words []string) bool {
	if strings.HasSuffix(strings.TrimSpace(text), "?") {
		return true
	}
	return len(words) > 0 && questionWords[strings.ToLower(words[0])]
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
