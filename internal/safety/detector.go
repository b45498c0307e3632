package safety

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"recap/internal/store"
	"recap/internal/transcript"
)

// Input is the material a detector inspects.
type Input struct {
	SessionID  string
	Kind       store.SessionKind
	Transcript string
	// Summary is optional and currently informational.
	Summary string
	// Lower is the Unicode lower-cased transcript. The analyzer fills it when empty.
	Lower string
}

// Finding is a detector match before persistence.
type Finding struct {
	Type        store.FlagType
	Severity    store.Severity
	Description string
	Excerpt     string
}

// Detector inspects one Input and returns a Finding or nil.
type Detector interface {
	Name() string
	Detect(in Input) *Finding
}

// Prepare fills derived fields on in.
func Prepare(in Input) Input {
	if in.Lower == "" && in.Transcript != "" {
		in.Lower = lowerText(in.Transcript)
	}
	return in
}

func lowerText(text string) string {
	return cases.Lower(language.Und).String(text)
}

func spokenText(text string) string {
	return transcript.Spoken(text)
}

// firstPhrase returns the earliest occurrence of any phrase in text.
func firstPhrase(text string, phrases []string) (string, int) {
	best, bestPos := "", -1
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		pos := strings.Index(text, phrase)
		if pos < 0 {
			continue
		}
		if bestPos < 0 || pos < bestPos {
			best, bestPos = phrase, pos
		}
	}
	return best, bestPos
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
