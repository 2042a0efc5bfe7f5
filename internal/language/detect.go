package language

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// Languages the game client ships with, plus the common community targets.
var detectableLanguages = []lingua.Language{
	lingua.English,
	lingua.Japanese,
	lingua.German,
	lingua.French,
	lingua.Chinese,
	lingua.Korean,
	lingua.Spanish,
	lingua.Portuguese,
	lingua.Italian,
	lingua.Russian,
	lingua.Polish,
	lingua.Turkish,
}

// DetectISO6391 returns the two-letter code of the dominant language of text, or ""
// when the sample is too short or ambiguous.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return ""
	}

	detected, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(detected.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// IsAlreadyIn reports whether text is confidently written in the target language.
func IsAlreadyIn(text, target string) bool {
	detected := DetectISO6391(text)
	if detected == "" {
		return false
	}
	return SameBase(detected, target)
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectableLanguages...).
			Build()
	})
	return detector
}
