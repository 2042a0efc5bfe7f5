package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
)

// NormalizeTag normalizes a language tag to its canonical BCP 47 form, lowercased,
// with "-" separators. Returns an empty string when the value is blank or contains
// invalid characters.
func NormalizeTag(raw string) string {
	cleaned := cleanTag(raw)
	if cleaned == "" {
		return ""
	}

	tag, err := xlanguage.Parse(cleaned)
	if err != nil {
		return cleaned
	}
	return strings.ToLower(tag.String())
}

// NormalizeCode returns the primary language subtag (for example, "en" from "en-US").
func NormalizeCode(raw string) string {
	tag := NormalizeTag(raw)
	if tag == "" {
		return ""
	}
	if dash := strings.IndexByte(tag, '-'); dash >= 0 {
		return tag[:dash]
	}
	return tag
}

// SameBase reports whether two tags share a primary language subtag.
func SameBase(a, b string) bool {
	left := NormalizeCode(a)
	return left != "" && left == NormalizeCode(b)
}

func cleanTag(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}

	trimmed = strings.ReplaceAll(trimmed, "_", "-")
	parts := strings.Split(trimmed, "-")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !isAlphaLower(part) {
			return ""
		}
		normalized = append(normalized, part)
	}

	if len(normalized) == 0 {
		return ""
	}
	return strings.Join(normalized, "-")
}

func isAlphaLower(value string) bool {
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
