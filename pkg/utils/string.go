package utils

import (
	"strings"
	"unicode"
)

// SanitizeString drops control characters other than line breaks and tabs
// and trims surrounding space.
func SanitizeString(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !strings.ContainsRune("\n\r\t", r) {
			return -1
		}
		return r
	}, s))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername folds a username to the form used for uniqueness.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// MaskSensitive keeps the first visible runes of a secret and stars the
// rest. Secrets no longer than visible are fully starred.
func MaskSensitive(s string, visible int) string {
	runes := []rune(s)
	if len(runes) <= visible {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:visible]) + strings.Repeat("*", len(runes)-visible)
}

// SplitTags splits a comma separated list, trimming blanks and dropping
// case-insensitive duplicates while keeping the first-seen order.
func SplitTags(s string) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, part := range strings.Split(s, ",") {
		tag := SanitizeString(part)
		key := strings.ToLower(tag)
		if _, dup := seen[key]; tag == "" || dup {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
