// Package sanitize redacts contact details from free text shown to people who
// should not see them, such as previews of anonymous cases.
package sanitize

import (
	"regexp"
	"unicode/utf8"
)

var reEmail = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)

// Phone-like runs: optional +, digits with spaces, dashes, dots or parentheses,
// at least 9 characters so years and amounts survive.
var rePhone = regexp.MustCompile(`\+?\d[\d\s\-.()]{7,}\d`)

// Bangladeshi national ID numbers are 10, 13 or 17 digits.
var reNID = regexp.MustCompile(`\b(\d{17}|\d{13}|\d{10})\b`)

func RedactPII(s string) string {
	if s == "" {
		return s
	}
	s = reEmail.ReplaceAllString(s, "[redacted email]")
	s = reNID.ReplaceAllString(s, "[redacted id]")
	s = rePhone.ReplaceAllString(s, "[redacted phone]")
	return s
}

// Summary cuts s to at most max bytes on a word boundary and appends an ellipsis.
// The cut never splits a UTF-8 sequence.
func Summary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && s[i] != ' ' {
		i--
	}
	if i <= 0 {
		// No space to break on: cut at max, backing off to a rune boundary.
		i = max
		for i > 0 && !utf8.RuneStart(s[i]) {
			i--
		}
	}
	return s[:i] + "…"
}
