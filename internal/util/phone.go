package util

import (
	"regexp"
	"strings"
)

var (
	phoneSeparators = regexp.MustCompile(`[,;]`)
	phoneJunk       = regexp.MustCompile(`[^\d\+]+`)
)

// NormalizePhone strips formatting and converts Russian local forms into +7XXXXXXXXXX.
func NormalizePhone(raw string) string {
	s := phoneJunk.ReplaceAllString(strings.TrimSpace(raw), "")

	switch {
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	case strings.HasPrefix(s, "8") && len(s) == 11:
		s = "+7" + s[1:]
	case strings.HasPrefix(s, "9") && len(s) == 10:
		s = "+7" + s
	case strings.HasPrefix(s, "7") && len(s) == 11:
		s = "+" + s
	}

	return s
}

// SplitPhones splits a comma or semicolon separated recipient list.
// Empty items are dropped.
func SplitPhones(recipients string) []string {
	parts := phoneSeparators.Split(recipients, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CountPhones returns the number of recipients in a comma or semicolon separated list.
func CountPhones(recipients string) int {
	return len(SplitPhones(recipients))
}

// JoinPhones normalizes each recipient and joins them with commas, the form the gateway expects.
func JoinPhones(recipients string) string {
	phones := SplitPhones(recipients)
	for i, p := range phones {
		phones[i] = NormalizePhone(p)
	}
	return strings.Join(phones, ",")
}
