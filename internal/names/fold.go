// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package names normalizes the two kinds of names the pipeline compares:
// person names in author lists and organism names in extracted text.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, strips diacritics, turns punctuation into spaces and
// collapses whitespace. "José-María  O'Neil" folds to "jose maria o neil".
func Fold(s string) string {
	// transform.Chain is stateful, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the whitespace-separated tokens of Fold(s).
func Tokens(s string) []string {
	return strings.Fields(Fold(s))
}
