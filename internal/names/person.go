// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package names

import (
	"strings"
	"unicode"
)

// PersonName is a folded, structured person name.
type PersonName struct {
	// Given holds the folded given-name tokens; initials are single letters.
	Given []string

	// Family is the folded family name, particles included ("van der berg").
	Family string
}

// Match grades how well two person names agree.
type Match int

const (
	NoMatch Match = iota
	FamilyOnly
	InitialsMatch
	FullMatch
)

var familyParticles = map[string]bool{
	"van": true, "von": true, "der": true, "den": true, "de": true,
	"da": true, "del": true, "della": true, "di": true, "du": true,
	"la": true, "le": true, "dos": true, "das": true, "ter": true,
}

// ParsePerson parses the common author-name layouts:
// "John A. Smith", "Smith, John A.", "J. Smith", "JA Smith" and "Smith JA".
func ParsePerson(name string) PersonName {
	name = strings.TrimSpace(name)
	if name == "" {
		return PersonName{}
	}

	if family, given, ok := strings.Cut(name, ","); ok {
		return PersonName{Given: givenTokens(given), Family: Fold(family)}
	}

	raw := strings.Fields(name)
	if len(raw) >= 2 && isInitialsBlock(raw[len(raw)-1]) && !isInitialsBlock(raw[0]) {
		// "Smith JA": family first, initials last.
		var given []string
		for _, r := range strings.ToLower(raw[len(raw)-1]) {
			if unicode.IsLetter(r) {
				given = append(given, string(r))
			}
		}
		return PersonName{Given: given, Family: Fold(strings.Join(raw[:len(raw)-1], " "))}
	}

	if len(raw) >= 2 && isInitialsBlock(raw[0]) {
		// "JA Smith": run-together initials first.
		split := len(raw) - 1
		for i := 1; i < len(raw)-1; i++ {
			if familyParticles[strings.TrimSpace(Fold(raw[i]))] {
				split = i
				break
			}
		}
		return PersonName{
			Given:  givenTokens(strings.Join(raw[:split], " ")),
			Family: strings.Join(Tokens(strings.Join(raw[split:], " ")), " "),
		}
	}

	toks := Tokens(name)
	if len(toks) == 1 {
		return PersonName{Family: toks[0]}
	}

	// Family starts at the first particle after the first given name, or
	// is the last token.
	split := len(toks) - 1
	for i := 1; i < len(toks)-1; i++ {
		if familyParticles[toks[i]] {
			split = i
			break
		}
	}
	return PersonName{Given: toks[:split], Family: strings.Join(toks[split:], " ")}
}

// givenTokens folds a given-name string, splitting run-together
// initials such as "J.A." or "JA".
func givenTokens(s string) []string {
	var out []string
	for _, raw := range strings.Fields(s) {
		if isInitialsBlock(raw) {
			for _, r := range strings.ToLower(raw) {
				if unicode.IsLetter(r) {
					out = append(out, string(r))
				}
			}
			continue
		}
		out = append(out, Tokens(raw)...)
	}
	return out
}

// isInitialsBlock reports whether tok looks like "JA", "J.A." or "J.".
func isInitialsBlock(tok string) bool {
	letters := 0
	for _, r := range tok {
		switch {
		case r == '.':
		case unicode.IsUpper(r):
			letters++
		default:
			return false
		}
	}
	return letters > 0 && letters <= 3
}

// Compare grades the agreement between a and b. Family names must match
// exactly after folding; the first given names then decide the grade.
func Compare(a, b PersonName) Match {
	if a.Family == "" || a.Family != b.Family {
		return NoMatch
	}
	if len(a.Given) == 0 || len(b.Given) == 0 {
		return FamilyOnly
	}

	ga, gb := a.Given[0], b.Given[0]
	switch {
	case len(ga) > 1 && len(gb) > 1:
		if ga == gb {
			return FullMatch
		}
		return NoMatch
	case ga[0] == gb[0]:
		return InitialsMatch
	default:
		return NoMatch
	}
}
