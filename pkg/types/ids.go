// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"regexp"
	"strings"
)

var (
	doiPattern   = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
	orcidPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)
)

var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// NormalizeDOI lowercases a DOI and strips resolver prefixes. It returns ""
// when the result is not a syntactically valid DOI.
func NormalizeDOI(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range doiPrefixes {
		s = strings.TrimPrefix(s, p)
	}
	s = strings.TrimRight(s, ".")
	if !doiPattern.MatchString(s) {
		return ""
	}
	return s
}

// NormalizeORCID strips the orcid.org URL prefix and uppercases the check
// character. It does not validate.
func NormalizeORCID(s string) string {
	s = strings.TrimSpace(s)
	for _, p := range []string{"https://orcid.org/", "http://orcid.org/", "orcid.org/"} {
		s = strings.TrimPrefix(s, p)
	}
	return strings.ToUpper(s)
}

// ValidORCID reports whether s is a well-formed ORCID iD
// ("0000-0002-1825-0097").
func ValidORCID(s string) bool {
	return orcidPattern.MatchString(s)
}
