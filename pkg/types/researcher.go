// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the orcid2taxid pipeline:
// the researcher identity, publication records gathered from literature
// sources, organism mentions extracted from them, and taxonomy resolutions.
package types

import (
	"strings"
	"time"
)

// AffiliationKind distinguishes employment history from education history.
type AffiliationKind string

const (
	AffiliationEmployment AffiliationKind = "employment"
	AffiliationEducation  AffiliationKind = "education"
)

// Affiliation is one entry in a researcher's institutional history.
type Affiliation struct {
	// Institution is the organization name as registered.
	Institution string `json:"institution" yaml:"institution"`

	// Department is the optional department or unit name.
	Department string `json:"department,omitempty" yaml:"department,omitempty"`

	// Role is the optional role or degree title.
	Role string `json:"role,omitempty" yaml:"role,omitempty"`

	// Kind records whether this is employment or education.
	Kind AffiliationKind `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Start is the first day of the affiliation. Zero means unknown.
	Start time.Time `json:"start,omitempty" yaml:"start,omitempty"`

	// End is the last day of the affiliation. Zero means ongoing or unknown.
	End time.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

// Dated reports whether either end of the time range is known.
func (a Affiliation) Dated() bool {
	return !a.Start.IsZero() || !a.End.IsZero()
}

// Covers reports whether t falls inside the affiliation's time range.
// Unknown bounds are treated as open.
func (a Affiliation) Covers(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	if !a.Start.IsZero() && t.Before(a.Start) {
		return false
	}
	if !a.End.IsZero() && t.After(a.End) {
		return false
	}
	return true
}

// ResearcherIdentity is the registry view of one researcher. It is fetched
// once per pipeline run and not modified afterwards.
type ResearcherIdentity struct {
	// ORCID is the persistent researcher identifier (e.g. "0000-0002-1825-0097").
	ORCID string `json:"orcid" yaml:"orcid"`

	// DisplayName is the preferred full name.
	DisplayName string `json:"display_name" yaml:"display_name"`

	// GivenNames and FamilyName are the structured parts of the registered name.
	GivenNames string `json:"given_names,omitempty" yaml:"given_names,omitempty"`
	FamilyName string `json:"family_name,omitempty" yaml:"family_name,omitempty"`

	// Variants lists other known spellings (credit name, other names).
	Variants []string `json:"variants,omitempty" yaml:"variants,omitempty"`

	// Affiliations is the institutional history, employment and education.
	Affiliations []Affiliation `json:"affiliations,omitempty" yaml:"affiliations,omitempty"`
}

// Names returns the display name followed by every variant, without
// duplicates or blanks.
func (r ResearcherIdentity) Names() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			return
		}
		seen[key] = true
		names = append(names, n)
	}
	add(r.DisplayName)
	if r.GivenNames != "" || r.FamilyName != "" {
		add(r.GivenNames + " " + r.FamilyName)
	}
	for _, v := range r.Variants {
		add(v)
	}
	return names
}
