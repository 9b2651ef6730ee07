// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package authorship scores how likely it is that a researcher is an author
// of a publication record, from name agreement and affiliation history.
package authorship

import (
	"math"
	"strings"
	"time"

	"github.com/pdiddy/orcid2taxid/internal/names"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// Name-match scores by grade.
const (
	scoreIdentified = 1.0
	scoreFullName   = 0.8
	scoreInitials   = 0.5
	scoreFamilyOnly = 0.2
)

// Affiliation bonuses, added to the name score.
const (
	bonusAffiliationDated   = 0.3
	bonusAffiliationUndated = 0.1
)

// affiliationGrace extends an affiliation's end date; papers are often
// published after the author has moved on.
const affiliationGrace = 365 * 24 * time.Hour

// Verifier filters publication records by authorship confidence.
type Verifier struct {
	// Threshold is the minimum score for a record to be retained. Records
	// scoring exactly Threshold are kept.
	Threshold float64
}

// Filter scores every record against id and returns those at or above the
// threshold, in input order.
func (v Verifier) Filter(id types.ResearcherIdentity, records []types.PublicationRecord) []types.ScoredPublication {
	m := newMatcher(id)
	var out []types.ScoredPublication
	for _, r := range records {
		s := m.score(r)
		if s >= v.Threshold {
			out = append(out, types.ScoredPublication{Record: r, Score: s})
		}
	}
	return out
}

// Score returns the confidence in [0,1] that id is an author of r.
func Score(id types.ResearcherIdentity, r types.PublicationRecord) float64 {
	return newMatcher(id).score(r)
}

// matcher holds the parsed researcher identity.
type matcher struct {
	orcid        string
	names        []names.PersonName
	affiliations []types.Affiliation
	institutions []string
}

func newMatcher(id types.ResearcherIdentity) *matcher {
	m := &matcher{orcid: types.NormalizeORCID(id.ORCID), affiliations: id.Affiliations}
	if id.FamilyName != "" {
		m.names = append(m.names, names.PersonName{
			Given:  names.Tokens(id.GivenNames),
			Family: names.Fold(id.FamilyName),
		})
	}
	for _, n := range id.Names() {
		if p := names.ParsePerson(n); p.Family != "" {
			m.names = append(m.names, p)
		}
	}
	for _, a := range id.Affiliations {
		m.institutions = append(m.institutions, names.Fold(a.Institution))
	}
	return m
}

func (m *matcher) score(r types.PublicationRecord) float64 {
	if r.Claimed {
		return scoreIdentified
	}

	best := names.NoMatch
	var matched []types.Author
	for _, a := range r.Authors {
		if m.orcid != "" && types.NormalizeORCID(a.ORCID) == m.orcid {
			return scoreIdentified
		}
		grade := m.grade(a.Name)
		switch {
		case grade == names.NoMatch:
		case grade > best:
			best = grade
			matched = []types.Author{a}
		case grade == best:
			matched = append(matched, a)
		}
	}

	var s float64
	switch best {
	case names.FullMatch:
		s = scoreFullName
	case names.InitialsMatch:
		s = scoreInitials
	case names.FamilyOnly:
		s = scoreFamilyOnly
	default:
		return 0
	}

	bonus := 0.0
	for _, a := range matched {
		bonus = math.Max(bonus, m.affiliationBonus(a.Affiliations, r.Date))
	}
	return math.Min(1, s+bonus)
}

// grade returns the best agreement between an author name and any known
// name of the researcher.
func (m *matcher) grade(author string) names.Match {
	p := names.ParsePerson(author)
	best := names.NoMatch
	for _, n := range m.names {
		if g := names.Compare(n, p); g > best {
			best = g
		}
	}
	return best
}

// affiliationBonus checks the author's declared affiliations against the
// researcher's institutional history. A match is worth more when the
// publication date falls inside the affiliation period; a match whose dates
// are known to conflict is worth nothing.
func (m *matcher) affiliationBonus(declared []string, published time.Time) float64 {
	best := 0.0
	for _, d := range declared {
		fd := names.Fold(d)
		if fd == "" {
			continue
		}
		for i, inst := range m.institutions {
			if inst == "" || !strings.Contains(fd, inst) && !strings.Contains(inst, fd) {
				continue
			}
			aff := m.affiliations[i]
			switch {
			case aff.Dated() && !published.IsZero():
				if !aff.End.IsZero() {
					aff.End = aff.End.Add(affiliationGrace)
				}
				if aff.Covers(published) {
					best = math.Max(best, bonusAffiliationDated)
				}
			default:
				best = math.Max(best, bonusAffiliationUndated)
			}
		}
	}
	return best
}
