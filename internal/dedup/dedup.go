// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup collapses publication records that describe the same work.
// Records sharing a strong identifier form one equivalence class; records
// lacking strong identifiers also join a class when title, author set and
// publication date are all close enough.
package dedup

import (
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/pdiddy/orcid2taxid/internal/names"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// Options tunes the fuzzy pass.
type Options struct {
	// TitleThreshold is the minimum normalized-title similarity in [0,1].
	TitleThreshold float64

	// AuthorOverlap is the minimum Jaccard overlap of author family names.
	AuthorOverlap float64

	// DateWindow is the largest publication-date distance for a match.
	DateWindow time.Duration
}

// DefaultOptions returns the fuzzy-match thresholds used by the pipeline.
func DefaultOptions() Options {
	return Options{
		TitleThreshold: 0.9,
		AuthorOverlap:  0.5,
		DateWindow:     365 * 24 * time.Hour,
	}
}

// Result holds the canonical records and how many inputs were merged away.
type Result struct {
	Records []types.PublicationRecord
	Removed int
}

// sourcePriority orders sources when all else is equal. Lower wins.
var sourcePriority = map[string]int{
	"orcid":            0,
	"europepmc":        1,
	"openalex":         2,
	"crossref":         3,
	"semantic_scholar": 4,
	"arxiv":            5,
}

// Deduplicate builds equivalence classes over records and returns one
// canonical record per class, ordered by the input position of each
// class's winning record. Singleton classes pass through unchanged.
func Deduplicate(records []types.PublicationRecord, opts Options) Result {
	n := len(records)
	uf := newUnionFind(n)

	// Strong identifiers.
	owner := make(map[types.Identifier]int)
	for i, r := range records {
		for _, id := range r.StrongIDs() {
			if j, ok := owner[id]; ok {
				uf.union(i, j)
				continue
			}
			owner[id] = i
		}
	}

	// Fuzzy pass over pairs where at least one side has no strong identifier.
	keys := make([]matchKey, n)
	for i, r := range records {
		keys[i] = newMatchKey(r)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if keys[i].strong && keys[j].strong {
				continue
			}
			if uf.find(i) == uf.find(j) {
				continue
			}
			if similar(keys[i], keys[j], opts) {
				uf.union(i, j)
			}
		}
	}

	classes := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		root := uf.find(i)
		if _, ok := classes[root]; !ok {
			roots = append(roots, root)
		}
		classes[root] = append(classes[root], i)
	}

	type canonical struct {
		pos    int
		record types.PublicationRecord
	}
	out := make([]canonical, 0, len(roots))
	for _, root := range roots {
		members := classes[root]
		if len(members) == 1 {
			out = append(out, canonical{pos: members[0], record: records[members[0]]})
			continue
		}
		w := winner(records, members)
		out = append(out, canonical{pos: w, record: merge(records, w, members)})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].pos < out[b].pos })

	res := Result{Records: make([]types.PublicationRecord, len(out)), Removed: n - len(out)}
	for i, c := range out {
		res.Records[i] = c.record
	}
	return res
}

// winner picks the canonical member: full text, then completeness, then
// source priority, then identifier string, then input order.
func winner(records []types.PublicationRecord, members []int) int {
	best := members[0]
	for _, m := range members[1:] {
		if better(records[m], records[best]) {
			best = m
		}
	}
	return best
}

func better(a, b types.PublicationRecord) bool {
	if a.FullTextAvailable != b.FullTextAvailable {
		return a.FullTextAvailable
	}
	if ca, cb := completeness(a), completeness(b); ca != cb {
		return ca > cb
	}
	if pa, pb := priority(a.Source), priority(b.Source); pa != pb {
		return pa < pb
	}
	if ra, rb := a.Ref(), b.Ref(); ra != rb {
		return ra < rb
	}
	return false
}

func priority(source string) int {
	if p, ok := sourcePriority[source]; ok {
		return p
	}
	return len(sourcePriority)
}

// completeness counts populated metadata fields.
func completeness(r types.PublicationRecord) int {
	c := len(r.StrongIDs())
	for _, present := range []bool{
		r.Title != "",
		r.Abstract != "",
		len(r.Authors) > 0,
		!r.Date.IsZero(),
		r.Venue != "",
		r.FullTextURL != "",
	} {
		if present {
			c++
		}
	}
	return c
}

// merge returns a copy of the winner carrying every identifier and source
// of the class, with empty optional fields filled from the other members.
func merge(records []types.PublicationRecord, w int, members []int) types.PublicationRecord {
	out := records[w]
	out.IDs = append([]types.Identifier(nil), out.IDs...)
	out.Sources = nil
	addSources(&out, records[w])

	for _, m := range members {
		if m == w {
			continue
		}
		r := records[m]
		for _, id := range r.IDs {
			out.AddID(id)
		}
		addSources(&out, r)
		if out.Abstract == "" {
			out.Abstract = r.Abstract
		}
		if out.Venue == "" {
			out.Venue = r.Venue
		}
		if out.FullTextURL == "" && r.FullTextURL != "" {
			out.FullTextURL = r.FullTextURL
		}
		if r.Claimed {
			out.Claimed = true
		}
	}
	return out
}

func addSources(dst *types.PublicationRecord, r types.PublicationRecord) {
	all := append([]string{r.Source}, r.Sources...)
	for _, s := range all {
		if s == "" || contains(dst.Sources, s) {
			continue
		}
		dst.Sources = append(dst.Sources, s)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// matchKey is the precomputed fuzzy-match view of a record.
type matchKey struct {
	strong   bool
	title    string
	families map[string]bool
	date     time.Time
}

func newMatchKey(r types.PublicationRecord) matchKey {
	k := matchKey{
		strong: len(r.StrongIDs()) > 0,
		title:  names.Fold(r.Title),
		date:   r.Date,
	}
	for _, a := range r.Authors {
		if f := names.ParsePerson(a.Name).Family; f != "" {
			if k.families == nil {
				k.families = make(map[string]bool)
			}
			k.families[f] = true
		}
	}
	return k
}

func similar(a, b matchKey, opts Options) bool {
	if TitleSimilarity(a.title, b.title) < opts.TitleThreshold {
		return false
	}
	if len(a.families) > 0 && len(b.families) > 0 && jaccard(a.families, b.families) < opts.AuthorOverlap {
		return false
	}
	if !a.date.IsZero() && !b.date.IsZero() {
		d := a.date.Sub(b.date)
		if d < 0 {
			d = -d
		}
		if d > opts.DateWindow {
			return false
		}
	}
	return true
}

// TitleSimilarity returns 1 minus the Levenshtein distance of a and b
// divided by the longer length, in runes. Empty titles never match.
func TitleSimilarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}
	if a == b {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/math.Max(float64(la), float64(lb))
}

func jaccard(a, b map[string]bool) float64 {
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union links the later root under the earlier one so roots stay the
// smallest index of their class.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
