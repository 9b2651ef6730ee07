// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"sort"

	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// selectPublications applies the publication cap. The survivors keep their
// verified order; only membership depends on the selection mode. Undated
// publications rank after dated ones.
func selectPublications(scored []types.ScoredPublication, limit int, mode Selection) []types.ScoredPublication {
	if limit <= 0 || len(scored) <= limit {
		return scored
	}

	idx := make([]int, len(scored))
	for i := range idx {
		idx[i] = i
	}
	newer := func(a, b types.PublicationRecord) bool {
		if a.Date.IsZero() != b.Date.IsZero() {
			return !a.Date.IsZero()
		}
		return a.Date.After(b.Date)
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := scored[idx[i]], scored[idx[j]]
		if mode == SelectRelevance && a.Score != b.Score {
			return a.Score > b.Score
		}
		return newer(a.Record, b.Record)
	})

	keep := make([]bool, len(scored))
	for _, i := range idx[:limit] {
		keep[i] = true
	}
	out := make([]types.ScoredPublication, 0, limit)
	for i, sp := range scored {
		if keep[i] {
			out = append(out, sp)
		}
	}
	return out
}

// ParseSelection validates a selection mode name. Empty means recent.
func ParseSelection(s string) (Selection, bool) {
	switch Selection(s) {
	case "", SelectRecent:
		return SelectRecent, true
	case SelectRelevance:
		return SelectRelevance, true
	}
	return "", false
}
