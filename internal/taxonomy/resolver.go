// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package taxonomy maps organism names to NCBI taxonomy identifiers. A
// Resolver owns a cache keyed by normalized name, so "E. coli" and
// "Escherichia coli" share one lookup.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/pdiddy/orcid2taxid/internal/logging"
	"github.com/pdiddy/orcid2taxid/internal/names"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// ErrLookup marks a taxonomy service failure: transport error, bad status
// or an unparseable response.
var ErrLookup = errors.New("taxonomy lookup failed")

// Candidate is one taxon returned by a search, with a relevance score in
// [0,1].
type Candidate struct {
	TaxonID        int
	ScientificName string
	CommonName     string
	Rank           string
	Score          float64
}

// Searcher queries a taxonomy service by name. An empty result with a nil
// error means the service has no match. A Searcher paces its own outbound
// requests; one search may cost several.
type Searcher interface {
	Search(ctx context.Context, name string) ([]Candidate, error)
}

// Resolver resolves organism names through a Searcher and caches the
// results for its lifetime.
type Resolver struct {
	Searcher Searcher
	Cache    *Cache
}

// NewResolver returns a resolver with an empty cache.
func NewResolver(s Searcher) *Resolver {
	return &Resolver{Searcher: s, Cache: NewCache()}
}

// Resolve maps name to a taxon. It never returns an error: failures come
// back as an unresolved result. Misses are cached; service failures and
// cancellations are not, so a later call retries them.
func (r *Resolver) Resolve(ctx context.Context, name string) types.TaxonResolution {
	key := names.Key(name)
	if key == "" {
		return types.TaxonResolution{Name: name, Status: types.ResolutionUnresolved, Error: "empty organism name"}
	}
	if r.Cache == nil {
		r.Cache = NewCache()
	}
	if cached, ok := r.Cache.Get(key); ok {
		return cached
	}

	log := logging.FromContext(ctx).With().Str("organism", name).Logger()
	unresolved := func(err error) types.TaxonResolution {
		return types.TaxonResolution{Name: name, Key: key, Status: types.ResolutionUnresolved, Error: err.Error()}
	}

	if err := ctx.Err(); err != nil {
		return unresolved(err)
	}
	candidates, err := r.Searcher.Search(ctx, names.Canonical(name))
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("taxonomy lookup failed")
		}
		return unresolved(err)
	}

	res := choose(name, key, candidates)
	stored := r.Cache.Upsert(key, res)
	if stored.Resolved() {
		// Later mentions written with the resolved name hit the same entry.
		if alias := names.Key(stored.ScientificName); alias != "" && alias != key {
			r.Cache.Upsert(alias, stored)
		}
		log.Debug().Int("taxon_id", stored.TaxonID).Bool("ambiguous", stored.Ambiguous).Msg("organism resolved")
	} else {
		log.Warn().Msg("organism unresolved")
	}
	return stored
}

// choose applies the match policy: an exact canonical-name match wins
// outright; otherwise the highest score wins and ties are flagged as
// ambiguous, keeping the first of them.
func choose(name, key string, candidates []Candidate) types.TaxonResolution {
	res := types.TaxonResolution{Name: name, Key: key, Status: types.ResolutionUnresolved}
	if len(candidates) == 0 {
		res.Error = fmt.Sprintf("no taxonomy match for %q", name)
		return res
	}

	for _, c := range candidates {
		if names.Key(c.ScientificName) == key {
			return resolved(res, c, 1.0, false)
		}
	}

	best, ties := 0, 1
	for i := 1; i < len(candidates); i++ {
		switch {
		case candidates[i].Score > candidates[best].Score:
			best, ties = i, 1
		case candidates[i].Score == candidates[best].Score:
			ties++
		}
	}
	c := candidates[best]
	conf := math.Round(c.Score/float64(ties)*1000) / 1000
	return resolved(res, c, conf, ties > 1)
}

func resolved(res types.TaxonResolution, c Candidate, confidence float64, ambiguous bool) types.TaxonResolution {
	res.TaxonID = c.TaxonID
	res.ScientificName = c.ScientificName
	res.Rank = c.Rank
	res.Confidence = confidence
	res.Ambiguous = ambiguous
	res.Status = types.ResolutionResolved
	return res
}
