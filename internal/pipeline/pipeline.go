// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the per-researcher state machine:
//
//	fetching -> deduplicating -> verifying -> extracting -> resolving -> complete
//
// Only the fetching stage can fail the run. Every later failure is recorded
// on the affected publication or organism and the run still completes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/pdiddy/orcid2taxid/internal/authorship"
	"github.com/pdiddy/orcid2taxid/internal/dedup"
	"github.com/pdiddy/orcid2taxid/internal/extract"
	"github.com/pdiddy/orcid2taxid/internal/httputil"
	"github.com/pdiddy/orcid2taxid/internal/logging"
	"github.com/pdiddy/orcid2taxid/internal/names"
	"github.com/pdiddy/orcid2taxid/internal/sources"
	"github.com/pdiddy/orcid2taxid/internal/taxonomy"
	"github.com/pdiddy/orcid2taxid/internal/watchlist"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

var (
	// ErrAllSourcesFailed is fatal: there is nothing to process.
	ErrAllSourcesFailed = errors.New("all sources failed")

	// ErrInvalidIdentifier is fatal: the researcher identifier is malformed
	// or unknown to the registry.
	ErrInvalidIdentifier = errors.New("invalid researcher identifier")

	// ErrThresholdRequired is returned when Options carries no authorship
	// threshold. There is no default.
	ErrThresholdRequired = errors.New("authorship confidence threshold is required")
)

const defaultConcurrency = 4

// PipelineError is a fatal run failure.
type PipelineError struct {
	Stage types.Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed while %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Selection orders publications when MaxPublications caps the run.
type Selection string

const (
	// SelectRecent keeps the most recent publications.
	SelectRecent Selection = "recent"

	// SelectRelevance keeps the publications with the highest authorship
	// scores, most recent first among equals.
	SelectRelevance Selection = "relevance"
)

// Options are the per-run settings.
type Options struct {
	// MaxPublications caps the publications extracted. Zero means no cap.
	MaxPublications int

	// Selection picks which publications survive the cap (default recent).
	Selection Selection

	// AuthorshipThreshold is required. Publications scoring below it are
	// dropped.
	AuthorshipThreshold *float64

	// Watchlist overrides the extractor's watch-list for this run.
	Watchlist *watchlist.Watchlist

	// RequestRateLimit, when positive, resets the requests-per-minute
	// ceiling for the oracle and taxonomy service. The limiter is shared by
	// every run of this Pipeline, so the new ceiling is process-wide and
	// persists after the run returns.
	RequestRateLimit int

	// Concurrency bounds in-flight publications and lookups (default 4).
	Concurrency int

	// MaxResults caps the records requested from each source.
	MaxResults int

	DateFrom time.Time
	DateTo   time.Time
}

// Threshold is a convenience for building Options.AuthorshipThreshold.
func Threshold(v float64) *float64 { return &v }

// Pipeline holds the collaborators of a run. It keeps no per-run state, so
// one Pipeline may serve several runs; the resolver cache is shared by all
// of them.
type Pipeline struct {
	Identity  sources.IdentityFetcher
	Adapters  []sources.Adapter
	Sources   types.SourceConfig
	Dedup     dedup.Options
	Extractor *extract.Extractor
	Resolver  *taxonomy.Resolver
	Limiter   *httputil.Limiter
}

// Run processes one researcher. The returned report preserves the verified
// publication order. A cancelled ctx aborts the run and returns ctx.Err()
// with no report.
func (p *Pipeline) Run(ctx context.Context, orcid string, opts Options) (*types.Report, error) {
	if opts.AuthorshipThreshold == nil {
		return nil, ErrThresholdRequired
	}
	threshold := *opts.AuthorshipThreshold
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("authorship confidence threshold %v outside [0,1]", threshold)
	}

	id := types.NormalizeORCID(orcid)
	if !types.ValidORCID(id) {
		return nil, &PipelineError{Stage: types.StageFetching, Err: fmt.Errorf("%w: %q", ErrInvalidIdentifier, orcid)}
	}

	rep := &types.Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Stage:     types.StageFetching,
	}
	ctx = logging.WithRunID(ctx, rep.RunID)
	ctx = logging.WithField(ctx, "orcid", id)
	log := logging.FromContext(ctx)

	if opts.RequestRateLimit > 0 && p.Limiter != nil && opts.RequestRateLimit != p.Limiter.RequestsPerMinute() {
		// Process-wide: concurrent runs share this limiter.
		log.Info().
			Int("from", p.Limiter.RequestsPerMinute()).
			Int("to", opts.RequestRateLimit).
			Msg("changing shared request rate limit")
		p.Limiter.SetRate(opts.RequestRateLimit)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	timer := newStageTimer(ctx, rep)

	// Fetching.
	identity, err := p.fetchIdentity(ctx, id)
	if err != nil {
		return nil, p.fail(ctx, rep, err)
	}
	rep.Researcher = identity

	records, err := p.fetchRecords(ctx, rep, identity, opts)
	if err != nil {
		return nil, p.fail(ctx, rep, err)
	}
	rep.Fetched = len(records)

	// Deduplicating.
	timer.enter(types.StageDeduplicating)
	dopts := p.Dedup
	if dopts == (dedup.Options{}) {
		dopts = dedup.DefaultOptions()
	}
	deduped := dedup.Deduplicate(records, dopts)
	rep.Deduplicated = len(deduped.Records)

	// Verifying.
	timer.enter(types.StageVerifying)
	verified := authorship.Verifier{Threshold: threshold}.Filter(identity, deduped.Records)
	rep.Verified = len(verified)
	selected := selectPublications(verified, opts.MaxPublications, opts.Selection)
	rep.Selected = len(selected)
	log.Info().
		Int("fetched", rep.Fetched).
		Int("deduplicated", rep.Deduplicated).
		Int("verified", rep.Verified).
		Int("selected", rep.Selected).
		Msg("publication set fixed")

	// Extracting.
	timer.enter(types.StageExtracting)
	lists, err := p.extractAll(ctx, selected, opts.Watchlist, concurrency)
	if err != nil {
		return nil, err
	}

	// Resolving.
	timer.enter(types.StageResolving)
	if err := p.resolveAll(ctx, lists, concurrency); err != nil {
		return nil, err
	}

	timer.enter(types.StageComplete)
	rep.Lists = lists
	return rep, nil
}

// fail records the fatal error and wraps it as a PipelineError. Context
// errors pass through unwrapped.
func (p *Pipeline) fail(ctx context.Context, rep *types.Report, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	stage := rep.Stage
	rep.Stage = types.StageFailed
	logging.FromContext(ctx).Error().Err(err).Str("stage", string(stage)).Msg("pipeline failed")
	return &PipelineError{Stage: stage, Err: err}
}

// fetchIdentity asks the registry for the researcher. An unknown
// identifier is fatal; any other registry failure degrades to an identity
// with only the identifier, and verification relies on author ORCIDs.
func (p *Pipeline) fetchIdentity(ctx context.Context, id string) (types.ResearcherIdentity, error) {
	if p.Identity == nil {
		return types.ResearcherIdentity{ORCID: id}, nil
	}
	ictx := ctx
	if p.Sources.Timeout > 0 {
		var cancel context.CancelFunc
		ictx, cancel = context.WithTimeout(ctx, p.Sources.Timeout)
		defer cancel()
	}
	identity, err := p.Identity.FetchIdentity(ictx, id)
	switch {
	case err == nil:
		return identity, nil
	case ctx.Err() != nil:
		return types.ResearcherIdentity{}, ctx.Err()
	case errors.Is(err, sources.ErrNotFound):
		return types.ResearcherIdentity{}, fmt.Errorf("%w: %s: %w", ErrInvalidIdentifier, id, err)
	}
	logging.FromContext(ctx).Warn().Err(err).Msg("researcher identity unavailable, continuing with identifier only")
	return types.ResearcherIdentity{ORCID: id}, nil
}

func (p *Pipeline) fetchRecords(ctx context.Context, rep *types.Report, identity types.ResearcherIdentity, opts Options) ([]types.PublicationRecord, error) {
	if len(p.Adapters) == 0 {
		return nil, fmt.Errorf("%w: no sources configured", ErrAllSourcesFailed)
	}
	q := sources.Query{
		ORCID:      identity.ORCID,
		Name:       identity.DisplayName,
		MaxResults: opts.MaxResults,
		DateFrom:   opts.DateFrom,
		DateTo:     opts.DateTo,
	}
	out := sources.FetchAll(ctx, p.Adapters, q, p.Sources)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	errs := make([]error, 0, len(out.Errors))
	for _, e := range out.Errors {
		rep.SourceErrors = append(rep.SourceErrors, e.Error())
		errs = append(errs, e)
	}
	if out.AllFailed(len(p.Adapters)) {
		return nil, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
	}
	return out.Records, nil
}

// extractAll runs extraction for every selected publication. Results land
// at their input index, so completion order does not matter.
func (p *Pipeline) extractAll(ctx context.Context, selected []types.ScoredPublication, wl *watchlist.Watchlist, concurrency int) ([]types.OrganismList, error) {
	lists := make([]types.OrganismList, len(selected))
	if len(selected) == 0 {
		return lists, nil
	}

	ex := &extract.Extractor{}
	if p.Extractor != nil {
		copied := *p.Extractor
		ex = &copied
	}
	if wl != nil {
		ex.Watchlist = wl
	}
	if ex.Limiter == nil {
		ex.Limiter = p.Limiter
	}

	wp := pool.New().WithMaxGoroutines(concurrency).WithContext(ctx)
	for i, sp := range selected {
		wp.Go(func(ctx context.Context) error {
			list, err := ex.Extract(ctx, sp.Record)
			if err != nil {
				return err
			}
			list.AuthorshipScore = sp.Score
			lists[i] = list
			return nil
		})
	}
	if err := wp.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	failed := 0
	for _, l := range lists {
		if l.Status == types.StatusExtractionFailed {
			failed++
		}
	}
	logging.FromContext(ctx).Info().Int("publications", len(lists)).Int("extraction_failed", failed).Msg("extraction finished")
	return lists, nil
}

// resolveAll looks up every distinct organism once and attaches the result
// to each mention.
func (p *Pipeline) resolveAll(ctx context.Context, lists []types.OrganismList, concurrency int) error {
	if p.Resolver == nil {
		return nil
	}

	var keys []string
	queries := make(map[string]string)
	for _, l := range lists {
		for _, m := range l.Mentions {
			name := m.SearchableName
			if name == "" {
				name = m.Name
			}
			key := names.Key(name)
			if key == "" {
				continue
			}
			if _, ok := queries[key]; !ok {
				queries[key] = name
				keys = append(keys, key)
			}
		}
	}

	resolved := make([]types.TaxonResolution, len(keys))
	wp := pool.New().WithMaxGoroutines(concurrency).WithContext(ctx)
	for i, key := range keys {
		wp.Go(func(ctx context.Context) error {
			resolved[i] = p.Resolver.Resolve(ctx, queries[key])
			return nil
		})
	}
	if err := wp.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	byKey := make(map[string]types.TaxonResolution, len(keys))
	unresolved := 0
	for i, key := range keys {
		byKey[key] = resolved[i]
		if !resolved[i].Resolved() {
			unresolved++
		}
	}
	for li := range lists {
		for mi := range lists[li].Mentions {
			m := &lists[li].Mentions[mi]
			name := m.SearchableName
			if name == "" {
				name = m.Name
			}
			if res, ok := byKey[names.Key(name)]; ok {
				m.Taxon = &res
			}
		}
	}
	logging.FromContext(ctx).Info().Int("organisms", len(keys)).Int("unresolved", unresolved).Msg("resolution finished")
	return nil
}

// stageTimer advances the report through the stages and records how long
// each one took.
type stageTimer struct {
	ctx   context.Context
	rep   *types.Report
	start time.Time
}

func newStageTimer(ctx context.Context, rep *types.Report) *stageTimer {
	logging.FromContext(ctx).Info().Str("stage", string(rep.Stage)).Msg("stage started")
	return &stageTimer{ctx: ctx, rep: rep, start: time.Now()}
}

func (t *stageTimer) enter(next types.Stage) {
	now := time.Now()
	t.rep.Stages = append(t.rep.Stages, types.StageTiming{Stage: t.rep.Stage, Duration: now.Sub(t.start)})
	t.rep.Stage = next
	t.start = now
	logging.FromContext(t.ctx).Info().Str("stage", string(next)).Msg("stage started")
}
