// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/orcid2taxid/internal/dedup"
	"github.com/pdiddy/orcid2taxid/internal/extract"
	"github.com/pdiddy/orcid2taxid/internal/fulltext"
	"github.com/pdiddy/orcid2taxid/internal/httputil"
	"github.com/pdiddy/orcid2taxid/internal/logging"
	"github.com/pdiddy/orcid2taxid/internal/sources"
	"github.com/pdiddy/orcid2taxid/internal/taxonomy"
	"github.com/pdiddy/orcid2taxid/internal/watchlist"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

const defaultOracleTimeout = 60 * time.Second

// New wires a pipeline against the live services described by cfg. A nil
// client uses http.DefaultClient.
func New(cfg types.PipelineConfig, client *http.Client) (*Pipeline, error) {
	if client == nil {
		client = http.DefaultClient
	}

	adapters, registry, err := sources.New(cfg.Sources, client)
	if err != nil {
		return nil, err
	}

	wl, err := watchlist.Load(cfg.Extraction.WatchlistPath)
	if err != nil {
		return nil, err
	}

	oracle, err := extract.NewOracle(cfg.Extraction.AIConfig, client)
	if err != nil {
		return nil, err
	}
	if oracle == nil {
		logging.Default().Warn().Msg("no oracle API key configured; abstract-only extraction will be marked failed")
	}

	limiter := httputil.NewLimiter(cfg.RequestRateLimit)
	timeout := cfg.Extraction.Timeout
	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}

	ex := &extract.Extractor{
		Oracle:        oracle,
		Watchlist:     wl,
		Limiter:       limiter,
		MaxRetries:    cfg.Extraction.MaxRetries,
		OracleTimeout: timeout,
	}
	if !cfg.Extraction.DisableFullText {
		ex.FullText = fulltext.Chain{
			&fulltext.EuropePMCProvider{Client: client, Config: cfg.Sources.HTTPConfig},
			&fulltext.PDFProvider{Client: client, Config: cfg.Sources.HTTPConfig, Email: cfg.Sources.Email},
		}
		ex.Finder = &extract.GNFinder{URL: cfg.Extraction.FinderURL, Client: client, Config: cfg.Sources.HTTPConfig}
	}

	return &Pipeline{
		Identity:  registry,
		Adapters:  adapters,
		Sources:   cfg.Sources,
		Dedup:     dedup.DefaultOptions(),
		Extractor: ex,
		Resolver:  NewResolver(cfg.Taxonomy, client, limiter),
		Limiter:   limiter,
	}, nil
}

// NewResolver builds an NCBI-backed resolver whose requests are paced by
// limiter.
func NewResolver(cfg types.TaxonomyConfig, client *http.Client, limiter *httputil.Limiter) *taxonomy.Resolver {
	return taxonomy.NewResolver(&taxonomy.NCBIClient{Client: client, Config: cfg, Limiter: limiter})
}

// Describe summarizes the wiring for a startup log line.
func (p *Pipeline) Describe() string {
	oracle := "none"
	if p.Extractor != nil && p.Extractor.Oracle != nil {
		oracle = fmt.Sprintf("%T", p.Extractor.Oracle)
	}
	return fmt.Sprintf("%d sources, oracle %s, %d requests/minute", len(p.Adapters), oracle, p.Limiter.RequestsPerMinute())
}
