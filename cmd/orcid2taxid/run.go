// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/orcid2taxid/internal/logging"
	"github.com/pdiddy/orcid2taxid/internal/pipeline"
	"github.com/pdiddy/orcid2taxid/internal/report"
	"github.com/pdiddy/orcid2taxid/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run <orcid>",
	Short: "Map one researcher to organisms and taxonomy identifiers",
	Long: `Run fetches the researcher's identity and publications from every enabled
source, merges duplicates, drops publications whose authorship score is below
--threshold, extracts organism mentions, and resolves them to NCBI taxonomy
identifiers.

The authorship threshold has no default. Supply it with --threshold, the
authorship_threshold config key, or ORCID2TAXID_AUTHORSHIP_THRESHOLD.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.Float64("threshold", 0, "minimum authorship score in [0,1] (required)")
	f.Int("max-publications", 0, "cap on publications extracted (0 = no cap)")
	f.String("selection", "recent", "which publications survive the cap: recent or relevance")
	f.Int("rate-limit", defaultRateLimit, "requests per minute to the extraction oracle and taxonomy service")
	f.Int("concurrency", defaultConcurrency, "publications processed in parallel")
	f.Int("max-results", defaultMaxResults, "records requested from each source")
	f.StringSlice("sources", nil, "sources to query (default all): orcid, europepmc, openalex, crossref, semantic_scholar, arxiv")
	f.String("watchlist", "", "pathogen watch-list YAML (default built-in list)")
	f.String("provider", "claude", "extraction oracle: claude or gemini")
	f.String("model", "", "extraction model identifier")
	f.Bool("no-full-text", false, "skip the full-text tier")
	f.String("from", "", "earliest publication date (YYYY, YYYY-MM or YYYY-MM-DD)")
	f.String("to", "", "latest publication date (YYYY, YYYY-MM or YYYY-MM-DD)")
	f.String("format", "table", "output format: table, json or yaml")

	bindFlags(f, map[string]string{
		"authorship_threshold":         "threshold",
		"max_publications":             "max-publications",
		"selection":                    "selection",
		"request_rate_limit":           "rate-limit",
		"concurrency":                  "concurrency",
		"sources.max_results":          "max-results",
		"sources.enabled":              "sources",
		"extraction.watchlist_path":    "watchlist",
		"extraction.provider":          "provider",
		"extraction.model":             "model",
		"extraction.disable_full_text": "no-full-text",
		"format":                       "format",
	})

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logging.FromContext(ctx)

	format, err := report.ParseFormat(viper.GetString("format"))
	if err != nil {
		return err
	}
	selection, ok := pipeline.ParseSelection(viper.GetString("selection"))
	if !ok {
		return fmt.Errorf("unknown selection %q (valid: recent, relevance)", viper.GetString("selection"))
	}
	fromFlag, _ := cmd.Flags().GetString("from")
	toFlag, _ := cmd.Flags().GetString("to")
	from, err := parseDate(fromFlag, false)
	if err != nil {
		return err
	}
	to, err := parseDate(toFlag, true)
	if err != nil {
		return err
	}

	cfg := pipelineConfig()
	p, err := pipeline.New(cfg, &http.Client{})
	if err != nil {
		return err
	}
	log.Info().Msg(p.Describe())

	var st *store.Store
	if path := viper.GetString("db"); path != "" {
		st, err = store.Open(path)
		if err != nil {
			return err
		}
		defer st.Close()

		taxa, err := st.LoadTaxa(ctx)
		if err != nil {
			return err
		}
		n := p.Resolver.Cache.Warm(taxa)
		log.Debug().Int("taxa", n).Msg("warmed taxon cache")
	}

	opts := pipeline.Options{
		MaxPublications:  viper.GetInt("max_publications"),
		Selection:        selection,
		RequestRateLimit: cfg.RequestRateLimit,
		Concurrency:      cfg.Concurrency,
		MaxResults:       cfg.Sources.MaxResults,
		DateFrom:         from,
		DateTo:           to,
	}
	if viper.IsSet("authorship_threshold") {
		opts.AuthorshipThreshold = pipeline.Threshold(viper.GetFloat64("authorship_threshold"))
	}

	rep, err := p.Run(ctx, args[0], opts)
	if err != nil {
		return err
	}

	if st != nil {
		if err := st.SaveReport(ctx, rep); err != nil {
			return fmt.Errorf("saving run %s: %w", rep.RunID, err)
		}
	}
	return report.Write(rep, format, cmd.OutOrStdout())
}
