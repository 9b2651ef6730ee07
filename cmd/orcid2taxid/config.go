// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/orcid2taxid/internal/secrets"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultRetries     = 3
	defaultRateLimit   = 100
	defaultConcurrency = 4
	defaultMaxResults  = 100
)

func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "console")
	viper.SetDefault("secrets_dir", ".secrets/")

	viper.SetDefault("request_rate_limit", defaultRateLimit)
	viper.SetDefault("concurrency", defaultConcurrency)

	viper.SetDefault("sources.timeout", defaultTimeout)
	viper.SetDefault("sources.max_retries", defaultRetries)
	viper.SetDefault("sources.max_results", defaultMaxResults)

	viper.SetDefault("extraction.provider", "claude")
	viper.SetDefault("extraction.max_retries", defaultRetries)
	viper.SetDefault("extraction.timeout", 60*time.Second)

	viper.SetDefault("taxonomy.timeout", defaultTimeout)
	viper.SetDefault("taxonomy.max_retries", defaultRetries)
}

// bindFlags binds each viper key to the named flag.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", flag, err))
		}
	}
}

// pipelineConfig assembles the typed configuration from viper, then fills
// missing credentials from loaded secrets.
func pipelineConfig() types.PipelineConfig {
	userAgent := "orcid2taxid/" + version

	cfg := types.PipelineConfig{
		Sources: types.SourceConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:    viper.GetDuration("sources.timeout"),
				UserAgent:  userAgent,
				MaxRetries: viper.GetInt("sources.max_retries"),
			},
			MaxResults:            viper.GetInt("sources.max_results"),
			Enabled:               splitList(viper.GetStringSlice("sources.enabled")),
			Email:                 viper.GetString("sources.email"),
			SemanticScholarAPIKey: viper.GetString("sources.semantic_scholar_api_key"),
		},
		Extraction: types.ExtractionConfig{
			AIConfig: types.AIConfig{
				Provider:   viper.GetString("extraction.provider"),
				Model:      viper.GetString("extraction.model"),
				APIKey:     viper.GetString("extraction.api_key"),
				MaxRetries: viper.GetInt("extraction.max_retries"),
				Timeout:    viper.GetDuration("extraction.timeout"),
			},
			FinderURL:       viper.GetString("extraction.finder_url"),
			WatchlistPath:   viper.GetString("extraction.watchlist_path"),
			DisableFullText: viper.GetBool("extraction.disable_full_text"),
		},
		Taxonomy: types.TaxonomyConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:    viper.GetDuration("taxonomy.timeout"),
				UserAgent:  userAgent,
				MaxRetries: viper.GetInt("taxonomy.max_retries"),
			},
			APIKey: viper.GetString("taxonomy.api_key"),
			Email:  viper.GetString("taxonomy.email"),
		},
		RequestRateLimit: viper.GetInt("request_rate_limit"),
		Concurrency:      viper.GetInt("concurrency"),
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg
}

// splitList flattens comma-separated entries, as given on the command line
// or in an environment variable.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseDate accepts YYYY, YYYY-MM or YYYY-MM-DD. An end date given as a
// year or month covers the whole period.
func parseDate(s string, end bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []struct {
		format string
		years  int
		months int
	}{
		{"2006-01-02", 0, 0},
		{"2006-01", 0, 1},
		{"2006", 1, 0},
	} {
		t, err := time.Parse(layout.format, s)
		if err != nil {
			continue
		}
		if end && (layout.years > 0 || layout.months > 0) {
			t = t.AddDate(layout.years, layout.months, -1)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use YYYY, YYYY-MM or YYYY-MM-DD", s)
}
