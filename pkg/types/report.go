// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Stage is one state of the per-researcher pipeline.
type Stage string

const (
	StageFetching      Stage = "fetching"
	StageDeduplicating Stage = "deduplicating"
	StageVerifying     Stage = "verifying"
	StageExtracting    Stage = "extracting"
	StageResolving     Stage = "resolving"
	StageComplete      Stage = "complete"
	StageFailed        Stage = "failed"
)

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage    Stage         `json:"stage" yaml:"stage"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Report is the result of one completed pipeline run.
type Report struct {
	RunID      string             `json:"run_id" yaml:"run_id"`
	Researcher ResearcherIdentity `json:"researcher" yaml:"researcher"`
	StartedAt  time.Time          `json:"started_at" yaml:"started_at"`
	Stage      Stage              `json:"stage" yaml:"stage"`
	Stages     []StageTiming      `json:"stages" yaml:"stages"`

	// SourceErrors lists adapters that failed as "name: error".
	SourceErrors []string `json:"source_errors,omitempty" yaml:"source_errors,omitempty"`

	Fetched      int `json:"fetched" yaml:"fetched"`
	Deduplicated int `json:"deduplicated" yaml:"deduplicated"`
	Verified     int `json:"verified" yaml:"verified"`
	Selected     int `json:"selected" yaml:"selected"`

	Lists []OrganismList `json:"lists" yaml:"lists"`
}

// Taxa returns the distinct resolved taxa across all lists, in first-seen order.
func (r *Report) Taxa() []TaxonResolution {
	seen := make(map[int]bool)
	var out []TaxonResolution
	for _, l := range r.Lists {
		for _, m := range l.Mentions {
			if m.Taxon == nil || !m.Taxon.Resolved() || seen[m.Taxon.TaxonID] {
				continue
			}
			seen[m.Taxon.TaxonID] = true
			out = append(out, *m.Taxon)
		}
	}
	return out
}
