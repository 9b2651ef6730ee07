// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ExtractionMethod identifies which extraction tier produced a mention.
type ExtractionMethod string

const (
	MethodFullText     ExtractionMethod = "full_text"
	MethodAbstractOnly ExtractionMethod = "abstract_only"
)

// WorkType classifies how an organism was used in the reported work.
type WorkType string

const (
	WorkWetLab        WorkType = "wet_lab"
	WorkComputational WorkType = "computational"
	WorkUndetermined  WorkType = "undetermined"
)

// ValidWorkType reports whether w is one of the fixed work types.
func ValidWorkType(w WorkType) bool {
	switch w {
	case WorkWetLab, WorkComputational, WorkUndetermined:
		return true
	}
	return false
}

// MaxEvidenceLen bounds OrganismMention.Evidence, in runes.
const MaxEvidenceLen = 140

// OrganismMention is one organism found in one publication.
type OrganismMention struct {
	// Name is the organism name as extracted.
	Name string `json:"name" yaml:"name"`

	// SearchableName is the standardized taxonomic name used for lookup.
	SearchableName string `json:"searchable_name" yaml:"searchable_name"`

	// Publication is the Ref of the source publication.
	Publication string `json:"publication" yaml:"publication"`

	Method   ExtractionMethod `json:"method" yaml:"method"`
	WorkType WorkType         `json:"work_type" yaml:"work_type"`

	// Evidence quotes the strongest supporting text, at most MaxEvidenceLen runes.
	Evidence string `json:"evidence,omitempty" yaml:"evidence,omitempty"`

	// Confidence is in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Watchlisted is set when the organism matches the pathogen watch-list.
	Watchlisted bool `json:"watchlisted,omitempty" yaml:"watchlisted,omitempty"`

	// Taxon is filled in by the resolving stage.
	Taxon *TaxonResolution `json:"taxon,omitempty" yaml:"taxon,omitempty"`
}

// ListStatus annotates the outcome of extraction for one publication.
type ListStatus string

const (
	StatusOK               ListStatus = "ok"
	StatusExtractionFailed ListStatus = "extraction_failed"
)

// OrganismList is the per-publication result.
type OrganismList struct {
	Publication     string            `json:"publication" yaml:"publication"`
	Title           string            `json:"title" yaml:"title"`
	Date            time.Time         `json:"date,omitempty" yaml:"date,omitempty"`
	AuthorshipScore float64           `json:"authorship_score" yaml:"authorship_score"`
	Mentions        []OrganismMention `json:"mentions" yaml:"mentions"`
	Status          ListStatus        `json:"status" yaml:"status"`

	// Tiers lists the extraction tiers attempted, in order.
	Tiers []ExtractionMethod `json:"tiers,omitempty" yaml:"tiers,omitempty"`

	// Error describes why extraction failed, when Status is extraction_failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ResolutionStatus annotates the outcome of a taxonomy lookup.
type ResolutionStatus string

const (
	ResolutionResolved   ResolutionStatus = "resolved"
	ResolutionUnresolved ResolutionStatus = "unresolved"
)

// TaxonResolution maps an organism name to a taxonomy identifier.
type TaxonResolution struct {
	// Name is the organism name that was looked up.
	Name string `json:"name" yaml:"name"`

	// Key is the normalized cache key for Name.
	Key string `json:"key" yaml:"key"`

	// TaxonID is the NCBI taxonomy identifier. Zero when unresolved.
	TaxonID int `json:"taxon_id,omitempty" yaml:"taxon_id,omitempty"`

	ScientificName string `json:"scientific_name,omitempty" yaml:"scientific_name,omitempty"`
	Rank           string `json:"rank,omitempty" yaml:"rank,omitempty"`

	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Ambiguous is set when several equally ranked candidates matched.
	Ambiguous bool `json:"ambiguous,omitempty" yaml:"ambiguous,omitempty"`

	Status ResolutionStatus `json:"status" yaml:"status"`

	// Error holds the lookup failure for unresolved names.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Resolved reports whether a TaxonID was assigned.
func (t TaxonResolution) Resolved() bool {
	return t.Status == ResolutionResolved && t.TaxonID != 0
}
