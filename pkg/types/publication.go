// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// IDScheme names the namespace of a publication identifier.
type IDScheme string

const (
	SchemeDOI      IDScheme = "doi"
	SchemePMID     IDScheme = "pmid"
	SchemePMCID    IDScheme = "pmcid"
	SchemeArxiv    IDScheme = "arxiv"
	SchemeOpenAlex IDScheme = "openalex"
	SchemeS2       IDScheme = "s2"
	SchemePutCode  IDScheme = "orcid_put_code"
)

// strongSchemes are near-unique across catalogs and drive exact-match dedup.
var strongSchemes = map[IDScheme]bool{
	SchemeDOI:   true,
	SchemePMID:  true,
	SchemePMCID: true,
	SchemeArxiv: true,
}

// refOrder is the preference order for a record's display reference.
var refOrder = []IDScheme{SchemeDOI, SchemePMID, SchemePMCID, SchemeArxiv, SchemeOpenAlex, SchemeS2, SchemePutCode}

// Identifier is one external identifier of a publication.
type Identifier struct {
	Scheme IDScheme `json:"scheme" yaml:"scheme"`
	Value  string   `json:"value" yaml:"value"`
}

// Strong reports whether the identifier can be used for exact-match dedup.
func (id Identifier) Strong() bool {
	return strongSchemes[id.Scheme] && id.Value != ""
}

// String returns "scheme:value".
func (id Identifier) String() string {
	return string(id.Scheme) + ":" + id.Value
}

// Author is one entry in a publication's ordered author list.
type Author struct {
	// Name is the author name as printed by the source.
	Name string `json:"name" yaml:"name"`

	// ORCID is the author's researcher identifier when the source links one.
	ORCID string `json:"orcid,omitempty" yaml:"orcid,omitempty"`

	// Affiliations are the declared affiliation strings for this paper.
	Affiliations []string `json:"affiliations,omitempty" yaml:"affiliations,omitempty"`
}

// PublicationRecord is a publication as reported by one or more literature
// sources. Records for the same work are collapsed by the deduplicator.
type PublicationRecord struct {
	// Source is the source-of-record tag (e.g. "europepmc").
	Source string `json:"source" yaml:"source"`

	// Sources lists every source that reported this work after dedup.
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`

	// IDs holds every known identifier alias.
	IDs []Identifier `json:"ids,omitempty" yaml:"ids,omitempty"`

	Title    string `json:"title" yaml:"title"`
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// FullTextAvailable is set when the source reports accessible full text.
	FullTextAvailable bool `json:"full_text_available" yaml:"full_text_available"`

	// FullTextURL is a direct link to an open-access PDF, if known.
	FullTextURL string `json:"full_text_url,omitempty" yaml:"full_text_url,omitempty"`

	Authors []Author  `json:"authors,omitempty" yaml:"authors,omitempty"`
	Date    time.Time `json:"date,omitempty" yaml:"date,omitempty"`
	Venue   string    `json:"venue,omitempty" yaml:"venue,omitempty"`

	// Claimed is set when the researcher registry lists the work on the
	// researcher's own record.
	Claimed bool `json:"claimed,omitempty" yaml:"claimed,omitempty"`
}

// ID returns the first identifier value for scheme, or "".
func (p PublicationRecord) ID(scheme IDScheme) string {
	for _, id := range p.IDs {
		if id.Scheme == scheme {
			return id.Value
		}
	}
	return ""
}

// StrongIDs returns the strong identifiers of the record.
func (p PublicationRecord) StrongIDs() []Identifier {
	var out []Identifier
	for _, id := range p.IDs {
		if id.Strong() {
			out = append(out, id)
		}
	}
	return out
}

// AddID appends id unless an identical identifier is already present.
func (p *PublicationRecord) AddID(id Identifier) {
	if id.Value == "" {
		return
	}
	for _, have := range p.IDs {
		if have == id {
			return
		}
	}
	p.IDs = append(p.IDs, id)
}

// Ref returns a stable reference string for the record, preferring the DOI.
// Records without identifiers are referenced by a hash of their title.
func (p PublicationRecord) Ref() string {
	for _, scheme := range refOrder {
		if v := p.ID(scheme); v != "" {
			return string(scheme) + ":" + v
		}
	}
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(p.Title))))
	return fmt.Sprintf("title:%x", h[:6])
}

// ScoredPublication pairs a record with its authorship confidence.
type ScoredPublication struct {
	Record PublicationRecord `json:"record" yaml:"record"`
	Score  float64           `json:"score" yaml:"score"`
}
