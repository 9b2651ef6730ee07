// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders pipeline reports for people and for machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// Format names an output rendering.
type Format string

const (
	FormatTableName Format = "table"
	FormatJSONName  Format = "json"
	FormatYAMLName  Format = "yaml"
)

// ParseFormat validates a format name. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTableName:
		return FormatTableName, nil
	case FormatJSONName, FormatYAMLName:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (valid: table, json, yaml)", s)
}

// Write renders rep in format f.
func Write(rep *types.Report, f Format, w io.Writer) error {
	switch f {
	case FormatJSONName:
		return FormatJSON(rep, w)
	case FormatYAMLName:
		return FormatYAML(rep, w)
	}
	FormatTable(rep, w)
	return nil
}

// FormatTable writes a human-readable summary grouped by publication.
func FormatTable(rep *types.Report, w io.Writer) {
	name := rep.Researcher.DisplayName
	if name == "" {
		name = "(unknown name)"
	}
	fmt.Fprintf(w, "Researcher: %s (%s)\n", name, rep.Researcher.ORCID)
	fmt.Fprintf(w, "Run:        %s  %s\n", rep.RunID, rep.Stage)
	fmt.Fprintf(w, "Records:    %d fetched, %d after dedup, %d verified, %d selected\n",
		rep.Fetched, rep.Deduplicated, rep.Verified, rep.Selected)
	for _, e := range rep.SourceErrors {
		fmt.Fprintf(w, "warning:    %s\n", e)
	}
	fmt.Fprintln(w)

	if len(rep.Lists) == 0 {
		fmt.Fprintln(w, "No publications processed.")
		return
	}

	fmt.Fprintf(w, "%-30s  %-8s  %-13s  %-13s  %-5s  %s\n",
		"Organism", "TaxID", "Work type", "Method", "Conf", "Notes")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	failed, watchlisted := 0, 0
	for _, l := range rep.Lists {
		year := ""
		if !l.Date.IsZero() {
			year = fmt.Sprintf(" (%d)", l.Date.Year())
		}
		fmt.Fprintf(w, "%s  %s%s  [authorship %.2f]\n", l.Publication, truncate(l.Title, 60), year, l.AuthorshipScore)
		if l.Status == types.StatusExtractionFailed {
			failed++
			fmt.Fprintf(w, "  extraction failed: %s\n", l.Error)
			continue
		}
		if len(l.Mentions) == 0 {
			fmt.Fprintln(w, "  no organisms found")
			continue
		}
		for _, m := range l.Mentions {
			if m.Watchlisted {
				watchlisted++
			}
			fmt.Fprintf(w, "  %-28s  %-8s  %-13s  %-13s  %-5.2f  %s\n",
				truncate(m.SearchableName, 28), taxonID(m.Taxon), m.WorkType, m.Method, m.Confidence, notes(m))
		}
	}

	fmt.Fprintf(w, "\n%d publications, %d distinct taxa", len(rep.Lists), len(rep.Taxa()))
	if watchlisted > 0 {
		fmt.Fprintf(w, ", %d watch-list mentions", watchlisted)
	}
	if failed > 0 {
		fmt.Fprintf(w, ", %d extraction failures", failed)
	}
	fmt.Fprintln(w)
}

// FormatJSON writes the report as indented JSON.
func FormatJSON(rep *types.Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// FormatYAML writes the report as YAML.
func FormatYAML(rep *types.Report, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	enc.SetIndent(2)
	return enc.Encode(rep)
}

// FormatTaxa writes resolutions as a table, one per line.
func FormatTaxa(taxa []types.TaxonResolution, w io.Writer) {
	if len(taxa) == 0 {
		fmt.Fprintln(w, "No organisms given.")
		return
	}
	fmt.Fprintf(w, "%-30s  %-8s  %-30s  %-12s  %-5s  %s\n",
		"Name", "TaxID", "Scientific name", "Rank", "Conf", "Notes")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, t := range taxa {
		var note string
		switch {
		case !t.Resolved():
			note = "unresolved"
			if t.Error != "" {
				note += ": " + t.Error
			}
		case t.Ambiguous:
			note = "ambiguous"
		}
		fmt.Fprintf(w, "%-30s  %-8s  %-30s  %-12s  %-5.2f  %s\n",
			truncate(t.Name, 30), taxonID(&t), truncate(t.ScientificName, 30), t.Rank, t.Confidence, note)
	}
}

func taxonID(t *types.TaxonResolution) string {
	if t == nil || !t.Resolved() {
		return "-"
	}
	return fmt.Sprintf("%d", t.TaxonID)
}

func notes(m types.OrganismMention) string {
	var n []string
	if m.Watchlisted {
		n = append(n, "WATCHLIST")
	}
	switch {
	case m.Taxon == nil:
	case !m.Taxon.Resolved():
		n = append(n, "unresolved")
	case m.Taxon.Ambiguous:
		n = append(n, "ambiguous")
	}
	if m.Name != "" && m.Name != m.SearchableName {
		n = append(n, fmt.Sprintf("as %q", m.Name))
	}
	return strings.Join(n, ", ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
