// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watchlist loads the pathogen watch-list and matches organism
// names against it.
package watchlist

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/orcid2taxid/internal/names"
)

//go:embed pathogens.yaml
var defaultList []byte

// Entry is one organism of concern.
type Entry struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases,omitempty"`

	// Genus marks entries that match every species of the named genus.
	Genus bool `yaml:"genus,omitempty"`
}

// Watchlist is a named set of organisms of concern.
type Watchlist struct {
	Name    string  `yaml:"name"`
	Entries []Entry `yaml:"pathogens"`

	keys   map[string]int
	genera map[string]int
}

// Default returns the built-in pandemic-potential pathogen list.
func Default() *Watchlist {
	w, err := Parse(defaultList)
	if err != nil {
		panic(fmt.Sprintf("watchlist: embedded default list: %v", err))
	}
	return w
}

// Load reads a watch-list YAML file. An empty path returns Default().
func Load(path string) (*Watchlist, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading watch-list: %w", err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing watch-list %s: %w", path, err)
	}
	return w, nil
}

// Parse decodes a watch-list document and builds its match index.
func Parse(data []byte) (*Watchlist, error) {
	var w Watchlist
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	w.index()
	return &w, nil
}

// New builds a watch-list from plain organism names.
func New(name string, organisms ...string) *Watchlist {
	w := &Watchlist{Name: name}
	for _, o := range organisms {
		w.Entries = append(w.Entries, Entry{Name: o})
	}
	w.index()
	return w
}

func (w *Watchlist) index() {
	w.keys = make(map[string]int)
	w.genera = make(map[string]int)
	for i, e := range w.Entries {
		for _, n := range append([]string{e.Name}, e.Aliases...) {
			k := names.Key(n)
			if k == "" {
				continue
			}
			if _, dup := w.keys[k]; !dup {
				w.keys[k] = i
			}
			if e.Genus {
				w.genera[strings.Fields(k)[0]] = i
			}
		}
	}
}

// Len returns the number of entries.
func (w *Watchlist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.Entries)
}

// Names returns the primary name of every entry, in file order.
func (w *Watchlist) Names() []string {
	if w == nil {
		return nil
	}
	out := make([]string, len(w.Entries))
	for i, e := range w.Entries {
		out[i] = e.Name
	}
	return out
}

// Match reports whether organism is on the watch-list, returning the
// matching entry. Names match after canonicalization; a name that extends
// an entry ("Salmonella enterica serovar Typhimurium") also matches, as
// does any species of a genus entry. A nil Watchlist matches nothing.
func (w *Watchlist) Match(organism string) (Entry, bool) {
	if w == nil || len(w.Entries) == 0 {
		return Entry{}, false
	}
	k := names.Key(organism)
	if k == "" {
		return Entry{}, false
	}
	if i, ok := w.keys[k]; ok {
		return w.Entries[i], true
	}
	best, bestLen := -1, 0
	for entry, i := range w.keys {
		if len(entry) > bestLen && strings.HasPrefix(k, entry+" ") {
			best, bestLen = i, len(entry)
		}
	}
	if best >= 0 {
		return w.Entries[best], true
	}
	if i, ok := w.genera[strings.Fields(k)[0]]; ok {
		return w.Entries[i], true
	}
	return Entry{}, false
}
