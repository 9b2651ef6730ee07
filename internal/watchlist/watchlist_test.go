// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package watchlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	w := Default()
	assert.Equal(t, "pandemic-potential", w.Name)
	assert.Greater(t, w.Len(), 40)
	assert.Contains(t, w.Names(), "Yersinia pestis")
}

func TestMatch(t *testing.T) {
	w := Default()
	tests := []struct {
		organism string
		want     string
		ok       bool
	}{
		{"Yersinia pestis", "Yersinia pestis", true},
		{"yersinia  PESTIS", "Yersinia pestis", true},
		{"Y. pestis", "Yersinia pestis", true},
		{"SARS-CoV-2", "SARS-CoV-2", true},
		{"Severe acute respiratory syndrome coronavirus 2", "SARS-CoV-2", true},
		{"Zaire ebolavirus", "Ebola virus", true},
		{"Salmonella enterica serovar Typhimurium", "Salmonella enterica", true},
		{"Brucella abortus", "Brucella", true},
		{"Shigella flexneri", "Shigella", true},
		{"Escherichia coli", "", false},
		{"Mus musculus", "", false},
		{"Bacillus subtilis", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.organism, func(t *testing.T) {
			e, ok := w.Match(tt.organism)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, e.Name)
		})
	}
}

func TestMatch_NilAndEmpty(t *testing.T) {
	var w *Watchlist
	_, ok := w.Match("Yersinia pestis")
	assert.False(t, ok)
	assert.Zero(t, w.Len())
	assert.Nil(t, w.Names())

	_, ok = New("empty").Match("Yersinia pestis")
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	w := New("custom", "Bacillus subtilis", "Escherichia coli")
	e, ok := w.Match("E. coli")
	require.True(t, ok)
	assert.Equal(t, "Escherichia coli", e.Name)
	assert.Equal(t, []string{"Bacillus subtilis", "Escherichia coli"}, w.Names())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.yaml")
	doc := `name: lab
pathogens:
  - name: Bacillus subtilis
    aliases: [hay bacillus]
  - name: Streptomyces
    genus: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	w, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lab", w.Name)
	assert.Equal(t, 2, w.Len())

	e, ok := w.Match("hay bacillus")
	require.True(t, ok)
	assert.Equal(t, "Bacillus subtilis", e.Name)

	e, ok = w.Match("Streptomyces coelicolor")
	require.True(t, ok)
	assert.Equal(t, "Streptomyces", e.Name)

	_, ok = w.Match("Yersinia pestis")
	assert.False(t, ok)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading watch-list")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pathogens: {not: [a list"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "parsing watch-list")

	w, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "pandemic-potential", w.Name)
}
