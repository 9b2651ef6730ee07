// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package names

import (
	"regexp"
	"strings"
	"unicode"
)

// wellKnown maps folded abbreviations and common names of frequently studied
// organisms to their binomial.
var wellKnown = map[string]string{
	"e coli":              "Escherichia coli",
	"s aureus":            "Staphylococcus aureus",
	"b subtilis":          "Bacillus subtilis",
	"b anthracis":         "Bacillus anthracis",
	"p aeruginosa":        "Pseudomonas aeruginosa",
	"m tuberculosis":      "Mycobacterium tuberculosis",
	"s cerevisiae":        "Saccharomyces cerevisiae",
	"s pombe":             "Schizosaccharomyces pombe",
	"c elegans":           "Caenorhabditis elegans",
	"d melanogaster":      "Drosophila melanogaster",
	"a thaliana":          "Arabidopsis thaliana",
	"p falciparum":        "Plasmodium falciparum",
	"k pneumoniae":        "Klebsiella pneumoniae",
	"s pneumoniae":        "Streptococcus pneumoniae",
	"s enterica":          "Salmonella enterica",
	"l monocytogenes":     "Listeria monocytogenes",
	"c albicans":          "Candida albicans",
	"h pylori":            "Helicobacter pylori",
	"v cholerae":          "Vibrio cholerae",
	"y pestis":            "Yersinia pestis",
	"f tularensis":        "Francisella tularensis",
	"c difficile":         "Clostridioides difficile",
	"m musculus":          "Mus musculus",
	"d rerio":             "Danio rerio",
	"h sapiens":           "Homo sapiens",
	"human":               "Homo sapiens",
	"humans":              "Homo sapiens",
	"mouse":               "Mus musculus",
	"mice":                "Mus musculus",
	"house mouse":         "Mus musculus",
	"rat":                 "Rattus norvegicus",
	"rats":                "Rattus norvegicus",
	"zebrafish":           "Danio rerio",
	"fruit fly":           "Drosophila melanogaster",
	"fruit flies":         "Drosophila melanogaster",
	"baker s yeast":       "Saccharomyces cerevisiae",
	"budding yeast":       "Saccharomyces cerevisiae",
	"fission yeast":       "Schizosaccharomyces pombe",
	"thale cress":         "Arabidopsis thaliana",
	"chicken":             "Gallus gallus",
	"pig":                 "Sus scrofa",
	"cattle":              "Bos taurus",
	"rhesus macaque":      "Macaca mulatta",
	"african clawed frog": "Xenopus laevis",
	"sars cov 2":          "Severe acute respiratory syndrome coronavirus 2",
}

var abbreviated = regexp.MustCompile(`^([A-Z])\.\s*([a-z][a-z-]+)(.*)$`)

// Canonical standardizes an organism name into the form used for taxonomy
// search: well-known abbreviations and common names become binomials, and
// plain binomials get genus capitalization with a lowercase epithet.
// Names containing digits or acronyms are returned trimmed but otherwise
// untouched.
func Canonical(name string) string {
	name = strings.Join(strings.Fields(strings.Trim(name, " \t\n\"'`.,;:()[]")), " ")
	if name == "" {
		return ""
	}
	if bin, ok := wellKnown[Fold(name)]; ok {
		return bin
	}
	if !plainWords(name) {
		return name
	}
	words := strings.Fields(strings.ToLower(name))
	words[0] = capitalize(words[0])
	return strings.Join(words, " ")
}

// Key is the normalized lookup key of an organism name. Names that are
// equivalent after canonicalization share a key, so "E. coli" and
// "Escherichia coli" both map to "escherichia coli".
func Key(name string) string {
	return Fold(Canonical(name))
}

// ExpandAbbreviation rewrites "E. coli" style names using the genera
// spelled out elsewhere in the same text. The expansion only happens when
// exactly one known genus starts with the abbreviated letter; otherwise
// the name is returned unchanged.
func ExpandAbbreviation(name string, genera []string) string {
	m := abbreviated.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return name
	}
	var match string
	for _, g := range genera {
		if !strings.HasPrefix(g, m[1]) {
			continue
		}
		if match != "" && match != g {
			return name
		}
		match = g
	}
	if match == "" {
		return name
	}
	return match + " " + m[2] + m[3]
}

// Genus returns the first word of a multi-word capitalized name, or "".
func Genus(name string) string {
	words := strings.Fields(name)
	if len(words) < 2 || strings.HasSuffix(words[0], ".") {
		return ""
	}
	r := []rune(words[0])
	if len(r) < 2 || !unicode.IsUpper(r[0]) {
		return ""
	}
	return words[0]
}

func plainWords(s string) bool {
	upper := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			return false
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLetter(r), r == ' ', r == '-':
		default:
			return false
		}
	}
	// Acronyms like "HIV" or "MERS" keep their case.
	return upper <= len(strings.Fields(s))
}

func capitalize(w string) string {
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
