// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// europePMCRestBase is the Europe PMC REST root. Declared as a var so tests
// can substitute an httptest server.
var europePMCRestBase = "https://www.ebi.ac.uk/europepmc/webservices/rest"

// jatsSkip lists JATS elements whose text is dropped: citation markers,
// tables and formulae add noise without organism names.
var jatsSkip = map[string]bool{
	"xref":           true,
	"table-wrap":     true,
	"table":          true,
	"disp-formula":   true,
	"inline-formula": true,
	"ref-list":       true,
}

// jatsBlock lists elements that end a line of text.
var jatsBlock = map[string]bool{
	"p":       true,
	"title":   true,
	"caption": true,
	"sec":     true,
	"label":   true,
}

// EuropePMCProvider reads open-access JATS XML from Europe PMC by PMCID.
type EuropePMCProvider struct {
	Client   *http.Client
	Config   types.HTTPConfig
	MaxBytes int64
}

// Name returns "europepmc".
func (p *EuropePMCProvider) Name() string { return "europepmc" }

// FullText downloads and flattens the article body. Records without a
// PMCID have no Europe PMC full text.
func (p *EuropePMCProvider) FullText(ctx context.Context, r types.PublicationRecord) (string, error) {
	pmcid := r.ID(types.SchemePMCID)
	if pmcid == "" {
		return "", fmt.Errorf("%w: no PMCID", ErrTextUnavailable)
	}
	url := fmt.Sprintf("%s/%s/fullTextXML", europePMCRestBase, pmcid)
	data, err := download(ctx, p.Client, url, "application/xml", p.Config, p.MaxBytes)
	if err != nil {
		return "", err
	}
	text, err := jatsText(data)
	if err != nil {
		return "", fmt.Errorf("%w: parsing JATS for %s: %v", ErrTextUnavailable, pmcid, err)
	}
	return text, nil
}

// jatsText returns the text of the <body> element of a JATS document,
// one block element per line.
func jatsText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var (
		b       strings.Builder
		inBody  int
		skip    int
		line    strings.Builder
		sawBody bool
	)
	flush := func() {
		if s := strings.Join(strings.Fields(line.String()), " "); s != "" {
			b.WriteString(s)
			b.WriteByte('\n')
		}
		line.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "body":
				inBody++
				sawBody = true
			case inBody > 0 && jatsSkip[t.Name.Local]:
				skip++
			}
		case xml.EndElement:
			switch {
			case t.Name.Local == "body":
				flush()
				inBody--
			case inBody > 0 && jatsSkip[t.Name.Local]:
				skip--
			case inBody > 0 && skip == 0 && jatsBlock[t.Name.Local]:
				flush()
			}
		case xml.CharData:
			if inBody > 0 && skip == 0 {
				line.Write(t)
				line.WriteByte(' ')
			}
		}
	}
	if !sawBody {
		return "", fmt.Errorf("no <body> element")
	}
	return strings.TrimSpace(b.String()), nil
}
