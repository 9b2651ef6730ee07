// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/orcid2taxid/pkg/types"
)

// openAlexWorkBase is the OpenAlex single-work endpoint. Declared as a var so
// tests can substitute an httptest server.
var openAlexWorkBase = "https://api.openalex.org/works/"

// PDFProvider downloads an open-access PDF and extracts its text. The PDF
// location is the record's FullTextURL, or else OpenAlex's best open-access
// location for the record's DOI.
type PDFProvider struct {
	Client   *http.Client
	Config   types.HTTPConfig
	Email    string
	MaxBytes int64
}

// Name returns "pdf".
func (p *PDFProvider) Name() string { return "pdf" }

// FullText resolves, downloads and extracts the PDF.
func (p *PDFProvider) FullText(ctx context.Context, r types.PublicationRecord) (string, error) {
	pdfURL := r.FullTextURL
	if pdfURL == "" {
		if doi := r.ID(types.SchemeDOI); doi != "" {
			u, err := p.resolveOpenAlex(ctx, doi)
			if err != nil {
				return "", err
			}
			pdfURL = u
		}
	}
	if pdfURL == "" {
		return "", fmt.Errorf("%w: no open-access PDF location", ErrTextUnavailable)
	}

	data, err := download(ctx, p.Client, pdfURL, "application/pdf", p.Config, p.MaxBytes)
	if err != nil {
		return "", err
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return "", fmt.Errorf("%w: %s is not a PDF", ErrTextUnavailable, pdfURL)
	}
	text, err := pdfText(data)
	if err != nil {
		return "", fmt.Errorf("%w: extracting text: %v", ErrTextUnavailable, err)
	}
	return text, nil
}

// resolveOpenAlex returns the open-access PDF URL OpenAlex lists for doi,
// or "" when there is none.
func (p *PDFProvider) resolveOpenAlex(ctx context.Context, doi string) (string, error) {
	apiURL := openAlexWorkBase + "https://doi.org/" + doi
	if p.Email != "" {
		apiURL += "?mailto=" + url.QueryEscape(p.Email)
	}
	data, err := download(ctx, p.Client, apiURL, "application/json", p.Config, 1<<20)
	if err != nil {
		return "", err
	}
	var oa struct {
		BestOALocation *struct {
			PDFURL string `json:"pdf_url"`
		} `json:"best_oa_location"`
	}
	if err := json.Unmarshal(data, &oa); err != nil {
		return "", fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	if oa.BestOALocation == nil {
		return "", nil
	}
	return oa.BestOALocation.PDFURL, nil
}

// pdfText extracts the plain text of every page. Pages that fail to decode
// are skipped; a document with no readable page is an error.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		// The PDF parser panics on some malformed documents.
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pt, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(pt)
		b.WriteByte('\n')
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("no extractable text in %d pages", r.NumPage())
	}
	return out, nil
}
