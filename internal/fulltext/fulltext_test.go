// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/orcid2taxid/internal/httputil"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

type stubProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) FullText(context.Context, types.PublicationRecord) (string, error) {
	s.calls++
	return s.text, s.err
}

func withPMCID(id string) types.PublicationRecord {
	r := types.PublicationRecord{Title: "Phage therapy in mice"}
	r.AddID(types.Identifier{Scheme: types.SchemePMCID, Value: id})
	return r
}

func TestChain_FirstSuccessWins(t *testing.T) {
	first := &stubProvider{name: "a", err: fmt.Errorf("%w: no PMCID", ErrTextUnavailable)}
	second := &stubProvider{name: "b", text: "Escherichia coli was grown."}
	third := &stubProvider{name: "c", text: "never reached"}

	text, err := Chain{first, second, third}.FullText(context.Background(), types.PublicationRecord{})
	require.NoError(t, err)
	assert.Equal(t, "Escherichia coli was grown.", text)
	assert.Equal(t, 1, first.calls)
	assert.Zero(t, third.calls)
}

func TestChain_AllFail(t *testing.T) {
	c := Chain{
		&stubProvider{name: "a", err: errors.New("boom")},
		&stubProvider{name: "b", text: "   "},
	}
	_, err := c.FullText(context.Background(), types.PublicationRecord{})
	require.ErrorIs(t, err, ErrTextUnavailable)
	assert.Contains(t, err.Error(), "a: boom")
	assert.Contains(t, err.Error(), "b: empty document")

	_, err = Chain{}.FullText(context.Background(), types.PublicationRecord{})
	assert.ErrorIs(t, err, ErrTextUnavailable)
}

func TestChain_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := Chain{&stubProvider{name: "a", err: context.Canceled}, &stubProvider{name: "b", text: "x"}}
	_, err := c.FullText(ctx, types.PublicationRecord{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTextUnavailable)
}

const sampleJATS = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE article PUBLIC "-//NLM//DTD JATS (Z39.96) Journal Archiving and Interchange DTD v1.2 20190208//EN" "JATS-archivearticle1.dtd">
<article xmlns:xlink="http://www.w3.org/1999/xlink">
  <front><article-meta><title-group><article-title>Front matter is ignored</article-title></title-group></article-meta></front>
  <body>
    <sec>
      <title>Methods</title>
      <p>We infected <italic>Mus musculus</italic> with <italic>Escherichia coli</italic> K-12 <xref ref-type="bibr" rid="r1">[1]</xref>.</p>
      <table-wrap><table><tr><td>Bacillus tablus</td></tr></table></table-wrap>
      <fig><caption><p>Growth of <italic>E. coli</italic> &amp; phage.</p></caption></fig>
    </sec>
  </body>
  <back><ref-list><ref>Cited organism Citus citus</ref></ref-list></back>
</article>`

func TestJATSText(t *testing.T) {
	text, err := jatsText([]byte(sampleJATS))
	require.NoError(t, err)

	lines := strings.Split(text, "\n")
	assert.Equal(t, "Methods", lines[0])
	assert.Contains(t, text, "We infected Mus musculus with Escherichia coli K-12 .")
	assert.Contains(t, text, "Growth of E. coli & phage.")
	assert.NotContains(t, text, "Front matter")
	assert.NotContains(t, text, "[1]")
	assert.NotContains(t, text, "tablus")
	assert.NotContains(t, text, "Citus")

	_, err = jatsText([]byte(`<article><front/></article>`))
	assert.Error(t, err)
}

func TestEuropePMCProvider(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Path != "/PMC7000001/fullTextXML" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, sampleJATS)
	}))
	defer ts.Close()
	old := europePMCRestBase
	europePMCRestBase = ts.URL
	defer func() { europePMCRestBase = old }()

	p := &EuropePMCProvider{Client: ts.Client()}

	text, err := p.FullText(context.Background(), withPMCID("PMC7000001"))
	require.NoError(t, err)
	assert.Equal(t, "/PMC7000001/fullTextXML", gotPath)
	assert.Contains(t, text, "Escherichia coli")

	_, err = p.FullText(context.Background(), withPMCID("PMC404"))
	assert.ErrorIs(t, err, ErrTextUnavailable)

	_, err = p.FullText(context.Background(), types.PublicationRecord{Title: "no ids"})
	assert.ErrorIs(t, err, ErrTextUnavailable)
}

func TestDownload_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	p := &PDFProvider{Client: ts.Client(), Config: types.HTTPConfig{Timeout: 50 * time.Millisecond, MaxRetries: 1}}

	start := time.Now()
	_, err := p.FullText(context.Background(), types.PublicationRecord{FullTextURL: ts.URL + "/slow.pdf"})
	assert.ErrorIs(t, err, ErrTextUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

// minimalPDF builds a one-page PDF whose content stream shows text.
func minimalPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

func TestPDFText(t *testing.T) {
	text, err := pdfText(minimalPDF("Escherichia coli was grown overnight"))
	require.NoError(t, err)
	assert.Contains(t, text, "Escherichia coli")

	_, err = pdfText([]byte("%PDF-1.4\ngarbage"))
	assert.Error(t, err)
}

func TestPDFProvider_DirectURL(t *testing.T) {
	doc := minimalPDF("Bacillus subtilis biofilms")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/paper.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write(doc)
		case "/landing.html":
			fmt.Fprint(w, "<html>landing page</html>")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	p := &PDFProvider{Client: ts.Client()}

	text, err := p.FullText(context.Background(), types.PublicationRecord{FullTextURL: ts.URL + "/paper.pdf"})
	require.NoError(t, err)
	assert.Contains(t, text, "Bacillus subtilis")

	_, err = p.FullText(context.Background(), types.PublicationRecord{FullTextURL: ts.URL + "/landing.html"})
	assert.ErrorIs(t, err, ErrTextUnavailable)
	assert.Contains(t, err.Error(), "not a PDF")

	_, err = p.FullText(context.Background(), types.PublicationRecord{FullTextURL: ts.URL + "/gone.pdf"})
	assert.ErrorIs(t, err, ErrTextUnavailable)

	small := &PDFProvider{Client: ts.Client(), MaxBytes: 16}
	_, err = small.FullText(context.Background(), types.PublicationRecord{FullTextURL: ts.URL + "/paper.pdf"})
	assert.ErrorIs(t, err, ErrTextUnavailable)
}

func TestPDFProvider_OpenAlexResolution(t *testing.T) {
	doc := minimalPDF("Candida auris isolates")
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/files/oa.pdf":
			w.Write(doc)
		case strings.HasSuffix(r.URL.Path, "10.1000/oa"):
			assert.Equal(t, "curator@example.org", r.URL.Query().Get("mailto"))
			fmt.Fprintf(w, `{"best_oa_location": {"pdf_url": "%s/files/oa.pdf"}}`, ts.URL)
		case strings.HasSuffix(r.URL.Path, "10.1000/closed"):
			fmt.Fprint(w, `{"best_oa_location": null}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()
	old := openAlexWorkBase
	openAlexWorkBase = ts.URL + "/works/"
	defer func() { openAlexWorkBase = old }()

	p := &PDFProvider{Client: ts.Client(), Email: "curator@example.org"}
	rec := func(doi string) types.PublicationRecord {
		var r types.PublicationRecord
		r.AddID(types.Identifier{Scheme: types.SchemeDOI, Value: doi})
		return r
	}

	text, err := p.FullText(context.Background(), rec("10.1000/oa"))
	require.NoError(t, err)
	assert.Contains(t, text, "Candida auris")

	_, err = p.FullText(context.Background(), rec("10.1000/closed"))
	assert.ErrorIs(t, err, ErrTextUnavailable)

	_, err = p.FullText(context.Background(), rec("10.1000/unknown"))
	assert.ErrorIs(t, err, ErrTextUnavailable)

	_, err = p.FullText(context.Background(), types.PublicationRecord{Title: "no DOI"})
	assert.ErrorIs(t, err, ErrTextUnavailable)
}
