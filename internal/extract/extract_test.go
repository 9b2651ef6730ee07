// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/orcid2taxid/internal/httputil"
	"github.com/pdiddy/orcid2taxid/internal/watchlist"
	"github.com/pdiddy/orcid2taxid/pkg/types"
)

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	httputil.RetryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

// --- stubs ---

type oracleFunc func(ctx context.Context, text string, watch []string) ([]Candidate, error)

func (f oracleFunc) Extract(ctx context.Context, text string, watch []string) ([]Candidate, error) {
	return f(ctx, text, watch)
}

// countingOracle returns the same candidates on every call.
type countingOracle struct {
	calls      atomic.Int32
	candidates []Candidate
}

func (o *countingOracle) Extract(context.Context, string, []string) ([]Candidate, error) {
	o.calls.Add(1)
	return o.candidates, nil
}

// failNTimesOracle fails the first N calls, then succeeds.
type failNTimesOracle struct {
	failures  int
	callCount int
}

func (f *failNTimesOracle) Extract(context.Context, string, []string) ([]Candidate, error) {
	f.callCount++
	if f.callCount <= f.failures {
		return nil, fmt.Errorf("transient error (call %d)", f.callCount)
	}
	return []Candidate{{Name: "Escherichia coli", WorkType: "wet_lab", Confidence: 0.9}}, nil
}

type textProvider struct {
	text  string
	err   error
	calls atomic.Int32
}

func (p *textProvider) Name() string { return "stub" }

func (p *textProvider) FullText(context.Context, types.PublicationRecord) (string, error) {
	p.calls.Add(1)
	return p.text, p.err
}

type finderFunc func(ctx context.Context, text string) ([]Found, error)

func (f finderFunc) Find(ctx context.Context, text string) ([]Found, error) { return f(ctx, text) }

// found locates verbatim in text and reports it with rune offsets.
func found(text, verbatim, name string, cardinality int, odds float64) Found {
	i := strings.Index(text, verbatim)
	start := len([]rune(text[:i]))
	return Found{
		Verbatim:    verbatim,
		Name:        name,
		Cardinality: cardinality,
		OddsLog10:   odds,
		Start:       start,
		End:         start + len([]rune(verbatim)),
	}
}

func openAccessRecord() types.PublicationRecord {
	return types.PublicationRecord{
		Source:            "europepmc",
		IDs:               []types.Identifier{{Scheme: types.SchemeDOI, Value: "10.1000/oa"}},
		Title:             "Plague and coliform co-infection",
		Abstract:          "We studied Escherichia coli.",
		Date:              time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		FullTextAvailable: true,
	}
}

const articleText = "We grew Escherichia coli K-12 in broth. E. coli cells were then exposed to Yersinia pestis lysate. Bacillus spores were absent."

// --- callWithRetry ---

func TestCallWithRetry(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		maxRetries int
		wantErr    bool
	}{
		{"succeeds first try", 0, 3, false},
		{"succeeds after 2 failures", 2, 3, false},
		{"fails after exhausting retries", 4, 3, true},
		{"succeeds on last retry", 3, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &failNTimesOracle{failures: tt.failures}
			e := &Extractor{Oracle: oracle}

			_, err := e.callWithRetry(context.Background(), "test text", tt.maxRetries)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrExtraction)
				assert.Equal(t, tt.maxRetries+1, oracle.callCount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.failures+1, oracle.callCount)
		})
	}
}

func TestCallWithRetry_InvalidResponseIsRetried(t *testing.T) {
	calls := 0
	oracle := oracleFunc(func(context.Context, string, []string) ([]Candidate, error) {
		calls++
		if calls == 1 {
			return []Candidate{{Name: "Escherichia coli", Confidence: 1.5}}, nil
		}
		return []Candidate{{Name: "Escherichia coli", Confidence: 0.5}}, nil
	})
	e := &Extractor{Oracle: oracle}

	got, err := e.callWithRetry(context.Background(), "text", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, got, 1)
}

// --- full-text tier ---

func TestExtract_FullTextTier(t *testing.T) {
	provider := &textProvider{text: articleText}
	finder := finderFunc(func(_ context.Context, text string) ([]Found, error) {
		return []Found{
			found(text, "Escherichia coli", "Escherichia coli", 2, 0),
			found(text, "E. coli", "E. coli", 2, 1),
			found(text, "Yersinia pestis", "Yersinia pestis", 2, 3),
			found(text, "Bacillus", "Bacillus", 1, 2),
		}, nil
	})
	oracle := &countingOracle{}
	e := &Extractor{FullText: provider, Finder: finder, Oracle: oracle, Watchlist: watchlist.Default()}

	list, err := e.Extract(context.Background(), openAccessRecord())
	require.NoError(t, err)

	assert.Equal(t, types.StatusOK, list.Status)
	assert.Equal(t, []types.ExtractionMethod{types.MethodFullText}, list.Tiers)
	assert.Equal(t, "doi:10.1000/oa", list.Publication)
	assert.Zero(t, oracle.calls.Load(), "abstract tier must not run when full text yields organisms")

	require.Len(t, list.Mentions, 2)
	ecoli, pestis := list.Mentions[0], list.Mentions[1]

	assert.Equal(t, "Escherichia coli", ecoli.SearchableName)
	assert.Equal(t, types.MethodFullText, ecoli.Method)
	assert.Equal(t, types.WorkUndetermined, ecoli.WorkType)
	assert.InDelta(t, 0.5, ecoli.Confidence, 1e-9)
	assert.Contains(t, ecoli.Evidence, "Escherichia coli")
	assert.LessOrEqual(t, len([]rune(ecoli.Evidence)), types.MaxEvidenceLen)
	assert.False(t, ecoli.Watchlisted)

	assert.Equal(t, "Yersinia pestis", pestis.SearchableName)
	assert.True(t, pestis.Watchlisted)
	assert.InDelta(t, 0.999, pestis.Confidence, 1e-9)
}

func TestExtract_FallsBackToAbstract(t *testing.T) {
	abstractOracle := func() *countingOracle {
		return &countingOracle{candidates: []Candidate{
			{Name: "E. coli", WorkType: "wet_lab", Confidence: 0.8},
		}}
	}

	t.Run("full text unavailable", func(t *testing.T) {
		provider := &textProvider{err: errors.New("no open-access copy")}
		oracle := abstractOracle()
		e := &Extractor{FullText: provider, Finder: finderFunc(nil), Oracle: oracle}

		list, err := e.Extract(context.Background(), openAccessRecord())
		require.NoError(t, err)
		assert.Equal(t, []types.ExtractionMethod{types.MethodFullText, types.MethodAbstractOnly}, list.Tiers)
		assert.Equal(t, int32(1), oracle.calls.Load())
		require.Len(t, list.Mentions, 1)
		assert.Equal(t, types.MethodAbstractOnly, list.Mentions[0].Method)
	})

	t.Run("full text finds nothing", func(t *testing.T) {
		provider := &textProvider{text: articleText}
		finder := finderFunc(func(_ context.Context, text string) ([]Found, error) {
			return []Found{found(text, "Bacillus", "Bacillus", 1, 2)}, nil
		})
		oracle := abstractOracle()
		e := &Extractor{FullText: provider, Finder: finder, Oracle: oracle}

		list, err := e.Extract(context.Background(), openAccessRecord())
		require.NoError(t, err)
		assert.Equal(t, []types.ExtractionMethod{types.MethodFullText, types.MethodAbstractOnly}, list.Tiers)
		require.Len(t, list.Mentions, 1)
		assert.Equal(t, "Escherichia coli", list.Mentions[0].SearchableName)
	})

	t.Run("no full text reported", func(t *testing.T) {
		provider := &textProvider{text: articleText}
		oracle := abstractOracle()
		e := &Extractor{FullText: provider, Finder: finderFunc(nil), Oracle: oracle}

		r := openAccessRecord()
		r.FullTextAvailable = false
		list, err := e.Extract(context.Background(), r)
		require.NoError(t, err)
		assert.Equal(t, []types.ExtractionMethod{types.MethodAbstractOnly}, list.Tiers)
		assert.Zero(t, provider.calls.Load())
	})
}

// --- abstract tier ---

func TestExtract_AbstractNormalization(t *testing.T) {
	long := strings.Repeat("grown at 37 degrees ", 12)
	oracle := &countingOracle{candidates: []Candidate{
		{Name: "E. coli", WorkType: "Wet lab", Evidence: long, Confidence: 0.8},
		{Name: "Ebola", SearchableName: "Ebola virus", WorkType: "computational", Confidence: 0.6},
		{Name: "Escherichia coli", WorkType: "wet_lab", Confidence: 0.7},
		{Name: "Hantaan virus", SearchableName: "Orthohantavirus hantanense", OnList: true, WorkType: "", Confidence: 0.4},
	}}
	e := &Extractor{Oracle: oracle, Watchlist: watchlist.Default()}

	r := openAccessRecord()
	r.FullTextAvailable = false
	list, err := e.Extract(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, list.Mentions, 3)

	ecoli := list.Mentions[0]
	assert.Equal(t, "E. coli", ecoli.Name)
	assert.Equal(t, "Escherichia coli", ecoli.SearchableName)
	assert.Equal(t, types.WorkWetLab, ecoli.WorkType)
	assert.Len(t, []rune(ecoli.Evidence), types.MaxEvidenceLen)
	assert.False(t, ecoli.Watchlisted)

	ebola := list.Mentions[1]
	assert.Equal(t, types.WorkComputational, ebola.WorkType)
	assert.True(t, ebola.Watchlisted)

	hanta := list.Mentions[2]
	assert.Equal(t, types.WorkUndetermined, hanta.WorkType)
	assert.True(t, hanta.Watchlisted)
}

func TestExtract_AbstractFailures(t *testing.T) {
	t.Run("blank text", func(t *testing.T) {
		oracle := &countingOracle{}
		e := &Extractor{Oracle: oracle}

		list, err := e.Extract(context.Background(), types.PublicationRecord{
			IDs: []types.Identifier{{Scheme: types.SchemePMID, Value: "1"}},
		})
		require.NoError(t, err)
		assert.Equal(t, types.StatusExtractionFailed, list.Status)
		assert.NotNil(t, list.Mentions)
		assert.Empty(t, list.Mentions)
		assert.Zero(t, oracle.calls.Load())
	})

	t.Run("persistently invalid", func(t *testing.T) {
		oracle := &countingOracle{candidates: []Candidate{
			{Name: "Escherichia coli", WorkType: "fieldwork", Confidence: 0.5},
		}}
		e := &Extractor{Oracle: oracle, MaxRetries: 2}

		list, err := e.Extract(context.Background(), openAccessRecord())
		require.NoError(t, err)
		assert.Equal(t, types.StatusExtractionFailed, list.Status)
		assert.Contains(t, list.Error, "invalid work type")
		assert.Equal(t, int32(3), oracle.calls.Load())
	})

	t.Run("no oracle", func(t *testing.T) {
		e := &Extractor{}
		list, err := e.Extract(context.Background(), openAccessRecord())
		require.NoError(t, err)
		assert.Equal(t, types.StatusExtractionFailed, list.Status)
	})
}

// An oracle that never answers is cut off by the per-call timeout and the
// publication is reported as failed rather than hanging the run.
func TestExtract_OracleTimeout(t *testing.T) {
	var calls atomic.Int32
	oracle := oracleFunc(func(ctx context.Context, _ string, _ []string) ([]Candidate, error) {
		calls.Add(1)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	e := &Extractor{Oracle: oracle, MaxRetries: 1, OracleTimeout: 20 * time.Millisecond}

	r := openAccessRecord()
	r.FullTextAvailable = false

	start := time.Now()
	list, err := e.Extract(context.Background(), r)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Equal(t, types.StatusExtractionFailed, list.Status)
	assert.Contains(t, list.Error, ErrExtraction.Error())
	assert.Empty(t, list.Mentions)
	assert.Equal(t, int32(2), calls.Load())
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	oracle := oracleFunc(func(ctx context.Context, _ string, _ []string) ([]Candidate, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})
	e := &Extractor{Oracle: oracle}

	_, err := e.Extract(ctx, openAccessRecord())
	assert.ErrorIs(t, err, context.Canceled)
}

// --- helpers ---

func TestCandidateWorkType(t *testing.T) {
	tests := []struct {
		in   string
		want types.WorkType
	}{
		{"wet_lab", types.WorkWetLab},
		{"Wet-lab experiments", types.WorkWetLab},
		{"computational", types.WorkComputational},
		{"Computation", types.WorkComputational},
		{"undetermined", types.WorkUndetermined},
		{"", types.WorkUndetermined},
		{"fieldwork", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Candidate{WorkType: tt.in}.workType(), tt.in)
	}
}

func TestDecodeCandidates(t *testing.T) {
	got, err := decodeCandidates("```json\n{\"organisms\": [{\"original_name\": \"E. coli\", \"searchable_name\": \"Escherichia coli\", \"work_type\": \"wet_lab\", \"confidence\": 0.9}], \"justification\": \"grown\"}\n```")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "E. coli", got[0].Name)
	assert.Equal(t, "Escherichia coli", got[0].SearchableName)

	got, err = decodeCandidates(`{"organisms": [], "no_organisms_found": true}`)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = decodeCandidates("I could not find any organisms.")
	assert.Error(t, err)

	_, err = decodeCandidates(`{"organisms": [}`)
	assert.Error(t, err)
}

func TestOddsConfidence(t *testing.T) {
	assert.InDelta(t, 0.5, oddsConfidence(0), 1e-9)
	assert.InDelta(t, 0.909, oddsConfidence(1), 1e-9)
	assert.InDelta(t, 0.091, oddsConfidence(-1), 1e-9)
}

func TestSnippet(t *testing.T) {
	text := strings.Repeat("a ", 200) + "Yersinia pestis" + strings.Repeat(" b", 200)
	f := found(text, "Yersinia pestis", "Yersinia pestis", 2, 0)

	got := snippet(text, f.Start, f.End)
	assert.Contains(t, got, "Yersinia pestis")
	assert.LessOrEqual(t, len([]rune(got)), types.MaxEvidenceLen)

	assert.Empty(t, snippet(text, 10, 5))
	assert.Empty(t, snippet("short", 0, 100))
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := renderPrompt("Plague in mice\n\nWe infected mice.", []string{"Yersinia pestis", "Ebola virus"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "We infected mice.")
	assert.Contains(t, prompt, "- Yersinia pestis\n")
	assert.Contains(t, prompt, "- Ebola virus\n")
	assert.Contains(t, prompt, "searchable_name")
}

// --- backends ---

func TestClaudeBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "We infected mice.")

		reply := "```json\n{\"organisms\": [{\"original_name\": \"mice\", \"searchable_name\": \"Mus musculus\", \"work_type\": \"wet_lab\", \"confidence\": 0.7}]}\n```"
		json.NewEncoder(w).Encode(claudeResponse{Content: []claudeContent{{Type: "text", Text: reply}}})
	}))
	defer srv.Close()

	orig := claudeAPIURL
	claudeAPIURL = srv.URL
	defer func() { claudeAPIURL = orig }()

	b := &ClaudeBackend{APIKey: "test-key", Model: "test-model", Client: srv.Client()}
	got, err := b.Extract(context.Background(), "We infected mice.", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Mus musculus", got[0].SearchableName)
}

func TestClaudeBackend_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("empty") != "" {
			json.NewEncoder(w).Encode(claudeResponse{})
			return
		}
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	orig := claudeAPIURL
	defer func() { claudeAPIURL = orig }()
	b := &ClaudeBackend{APIKey: "k", Model: "m", Client: srv.Client()}

	claudeAPIURL = srv.URL
	_, err := b.Extract(context.Background(), "text", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	claudeAPIURL = srv.URL + "?empty=1"
	_, err = b.Extract(context.Background(), "text", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text content")
}

func TestGeminiBackend_RequiresKey(t *testing.T) {
	_, err := (&GeminiBackend{Model: "gemini-2.0-flash"}).Extract(context.Background(), "text", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestGNFinder(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gnfinderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, articleText, req.Text, "request body must survive retries")

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"names": [
			{"verbatim": "Escherichia coli", "name": "Escherichia coli", "cardinality": 2, "oddsLog10": 8.2, "start": 8, "end": 24},
			{"verbatim": "Bacillus", "name": "Bacillus", "cardinality": 1, "oddsLog10": 1.1, "start": 100, "end": 108}
		]}`)
	}))
	defer srv.Close()

	f := &GNFinder{URL: srv.URL, Client: srv.Client()}
	got, err := f.Find(context.Background(), articleText)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, got, 2)
	assert.Equal(t, Found{Verbatim: "Escherichia coli", Name: "Escherichia coli", Cardinality: 2, OddsLog10: 8.2, Start: 8, End: 24}, got[0])
	assert.Equal(t, 1, got[1].Cardinality)
}

func TestGNFinder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad text", http.StatusBadRequest)
	}))
	defer srv.Close()

	orig := gnfinderURL
	gnfinderURL = srv.URL
	defer func() { gnfinderURL = orig }()

	_, err := (&GNFinder{Client: srv.Client()}).Find(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestGNFinder_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := &GNFinder{URL: srv.URL, Client: srv.Client(), Config: types.HTTPConfig{Timeout: 50 * time.Millisecond, MaxRetries: 1}}

	start := time.Now()
	_, err := f.Find(context.Background(), articleText)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
