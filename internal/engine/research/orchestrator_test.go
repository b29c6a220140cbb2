package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// fakeCatalog serves fixed id lists per duration class and a fixed
// details map, recording every search term it sees.
type fakeCatalog struct {
	mu      sync.Mutex
	short   []string
	medium  []string
	details map[string]VideoMetadata
	terms   []string
	err     error
}

func (c *fakeCatalog) Search(_ context.Context, term, class string, _ int) ([]string, error) {
	c.mu.Lock()
	c.terms = append(c.terms, term)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if class == DurationShort {
		return c.short, nil
	}
	return c.medium, nil
}

func (c *fakeCatalog) Details(_ context.Context, ids []string) (map[string]VideoMetadata, error) {
	out := make(map[string]VideoMetadata)
	for _, id := range ids {
		if meta, ok := c.details[id]; ok {
			out[id] = meta
		}
	}
	return out, nil
}

// fakeTranscripts serves segments per video id; absent ids have no
// captions. Fetch counts are per id.
type fakeTranscripts struct {
	mu       sync.Mutex
	segments map[string][]TranscriptSegment
	fetches  map[string]int
}

func (f *fakeTranscripts) Fetch(_ context.Context, videoID string) ([]TranscriptSegment, error) {
	f.mu.Lock()
	if f.fetches == nil {
		f.fetches = make(map[string]int)
	}
	f.fetches[videoID]++
	f.mu.Unlock()
	segs, ok := f.segments[videoID]
	if !ok {
		return nil, ErrNoTranscript
	}
	return segs, nil
}

func (f *fakeTranscripts) count(videoID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[videoID]
}

type fakeComments struct {
	err error
}

func (f *fakeComments) Fetch(_ context.Context, videoID string, _ int) ([]Comment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []Comment{{Text: "great video about " + videoID, Author: "viewer", Likes: 3}}, nil
}

// fakeModel dispatches on the prompt kind. Assessments are consumed in
// order so multi-iteration runs can script different outcomes.
type fakeModel struct {
	mu          sync.Mutex
	terms       string
	summary     string
	assessments []string
	synthesis   string
	assessIdx   int
	calls       []string
}

func (m *fakeModel) Send(_ context.Context, prompt string, _ int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case strings.Contains(prompt, "generate TWO optimized YouTube search terms"):
		m.calls = append(m.calls, "terms")
		return m.terms, nil
	case strings.Contains(prompt, "Analyze this video content"):
		m.calls = append(m.calls, "summary")
		return m.summary, nil
	case strings.Contains(prompt, "Research Progress Assessment"):
		m.calls = append(m.calls, "assessment")
		resp := m.assessments[m.assessIdx]
		if m.assessIdx < len(m.assessments)-1 {
			m.assessIdx++
		}
		return resp, nil
	case strings.Contains(prompt, "Research Report Generation"):
		m.calls = append(m.calls, "report")
		return m.synthesis, nil
	}
	return "", errors.New("unrecognized prompt")
}

const (
	validTermsJSON   = `{"search_term_1": "bike gears explained", "search_term_2": "derailleur tuning", "rationale": "coverage"}`
	validSummaryJSON = `{"main_points": ["use light load"], "unique_insights": ["cable tension"], "community_sentiment": "positive", "credibility_assessment": "mechanic", "summary": "how to shift"}`
	finalAssessJSON  = `{"assessment": "covered", "gaps_identified": [], "search_term_1": "", "search_term_2": "", "search_rationale": "", "outline_updates": "# Findings\nkey detail"}`
	midAssessJSON    = `{"assessment": "partial", "gaps_identified": ["maintenance"], "search_term_1": "chain wear", "search_term_2": "cassette swap", "search_rationale": "gaps", "outline_updates": "# Findings\nso far"}`
)

func transcriptFor(videoID string) []TranscriptSegment {
	return []TranscriptSegment{
		{VideoID: videoID, Text: "shifting works best under light pedal load", Start: 0, Duration: 5},
		{VideoID: videoID, Text: "adjust the barrel until the chain stops rattling", Start: 5, Duration: 5},
	}
}

func testOrchestrator(catalog *fakeCatalog, transcripts *fakeTranscripts, model *fakeModel, store *Store) *Orchestrator {
	return &Orchestrator{
		Catalog:     catalog,
		Transcripts: transcripts,
		Comments:    &fakeComments{},
		Model:       model,
		Embedder:    &stubEmbedder{},
		Store:       store,
		Opts:        Options{MaxIterations: 1},
	}
}

func TestRunSingleIteration(t *testing.T) {
	catalog := &fakeCatalog{
		short:  []string{"v1", "v2"},
		medium: []string{"v3", "v4"},
		details: map[string]VideoMetadata{
			"v1": {ID: "v1", Title: "Shifting", Channel: "Bikes", Duration: 50},
			"v2": {ID: "v2", Title: "Silent", Channel: "Bikes", Duration: 40},
			"v3": {ID: "v3", Title: "Tuning", Channel: "Wrench", Duration: 1200},
			"v4": {ID: "v4", Title: "Marathon", Channel: "Wrench", Duration: 4000},
		},
	}
	// v2 has no captions, v4 exceeds the medium duration cap.
	transcripts := &fakeTranscripts{segments: map[string][]TranscriptSegment{
		"v1": transcriptFor("v1"),
		"v3": transcriptFor("v3"),
	}}
	model := &fakeModel{
		terms:       validTermsJSON,
		summary:     validSummaryJSON,
		assessments: []string{finalAssessJSON},
		synthesis:   "The research shows light-load shifting matters.",
	}
	store := NewStore()

	var stages []string
	var fracs []float64
	orch := testOrchestrator(catalog, transcripts, model, store)
	orch.Progress = func(stage string, fraction float64) {
		stages = append(stages, stage)
		fracs = append(fracs, fraction)
	}

	res, err := orch.Run(context.Background(), "key", "bike maintenance")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.VideosIndexed != 2 {
		t.Errorf("videos indexed = %d, want 2 (v1 and v3)", res.VideosIndexed)
	}
	if res.ChunksIndexed == 0 {
		t.Error("no chunks indexed")
	}
	if res.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", res.Iterations)
	}
	if want := []string{"bike gears explained", "derailleur tuning"}; len(res.SearchTerms) != 2 ||
		res.SearchTerms[0] != want[0] || res.SearchTerms[1] != want[1] {
		t.Errorf("search terms = %v, want %v", res.SearchTerms, want)
	}

	if !strings.HasPrefix(res.Report, "# Research Report: bike maintenance") {
		t.Errorf("report missing title: %q", res.Report[:min(80, len(res.Report))])
	}
	if !strings.Contains(res.Report, "light-load shifting matters") {
		t.Error("report missing synthesis")
	}
	if !strings.Contains(res.Report, "## Recommended Videos") {
		t.Error("report missing recommendations")
	}

	// The over-cap medium video is filtered before any fetch.
	if transcripts.count("v4") != 0 {
		t.Error("over-cap medium video was fetched")
	}
	// Each processed video is fetched exactly once.
	if transcripts.count("v1") != 1 || transcripts.count("v3") != 1 {
		t.Errorf("fetch counts v1=%d v3=%d, want 1 each", transcripts.count("v1"), transcripts.count("v3"))
	}

	if store.Active() != 0 {
		t.Errorf("session not cleaned up: %d active", store.Active())
	}

	// Progress is monotonic and ends at 1.
	for i := 1; i < len(fracs); i++ {
		if fracs[i] < fracs[i-1] {
			t.Errorf("progress regressed at %q: %v < %v", stages[i], fracs[i], fracs[i-1])
		}
	}
	if len(fracs) == 0 || fracs[len(fracs)-1] != 1 {
		t.Errorf("progress did not reach 1: %v", fracs)
	}
}

func TestRunDedupAcrossIterations(t *testing.T) {
	catalog := &fakeCatalog{
		short: []string{"v1"},
		details: map[string]VideoMetadata{
			"v1": {ID: "v1", Title: "Shifting", Duration: 50},
		},
	}
	transcripts := &fakeTranscripts{segments: map[string][]TranscriptSegment{
		"v1": transcriptFor("v1"),
	}}
	model := &fakeModel{
		terms:       validTermsJSON,
		summary:     validSummaryJSON,
		assessments: []string{midAssessJSON, finalAssessJSON},
		synthesis:   "synthesis",
	}
	store := NewStore()
	orch := testOrchestrator(catalog, transcripts, model, store)
	orch.Opts.MaxIterations = 2

	res, err := orch.Run(context.Background(), "key", "bike maintenance")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// The same video surfaces in both iterations but is indexed once.
	if res.VideosIndexed != 1 {
		t.Errorf("videos indexed = %d, want 1", res.VideosIndexed)
	}
	if transcripts.count("v1") != 1 {
		t.Errorf("transcript fetched %d times, want 1", transcripts.count("v1"))
	}

	// Initial terms plus the mid-run assessment's two new terms.
	want := []string{"bike gears explained", "derailleur tuning", "chain wear", "cassette swap"}
	if len(res.SearchTerms) != len(want) {
		t.Fatalf("search terms = %v, want %v", res.SearchTerms, want)
	}
	for i := range want {
		if res.SearchTerms[i] != want[i] {
			t.Errorf("term %d = %q, want %q", i, res.SearchTerms[i], want[i])
		}
	}
}

func TestRunMalformedModelResponseAborts(t *testing.T) {
	model := &fakeModel{terms: "not json at all"}
	store := NewStore()
	orch := testOrchestrator(&fakeCatalog{}, &fakeTranscripts{}, model, store)

	_, err := orch.Run(context.Background(), "key", "topic")
	if err == nil {
		t.Fatal("expected run to fail on malformed terms")
	}
	if !strings.Contains(err.Error(), "initial terms parse") {
		t.Errorf("unexpected error: %v", err)
	}
	if store.Active() != 0 {
		t.Errorf("failed run leaked a session: %d active", store.Active())
	}
}

func TestRunInvalidAssessmentAborts(t *testing.T) {
	catalog := &fakeCatalog{
		short:   []string{"v1"},
		details: map[string]VideoMetadata{"v1": {ID: "v1", Title: "Shifting", Duration: 50}},
	}
	transcripts := &fakeTranscripts{segments: map[string][]TranscriptSegment{"v1": transcriptFor("v1")}}
	// Mid-run assessment without new terms is invalid.
	model := &fakeModel{
		terms:       validTermsJSON,
		summary:     validSummaryJSON,
		assessments: []string{finalAssessJSON},
	}
	store := NewStore()
	orch := testOrchestrator(catalog, transcripts, model, store)
	orch.Opts.MaxIterations = 2

	_, err := orch.Run(context.Background(), "key", "topic")
	if err == nil {
		t.Fatal("expected run to fail on invalid mid-run assessment")
	}
	if !strings.Contains(err.Error(), "search_term") {
		t.Errorf("unexpected error: %v", err)
	}
	if store.Active() != 0 {
		t.Errorf("failed run leaked a session: %d active", store.Active())
	}
}

func TestRunDuplicateKeyRejected(t *testing.T) {
	store := NewStore()
	if _, err := store.Create("key", "earlier topic", 3, NewVectorIndex(&stubEmbedder{})); err != nil {
		t.Fatalf("pre-create: %v", err)
	}

	orch := testOrchestrator(&fakeCatalog{}, &fakeTranscripts{}, &fakeModel{}, store)
	_, err := orch.Run(context.Background(), "key", "topic")
	if !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
	// The pre-existing session survives the rejected run.
	if store.Active() != 1 {
		t.Errorf("active sessions = %d, want 1", store.Active())
	}
}

func TestRunCatalogFailureAbsorbed(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("quota exhausted")}
	model := &fakeModel{
		terms:       validTermsJSON,
		summary:     validSummaryJSON,
		assessments: []string{finalAssessJSON},
		synthesis:   "nothing found",
	}
	store := NewStore()
	orch := testOrchestrator(catalog, &fakeTranscripts{}, model, store)

	// Search failures leave the round empty but do not abort the run.
	res, err := orch.Run(context.Background(), "key", "topic")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.VideosIndexed != 0 || res.ChunksIndexed != 0 {
		t.Errorf("empty catalog produced %d videos, %d chunks", res.VideosIndexed, res.ChunksIndexed)
	}
	if !strings.Contains(res.Report, "# Research Report: topic") {
		t.Error("report not assembled for an empty run")
	}
}
