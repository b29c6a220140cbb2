package research

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// Typed results for the JSON prompt kinds. Each carries the exact key
// contract the prompt demands and a Validate method run at the parse
// boundary; a malformed or incomplete response aborts the session
// rather than propagating missing fields downstream.

// SearchTerms is the response of the term-generation prompt.
type SearchTerms struct {
	Term1     string `json:"search_term_1"`
	Term2     string `json:"search_term_2"`
	Rationale string `json:"rationale"`
}

// Validate checks that both terms are present.
func (t *SearchTerms) Validate() error {
	if strings.TrimSpace(t.Term1) == "" || strings.TrimSpace(t.Term2) == "" {
		return fmt.Errorf("missing search_term_1 or search_term_2")
	}
	return nil
}

// VideoSummary is the response of the per-video summary prompt.
// VideoID and Title are stamped by the orchestrator, not the model.
type VideoSummary struct {
	VideoID            string   `json:"-"`
	Title              string   `json:"-"`
	MainPoints         []string `json:"main_points"`
	UniqueInsights     []string `json:"unique_insights"`
	CommunitySentiment string   `json:"community_sentiment"`
	Credibility        string   `json:"credibility_assessment"`
	Summary            string   `json:"summary"`
}

// Validate checks the fields the assessment prompt depends on.
func (s *VideoSummary) Validate() error {
	if strings.TrimSpace(s.Summary) == "" {
		return fmt.Errorf("missing summary")
	}
	if len(s.MainPoints) == 0 {
		return fmt.Errorf("missing main_points")
	}
	return nil
}

// Assessment is the response of the per-iteration assessment prompt.
// OutlineUpdates replaces the session outline wholesale.
type Assessment struct {
	Assessment     string   `json:"assessment"`
	Gaps           []string `json:"gaps_identified"`
	Term1          string   `json:"search_term_1"`
	Term2          string   `json:"search_term_2"`
	Rationale      string   `json:"search_rationale"`
	OutlineUpdates string   `json:"outline_updates"`
}

// Validate checks required fields. New search terms are only required
// while further iterations remain.
func (a *Assessment) Validate(final bool) error {
	if strings.TrimSpace(a.Assessment) == "" {
		return fmt.Errorf("missing assessment")
	}
	if strings.TrimSpace(a.OutlineUpdates) == "" {
		return fmt.Errorf("missing outline_updates")
	}
	if !final && (strings.TrimSpace(a.Term1) == "" || strings.TrimSpace(a.Term2) == "") {
		return fmt.Errorf("missing search_term_1 or search_term_2")
	}
	return nil
}

// decodeResponse parses a model response into T. Fences are stripped
// defensively; anything that still fails to parse is a hard error
// carrying a snippet of the raw response.
func decodeResponse[T any](kind, raw string) (T, error) {
	var out T
	clean := engine.StripFences(raw)
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return out, fmt.Errorf("%s parse: %w (raw: %s)", kind, err, engine.TruncateRunes(clean, 200, "..."))
	}
	return out, nil
}
