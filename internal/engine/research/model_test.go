package research

import (
	"strings"
	"testing"
)

func TestDecodeResponseStripsFences(t *testing.T) {
	raw := "```json\n{\"search_term_1\": \"a\", \"search_term_2\": \"b\", \"rationale\": \"r\"}\n```"
	got, err := decodeResponse[SearchTerms]("initial terms", raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Term1 != "a" || got.Term2 != "b" {
		t.Errorf("wrong terms: %+v", got)
	}
}

func TestDecodeResponseMalformed(t *testing.T) {
	_, err := decodeResponse[SearchTerms]("initial terms", "I could not produce JSON, sorry")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "initial terms parse") {
		t.Errorf("error lacks kind label: %v", err)
	}
	if !strings.Contains(err.Error(), "I could not produce JSON") {
		t.Errorf("error lacks raw snippet: %v", err)
	}
}

func TestSearchTermsValidate(t *testing.T) {
	tests := []struct {
		name  string
		terms SearchTerms
		ok    bool
	}{
		{"both present", SearchTerms{Term1: "a", Term2: "b"}, true},
		{"first missing", SearchTerms{Term2: "b"}, false},
		{"second blank", SearchTerms{Term1: "a", Term2: "  "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.terms.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("got err %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestVideoSummaryValidate(t *testing.T) {
	ok := VideoSummary{Summary: "s", MainPoints: []string{"p"}}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid summary rejected: %v", err)
	}
	noSummary := VideoSummary{MainPoints: []string{"p"}}
	if err := noSummary.Validate(); err == nil {
		t.Error("summary-less response accepted")
	}
	noPoints := VideoSummary{Summary: "s"}
	if err := noPoints.Validate(); err == nil {
		t.Error("pointless response accepted")
	}
}

func TestAssessmentValidate(t *testing.T) {
	full := Assessment{Assessment: "a", OutlineUpdates: "# O", Term1: "t1", Term2: "t2"}
	if err := full.Validate(false); err != nil {
		t.Errorf("full assessment rejected: %v", err)
	}

	noTerms := Assessment{Assessment: "a", OutlineUpdates: "# O"}
	if err := noTerms.Validate(false); err == nil {
		t.Error("term-less assessment accepted mid-run")
	}
	// In the final iteration no new terms are needed.
	if err := noTerms.Validate(true); err != nil {
		t.Errorf("final assessment without terms rejected: %v", err)
	}

	noOutline := Assessment{Assessment: "a", Term1: "t1", Term2: "t2"}
	if err := noOutline.Validate(false); err == nil {
		t.Error("outline-less assessment accepted")
	}
}
