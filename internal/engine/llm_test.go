package engine

import "testing"

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "bare json untouched",
			raw:  `{"search_term_1": "a"}`,
			want: `{"search_term_1": "a"}`,
		},
		{
			name: "json fence",
			raw:  "```json\n{\"assessment\": \"ok\"}\n```",
			want: `{"assessment": "ok"}`,
		},
		{
			name: "plain fence",
			raw:  "```\n{\"summary\": \"x\"}\n```",
			want: `{"summary": "x"}`,
		},
		{
			name: "surrounding whitespace",
			raw:  "  \n```json\n{}\n```  ",
			want: "{}",
		},
		{
			name: "opening fence only",
			raw:  "```json\n{\"a\": 1}",
			want: `{"a": 1}`,
		},
		{
			name: "empty input",
			raw:  "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.raw); got != tt.want {
				t.Errorf("StripFences() = %q, want %q", got, tt.want)
			}
		})
	}
}
