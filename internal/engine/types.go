package engine

// --- MCP tool input types ---

type ResearchInput struct {
	Topic         string `json:"topic" jsonschema:"Research topic or question to investigate"`
	MaxIterations int    `json:"max_iterations,omitempty" jsonschema:"Research rounds before the report is assembled (default: 3, max: 5)"`
}

type HistoryInput struct {
	Limit       int    `json:"limit,omitempty" jsonschema:"Max runs to return (default: 20)"`
	TopicFilter string `json:"topic_filter,omitempty" jsonschema:"Case-sensitive topic substring filter"`
}

type HistoryGetInput struct {
	ID int64 `json:"id" jsonschema:"Run ID from research_history"`
}

// --- MCP tool output types (JSON responses) ---

type ResearchOutput struct {
	Topic         string   `json:"topic"`
	Report        string   `json:"report"` // markdown with citations and recommended videos
	Iterations    int      `json:"iterations"`
	VideosIndexed int      `json:"videos_indexed"`
	ChunksIndexed int      `json:"chunks_indexed"`
	SearchTerms   []string `json:"search_terms"`
	DurationMs    int64    `json:"duration_ms"`
}

type HistoryRunItem struct {
	ID        int64  `json:"id"`
	Topic     string `json:"topic"`
	Videos    int    `json:"videos"`
	Chunks    int    `json:"chunks"`
	CreatedAt string `json:"created_at"`
	Excerpt   string `json:"excerpt"` // leading slice of the stored report
}

type HistoryOutput struct {
	Runs  []HistoryRunItem `json:"runs"`
	Total int              `json:"total"`
}
