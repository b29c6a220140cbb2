// Package research implements the iterative video research pipeline:
// transcript chunking, in-memory vector search over chunk embeddings,
// the multi-round search/assess/refine loop, and citation-ranked report
// assembly. Providers (catalog, transcripts, comments, model) are
// consumed through the interfaces declared in orchestrator.go.
package research

// VideoMetadata describes one video as returned by the catalog.
// Immutable once fetched; owned by the session that first recorded it.
type VideoMetadata struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    int    `json:"duration_seconds"`
	Views       int64  `json:"views"`
	Channel     string `json:"channel"`
	PublishedAt string `json:"published_at"`
}

// TranscriptSegment is one raw caption unit. Segments exist only
// between transcript fetch and chunk construction.
type TranscriptSegment struct {
	VideoID  string  `json:"video_id"`
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Chunk is the unit of retrieval: the joined text of consecutive
// segments, time-bounded, belonging to exactly one video. Chunks are
// append-only within a session; Video is denormalized from the catalog
// for prompt building and never consulted for citation rendering.
type Chunk struct {
	VideoID   string        `json:"video_id"`
	Text      string        `json:"text"`
	Start     float64       `json:"start"`
	End       float64       `json:"end"`
	Video     VideoMetadata `json:"video"`
	Embedding []float32     `json:"-"`
}

// Comment is one top-level viewer comment.
type Comment struct {
	Text        string `json:"text"`
	Author      string `json:"author"`
	Likes       int    `json:"likes"`
	PublishedAt string `json:"publish_date"`
}

// SearchResult pairs a chunk with its similarity to a query.
type SearchResult struct {
	Chunk      Chunk
	Similarity float64
}

// Result is what a completed research run returns to the caller.
type Result struct {
	Topic         string
	Report        string
	Iterations    int
	VideosIndexed int
	ChunksIndexed int
	SearchTerms   []string
}
