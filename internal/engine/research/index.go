package research

import (
	"context"
	"fmt"
	"sort"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/embedding"
)

// VectorIndex is a flat in-memory index over chunk embeddings using
// squared Euclidean distance. Chunks and vectors are parallel slices
// grown together in Add, so the row count always equals the chunk
// count and a search hit maps back to its chunk by row index.
//
// Insertion only appends; the only other mutation is a full Reset.
// Not safe for concurrent mutation — each session owns one index and
// writes to it from a single goroutine.
type VectorIndex struct {
	engine  embedding.Engine
	chunks  []Chunk
	vectors [][]float32
}

// NewVectorIndex returns an empty index embedding through eng.
func NewVectorIndex(eng embedding.Engine) *VectorIndex {
	return &VectorIndex{engine: eng}
}

// Len returns the number of indexed chunks.
func (x *VectorIndex) Len() int { return len(x.chunks) }

// Reset drops all chunks and vectors.
func (x *VectorIndex) Reset() {
	x.chunks = nil
	x.vectors = nil
}

// Chunks returns the stored chunks in insertion order.
func (x *VectorIndex) Chunks() []Chunk { return x.chunks }

// VideoChunks returns the stored chunks belonging to videoID, in
// insertion (transcript) order.
func (x *VectorIndex) VideoChunks(videoID string) []Chunk {
	var out []Chunk
	for _, c := range x.chunks {
		if c.VideoID == videoID {
			out = append(out, c)
		}
	}
	return out
}

// Add embeds the chunk texts and appends chunks and vectors together.
// On embedding failure nothing is appended, keeping the two slices in
// lockstep.
func (x *VectorIndex) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	engine.IncrEmbeddings()
	vecs, err := x.engine.EmbedDocs(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vecs), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}
	x.vectors = append(x.vectors, vecs...)
	x.chunks = append(x.chunks, chunks...)
	return nil
}

// Search returns up to k chunks ranked by descending similarity to
// query. A positive threshold drops candidates below it, so the result
// may be shorter than k, including empty. An empty index returns an
// empty result, not an error.
func (x *VectorIndex) Search(ctx context.Context, query string, k int, threshold float64) ([]SearchResult, error) {
	if len(x.chunks) == 0 {
		return nil, nil
	}
	engine.IncrEmbeddings()
	qv, err := x.engine.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return rankByDistance(qv, x.vectors, x.chunks, k, threshold), nil
}

// SearchVideo is Search restricted to one video's chunks. The rows are
// copied into an ephemeral sub-index first, so chunks of other videos
// cannot appear in the result regardless of scores.
func (x *VectorIndex) SearchVideo(ctx context.Context, videoID, query string, k int) ([]SearchResult, error) {
	var chunks []Chunk
	var vectors [][]float32
	for i, c := range x.chunks {
		if c.VideoID == videoID {
			chunks = append(chunks, c)
			vectors = append(vectors, x.vectors[i])
		}
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	engine.IncrEmbeddings()
	qv, err := x.engine.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return rankByDistance(qv, vectors, chunks, k, 0), nil
}

// rankByDistance sorts candidates by ascending squared L2 distance
// (stable, so insertion order breaks ties), converts distance to the
// 1/(1+d) similarity heuristic, applies the threshold, and truncates
// to k. The similarity is an ordering heuristic, not a calibrated
// probability.
func rankByDistance(qv []float32, vectors [][]float32, chunks []Chunk, k int, threshold float64) []SearchResult {
	type row struct {
		idx  int
		dist float64
	}
	rows := make([]row, len(vectors))
	for i, v := range vectors {
		rows[i] = row{idx: i, dist: sqDistance(qv, v)}
	}
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].dist < rows[b].dist })

	if k <= 0 || k > len(rows) {
		k = len(rows)
	}
	results := make([]SearchResult, 0, k)
	for _, r := range rows[:k] {
		sim := 1 / (1 + r.dist)
		if threshold > 0 && sim < threshold {
			continue
		}
		results = append(results, SearchResult{Chunk: chunks[r.idx], Similarity: sim})
	}
	return results
}

// sqDistance returns the squared Euclidean distance between a and b.
// Vectors of unequal length compare over the shorter prefix; engines
// produce fixed-width vectors so this only matters for corrupt input.
func sqDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
