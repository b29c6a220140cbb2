package research

import (
	"regexp"
	"strings"
)

// Chunking defaults, in words.
const (
	DefaultChunkSize = 300
	DefaultOverlap   = 50
)

// Non-speech caption artifacts stripped before chunking.
var captionArtifacts = []string{
	"[Music]", "[Applause]", "[Laughter]", "[Background Noise]", "[Silence]",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// CleanSegments normalizes caption text: artifacts removed, whitespace
// runs collapsed. Segments whose text cleans away entirely are dropped
// so no empty-text chunk can ever be produced.
func CleanSegments(segs []TranscriptSegment) []TranscriptSegment {
	out := make([]TranscriptSegment, 0, len(segs))
	for _, s := range segs {
		text := s.Text
		for _, a := range captionArtifacts {
			text = strings.ReplaceAll(text, a, "")
		}
		text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
		if text == "" {
			continue
		}
		s.Text = text
		out = append(out, s)
	}
	return out
}

// ChunkSegments splits segments into chunks of at least chunkSize words
// (except possibly the last). Each chunk spans its first segment's
// start through its last segment's start plus duration, and its text is
// the space-joined segment texts. Consecutive chunks share a tail
// suffix of whole segments totaling at most overlap words. A non-empty
// remainder is emitted as a final chunk even when under chunkSize, so a
// transcript shorter than chunkSize becomes exactly one chunk. An empty
// input yields no chunks, which callers treat as "skip this video".
func ChunkSegments(segs []TranscriptSegment, chunkSize, overlap int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []Chunk
	var buf []TranscriptSegment
	words := 0

	for _, seg := range segs {
		buf = append(buf, seg)
		words += wordCount(seg.Text)
		if words < chunkSize {
			continue
		}
		chunks = append(chunks, joinSegments(buf))

		// Seed the next buffer with the largest whole-segment tail
		// suffix totaling at most overlap words.
		var tail []TranscriptSegment
		kept := 0
		for i := len(buf) - 1; i >= 0; i-- {
			w := wordCount(buf[i].Text)
			if kept+w > overlap {
				break
			}
			tail = append([]TranscriptSegment{buf[i]}, tail...)
			kept += w
		}
		buf = tail
		words = kept
	}

	if len(buf) > 0 {
		chunks = append(chunks, joinSegments(buf))
	}
	return chunks
}

func joinSegments(segs []TranscriptSegment) Chunk {
	texts := make([]string, len(segs))
	for i, s := range segs {
		texts[i] = s.Text
	}
	last := segs[len(segs)-1]
	return Chunk{
		VideoID: segs[0].VideoID,
		Text:    strings.Join(texts, " "),
		Start:   segs[0].Start,
		End:     last.Start + last.Duration,
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
