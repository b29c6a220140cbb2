// Package sources implements the YouTube-facing providers consumed by
// the research pipeline: catalog search and details, timed transcript
// fetching, and top-comment fetching. The implementation is split
// across four files by responsibility:
//
//	youtube_innertube.go  — Innertube API types, constants, and low-level HTTP primitives
//	youtube_transcript.go — timed transcript fetching (watch page, engagement panel, ANDROID player)
//	youtube_search.go     — catalog search (Data API v3 + ytInitialData scraping) and video details
//	youtube_comments.go   — top-level comment fetching (Data API v3 commentThreads)
package sources

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/research"
)

// Catalog implements research.Catalog on the YouTube Data API with a
// scraping fallback.
type Catalog struct{}

// Search implements research.Catalog.
func (Catalog) Search(ctx context.Context, query, durationClass string, maxResults int) ([]string, error) {
	return SearchVideos(ctx, query, durationClass, maxResults)
}

// Details implements research.Catalog.
func (Catalog) Details(ctx context.Context, ids []string) (map[string]research.VideoMetadata, error) {
	return FetchDetails(ctx, ids)
}

// Transcripts implements research.Transcripts.
type Transcripts struct{}

// Fetch implements research.Transcripts.
func (Transcripts) Fetch(ctx context.Context, videoID string) ([]research.TranscriptSegment, error) {
	return FetchTranscript(ctx, videoID, []string{"en"})
}

// Comments implements research.Comments.
type Comments struct{}

// Fetch implements research.Comments.
func (Comments) Fetch(ctx context.Context, videoID string, max int) ([]research.Comment, error) {
	return FetchTopComments(ctx, videoID, max)
}

// dataAPILimiter throttles Data API calls across all sessions; the
// quota belongs to the project key, not to any one session.
var (
	limiterOnce sync.Once
	dataLimiter *rate.Limiter
)

func dataAPILimiter() *rate.Limiter {
	limiterOnce.Do(func() {
		qps := engine.Cfg.YouTubeQPS
		if qps <= 0 {
			qps = 8
		}
		dataLimiter = rate.NewLimiter(rate.Limit(qps), 1)
	})
	return dataLimiter
}
