package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	YouTubeSearchRequests     atomic.Int64
	YouTubeDetailsRequests    atomic.Int64
	YouTubeTranscriptRequests atomic.Int64
	YouTubeTranscriptErrors   atomic.Int64
	YouTubeCommentRequests    atomic.Int64
	LLMCalls                  atomic.Int64
	LLMErrors                 atomic.Int64
	EmbeddingRequests         atomic.Int64
	ResearchRuns              atomic.Int64
	ResearchErrors            atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"youtube_search_requests":     metrics.YouTubeSearchRequests.Load(),
		"youtube_details_requests":    metrics.YouTubeDetailsRequests.Load(),
		"youtube_transcript_requests": metrics.YouTubeTranscriptRequests.Load(),
		"youtube_transcript_errors":   metrics.YouTubeTranscriptErrors.Load(),
		"youtube_comment_requests":    metrics.YouTubeCommentRequests.Load(),
		"llm_calls":                   metrics.LLMCalls.Load(),
		"llm_errors":                  metrics.LLMErrors.Load(),
		"embedding_requests":          metrics.EmbeddingRequests.Load(),
		"research_runs":               metrics.ResearchRuns.Load(),
		"research_errors":             metrics.ResearchErrors.Load(),
		"cache_hits":                  hits,
		"cache_misses":                misses,
	}
}

// FormatMetrics returns metrics as a simple text format for the HTTP
// metrics endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"youtube_search_requests", "youtube_details_requests",
		"youtube_transcript_requests", "youtube_transcript_errors",
		"youtube_comment_requests",
		"llm_calls", "llm_errors",
		"embedding_requests",
		"research_runs", "research_errors",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the sources/ sub-package and server wiring.
func IncrYouTubeSearch()           { metrics.YouTubeSearchRequests.Add(1) }
func IncrYouTubeDetails()          { metrics.YouTubeDetailsRequests.Add(1) }
func IncrYouTubeTranscript()       { metrics.YouTubeTranscriptRequests.Add(1) }
func IncrYouTubeTranscriptErrors() { metrics.YouTubeTranscriptErrors.Add(1) }
func IncrYouTubeComments()         { metrics.YouTubeCommentRequests.Add(1) }
func IncrLLMCalls()                { metrics.LLMCalls.Add(1) }
func IncrLLMErrors()               { metrics.LLMErrors.Add(1) }
func IncrEmbeddings()              { metrics.EmbeddingRequests.Add(1) }
func IncrResearchRuns()            { metrics.ResearchRuns.Add(1) }
func IncrResearchErrors()          { metrics.ResearchErrors.Add(1) }
