package research

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Prompt templates for the research loop. Term, summary, and
// assessment prompts demand a bare JSON object with fixed keys; the
// final report prompt returns free markdown.

// Token budgets per prompt kind.
const (
	promptMaxTokens = 1000
	reportMaxTokens = 4000
)

const initialTermsPrompt = `Given this research query: "%s"

Based on your knowledge, generate TWO optimized YouTube search terms that will:
1. Cover different aspects or approaches to answering the query
2. Be likely to find high-quality, relevant content
3. Include any technical terms or specific phrases that would improve search results

Response format:
{"search_term_1": "your first search term",
  "search_term_2": "your second search term",
  "rationale": "brief explanation of why you chose these terms"}

Return ONLY the JSON object, no markdown, no explanation.`

const videoSummaryPrompt = `Analyze this video content and provide a structured summary:

Video Metadata:
%s

Transcript:
%s

Top Comments:
%s

Provide a summary in this format:
{
    "main_points": ["list of key points"],
    "unique_insights": ["specific insights this video adds"],
    "community_sentiment": "analysis of comment sentiment",
    "credibility_assessment": "brief assessment of video's credibility",
    "summary": "concise summary of video content"
}

Return ONLY the JSON object, no markdown, no explanation.`

const assessmentPrompt = `Research Progress Assessment

Original Query: "%s"

Current Iteration: %d/%d

Previous Search Terms: %s

Current Working Outline:
%s

Recent Video Summaries:
%s

Based on our current knowledge and progress:

1. Assess what we've learned
2. Identify important knowledge gaps or areas needing deeper exploration
3. Generate TWO new search terms designed to:
   - Fill knowledge gaps
   - Explore interesting tangents relevant to the query
   - Find contrasting viewpoints if relevant
4. Propose improvements or additions to the working outline

Response format:
{
  "assessment": "brief assessment of current knowledge",
  "gaps_identified": ["list of specific knowledge gaps"],
  "search_term_1": "first new search term",
  "search_term_2": "second new search term",
  "search_rationale": "explanation of new search terms",
  "outline_updates": "the full updated outline with # section headings"
}

Return ONLY the JSON object, no markdown, no explanation.`

const finalReportPrompt = `Research Report Generation

Original Query: "%s"

Final Outline:
%s

Using the provided transcript chunks and metadata, create a comprehensive research report that:
1. Follows the outline structure
2. Incorporates relevant information from video transcripts
3. Cites specific videos and timestamps
4. Highlights differing perspectives and approaches

Available Content:
%s

Video Information:
%s

Format the report in markdown with clear sections and proper formatting.`

func buildInitialTermsPrompt(topic string) string {
	return fmt.Sprintf(initialTermsPrompt, topic)
}

func buildSummaryPrompt(meta VideoMetadata, transcript string, comments []Comment) string {
	return fmt.Sprintf(videoSummaryPrompt, marshalIndent(meta), transcript, marshalIndent(comments))
}

func buildAssessmentPrompt(query, outline string, iteration, maxIterations int, terms []string, summaries []VideoSummary) string {
	if strings.TrimSpace(outline) == "" {
		outline = "No outline yet"
	}
	return fmt.Sprintf(assessmentPrompt,
		query, iteration, maxIterations,
		marshalIndent(terms), outline, marshalIndent(summaries))
}

func buildFinalReportPrompt(query, outline string, sections []ReportSection, videos map[string]VideoMetadata) string {
	// Only the chunk fields the model needs; embeddings stay out of
	// the prompt.
	type promptChunk struct {
		Section    string  `json:"section"`
		VideoID    string  `json:"video_id"`
		Start      float64 `json:"start_time"`
		Text       string  `json:"text"`
		Similarity float64 `json:"similarity"`
	}
	var chunks []promptChunk
	for _, sec := range sections {
		for _, r := range sec.Chunks {
			chunks = append(chunks, promptChunk{
				Section:    sec.Title,
				VideoID:    r.Chunk.VideoID,
				Start:      r.Chunk.Start,
				Text:       r.Chunk.Text,
				Similarity: r.Similarity,
			})
		}
	}
	return fmt.Sprintf(finalReportPrompt, query, outline, marshalIndent(chunks), marshalIndent(videos))
}

func marshalIndent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
