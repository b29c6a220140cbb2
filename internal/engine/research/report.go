package research

import (
	"fmt"
	"sort"
	"strings"
)

// ReportSection is one titled slice of the final outline paired with
// the chunks retrieved for it. Built and consumed entirely within
// report assembly.
type ReportSection struct {
	Title  string
	Body   string // outline lines under the heading, newline-joined
	Chunks []SearchResult
}

// SplitOutline splits an outline into sections. A section begins at
// any line starting with a heading marker; the following non-empty
// lines until the next heading belong to it. Lines before the first
// heading are dropped.
func SplitOutline(outline string) []ReportSection {
	var sections []ReportSection
	var current *ReportSection
	var body []string

	flush := func() {
		if current != nil {
			current.Body = strings.Join(body, "\n")
			sections = append(sections, *current)
		}
		body = nil
	}

	for _, line := range strings.Split(outline, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			flush()
			title := strings.TrimSpace(strings.TrimLeft(line, "#"))
			current = &ReportSection{Title: title}
			continue
		}
		if current != nil {
			body = append(body, line)
		}
	}
	flush()
	return sections
}

// RenderReport assembles the markdown document: title, table of
// contents, the model-written synthesis, per-section retrieved chunks
// with citations, and the citation-ranked recommended videos. Videos
// missing from the metadata map render with Unknown placeholders, the
// report never fails on them.
func RenderReport(topic, synthesis string, sections []ReportSection, videos map[string]VideoMetadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Research Report: %s\n\n", topic)

	sb.WriteString("## Table of Contents\n")
	for i, sec := range sections {
		// Anchor is lowercased with spaces as hyphens, nothing more.
		// Headings with punctuation may produce dead anchors.
		anchor := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(sec.Title)), " ", "-")
		fmt.Fprintf(&sb, "%d. [%s](#%s)\n", i+1, sec.Title, anchor)
	}
	sb.WriteString("\n")

	if synthesis = strings.TrimSpace(synthesis); synthesis != "" {
		sb.WriteString(synthesis)
		sb.WriteString("\n\n")
	}

	for _, sec := range sections {
		fmt.Fprintf(&sb, "## %s\n\n", sec.Title)
		// Group chunks by owning video, keeping retrieval order within
		// each group and first-seen order across groups.
		var order []string
		grouped := make(map[string][]SearchResult)
		for _, r := range sec.Chunks {
			if _, ok := grouped[r.Chunk.VideoID]; !ok {
				order = append(order, r.Chunk.VideoID)
			}
			grouped[r.Chunk.VideoID] = append(grouped[r.Chunk.VideoID], r)
		}
		for _, id := range order {
			meta, ok := videos[id]
			for _, r := range grouped[id] {
				sb.WriteString(r.Chunk.Text)
				sb.WriteString("\n\n")
				fmt.Fprintf(&sb, "*Source: %s*\n\n", formatCitation(id, r.Chunk.Start, meta, ok))
			}
		}
	}

	sb.WriteString("## Recommended Videos\n")
	sb.WriteString("The following videos are recommended based on relevance and coverage:\n\n")
	sb.WriteString(renderRecommendedVideos(sections, videos))

	return sb.String()
}

// formatCitation renders a markdown link to the video at the chunk's
// start-time offset.
func formatCitation(videoID string, start float64, meta VideoMetadata, known bool) string {
	title, channel := meta.Title, meta.Channel
	if !known || title == "" {
		title = "Unknown Title"
	}
	if !known || channel == "" {
		channel = "Unknown Channel"
	}
	return fmt.Sprintf("[%s by %s at %s](https://youtube.com/watch?v=%s&t=%d)",
		title, channel, formatTimestamp(start), videoID, int(start))
}

// citedVideo accumulates per-video citation stats across sections.
type citedVideo struct {
	id            string
	citations     int
	similaritySum float64
	sections      map[string]bool
}

// renderRecommendedVideos ranks every cited video by total citation
// count, then mean similarity, both descending. Ties beyond that keep
// first-citation order.
func renderRecommendedVideos(sections []ReportSection, videos map[string]VideoMetadata) string {
	var order []string
	cited := make(map[string]*citedVideo)
	for _, sec := range sections {
		for _, r := range sec.Chunks {
			cv, ok := cited[r.Chunk.VideoID]
			if !ok {
				cv = &citedVideo{id: r.Chunk.VideoID, sections: make(map[string]bool)}
				cited[r.Chunk.VideoID] = cv
				order = append(order, r.Chunk.VideoID)
			}
			cv.citations++
			cv.similaritySum += r.Similarity
			cv.sections[sec.Title] = true
		}
	}

	ranked := make([]*citedVideo, 0, len(order))
	for _, id := range order {
		ranked = append(ranked, cited[id])
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].citations != ranked[b].citations {
			return ranked[a].citations > ranked[b].citations
		}
		return ranked[a].meanSimilarity() > ranked[b].meanSimilarity()
	})

	var sb strings.Builder
	for _, cv := range ranked {
		meta, known := videos[cv.id]
		title, channel, views := meta.Title, meta.Channel, fmt.Sprintf("%d", meta.Views)
		if !known {
			title, channel, views = "Unknown Title", "Unknown Channel", "Unknown"
		}
		sectionTitles := make([]string, 0, len(cv.sections))
		for t := range cv.sections {
			sectionTitles = append(sectionTitles, t)
		}
		sort.Strings(sectionTitles)

		fmt.Fprintf(&sb, "### %s\n", title)
		fmt.Fprintf(&sb, "- **Channel**: %s\n", channel)
		fmt.Fprintf(&sb, "- **Link**: https://youtube.com/watch?v=%s\n", cv.id)
		fmt.Fprintf(&sb, "- **Duration**: %s\n", formatTimestamp(float64(meta.Duration)))
		fmt.Fprintf(&sb, "- **Relevance Score**: %.2f\n", cv.meanSimilarity())
		fmt.Fprintf(&sb, "- **Referenced In**: %s\n", strings.Join(sectionTitles, ", "))
		fmt.Fprintf(&sb, "- **Views**: %s\n\n", views)
	}
	return sb.String()
}

func (cv *citedVideo) meanSimilarity() float64 {
	if cv.citations == 0 {
		return 0
	}
	return cv.similaritySum / float64(cv.citations)
}

// formatTimestamp renders seconds as MM:SS.
func formatTimestamp(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
