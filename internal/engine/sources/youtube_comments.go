package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/research"
)

type ytCommentThreadsResp struct {
	Items []struct {
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					TextDisplay   string `json:"textDisplay"`
					AuthorDisplay string `json:"authorDisplayName"`
					LikeCount     int    `json:"likeCount"`
					PublishedAt   string `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

// FetchTopComments returns the most relevant top-level comments for a
// video via the Data API commentThreads endpoint. Comments are a
// best-effort signal for community sentiment; callers tolerate an
// empty result. A video with comments disabled yields a 403, which
// surfaces as an error the caller absorbs.
func FetchTopComments(ctx context.Context, videoID string, max int) ([]research.Comment, error) {
	keys := apiKeys()
	if len(keys) == 0 {
		return nil, errors.New("youtube comments: no API key configured")
	}
	if max <= 0 || max > 100 {
		max = 10
	}

	cacheKey := engine.CacheKey("comments", videoID, strconv.Itoa(max))
	if cached, ok := engine.CacheLoadJSON[[]research.Comment](ctx, cacheKey); ok {
		return cached, nil
	}
	engine.IncrYouTubeComments()

	var (
		body    []byte
		lastErr error
	)
	for _, key := range keys {
		params := url.Values{}
		params.Set("part", "snippet")
		params.Set("videoId", videoID)
		params.Set("order", "relevance")
		params.Set("textFormat", "plainText")
		params.Set("maxResults", strconv.Itoa(max))
		params.Set("key", key)
		body, lastErr = dataAPIGet(ctx, "commentThreads", params)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("youtube comments %s: %w", videoID, lastErr)
	}

	var result ytCommentThreadsResp
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode youtube comments: %w", err)
	}

	comments := make([]research.Comment, 0, len(result.Items))
	for _, item := range result.Items {
		s := item.Snippet.TopLevelComment.Snippet
		if s.TextDisplay == "" {
			continue
		}
		comments = append(comments, research.Comment{
			Text:        s.TextDisplay,
			Author:      s.AuthorDisplay,
			Likes:       s.LikeCount,
			PublishedAt: s.PublishedAt,
		})
	}

	engine.CacheStoreJSON(ctx, cacheKey, comments)
	return comments, nil
}
