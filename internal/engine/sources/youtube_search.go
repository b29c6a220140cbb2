package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/research"
)

// YouTube catalog — Data API v3 search and details with API-key
// fallback and an unauthenticated ytInitialData scraping fallback for
// search.

const (
	ytDataAPIBase       = "https://www.googleapis.com/youtube/v3"
	ytInitialDataMarker = "var ytInitialData = "
	ytSearchFilter      = "EgIQAQ%3D%3D" // videos-only filter param
)

// apiKeys returns the configured Data API keys in fallback order.
func apiKeys() []string {
	var keys []string
	if engine.Cfg.YouTubeAPIKey != "" {
		keys = append(keys, engine.Cfg.YouTubeAPIKey)
	}
	if engine.Cfg.YouTubeAPIKeyFallback != "" {
		keys = append(keys, engine.Cfg.YouTubeAPIKeyFallback)
	}
	return keys
}

// SearchVideos returns candidate video ids for a query in one duration
// class ("short" = under 60s, "medium" = 1-35min per the Data API).
// Uses the Data API when a key is configured, trying the fallback key
// on quota errors; without any key it scrapes ytInitialData (which
// cannot filter by duration — the details post-filter handles that).
func SearchVideos(ctx context.Context, query, durationClass string, maxResults int) ([]string, error) {
	engine.IncrYouTubeSearch()
	if maxResults <= 0 || maxResults > 10 {
		maxResults = 5
	}

	keys := apiKeys()
	if len(keys) == 0 {
		return searchInitialData(ctx, query, maxResults)
	}

	var lastErr error
	for _, key := range keys {
		ids, err := dataAPISearch(ctx, query, durationClass, maxResults, key)
		if err == nil {
			return ids, nil
		}
		lastErr = err
		slog.Debug("youtube: data API key failed, trying fallback", slog.Any("err", err))
	}
	return nil, lastErr
}

// --- Data API types ---

type ytDataSearchResp struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type ytDataVideosResp struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

func dataAPIGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := dataAPILimiter().Wait(ctx); err != nil {
		return nil, err
	}
	apiURL := ytDataAPIBase + "/" + endpoint + "?" + params.Encode()
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("youtube data API %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("youtube data API %s %d: %s", endpoint, resp.StatusCode, body)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
}

func dataAPISearch(ctx context.Context, query, durationClass string, maxResults int, apiKey string) ([]string, error) {
	params := url.Values{}
	params.Set("part", "id")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("key", apiKey)
	if durationClass != "" {
		params.Set("videoDuration", durationClass)
	}

	body, err := dataAPIGet(ctx, "search", params)
	if err != nil {
		return nil, err
	}
	var result ytDataSearchResp
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode youtube search: %w (first 200 bytes: %s)", err, engine.Truncate(string(body), 200))
	}

	ids := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	return ids, nil
}

// FetchDetails resolves metadata for a batch of video ids via the
// videos endpoint. Results are cached per id batch; ids the API does
// not return (deleted or private videos) are simply absent from the
// map. Requires a Data API key.
func FetchDetails(ctx context.Context, ids []string) (map[string]research.VideoMetadata, error) {
	if len(ids) == 0 {
		return map[string]research.VideoMetadata{}, nil
	}
	keys := apiKeys()
	if len(keys) == 0 {
		return nil, errors.New("youtube details: no API key configured")
	}

	cacheKey := engine.CacheKey(append([]string{"details"}, ids...)...)
	if cached, ok := engine.CacheLoadJSON[map[string]research.VideoMetadata](ctx, cacheKey); ok {
		return cached, nil
	}
	engine.IncrYouTubeDetails()

	var (
		body    []byte
		lastErr error
	)
	for _, key := range keys {
		params := url.Values{}
		params.Set("part", "snippet,contentDetails,statistics")
		params.Set("id", strings.Join(ids, ","))
		params.Set("key", key)
		body, lastErr = dataAPIGet(ctx, "videos", params)
		if lastErr == nil {
			break
		}
		slog.Debug("youtube: details key failed, trying fallback", slog.Any("err", lastErr))
	}
	if lastErr != nil {
		return nil, lastErr
	}

	var result ytDataVideosResp
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode youtube videos: %w (first 200 bytes: %s)", err, engine.Truncate(string(body), 200))
	}

	details := make(map[string]research.VideoMetadata, len(result.Items))
	for _, item := range result.Items {
		views, _ := strconv.ParseInt(item.Statistics.ViewCount, 10, 64)
		details[item.ID] = research.VideoMetadata{
			ID:          item.ID,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			Duration:    parseISODuration(item.ContentDetails.Duration),
			Views:       views,
			Channel:     item.Snippet.ChannelTitle,
			PublishedAt: item.Snippet.PublishedAt,
		}
	}
	engine.CacheStoreJSON(ctx, cacheKey, details)
	return details, nil
}

// parseISODuration converts an ISO-8601 duration (PT1H2M3S) to
// seconds. Malformed input parses as 0.
func parseISODuration(s string) int {
	s = strings.TrimPrefix(strings.ToUpper(s), "P")
	s = strings.TrimPrefix(s, "T")
	var total, n int
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			n = n*10 + int(r-'0')
		case r == 'H':
			total += n * 3600
			n = 0
		case r == 'M':
			total += n * 60
			n = 0
		case r == 'S':
			total += n
			n = 0
		default:
			n = 0
		}
	}
	return total
}

// searchInitialData scrapes YouTube search results by parsing
// ytInitialData out of the results page. No duration filtering is
// possible here.
func searchInitialData(ctx context.Context, query string, limit int) ([]string, error) {
	searchURL := "https://www.youtube.com/results?search_query=" + url.QueryEscape(query) + "&sp=" + ytSearchFilter

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("youtube search page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read youtube search response: %w", err)
	}

	idx := strings.Index(string(body), ytInitialDataMarker)
	if idx < 0 {
		return nil, errors.New("ytInitialData not found in YouTube search response")
	}
	jsonData := extractJSON(body[idx+len(ytInitialDataMarker):])
	if jsonData == nil {
		return nil, errors.New("failed to extract ytInitialData JSON")
	}
	return extractVideoIDs(jsonData, limit), nil
}

// extractJSON extracts a complete JSON object starting at b[0] == '{' by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	var prev byte
	for i, c := range b {
		if inStr {
			if c == '"' && prev != '\\' {
				inStr = false
			}
		} else {
			switch c {
			case '"':
				inStr = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return b[:i+1]
				}
			}
		}
		prev = c
	}
	return nil
}

// extractVideoIDs recursively walks ytInitialData JSON for
// videoRenderer entries and collects their video ids in page order.
func extractVideoIDs(data []byte, limit int) []string {
	var ids []string
	seen := make(map[string]bool)
	var walk func(v json.RawMessage)
	walk = func(v json.RawMessage) {
		if len(ids) >= limit {
			return
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(v, &obj); err == nil {
			if raw, ok := obj["videoRenderer"]; ok {
				var vr struct {
					VideoID string `json:"videoId"`
				}
				if err := json.Unmarshal(raw, &vr); err == nil && vr.VideoID != "" && !seen[vr.VideoID] {
					seen[vr.VideoID] = true
					ids = append(ids, vr.VideoID)
					return
				}
			}
			for _, child := range obj {
				if len(ids) >= limit {
					return
				}
				walk(child)
			}
			return
		}
		var arr []json.RawMessage
		if err := json.Unmarshal(v, &arr); err == nil {
			for _, item := range arr {
				if len(ids) >= limit {
					return
				}
				walk(item)
			}
		}
	}
	walk(data)
	return ids
}
