// go_tube — iterative YouTube research MCP server.
//
// Exposes three MCP tools: youtube_research, research_history,
// research_history_get. Runs as HTTP MCP server or stdio transport.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/embedding"
	"github.com/anatolykoptev/go_tube/internal/engine/research"
	"github.com/anatolykoptev/go_tube/internal/tubeserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	deps, err := initEngine()
	if err != nil {
		slog.Error("engine init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer deps.History.Close()

	slog.Info("starting go_tube",
		slog.String("port", mcpPort),
		slog.String("embedder", deps.Embedder.Name()),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_tube",
		Version: version,
	}, nil)

	tubeserver.RegisterTools(server, deps)
	slog.Info("tools registered", slog.Int("count", 3))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_tube",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 1800 * time.Second, // research runs take minutes
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() (tubeserver.Deps, error) {
	httpTimeout := env.Duration("HTTP_TIMEOUT", 20*time.Second)

	c := engine.Config{
		LLMAPIKey:          env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks: env.List("LLM_FALLBACK_KEYS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:           env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", 0.1),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", 16384),

		YouTubeAPIKey:         env.Str("YOUTUBE_API_KEY", ""),
		YouTubeAPIKeyFallback: env.Str("YOUTUBE_API_KEY_FALLBACK", ""),
		YouTubeQPS:            env.Float("YOUTUBE_QPS", 8),

		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),

		HTTPClient: &http.Client{
			Timeout: httpTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	c.LLMClient = llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
		llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(c.LLMMaxTokens),
		llm.WithTemperature(c.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
	)

	engine.Init(c)

	cacheTTL := env.Duration("CACHE_TTL", 6*time.Hour)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)

	embedder, err := embedding.NewEngine(embedding.Config{
		Provider:    env.Str("EMBED_PROVIDER", "ollama"),
		OllamaURL:   env.Str("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: env.Str("OLLAMA_EMBED_MODEL", "embeddinggemma"),
		GenAIAPIKey: env.Str("GEMINI_API_KEY", ""),
		GenAIModel:  env.Str("GEMINI_EMBED_MODEL", "gemini-embedding-001"),
	})
	if err != nil {
		return tubeserver.Deps{}, err
	}

	history, err := research.OpenHistory(env.Str("RESEARCH_DB", ""))
	if err != nil {
		return tubeserver.Deps{}, err
	}

	return tubeserver.Deps{
		Embedder: embedder,
		Store:    research.NewStore(),
		History:  history,
		Opts:     researchOptions(),
	}, nil
}

// researchOptions reads the per-run orchestrator tunables from the
// environment.
func researchOptions() research.Options {
	return research.Options{
		MaxIterations:    env.Int("RESEARCH_ITERATIONS", 3),
		ShortPerTerm:     env.Int("SHORT_PER_TERM", 5),
		MediumPerTerm:    env.Int("MEDIUM_PER_TERM", 3),
		MediumMaxSeconds: env.Int("MEDIUM_MAX_SECONDS", 2100),
		ChunkSize:        env.Int("CHUNK_SIZE", 300),
		Overlap:          env.Int("CHUNK_OVERLAP", 50),
		SectionTopK:      env.Int("SECTION_TOP_K", 5),
		SectionThreshold: env.Float("SECTION_THRESHOLD", 0.6),
		MaxComments:      env.Int("MAX_COMMENTS", 10),
	}
}
