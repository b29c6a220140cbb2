package tubeserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/research"
	"github.com/anatolykoptev/go_tube/internal/engine/sources"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerResearch(server *mcp.Server, deps Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_research",
		Description: "Run iterative deep research on a topic across YouTube. Searches videos over multiple refinement rounds, indexes their transcripts into a vector index, and returns a markdown report with timestamped video citations and ranked video recommendations. Takes minutes for non-trivial topics.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.ResearchInput) (*mcp.CallToolResult, engine.ResearchOutput, error) {
		if input.Topic == "" {
			return nil, engine.ResearchOutput{}, fmt.Errorf("topic is required")
		}
		opts := deps.Opts
		if input.MaxIterations > 0 {
			opts.MaxIterations = input.MaxIterations
		}
		if opts.MaxIterations > 5 {
			opts.MaxIterations = 5
		}

		orch := &research.Orchestrator{
			Catalog:     sources.Catalog{},
			Transcripts: sources.Transcripts{},
			Comments:    sources.Comments{},
			Model:       engine.ModelSession(),
			Embedder:    deps.Embedder,
			Store:       deps.Store,
			Opts:        opts,
			Progress: func(stage string, fraction float64) {
				slog.Info("research progress",
					slog.String("stage", stage),
					slog.Float64("fraction", fraction))
			},
		}

		engine.IncrResearchRuns()
		start := time.Now()
		res, err := orch.Run(ctx, sessionKey(input.Topic), input.Topic)
		if err != nil {
			engine.IncrResearchErrors()
			return nil, engine.ResearchOutput{}, err
		}

		if id, err := deps.History.SaveRun(ctx, res); err != nil {
			slog.Warn("research: history save failed", slog.Any("error", err))
		} else {
			slog.Info("research: run saved", slog.Int64("id", id))
		}

		return nil, engine.ResearchOutput{
			Topic:         res.Topic,
			Report:        res.Report,
			Iterations:    res.Iterations,
			VideosIndexed: res.VideosIndexed,
			ChunksIndexed: res.ChunksIndexed,
			SearchTerms:   res.SearchTerms,
			DurationMs:    time.Since(start).Milliseconds(),
		}, nil
	})
}
