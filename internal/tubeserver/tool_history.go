package tubeserver

import (
	"context"
	"fmt"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/research"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// excerptRunes caps the report excerpt in history listings.
const excerptRunes = 400

func registerHistory(server *mcp.Server, deps Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "research_history",
		Description: "List past research runs, newest first, with topic, video/chunk counts, and a report excerpt. Use research_history_get to read a full stored report.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.HistoryInput) (*mcp.CallToolResult, engine.HistoryOutput, error) {
		runs, err := deps.History.ListRuns(ctx, input.Limit, input.TopicFilter)
		if err != nil {
			return nil, engine.HistoryOutput{}, err
		}

		items := make([]engine.HistoryRunItem, 0, len(runs))
		for _, r := range runs {
			items = append(items, engine.HistoryRunItem{
				ID:        r.ID,
				Topic:     r.Topic,
				Videos:    r.Videos,
				Chunks:    r.Chunks,
				CreatedAt: r.CreatedAt,
				Excerpt:   engine.TruncateAtWord(r.Report, excerptRunes),
			})
		}
		return nil, engine.HistoryOutput{Runs: items, Total: len(items)}, nil
	})
}

func registerHistoryGet(server *mcp.Server, deps Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "research_history_get",
		Description: "Fetch one stored research run by id, including the full markdown report.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.HistoryGetInput) (*mcp.CallToolResult, *research.RunRecord, error) {
		if input.ID <= 0 {
			return nil, nil, fmt.Errorf("id is required")
		}
		run, err := deps.History.GetRun(ctx, input.ID)
		if err != nil {
			return nil, nil, err
		}
		return nil, run, nil
	})
}
