// Package tubeserver registers the MCP tools exposed by go_tube and
// wires them to the research engine.
package tubeserver

import (
	"strings"

	"github.com/anatolykoptev/go_tube/internal/engine/embedding"
	"github.com/anatolykoptev/go_tube/internal/engine/research"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Deps are the long-lived services behind the tools, constructed once
// in main and shared by every call.
type Deps struct {
	Embedder embedding.Engine
	Store    *research.Store
	History  *research.History
	Opts     research.Options // loop tunables from env; per-call input may override MaxIterations
}

// RegisterTools registers all research tools on the given MCP server:
// youtube_research, research_history, research_history_get.
func RegisterTools(server *mcp.Server, deps Deps) {
	registerResearch(server, deps)
	registerHistory(server, deps)
	registerHistoryGet(server, deps)
}

// sessionKey derives the session-store key from a topic. Concurrent
// runs of the same topic collide on it deliberately.
func sessionKey(topic string) string {
	return strings.ToLower(strings.Join(strings.Fields(topic), " "))
}
