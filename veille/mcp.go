// CLAUDE:SUMMARY Registers the rivalwatch_* MCP tools (read API and both passes) through kit with logging middleware; passes are bounded by a timeout.
// CLAUDE:EXPORTS RegisterMCP
package veille

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/rivalwatch/kit"
)

// runTimeout bounds a single pass started over MCP.
const runTimeout = 30 * time.Minute

// RegisterMCP registers all rivalwatch tools on an MCP server.
func (svc *Service) RegisterMCP(srv *mcp.Server) {
	mw := kit.Chain(kit.Logging(svc.logger))
	svc.registerListCompetitors(srv, mw)
	svc.registerListSummaries(srv, mw)
	svc.registerLastSnapshot(srv, mw)
	svc.registerSnapshotHistory(srv, mw)
	svc.registerFetchHistory(srv, mw)
	svc.registerRuns(srv, kit.Chain(kit.Logging(svc.logger), kit.Timeout(runTimeout)))
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var (
	propCompetitor = map[string]any{"type": "string", "description": "Competitor ID"}
	propURL        = map[string]any{"type": "string", "description": "Monitored page URL"}
	propLimit      = map[string]any{"type": "integer", "description": "Maximum number of rows (default 50)"}
)

func (svc *Service) registerListCompetitors(srv *mcp.Server, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "rivalwatch_list_competitors",
		Description: "List the configured competitors with their feeds and websites",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(_ context.Context, _ any) (any, error) {
		return svc.config.Competitors, nil
	}
	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[struct{}]())
}

func (svc *Service) registerListSummaries(srv *mcp.Server, mw kit.Middleware) {
	type req struct {
		CompetitorID string `json:"competitor_id"`
		SourceType   string `json:"source_type"`
		Limit        int    `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "rivalwatch_list_summaries",
		Description: "List analysed competitor updates, newest first",
		InputSchema: inputSchema(map[string]any{
			"competitor_id": propCompetitor,
			"source_type":   map[string]any{"type": "string", "description": "rss or website"},
			"limit":         propLimit,
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		list, err := svc.ListSummaries(ctx, SummaryFilter{CompetitorID: p.CompetitorID, SourceType: p.SourceType, Limit: p.Limit})
		return nonNil(list), err
	}
	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[req]())
}

func (svc *Service) registerLastSnapshot(srv *mcp.Server, mw kit.Middleware) {
	type req struct {
		CompetitorID string `json:"competitor_id"`
		URL          string `json:"url"`
	}

	tool := &mcp.Tool{
		Name:        "rivalwatch_last_snapshot",
		Description: "Get the most recent snapshot of a monitored page (null if never captured)",
		InputSchema: inputSchema(map[string]any{
			"competitor_id": propCompetitor,
			"url":           propURL,
		}, []string{"competitor_id", "url"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.LastSnapshot(ctx, p.CompetitorID, p.URL)
	}
	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[req]())
}

func (svc *Service) registerSnapshotHistory(srv *mcp.Server, mw kit.Middleware) {
	type req struct {
		CompetitorID string `json:"competitor_id"`
		URL          string `json:"url"`
		Limit        int    `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "rivalwatch_snapshot_history",
		Description: "List stored snapshots of a competitor, newest first",
		InputSchema: inputSchema(map[string]any{
			"competitor_id": propCompetitor,
			"url":           propURL,
			"limit":         propLimit,
		}, []string{"competitor_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		list, err := svc.SnapshotHistory(ctx, p.CompetitorID, p.URL, p.Limit)
		return nonNil(list), err
	}
	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[req]())
}

func (svc *Service) registerFetchHistory(srv *mcp.Server, mw kit.Middleware) {
	type req struct {
		CompetitorID string `json:"competitor_id"`
		URL          string `json:"url"`
		Limit        int    `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "rivalwatch_fetch_history",
		Description: "List fetch attempts of a competitor with status, method and error class",
		InputSchema: inputSchema(map[string]any{
			"competitor_id": propCompetitor,
			"url":           propURL,
			"limit":         propLimit,
		}, []string{"competitor_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		list, err := svc.FetchHistory(ctx, p.CompetitorID, p.URL, p.Limit)
		return nonNil(list), err
	}
	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[req]())
}

func (svc *Service) registerRuns(srv *mcp.Server, mw kit.Middleware) {
	monitor := &mcp.Tool{
		Name:        "rivalwatch_monitor_websites",
		Description: "Run one website monitoring pass and return its report",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, monitor, mw(func(ctx context.Context, _ any) (any, error) {
		return svc.MonitorWebsites(ctx), nil
	}), kit.DecodeJSON[struct{}]())

	digest := &mcp.Tool{
		Name:        "rivalwatch_digest_feeds",
		Description: "Run one feed digest pass and return its report",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, digest, mw(func(ctx context.Context, _ any) (any, error) {
		return svc.DigestFeeds(ctx), nil
	}), kit.DecodeJSON[struct{}]())
}
