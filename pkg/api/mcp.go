package api

import (
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/taxomigrate/pkg/kit"
	"github.com/hazyhaar/taxomigrate/pkg/taxonomy"
)

// RegisterMCPTools registers the resolve and taxonomy tools on the server.
func RegisterMCPTools(srv *server.MCPServer, res *taxonomy.Resolver, logger *slog.Logger) {
	eps := newEndpoints(res, logger)

	kit.RegisterMCPTool(srv, mcp.NewTool("resolve_label",
		mcp.WithDescription("Map one free-text category label onto the canonical marketplace taxonomy."),
		mcp.WithString("label", mcp.Required(), mcp.Description("The legacy label to resolve")),
	), eps.resolve, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		label, _ := req.GetArguments()["label"].(string)
		return &kit.MCPDecodeResult{Request: &resolveReq{Label: label}}, nil
	})

	kit.RegisterMCPTool(srv, mcp.NewTool("resolve_batch",
		mcp.WithDescription("Resolve several legacy labels (up to 100) in one call."),
		mcp.WithString("labels", mcp.Required(), mcp.Description("Comma-separated list of labels to resolve")),
	), eps.resolveBatch, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		raw, _ := req.GetArguments()["labels"].(string)
		return &kit.MCPDecodeResult{Request: &resolveBatchReq{Labels: splitLabels(raw)}}, nil
	})

	kit.RegisterMCPTool(srv, mcp.NewTool("list_taxonomy",
		mcp.WithDescription("List the canonical categories, their subcategories and the flattened labels."),
	), eps.listTaxonomy, func(_ mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	})
}

func splitLabels(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
