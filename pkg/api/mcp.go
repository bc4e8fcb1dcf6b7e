package api

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/abnlookup/pkg/abn"
	"github.com/hazyhaar/abnlookup/pkg/importer"
	"github.com/hazyhaar/abnlookup/pkg/kit"
	"github.com/hazyhaar/abnlookup/pkg/search"
)

// NewMCPServer returns an MCP server exposing the lookup tools. sdb may be nil.
func NewMCPServer(version string, svc search.LookupService, sdb *importer.SourceDB, logger *slog.Logger) *server.MCPServer {
	srv := server.NewMCPServer("abnlookup", version, server.WithToolCapabilities(false))
	RegisterMCPTools(srv, svc, sdb, logger)
	return srv
}

// RegisterMCPTools registers the ABN lookup MCP tools on the server.
func RegisterMCPTools(srv *server.MCPServer, svc search.LookupService, sdb *importer.SourceDB, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	registerLookupABN(srv, svc, logger)
	registerSearchName(srv, svc, logger)
	if sdb != nil {
		registerListSources(srv, sdb, logger)
	}
}

func registerLookupABN(srv *server.MCPServer, svc search.LookupService, logger *slog.Logger) {
	tool := mcp.NewTool("lookup_abn",
		mcp.WithDescription("Look up an Australian Business Number. Spaces are ignored; the ABN must have 11 digits."),
		mcp.WithString("abn", mcp.Required(), mcp.Description("The ABN, e.g. 51 824 753 556")),
	)

	ep := kit.Chain(kit.Logging(logger, "lookup_abn"), displayErrors)(searchEndpoint(svc, logger))
	kit.RegisterMCPTool(srv, tool, ep, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		id, _ := req.GetArguments()["abn"].(string)
		return &kit.MCPDecodeResult{Request: &searchReq{Mode: abn.ModeIdentifier, Term: id}}, nil
	})
}

func registerSearchName(srv *server.MCPServer, svc search.LookupService, logger *slog.Logger) {
	tool := mcp.NewTool("search_business_name",
		mcp.WithDescription("Search Australian businesses by entity or business name (at least 3 characters). Results are in relevance order."),
		mcp.WithString("name", mcp.Required(), mcp.Description("The name or part of it")),
	)

	ep := kit.Chain(kit.Logging(logger, "search_business_name"), displayErrors)(searchEndpoint(svc, logger))
	kit.RegisterMCPTool(srv, tool, ep, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		name, _ := req.GetArguments()["name"].(string)
		return &kit.MCPDecodeResult{Request: &searchReq{Mode: abn.ModeName, Term: name}}, nil
	})
}

func registerListSources(srv *server.MCPServer, sdb *importer.SourceDB, logger *slog.Logger) {
	tool := mcp.NewTool("list_sources",
		mcp.WithDescription("List the bulk data sources feeding the local register, with availability and last import."),
	)

	kit.RegisterMCPTool(srv, tool, kit.Logging(logger, "list_sources")(listSourcesEndpoint(sdb)), func(_ mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	})
}
