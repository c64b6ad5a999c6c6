package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xmlsort/internal/matcher"
	"github.com/sha1n/xmlsort/internal/naming"
	"github.com/sha1n/xmlsort/internal/router"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string

	// Patterns classify file names. Defaults to matcher.DefaultPatternSet.
	Patterns *matcher.PatternSet
	// KeyField is the element reported as the document key.
	KeyField string

	// Router runs route_tree. Defaults to a router on the local disk.
	Router *router.Router
	// RouteDefaults fill in what a route_tree call leaves out.
	RouteDefaults router.Options

	// Catalog backs search_documents and records route_tree placements.
	// Nil leaves search_documents answering with an error.
	Catalog Catalog
	// MaxResults caps search hits.
	MaxResults int
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Patterns == nil {
		cfg.Patterns = matcher.DefaultPatternSet()
	}
	if cfg.KeyField == "" {
		cfg.KeyField = naming.DefaultField
	}
	if cfg.Router == nil {
		cfg.Router = router.New()
	}

	RegisterClassifyTool(s, cfg.Patterns, cfg.KeyField)
	RegisterRouteTool(s, cfg.Router, cfg.RouteDefaults, cfg.Catalog)
	RegisterSearchTool(s, cfg.Catalog, cfg.MaxResults)

	return s
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
