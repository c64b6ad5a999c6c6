package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xmlsort/internal/catalog"
	"github.com/sha1n/xmlsort/internal/domain"
)

// Catalog is the document catalog as seen by the tools.
type Catalog interface {
	domain.PlacementRecorder
	Flush() error
	Search(ctx context.Context, q catalog.Query) (*catalog.Result, error)
}

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query   string `json:"query" jsonschema_description:"Search query matched against content, file name, sender, subject and key"`
	RootTag string `json:"root_tag,omitempty" jsonschema_description:"Filter by root element (e.g., MensajeHacienda)"`
	Kind    string `json:"kind,omitempty" jsonschema_description:"Filter by name kind (e.g., FE, NC)"`
}

// SearchHandler handles the search_documents MCP tool.
type SearchHandler struct {
	catalog    Catalog
	maxResults int
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(c Catalog, maxResults int) *SearchHandler {
	return &SearchHandler{catalog: c, maxResults: maxResults}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if h.catalog == nil {
		return errorResult("Search is not available. No document catalog is configured (set catalog.dir)."), nil, nil
	}

	if strings.TrimSpace(args.Query) == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}

	results, err := h.catalog.Search(ctx, catalog.Query{
		Text:    args.Query,
		RootTag: args.RootTag,
		Kind:    args.Kind,
		Size:    h.maxResults,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	return textResult(FormatResults(results, args.Query)), nil, nil
}

// FormatResults renders search hits as markdown.
func FormatResults(results *catalog.Result, queryStr string) string {
	if results.Total == 0 {
		return fmt.Sprintf("No results found for query: %s", queryStr)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for '%s':\n\n", results.Total, queryStr)

	for i, hit := range results.Hits {
		fmt.Fprintf(&sb, "### %d. %s\n", i+1, hit.Name)
		fmt.Fprintf(&sb, "**Path**: %s\n", hit.Destination)
		if hit.RootTag != "" {
			fmt.Fprintf(&sb, "**Root tag**: %s\n", hit.RootTag)
		}
		if hit.Kind != "" {
			fmt.Fprintf(&sb, "**Kind**: %s\n", hit.Kind)
		}
		if hit.Key != "" {
			fmt.Fprintf(&sb, "**Key**: %s\n", hit.Key)
		}
		if hit.Sender != "" {
			fmt.Fprintf(&sb, "**Sender**: %s\n", hit.Sender)
		}
		fmt.Fprintf(&sb, "**Score**: %.4f\n\n", hit.Score)

		if len(hit.Fragments) > 0 {
			sb.WriteString("```\n")
			for _, fragment := range hit.Fragments {
				sb.WriteString(fragment)
				sb.WriteString("\n")
			}
			sb.WriteString("```\n")
		}

		sb.WriteString("\n")
	}

	if results.Total > uint64(len(results.Hits)) {
		fmt.Fprintf(&sb, "... and %d more results\n", results.Total-uint64(len(results.Hits)))
	}

	return sb.String()
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_documents",
		Description: "Search the catalog of placed XML documents using full-text search",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, c Catalog, maxResults int) {
	handler := NewSearchHandler(c, maxResults)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
