package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xmlsort/internal/router"
)

// RouteArgument defines route parameters.
type RouteArgument struct {
	Source      string   `json:"source" jsonschema_description:"Directory tree holding the XML files"`
	Destination string   `json:"destination,omitempty" jsonschema_description:"Optional root mirroring the source tree; files are routed in place when omitted"`
	TargetTags  []string `json:"target_tags,omitempty" jsonschema_description:"Root elements to route (default MensajeHacienda)"`
}

// RouteHandler handles the route_tree MCP tool.
type RouteHandler struct {
	router   *router.Router
	defaults router.Options
	catalog  Catalog
}

// NewRouteHandler creates a new route handler. catalog may be nil.
func NewRouteHandler(r *router.Router, defaults router.Options, catalog Catalog) *RouteHandler {
	return &RouteHandler{router: r, defaults: defaults, catalog: catalog}
}

// Handle routes the requested tree and returns the report.
func (h *RouteHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args RouteArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Source) == "" {
		return errorResult("Source cannot be empty"), nil, nil
	}

	opts := h.defaults
	opts.Source = args.Source
	opts.Destination = args.Destination
	if len(args.TargetTags) > 0 {
		opts.TargetTags = args.TargetTags
	}
	// Tool calls never write report files or progress to the server's stdio.
	opts.ReportFile = ""
	opts.Progress = nil
	if h.catalog != nil {
		opts.Recorder = h.catalog
	}

	report, err := h.router.Route(ctx, opts)
	if h.catalog != nil {
		if flushErr := h.catalog.Flush(); flushErr != nil {
			slog.Warn("Failed to flush catalog", "error", flushErr)
		}
	}
	if err != nil && report == nil {
		switch {
		case errors.Is(err, router.ErrSourceNotFound):
			return errorResult(fmt.Sprintf("Source directory not found: %s", args.Source)), nil, nil
		case errors.Is(err, router.ErrNoCandidates):
			return errorResult(fmt.Sprintf("No XML files found in %s", args.Source)), nil, nil
		default:
			return errorResult(fmt.Sprintf("Routing failed: %s", err)), nil, nil
		}
	}

	var sb strings.Builder
	if err := router.WriteReport(&sb, report); err != nil {
		return errorResult(fmt.Sprintf("Failed to format report: %s", err)), nil, nil
	}
	if err != nil {
		fmt.Fprintf(&sb, "\nRouting stopped early: %s\n", err)
	}
	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *RouteHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "route_tree",
		Description: "Move XML files whose root element is a target tag into a subfolder, never overwriting a file",
	}
}

// RegisterRouteTool registers the route tool with an MCP server.
func RegisterRouteTool(server *mcp.Server, r *router.Router, defaults router.Options, catalog Catalog) {
	handler := NewRouteHandler(r, defaults, catalog)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
