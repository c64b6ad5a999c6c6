package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xmlsort/internal/domain"
	"github.com/sha1n/xmlsort/internal/matcher"
	"github.com/sha1n/xmlsort/internal/naming"
)

// ClassifyArgument defines classify parameters.
type ClassifyArgument struct {
	Path string `json:"path" jsonschema_description:"Path of the XML file to classify"`
}

// Classification is what the pipelines would decide about one file.
type Classification struct {
	Name string
	// ByName is the verdict of the file name patterns.
	ByName domain.Verdict
	// ByContent is the verdict of the root element.
	ByContent domain.Verdict
	Key       string
	// ParseErr is set when the content is not well-formed XML.
	ParseErr error
}

// ClassifyHandler handles the classify_xml MCP tool.
type ClassifyHandler struct {
	patterns *matcher.PatternSet
	keyField string
}

// NewClassifyHandler creates a new classify handler. Nil patterns and an
// empty key field select the defaults.
func NewClassifyHandler(patterns *matcher.PatternSet, keyField string) *ClassifyHandler {
	if patterns == nil {
		patterns = matcher.DefaultPatternSet()
	}
	if keyField == "" {
		keyField = naming.DefaultField
	}
	return &ClassifyHandler{patterns: patterns, keyField: keyField}
}

// Classify reads path and classifies it by name and by content.
func (h *ClassifyHandler) Classify(path string) (*Classification, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := &Classification{Name: filepath.Base(path)}
	if kind, ok := h.patterns.Match(c.Name); ok {
		c.ByName = domain.Verdict{Kind: domain.NameMatch, NameKind: kind}
	}

	tag, err := matcher.RootTagOf(content)
	if err != nil {
		c.ParseErr = err
		return c, nil
	}
	c.ByContent = domain.Verdict{Kind: domain.ContentMatch, RootTag: tag}

	if c.Key, err = matcher.ExtractFieldOf(content, h.keyField); err != nil {
		c.ParseErr = err
	}
	return c, nil
}

// Handle classifies the requested file.
func (h *ClassifyHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ClassifyArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Path) == "" {
		return errorResult("Path cannot be empty"), nil, nil
	}

	c, err := h.Classify(args.Path)
	if errors.Is(err, os.ErrNotExist) {
		return errorResult(fmt.Sprintf("File not found: %s", args.Path)), nil, nil
	}
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to read %s: %s", args.Path, err)), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "file: %s\n", c.Name)
	if c.ByName.Matched() {
		kind := c.ByName.NameKind
		if desc, ok := matcher.KindDescriptions[kind]; ok {
			kind += " (" + desc + ")"
		}
		fmt.Fprintf(&sb, "name_kind: %s\n", kind)
	} else {
		sb.WriteString("name_kind: none\n")
	}
	if c.ByContent.Matched() {
		fmt.Fprintf(&sb, "root_tag: %s\n", c.ByContent.RootTag)
	}
	if c.Key != "" {
		fmt.Fprintf(&sb, "%s: %s\n", strings.ToLower(h.keyField), c.Key)
	}
	if c.ParseErr != nil {
		fmt.Fprintf(&sb, "error: %s\n", c.ParseErr)
	}

	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ClassifyHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "classify_xml",
		Description: "Classify an XML file by name pattern and root element and extract its key",
	}
}

// RegisterClassifyTool registers the classify tool with an MCP server.
func RegisterClassifyTool(server *mcp.Server, patterns *matcher.PatternSet, keyField string) {
	handler := NewClassifyHandler(patterns, keyField)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
