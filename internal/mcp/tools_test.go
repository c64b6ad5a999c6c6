package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xmlsort/internal/catalog"
	"github.com/sha1n/xmlsort/internal/domain"
	"github.com/sha1n/xmlsort/internal/matcher"
	"github.com/sha1n/xmlsort/internal/router"
)

const response = `<?xml version="1.0"?><MensajeHacienda xmlns="urn:mh"><Clave>50601</Clave><Mensaje>aceptado</Mensaje></MensajeHacienda>`

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// extractTextContent extracts text from MCP result
func extractTextContent(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func openCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Failed to close catalog: %v", err)
		}
	})
	return c
}

func TestClassifyHandler(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "FE00123.xml")
	write(t, path, response)

	handler := NewClassifyHandler(matcher.DefaultPatternSet(), "Clave")
	result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, ClassifyArgument{Path: path})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", extractTextContent(result))
	}

	text := extractTextContent(result)
	for _, want := range []string{"file: FE00123.xml", "name_kind: FE (invoice)", "root_tag: MensajeHacienda", "clave: 50601"} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
}

func TestClassifyHandler_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.xml")
	write(t, path, "<<<")

	handler := NewClassifyHandler(matcher.DefaultPatternSet(), "Clave")
	c, err := handler.Classify(path)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if c.ByName.Matched() || c.ByContent.Matched() || c.ParseErr == nil {
		t.Errorf("classification = %+v", c)
	}

	result, _, _ := handler.Handle(context.Background(), &mcp.CallToolRequest{}, ClassifyArgument{Path: path})
	text := extractTextContent(result)
	if !strings.Contains(text, "name_kind: none") || !strings.Contains(text, "error: malformed XML") {
		t.Errorf("result = %s", text)
	}
}

func TestClassifyHandler_Errors(t *testing.T) {
	handler := NewClassifyHandler(matcher.DefaultPatternSet(), "Clave")

	tests := []struct {
		name string
		path string
		want string
	}{
		{"empty path", " ", "Path cannot be empty"},
		{"missing file", filepath.Join(t.TempDir(), "nope.xml"), "File not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, ClassifyArgument{Path: tt.path})
			if err != nil {
				t.Fatalf("Handle failed: %v", err)
			}
			if !result.IsError || !strings.Contains(extractTextContent(result), tt.want) {
				t.Errorf("result = %+v", extractTextContent(result))
			}
		})
	}
}

func TestRouteHandler(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "A", "FE100.xml"), response)
	c := openCatalog(t)

	handler := NewRouteHandler(router.New(), router.Options{Subfolder: "Respuestas"}, c)
	result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, RouteArgument{Source: root})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", extractTextContent(result))
	}
	if !strings.Contains(extractTextContent(result), "routed 1") {
		t.Errorf("result = %s", extractTextContent(result))
	}
	if _, err := os.Stat(filepath.Join(root, "A", "Respuestas", "FE100.xml")); err != nil {
		t.Errorf("file not routed: %v", err)
	}

	n, err := c.Count()
	if err != nil || n != 1 {
		t.Errorf("catalog Count = %d, %v; want 1", n, err)
	}
}

func TestRouteHandler_Errors(t *testing.T) {
	handler := NewRouteHandler(router.New(), router.Options{}, nil)

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"empty source", "", "Source cannot be empty"},
		{"missing source", filepath.Join(t.TempDir(), "missing"), "Source directory not found"},
		{"no xml", t.TempDir(), "No XML files found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, RouteArgument{Source: tt.source})
			if err != nil {
				t.Fatalf("Handle failed: %v", err)
			}
			if !result.IsError || !strings.Contains(extractTextContent(result), tt.want) {
				t.Errorf("result = %s", extractTextContent(result))
			}
		})
	}
}

func TestSearchHandler(t *testing.T) {
	c := openCatalog(t)
	for _, p := range []domain.Placement{
		{Name: "FE1.xml", Kind: "FE", RootTag: "MensajeHacienda", Key: "50601", Destination: "/d/FE1.xml", At: time.Now(), Content: []byte(response)},
		{Name: "FE2.xml", Kind: "FE", RootTag: "FacturaElectronica", Key: "50602", Destination: "/d/FE2.xml", At: time.Now(), Content: []byte("<FacturaElectronica>rechazado</FacturaElectronica>")},
	} {
		if err := c.Record(p); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}

	handler := NewSearchHandler(c, 10)
	result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, SearchArgument{Query: "aceptado"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	text := extractTextContent(result)
	if result.IsError || !strings.Contains(text, "Found 1 results") || !strings.Contains(text, "/d/FE1.xml") {
		t.Errorf("result = %s", text)
	}

	result, _, _ = handler.Handle(context.Background(), &mcp.CallToolRequest{}, SearchArgument{Query: "aceptado", RootTag: "FacturaElectronica"})
	if text := extractTextContent(result); !strings.Contains(text, "No results found") {
		t.Errorf("filtered result = %s", text)
	}
}

func TestSearchHandler_Errors(t *testing.T) {
	result, _, _ := NewSearchHandler(nil, 10).Handle(context.Background(), &mcp.CallToolRequest{}, SearchArgument{Query: "x"})
	if !result.IsError || !strings.Contains(extractTextContent(result), "No document catalog") {
		t.Errorf("result = %s", extractTextContent(result))
	}

	result, _, _ = NewSearchHandler(openCatalog(t), 10).Handle(context.Background(), &mcp.CallToolRequest{}, SearchArgument{Query: "  "})
	if !result.IsError || !strings.Contains(extractTextContent(result), "Query cannot be empty") {
		t.Errorf("result = %s", extractTextContent(result))
	}
}

func TestFormatResults_More(t *testing.T) {
	text := FormatResults(&catalog.Result{Total: 3, Hits: []catalog.Hit{{Name: "a.xml", Fragments: []string{"<mark>x</mark>"}}}}, "x")
	if !strings.Contains(text, "... and 2 more results") || !strings.Contains(text, "<mark>x</mark>") {
		t.Errorf("text = %s", text)
	}
}
