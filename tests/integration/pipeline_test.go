package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xmlsort/internal/app"
	"github.com/sha1n/xmlsort/internal/catalog"
	mcputil "github.com/sha1n/xmlsort/internal/mcp"
	"github.com/sha1n/xmlsort/internal/router"
	"github.com/sha1n/xmlsort/tests/integration/testkit"
)

const (
	invoiceXML  = `<?xml version="1.0" encoding="utf-8"?><FacturaElectronica><Clave>50601011</Clave><Emisor><Nombre>Acme</Nombre></Emisor></FacturaElectronica>`
	responseXML = `<?xml version="1.0" encoding="utf-8"?><MensajeHacienda><Clave>50601022</Clave><Mensaje>1</Mensaje></MensajeHacienda>`
)

// ========================================
// Command Pipeline Tests
// ========================================

func TestPipeline_ExtractRenameRoute(t *testing.T) {
	mailbox := &testkit.Mailbox{Messages: []testkit.Message{
		{
			From:    "Ventas Acme <ventas@acme.example>",
			Subject: "Factura 11",
			Date:    "Tue, 7 Oct 2025 10:00:00 -0600",
			Attachments: map[string]string{
				"FE001.xml": invoiceXML,
				"FE002.xml": responseXML,
			},
		},
		{
			From:        "ventas@acme.example",
			Subject:     "Reenvio factura 11",
			Attachments: map[string]string{"FE001.xml": invoiceXML},
		},
	}}
	env := testkit.NewTestEnv(mailbox)
	props, err := env.Start()
	if err != nil {
		t.Fatalf("Failed to start env: %v", err)
	}
	defer func() { _ = env.Stop() }()

	inbox := props[testkit.PropInbox].(string)
	out := filepath.Join(t.TempDir(), "xml")
	catalogDir := filepath.Join(t.TempDir(), "catalog")
	ctx := context.Background()

	// Extract: the resent invoice gets a collision suffix
	stdout := run(t, func(p app.RunParams) error {
		flags := testkit.NewTestFlags(t, "extract", &testkit.FlagOptions{CatalogDir: catalogDir})
		return app.RunExtract(ctx, p, flags, inbox, out)
	})
	assertFiles(t, out, "FE001.xml", "FE001_001.xml", "FE002.xml", "remitentes.csv")
	if !strings.Contains(stdout, "Success rate: 100.0%") {
		t.Errorf("unexpected extract summary:\n%s", stdout)
	}

	// Rename: the second copy of the invoice is a duplicate
	run(t, func(p app.RunParams) error {
		flags := testkit.NewTestFlags(t, "rename", &testkit.FlagOptions{CatalogDir: catalogDir})
		return app.RunRename(ctx, p, flags, out)
	})
	assertFiles(t, out, "50601011.xml", "50601022.xml", "Copias/50601011.xml", "remitentes.csv")

	// Route: only the response moves
	stdout = run(t, func(p app.RunParams) error {
		flags := testkit.NewTestFlags(t, "route", &testkit.FlagOptions{
			CatalogDir: catalogDir,
			Values:     map[string]string{"report-file": filepath.Join(out, "report.txt")},
		})
		return app.RunRoute(ctx, p, flags, out)
	})
	assertFiles(t, out, "50601011.xml", "HaciendaResponse/50601022.xml", "Copias/50601011.xml")
	if _, err := os.Stat(filepath.Join(out, "50601022.xml")); !os.IsNotExist(err) {
		t.Error("response should have left the root")
	}
	if !strings.Contains(stdout, "routed 1") {
		t.Errorf("unexpected route report:\n%s", stdout)
	}
	report, err := os.ReadFile(filepath.Join(out, "report.txt"))
	if err != nil || !strings.Contains(string(report), "50601022.xml") {
		t.Errorf("report file missing the routed document: %v\n%s", err, report)
	}

	// Second run changes nothing
	stdout = run(t, func(p app.RunParams) error {
		return app.RunRoute(ctx, p, testkit.NewTestFlags(t, "route", nil), out)
	})
	if !strings.Contains(stdout, "routed 0") {
		t.Errorf("second run should route nothing:\n%s", stdout)
	}

	// Search: the catalog knows where the response ended up
	stdout = run(t, func(p app.RunParams) error {
		flags := testkit.NewTestFlags(t, "search", &testkit.FlagOptions{
			CatalogDir: catalogDir,
			Values:     map[string]string{"root-tag": "MensajeHacienda"},
		})
		return app.RunSearch(ctx, p, flags, app.SearchRequest{Query: "50601022", RootTag: "MensajeHacienda"})
	})
	if !strings.Contains(stdout, filepath.Join("HaciendaResponse", "50601022.xml")) {
		t.Errorf("search should find the routed response:\n%s", stdout)
	}
}

func TestPipeline_RenameDryRunLeavesTree(t *testing.T) {
	root := t.TempDir()
	testkit.WriteTree(t, root, map[string]string{
		"2025/10/FE001.xml": invoiceXML,
		"2025/10/FE002.xml": invoiceXML,
	})

	stdout := run(t, func(p app.RunParams) error {
		flags := testkit.NewTestFlags(t, "rename", &testkit.FlagOptions{Values: map[string]string{"dry-run": "true"}})
		return app.RunRename(context.Background(), p, flags, root)
	})

	assertFiles(t, root, "2025/10/FE001.xml", "2025/10/FE002.xml")
	if !strings.Contains(stdout, "FE002.xml") {
		t.Errorf("plan should list the duplicate:\n%s", stdout)
	}
}

func TestPipeline_RouteToDestinationRoot(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "sorted")
	testkit.WriteTree(t, src, map[string]string{
		"acme/FE001.xml": invoiceXML,
		"acme/FE002.xml": responseXML,
	})

	run(t, func(p app.RunParams) error {
		flags := testkit.NewTestFlags(t, "route", &testkit.FlagOptions{Values: map[string]string{"dest": dest}})
		return app.RunRoute(context.Background(), p, flags, src)
	})

	assertFiles(t, dest, "acme/HaciendaResponse/FE002.xml")
	assertFiles(t, src, "acme/FE001.xml")
}

// ========================================
// MCP Tool Integration Tests
// ========================================

func TestMCPTools_RouteThenSearch(t *testing.T) {
	svc := &testkit.CatalogService{Dir: t.TempDir()}
	env := testkit.NewTestEnv(svc)
	props, err := env.Start()
	if err != nil {
		t.Fatalf("Failed to start env: %v", err)
	}
	defer func() { _ = env.Stop() }()
	cat := props[testkit.PropCatalog].(*catalog.Catalog)

	root := t.TempDir()
	testkit.WriteTree(t, root, map[string]string{
		"FE001.xml": invoiceXML,
		"FE002.xml": responseXML,
	})

	ctx := context.Background()
	routeHandler := mcputil.NewRouteHandler(router.New(), router.Options{}, cat)
	result, _, err := routeHandler.Handle(ctx, &mcp.CallToolRequest{}, mcputil.RouteArgument{Source: root})
	if err != nil {
		t.Fatalf("route_tree failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("route_tree returned an error: %s", extractTextContent(result))
	}

	searchHandler := mcputil.NewSearchHandler(cat, 10)
	result, _, err = searchHandler.Handle(ctx, &mcp.CallToolRequest{}, mcputil.SearchArgument{
		Query:   "50601022",
		RootTag: "MensajeHacienda",
	})
	if err != nil {
		t.Fatalf("search_documents failed: %v", err)
	}
	content := extractTextContent(result)
	if !strings.Contains(content, filepath.Join(root, "HaciendaResponse", "FE002.xml")) {
		t.Errorf("expected the routed path in results, got:\n%s", content)
	}

	result, _, _ = searchHandler.Handle(ctx, &mcp.CallToolRequest{}, mcputil.SearchArgument{
		Query:   "50601022",
		RootTag: "FacturaElectronica",
	})
	if !strings.Contains(extractTextContent(result), "No results") {
		t.Errorf("root tag filter should exclude the response, got:\n%s", extractTextContent(result))
	}
}

func TestMCPTools_ClassifyExtractedFile(t *testing.T) {
	root := t.TempDir()
	testkit.WriteTree(t, root, map[string]string{"NC00042.xml": responseXML})

	handler := mcputil.NewClassifyHandler(nil, "")
	result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, mcputil.ClassifyArgument{
		Path: filepath.Join(root, "NC00042.xml"),
	})
	if err != nil {
		t.Fatalf("classify_xml failed: %v", err)
	}
	content := extractTextContent(result)
	for _, want := range []string{"name_kind: NC", "root_tag: MensajeHacienda", "clave: 50601022"} {
		if !strings.Contains(content, want) {
			t.Errorf("expected %q in:\n%s", want, content)
		}
	}
}

func TestMCPServer_CreatedWithoutCatalog(t *testing.T) {
	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
	})

	if server == nil {
		t.Fatal("Expected server to be created")
	}
}

// ========================================
// Helper Functions
// ========================================

// run invokes a runner with default params and returns its stdout.
func run(t *testing.T, fn func(app.RunParams) error) string {
	t.Helper()
	var stdout bytes.Buffer
	params := app.DefaultRunParams()
	params.Stdout = &stdout
	params.Stderr = &bytes.Buffer{}
	if err := fn(params); err != nil {
		t.Fatalf("command failed: %v\n%s", err, stdout.String())
	}
	return stdout.String()
}

// assertFiles fails for every slash separated path missing under root.
func assertFiles(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(p))); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
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
