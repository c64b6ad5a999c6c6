package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xmlsort/internal/audit"
	"github.com/sha1n/xmlsort/internal/catalog"
	"github.com/sha1n/xmlsort/internal/config"
	"github.com/sha1n/xmlsort/internal/extract"
	mcputil "github.com/sha1n/xmlsort/internal/mcp"
	"github.com/sha1n/xmlsort/internal/rename"
	"github.com/sha1n/xmlsort/internal/router"
	"github.com/sha1n/xmlsort/internal/source"
	"github.com/spf13/pflag"
)

// RunRoute routes the XML files under source by root tag. source falls back
// to route.source.
func RunRoute(ctx context.Context, params RunParams, flags *pflag.FlagSet, sourceDir string) error {
	settings, runID, err := params.prepare(flags, "route")
	if err != nil {
		return err
	}

	sourceDir = firstNonEmpty(sourceDir, settings.Route.Source)
	if sourceDir == "" {
		return fmt.Errorf("%w: source directory", ErrMissingArgument)
	}

	cat, closeCatalog, err := openCatalog(settings)
	if err != nil {
		return err
	}
	defer closeCatalog()

	base := firstNonEmpty(settings.Route.Destination, sourceDir)
	logWriter, err := auditWriter(settings.Route.LogFile, base, audit.ModeRoute, settings.MaxFieldLength)
	if err != nil {
		return err
	}

	report, err := router.New().Route(ctx, router.Options{
		Source:           sourceDir,
		Destination:      settings.Route.Destination,
		TargetTags:       settings.Route.TargetTags,
		PendingTag:       settings.Route.PendingTag,
		Subfolder:        settings.Route.Subfolder,
		Exclude:          settings.Route.Exclude,
		Workers:          settings.Workers,
		ProgressInterval: settings.ProgressInterval,
		RunID:            runID,
		Audit:            logWriter,
		Recorder:         recorder(cat),
		Progress:         progressLogger("route"),
		ReportFile:       settings.Route.ReportFile,
	})
	if report == nil {
		return err
	}
	if writeErr := router.WriteReport(params.stdout(), report); writeErr != nil {
		slog.Error("Failed to print report", "error", writeErr)
	}
	return err
}

// RunRename renames the XML files under root after their key. root falls
// back to rename.root.
func RunRename(ctx context.Context, params RunParams, flags *pflag.FlagSet, root string) error {
	settings, runID, err := params.prepare(flags, "rename")
	if err != nil {
		return err
	}

	root = firstNonEmpty(root, settings.Rename.Root)
	if root == "" {
		return fmt.Errorf("%w: directory", ErrMissingArgument)
	}

	cat, closeCatalog, err := openCatalog(settings)
	if err != nil {
		return err
	}
	defer closeCatalog()

	report, err := rename.New(nil).Rename(ctx, rename.Options{
		Root:               root,
		Field:              settings.Rename.Field,
		DuplicatesDir:      settings.Rename.DuplicatesDir,
		DuplicateSeparator: settings.Rename.DuplicateSeparator,
		DryRun:             settings.Rename.DryRun,
		Exclude:            settings.Rename.Exclude,
		ProgressInterval:   settings.ProgressInterval,
		Progress:           progressLogger("rename"),
		RunID:              runID,
		Recorder:           recorder(cat),
	})
	if report == nil {
		return err
	}
	if writeErr := rename.WriteSummary(params.stdout(), report); writeErr != nil {
		slog.Error("Failed to print summary", "error", writeErr)
	}
	return err
}

// RunExtract saves the matching attachments of the .eml files in input into
// output. Both fall back to the extract settings.
func RunExtract(ctx context.Context, params RunParams, flags *pflag.FlagSet, input, output string) error {
	settings, runID, err := params.prepare(flags, "extract")
	if err != nil {
		return err
	}

	input = firstNonEmpty(input, settings.Extract.Input)
	output = firstNonEmpty(output, settings.Extract.Output)
	if input == "" || output == "" {
		return fmt.Errorf("%w: input and output directories", ErrMissingArgument)
	}

	set, err := patterns(settings)
	if err != nil {
		return err
	}
	mode, err := audit.ParseMode(settings.Extract.LogMode)
	if err != nil {
		return err
	}
	logWriter, err := auditWriter(settings.Extract.LogFile, output, mode, settings.MaxFieldLength)
	if err != nil {
		return err
	}

	cat, closeCatalog, err := openCatalog(settings)
	if err != nil {
		return err
	}
	defer closeCatalog()

	src := source.NewEML(input, settings.Extract.Recursive, source.WithMaxAttachmentSize(settings.Extract.MaxXMLSize))
	report, err := extract.New(nil).Extract(ctx, src, extract.Options{
		Output:           output,
		Patterns:         set,
		MaxXMLSize:       settings.Extract.MaxXMLSize,
		Validate:         !settings.Extract.SkipValidation,
		Audit:            logWriter,
		Recorder:         recorder(cat),
		RunID:            runID,
		Progress:         progressLogger("extract"),
		ProgressInterval: settings.ProgressInterval,
	})
	if report == nil {
		return err
	}
	if writeErr := extract.WriteSummary(params.stdout(), report); writeErr != nil {
		slog.Error("Failed to print summary", "error", writeErr)
	}
	return err
}

// SearchRequest holds the search command arguments.
type SearchRequest struct {
	Query   string
	RootTag string
	Kind    string
}

// RunSearch queries the document catalog.
func RunSearch(ctx context.Context, params RunParams, flags *pflag.FlagSet, req SearchRequest) error {
	settings, _, err := params.prepare(flags, "search")
	if err != nil {
		return err
	}
	if !settings.CatalogEnabled() {
		return fmt.Errorf("%w: catalog-dir", ErrMissingArgument)
	}
	if !catalog.Exists(settings.Catalog.Dir) {
		return fmt.Errorf("no catalog in %s", settings.Catalog.Dir)
	}

	cat, closeCatalog, err := openCatalog(settings)
	if err != nil {
		return err
	}
	defer closeCatalog()

	results, err := cat.Search(ctx, catalog.Query{
		Text:    req.Query,
		RootTag: req.RootTag,
		Kind:    req.Kind,
		Size:    settings.Catalog.MaxResults,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(params.stdout(), mcputil.FormatResults(results, req.Query))
	return err
}

// RunServe runs the MCP server on stdio until ctx is done.
func RunServe(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, _, err := params.prepare(flags, "serve")
	if err != nil {
		return err
	}

	mcpServer, cleanup, err := CreateMCPServer(settings, version)
	if err != nil {
		return err
	}
	defer cleanup()

	// Use custom transport if provided (for testing), otherwise use stdio
	transport := params.CustomIOTransport
	if transport == nil {
		transport = &mcp.StdioTransport{}
	}
	slog.Info("Serving MCP on stdio", "version", version)
	return mcpServer.Run(ctx, transport)
}

// CreateMCPServer creates the MCP server with registered tools
func CreateMCPServer(settings *config.Settings, version string) (*mcp.Server, func(), error) {
	set, err := patterns(settings)
	if err != nil {
		return nil, nil, err
	}

	cat, closeCatalog, err := openCatalog(settings)
	if err != nil {
		return nil, nil, err
	}

	cfg := mcputil.ServerConfig{
		Name:     "xmlsort",
		Version:  version,
		Patterns: set,
		KeyField: settings.Rename.Field,
		RouteDefaults: router.Options{
			TargetTags:       settings.Route.TargetTags,
			PendingTag:       settings.Route.PendingTag,
			Subfolder:        settings.Route.Subfolder,
			Exclude:          settings.Route.Exclude,
			Workers:          settings.Workers,
			ProgressInterval: settings.ProgressInterval,
		},
		MaxResults: settings.Catalog.MaxResults,
	}
	if cat != nil {
		cfg.Catalog = cat
	}

	return mcputil.CreateServer(cfg), closeCatalog, nil
}
