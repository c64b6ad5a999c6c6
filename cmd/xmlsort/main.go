package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sha1n/xmlsort/internal/app"
	"github.com/spf13/cobra"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "xmlsort"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	return ExecuteWithParams(version, build, programName, args, app.DefaultRunParams())
}

// ExecuteWithParams builds the command tree around params.
func ExecuteWithParams(version, build, programName string, args []string, params app.RunParams) error {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Electronic invoice XML sorter",
		Long:         "Extracts, renames and routes electronic invoice XML documents, and serves the same operations over MCP.",
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)
	app.RegisterGlobalFlags(rootCmd.PersistentFlags())

	routeCmd := &cobra.Command{
		Use:   "route [source]",
		Short: "Move response documents into a subfolder next to where they were found",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return app.RunRoute(ctx, params, cmd.Flags(), argAt(args, 0))
		},
	}
	app.RegisterRouteFlags(routeCmd.Flags())

	renameCmd := &cobra.Command{
		Use:   "rename [directory]",
		Short: "Rename documents after their key, setting duplicates aside",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return app.RunRename(ctx, params, cmd.Flags(), argAt(args, 0))
		},
	}
	app.RegisterRenameFlags(renameCmd.Flags())

	extractCmd := &cobra.Command{
		Use:   "extract [input] [output]",
		Short: "Save the invoice attachments of .eml messages",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return app.RunExtract(ctx, params, cmd.Flags(), argAt(args, 0), argAt(args, 1))
		},
	}
	app.RegisterExtractFlags(extractCmd.Flags())

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the document catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rootTag, _ := cmd.Flags().GetString("root-tag")
			kind, _ := cmd.Flags().GetString("kind")
			return app.RunSearch(cmd.Context(), params, cmd.Flags(), app.SearchRequest{
				Query:   args[0],
				RootTag: rootTag,
				Kind:    kind,
			})
		},
	}
	app.RegisterSearchFlags(searchCmd.Flags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve classify, route and search tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return app.RunServe(ctx, params, cmd.Flags(), version)
		},
	}
	app.RegisterServeFlags(serveCmd.Flags())

	rootCmd.AddCommand(routeCmd, renameCmd, extractCmd, searchCmd, serveCmd)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
