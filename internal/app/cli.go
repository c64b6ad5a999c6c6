package app

import "github.com/spf13/pflag"

// RegisterGlobalFlags registers the flags shared by every command
func RegisterGlobalFlags(flags *pflag.FlagSet) {
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
	flags.Int("progress-interval", 0, "Files between progress updates")
	flags.Int("max-field-length", 0, "Longest audit log field, in characters")
	flags.String("primary-pattern", "", "Primary file name prefix (e.g. FE)")
	flags.StringSlice("aux-patterns", nil, "Auxiliary file name prefixes (comma-separated)")
	flags.String("catalog-dir", "", "Directory of the document catalog; empty disables it")
}

// RegisterRouteFlags registers the flags of the route command
func RegisterRouteFlags(flags *pflag.FlagSet) {
	flags.StringP("dest", "d", "", "Destination root mirroring the source tree (default: route in place)")
	flags.StringSliceP("target-tags", "t", nil, "Root elements to route (comma-separated)")
	flags.String("pending-tag", "", "Root element listed as pending in the report")
	flags.StringP("subfolder", "s", "", "Subfolder receiving routed files")
	flags.String("route-log", "", "Append one CSV line per routed file to this log")
	flags.String("report-file", "", "Write the final report to this file")
	flags.StringSlice("exclude", nil, "Path patterns to skip, relative to the source (comma-separated)")
	flags.IntP("workers", "w", 0, "Files classified in parallel")
}

// RegisterRenameFlags registers the flags of the rename command
func RegisterRenameFlags(flags *pflag.FlagSet) {
	flags.StringP("field", "f", "", "Element holding the document key")
	flags.String("duplicates-dir", "", "Folder receiving duplicates, next to the original")
	flags.String("duplicate-separator", "", "Separator between a duplicate name and its counter")
	flags.BoolP("dry-run", "n", false, "Print the plan without renaming or moving anything")
	flags.StringSlice("exclude", nil, "Path patterns to skip, relative to the root (comma-separated)")
}

// RegisterExtractFlags registers the flags of the extract command
func RegisterExtractFlags(flags *pflag.FlagSet) {
	flags.String("log-file", "", "Sender log, relative to the output directory unless absolute")
	flags.String("log-mode", "", "Sender log layout: eml, mailbox or combined")
	flags.Int64("max-xml-size", 0, "Largest attachment extracted, in bytes")
	flags.BoolP("recursive", "r", false, "Also read .eml files in subdirectories")
	flags.Bool("no-validate", false, "Skip the well-formedness check of extracted files")
}

// RegisterSearchFlags registers the flags of the search command
func RegisterSearchFlags(flags *pflag.FlagSet) {
	flags.String("root-tag", "", "Filter by root element")
	flags.String("kind", "", "Filter by name kind (e.g. FE, NC)")
	flags.Int("max-results", 0, "Maximum number of hits")
}

// RegisterServeFlags registers the flags of the serve command
func RegisterServeFlags(flags *pflag.FlagSet) {
	flags.Int("max-results", 0, "Maximum number of search hits")
	flags.StringSliceP("target-tags", "t", nil, "Default root elements routed by route_tree (comma-separated)")
	flags.StringP("subfolder", "s", "", "Default subfolder used by route_tree")
}
