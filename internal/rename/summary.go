package rename

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// WriteSummary prints the run summary and, for dry runs, the plan.
func WriteSummary(w io.Writer, r *Report) error {
	var b strings.Builder

	if r.DryRun {
		b.WriteString("Dry run: nothing was renamed or moved\n")
		for _, a := range r.Actions {
			rel, err := filepath.Rel(r.Root, a.Destination)
			if err != nil {
				rel = a.Destination
			}
			fmt.Fprintf(&b, "  %s: %s -> %s\n", a.Kind, filepath.Base(a.Source), rel)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Files processed: %d\n", r.Processed)
	fmt.Fprintf(&b, "Renamed: %d\n", r.Renamed)
	fmt.Fprintf(&b, "Already canonical: %d\n", r.AlreadyCanonical)
	fmt.Fprintf(&b, "Duplicates moved: %d\n", r.Duplicates)
	fmt.Fprintf(&b, "Missing key: %d\n", r.MissingKey)
	fmt.Fprintf(&b, "Errors: %d\n", r.Errors)
	shown, more := r.ShownFailures()
	for _, f := range shown {
		fmt.Fprintf(&b, "  - %s: %s\n", f.Item, f.Err)
	}
	if more > 0 {
		fmt.Fprintf(&b, "  ... and %d more\n", more)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
