package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/sha1n/xmlsort/internal/domain"
)

// MaxErrorsShown is the number of errors listed by WriteSummary.
const MaxErrorsShown = domain.MaxFailuresShown

// WriteSummary prints the extraction statistics, the errors and the
// validation results.
func WriteSummary(w io.Writer, r *Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Containers found:     %d\n", r.ContainersFound)
	fmt.Fprintf(&b, "Containers processed: %d\n", r.ContainersProcessed)
	fmt.Fprintf(&b, "XML extracted:        %d\n", r.Routed)
	fmt.Fprintf(&b, "Errors:               %d\n", r.Errors)
	fmt.Fprintf(&b, "Output:               %s\n", r.Output)

	if len(r.Failures) > 0 {
		b.WriteString("\nErrors:\n")
		shown, more := r.ShownFailures()
		for i, f := range shown {
			fmt.Fprintf(&b, "  %d. %s: %s\n", i+1, f.Item, f.Err)
		}
		if more > 0 {
			fmt.Fprintf(&b, "  ... and %d more\n", more)
		}
	}

	if v := r.Validation; v != nil {
		total := v.Valid + v.Invalid
		b.WriteString("\nValidation:\n")
		fmt.Fprintf(&b, "  Valid:   %d\n", v.Valid)
		fmt.Fprintf(&b, "  Invalid: %d\n", v.Invalid)
		fmt.Fprintf(&b, "  Total:   %d\n", total)
		if total > 0 {
			fmt.Fprintf(&b, "  Success rate: %.1f%%\n", float64(v.Valid)*100/float64(total))
		}
		for i, f := range v.First {
			fmt.Fprintf(&b, "  %d. %s\n     %s\n", i+1, f.Name, f.Err)
		}
		if v.Invalid > len(v.First) {
			fmt.Fprintf(&b, "  ... and %d more invalid files\n", v.Invalid-len(v.First))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
