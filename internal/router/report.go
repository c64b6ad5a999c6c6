package router

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sha1n/xmlsort/internal/matcher"
	"github.com/sha1n/xmlsort/internal/source"
)

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t = matcher.LocalName(t); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// inDestination reports whether path was already routed: it lies under the
// destination root, or, when routing in place, any directory of its absolute
// path is the subfolder, including those above the source root.
func (s *run) inDestination(path string) bool {
	if s.destRoot != "" {
		return contains(s.destRoot, path)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		dir = filepath.Dir(path)
	}
	for segment := range strings.SplitSeq(filepath.ToSlash(dir), "/") {
		if strings.EqualFold(segment, s.opts.Subfolder) {
			return true
		}
	}
	return false
}

func contains(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// destinationDir is dest/rel(parent)/subfolder, or parent/subfolder when
// routing in place.
func (s *run) destinationDir(path string) string {
	parent := filepath.Dir(path)
	if s.destRoot == "" {
		return filepath.Join(parent, s.opts.Subfolder)
	}
	rel, err := filepath.Rel(s.srcRoot, parent)
	if err != nil || !contains(s.srcRoot, parent) {
		rel = "."
	}
	return filepath.Join(s.destRoot, rel, s.opts.Subfolder)
}

// listings walks the trees again, read-only, for the pending documents and
// the routed inventory.
func (s *run) listings(filter *source.PathFilter) (pending, inventory []string) {
	pending = collect(s.srcRoot, filter, func(path, tag string) bool {
		return tag == s.opts.PendingTag
	})

	invRoot := s.srcRoot
	if s.destRoot != "" {
		invRoot = s.destRoot
		filter = nil
	}
	inventory = collect(invRoot, filter, func(path, tag string) bool {
		_, target := s.targets[tag]
		return target && s.inDestination(path)
	})
	return pending, inventory
}

// collect returns the paths under root, relative to it, whose root tag is
// accepted by keep. Unreadable files are logged and left out.
func collect(root string, filter *source.PathFilter, keep func(path, tag string) bool) []string {
	dir := source.NewDir(root, filter)
	if _, err := dir.Scan(); err != nil {
		if !errors.Is(err, source.ErrEmpty) {
			slog.Warn("Could not list files", "root", root, "error", err)
		}
		return nil
	}

	var out []string
	for _, path := range dir.Files() {
		f, err := os.Open(path)
		if err != nil {
			slog.Debug("Could not read file for report", "path", path, "error", err)
			continue
		}
		tag, err := matcher.RootTag(f)
		_ = f.Close()
		if err != nil || !keep(path, tag) {
			continue
		}
		if rel, err := filepath.Rel(root, path); err == nil {
			out = append(out, rel)
		}
	}
	slices.Sort(out)
	return out
}

// WriteReport prints a human readable report.
func WriteReport(w io.Writer, r *Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Processed %d files, routed %d, skipped %d, errors %d\n",
		r.Processed, r.Routed, r.Skipped, r.Errors)
	for _, reason := range []string{SkipInDestination, SkipUnreadable, SkipNoMatch} {
		if n := r.Skips[reason]; n > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", reason, n)
		}
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&b, "Warnings: %d\n", r.Warnings)
	}

	if len(r.Moves) > 0 {
		b.WriteString("\nMoved:\n")
		for _, m := range r.Moves {
			fmt.Fprintf(&b, "  - %s -> %s (%s)\n", m.Source, m.Destination, m.Method)
		}
	}

	if len(r.Failures) > 0 {
		b.WriteString("\nFailed:\n")
		shown, more := r.ShownFailures()
		for _, f := range shown {
			fmt.Fprintf(&b, "  - %s: %s\n", f.Item, f.Err)
		}
		if more > 0 {
			fmt.Fprintf(&b, "  ... and %d more\n", more)
		}
	}

	fmt.Fprintf(&b, "\nPending documents in %s:\n", r.Source)
	writeList(&b, r.Pending)

	inventoryRoot := r.Destination
	if inventoryRoot == "" {
		inventoryRoot = r.Source
	}
	fmt.Fprintf(&b, "\nRouted documents in %s:\n", inventoryRoot)
	writeList(&b, r.Inventory)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

func writeReportFile(path string, r *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteReport(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
