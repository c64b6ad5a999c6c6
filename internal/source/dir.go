package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sha1n/xmlsort/internal/domain"
)

// Dir yields every .xml file under a root directory, in lexical walk order.
type Dir struct {
	root   string
	filter *PathFilter
	files  []string
}

// NewDir creates a directory source. filter may be nil.
func NewDir(root string, filter *PathFilter) *Dir {
	return &Dir{root: root, filter: filter}
}

// Name identifies the source type.
func (d *Dir) Name() string { return "dir" }

// Root returns the walked directory.
func (d *Dir) Root() string { return d.root }

// Scan collects the XML files. Unreadable subdirectories are logged and
// skipped.
func (d *Dir) Scan() (int, error) {
	if err := checkRoot(d.root); err != nil {
		return 0, err
	}

	d.files = d.files[:0]
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == d.root {
				return err
			}
			slog.Warn("Skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if entry.IsDir() || !HasExt(entry.Name(), ".xml") {
			return nil
		}
		if rel, relErr := filepath.Rel(d.root, path); relErr == nil && d.filter.ShouldExclude(rel) {
			return nil
		}
		d.files = append(d.files, path)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk %s: %w", d.root, err)
	}
	if len(d.files) == 0 {
		return 0, fmt.Errorf("%w: no .xml files in %s", ErrEmpty, d.root)
	}
	return len(d.files), nil
}

// Files returns the paths found by the last Scan.
func (d *Dir) Files() []string {
	return d.files
}

// Candidates yields one file candidate per scanned path.
func (d *Dir) Candidates(ctx context.Context) iter.Seq2[*domain.Candidate, error] {
	return func(yield func(*domain.Candidate, error) bool) {
		for _, path := range d.files {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			origin := domain.Origin{Folder: filepath.Dir(path)}
			if !yield(domain.NewFileCandidate(path, filepath.Base(path), origin), nil) {
				return
			}
		}
	}
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}
	if err != nil {
		return fmt.Errorf("failed to access %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}
	return nil
}
