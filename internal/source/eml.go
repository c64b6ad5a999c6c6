package source

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/sha1n/xmlsort/internal/domain"
)

// EML yields the file attachments of saved .eml messages.
type EML struct {
	root          string
	recursive     bool
	maxAttachment int64
	files         []string
	processed     atomic.Int64
}

// EMLOption configures an EML source.
type EMLOption func(*EML)

// WithMaxAttachmentSize stops buffering attachments larger than n bytes.
// They are still yielded, empty, with their real Size so callers can report
// them.
func WithMaxAttachmentSize(n int64) EMLOption {
	return func(e *EML) {
		e.maxAttachment = n
	}
}

// NewEML creates a source over the .eml files in root.
func NewEML(root string, recursive bool, opts ...EMLOption) *EML {
	e := &EML{root: root, recursive: recursive}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the source type.
func (e *EML) Name() string { return "eml" }

// Scan lists the .eml files, sorted by path.
func (e *EML) Scan() (int, error) {
	if err := checkRoot(e.root); err != nil {
		return 0, err
	}

	e.files = e.files[:0]
	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == e.root {
				return err
			}
			slog.Warn("Skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path != e.root && !e.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if HasExt(d.Name(), ".eml") {
			e.files = append(e.files, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk %s: %w", e.root, err)
	}
	if len(e.files) == 0 {
		return 0, fmt.Errorf("%w: no .eml files in %s", ErrEmpty, e.root)
	}
	sort.Strings(e.files)
	return len(e.files), nil
}

// ContainersProcessed returns the number of messages parsed so far.
func (e *EML) ContainersProcessed() int {
	return int(e.processed.Load())
}

// Candidates parses each message and yields its attachments as in-memory
// candidates. A message that cannot be read yields a *ContainerError.
func (e *EML) Candidates(ctx context.Context) iter.Seq2[*domain.Candidate, error] {
	return func(yield func(*domain.Candidate, error) bool) {
		for _, path := range e.files {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			msg, err := readMessage(path, e.maxAttachment)
			container := filepath.Base(path)
			if err != nil {
				if !yield(nil, &ContainerError{Container: container, Err: err}) {
					return
				}
				continue
			}
			e.processed.Add(1)

			origin := domain.Origin{
				Sender:    msg.From,
				Subject:   msg.Subject,
				Date:      msg.Date,
				Container: container,
				Folder:    filepath.Dir(path),
			}
			for _, att := range msg.Attachments {
				c := domain.NewMemoryCandidate(filepath.Join(path, att.Name), att.Name, att.Data, origin)
				c.Size = att.Size
				if !yield(c, nil) {
					return
				}
			}
		}
	}
}

func readMessage(path string, maxAttachment int64) (*Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ParseMessageLimit(f, maxAttachment)
}
