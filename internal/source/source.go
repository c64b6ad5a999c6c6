// Package source enumerates candidate documents from a container: a tree of
// XML files or a directory of saved emails.
package source

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/sha1n/xmlsort/internal/domain"
)

var (
	// ErrRootNotFound indicates the input root does not exist.
	ErrRootNotFound = errors.New("source root not found")

	// ErrNotDirectory indicates the input root is a file.
	ErrNotDirectory = errors.New("source root is not a directory")

	// ErrEmpty indicates the root holds no containers to process.
	ErrEmpty = errors.New("no containers found")
)

// Source yields candidates one at a time. Scan must be called before
// Candidates; its errors are fatal for the run. Errors yielded by Candidates
// concern a single container and never stop the iteration.
type Source interface {
	Name() string
	Scan() (int, error)
	Candidates(ctx context.Context) iter.Seq2[*domain.Candidate, error]
}

// ContainerCounter is implemented by sources that can report how many
// containers were opened successfully.
type ContainerCounter interface {
	ContainersProcessed() int
}

// ContainerError reports a container that could not be read.
type ContainerError struct {
	Container string
	Err       error
}

func (e *ContainerError) Error() string {
	return fmt.Sprintf("error processing %s: %v", e.Container, e.Err)
}

func (e *ContainerError) Unwrap() error {
	return e.Err
}
