// Package collision picks destination paths that never overwrite an existing
// file, numbering duplicates deterministically.
package collision

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultSeparator joins the stem and the counter: FE1_001.xml.
	DefaultSeparator = "_"

	// DefaultMaxProbes bounds the numbered candidates tried per document.
	DefaultMaxProbes = 9999
)

var (
	// ErrExhausted indicates no free name was found within the probe limit.
	ErrExhausted = errors.New("no unique file name available")

	// ErrNotDir indicates the destination directory is occupied by a file.
	ErrNotDir = errors.New("destination is not a directory")
)

// ExistsFunc reports whether a path is occupied on disk.
type ExistsFunc func(path string) bool

// DiskExists reports whether path exists, treating stat errors other than
// "not exist" as occupied so the resolver never proposes an unknown path.
func DiskExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// DirCheckFunc returns an error when dir can never hold the file. A
// directory that does not exist yet is fine.
type DirCheckFunc func(dir string) error

// DiskDirCheck fails when dir, or one of its parents, is not a directory or
// cannot be inspected.
func DiskDirCheck(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDir, dir)
	}
	return nil
}

// Resolver produces unique destination paths.
type Resolver struct {
	registry  *Registry
	exists    ExistsFunc
	checkDir  DirCheckFunc
	separator string
	maxProbes int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithExists replaces the disk existence check.
func WithExists(fn ExistsFunc) Option {
	return func(r *Resolver) { r.exists = fn }
}

// WithDirCheck replaces the destination directory check.
func WithDirCheck(fn DirCheckFunc) Option {
	return func(r *Resolver) { r.checkDir = fn }
}

// WithSeparator sets the text between stem and counter.
func WithSeparator(sep string) Option {
	return func(r *Resolver) { r.separator = sep }
}

// WithMaxProbes sets the probe limit.
func WithMaxProbes(n int) Option {
	return func(r *Resolver) { r.maxProbes = n }
}

// NewResolver creates a resolver backed by registry. A nil registry gets a
// fresh one.
func NewResolver(registry *Registry, opts ...Option) *Resolver {
	if registry == nil {
		registry = NewRegistry()
	}
	r := &Resolver{
		registry:  registry,
		exists:    DiskExists,
		checkDir:  DiskDirCheck,
		separator: DefaultSeparator,
		maxProbes: DefaultMaxProbes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the claim registry.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Resolve returns a free path for name in dir, using the lower-cased name as
// the logical key.
func (r *Resolver) Resolve(dir, name string) (string, error) {
	return r.ResolveKey(dir, name, nameKey(name))
}

// ResolveKey returns dir/name when it is free on disk and neither key nor
// name has been claimed in dir during this run. Otherwise it returns the
// first free stem{sep}NNN.ext, NNN counting from 001. The returned path is
// claimed before returning. A dir that cannot hold files fails right away.
func (r *Resolver) ResolveKey(dir, name, key string) (string, error) {
	if err := r.checkDir(dir); err != nil {
		return "", err
	}

	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()

	claims := r.registry.claimsFor(dir)
	path := filepath.Join(dir, name)
	_, keyTaken := claims.keys[key]
	if !keyTaken && !r.registry.nameClaimed(claims, name) && !r.exists(path) {
		claims.keys[key] = path
		claims.names[nameKey(name)] = struct{}{}
		return path, nil
	}

	stem, ext := SplitName(name)
	for i := 1; i <= r.maxProbes; i++ {
		candidate := fmt.Sprintf("%s%s%03d%s", stem, r.separator, i, ext)
		if r.registry.nameClaimed(claims, candidate) {
			continue
		}
		candidatePath := filepath.Join(dir, candidate)
		if r.exists(candidatePath) {
			continue
		}
		claims.names[nameKey(candidate)] = struct{}{}
		if !keyTaken {
			claims.keys[key] = candidatePath
		}
		return candidatePath, nil
	}
	return "", fmt.Errorf("%w for %s in %s after %d attempts", ErrExhausted, name, dir, r.maxProbes)
}

// SplitName splits a file name into stem and extension (with its dot).
// A leading dot does not start an extension.
func SplitName(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	if ext == name || strings.TrimSuffix(name, ext) == "" {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}
