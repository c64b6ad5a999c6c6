// Package rename gives every XML document in a tree its canonical,
// content-derived name and sets aside documents that duplicate a key.
package rename

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sha1n/xmlsort/internal/collision"
	"github.com/sha1n/xmlsort/internal/domain"
	"github.com/sha1n/xmlsort/internal/matcher"
	"github.com/sha1n/xmlsort/internal/naming"
	"github.com/sha1n/xmlsort/internal/relocate"
	"github.com/sha1n/xmlsort/internal/runlock"
	"github.com/sha1n/xmlsort/internal/source"
)

const (
	// DefaultDuplicatesDir receives duplicates, next to the original.
	DefaultDuplicatesDir = "Copias"

	// DefaultDuplicateSeparator separates a duplicate's name from its counter.
	DefaultDuplicateSeparator = "_copia_"
)

var (
	// ErrRootNotFound indicates the root is missing or not a directory.
	ErrRootNotFound = errors.New("directory not found")

	// ErrNoFiles indicates the tree holds no .xml files.
	ErrNoFiles = errors.New("no XML files found")
)

// ActionKind is what happened, or would happen in a dry run, to a file.
type ActionKind string

const (
	ActionRenamed   ActionKind = "renamed"
	ActionDuplicate ActionKind = "duplicate"
)

// Action is one planned or performed move.
type Action struct {
	Kind        ActionKind
	Source      string
	Destination string
	Key         string
}

// Options configure a renaming run.
type Options struct {
	Root string
	// Field is the element holding the key. Defaults to naming.DefaultField.
	Field              string
	DuplicatesDir      string
	DuplicateSeparator string
	DryRun             bool
	Exclude            []string
	ProgressInterval   int
	Progress           domain.ProgressSink
	RunID              string
	Recorder           domain.PlacementRecorder
}

func (o Options) withDefaults() Options {
	if o.DuplicatesDir == "" {
		o.DuplicatesDir = DefaultDuplicatesDir
	}
	if o.DuplicateSeparator == "" {
		o.DuplicateSeparator = DefaultDuplicateSeparator
	}
	if o.ProgressInterval < 1 {
		o.ProgressInterval = 100
	}
	if o.Progress == nil {
		o.Progress = domain.NopProgress
	}
	return o
}

// Report summarizes a renaming run. In a dry run the counters describe the
// plan.
type Report struct {
	domain.RunReport
	Root             string
	DryRun           bool
	Renamed          int
	AlreadyCanonical int
	Duplicates       int
	MissingKey       int
	Actions          []Action
}

// Renamer renames documents after their key.
type Renamer struct {
	relocator *relocate.Relocator
	now       func() time.Time
}

// New creates a Renamer. A nil relocator uses the OS.
func New(relocator *relocate.Relocator) *Renamer {
	if relocator == nil {
		relocator = relocate.New(nil)
	}
	return &Renamer{relocator: relocator, now: time.Now}
}

// Rename processes every XML file under opts.Root. Files are handled one at
// a time in walk order, so the first file seen with a key keeps the
// canonical name.
func (r *Renamer) Rename(ctx context.Context, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootNotFound, err)
	}

	exclude := append([]string{opts.DuplicatesDir + "/**"}, opts.Exclude...)
	dir := source.NewDir(root, source.NewPathFilter(exclude...))
	total, err := dir.Scan()
	switch {
	case errors.Is(err, source.ErrRootNotFound), errors.Is(err, source.ErrNotDirectory):
		return nil, fmt.Errorf("%w: %w", ErrRootNotFound, err)
	case errors.Is(err, source.ErrEmpty):
		return nil, fmt.Errorf("%w: %w", ErrNoFiles, err)
	case err != nil:
		return nil, err
	}

	if !opts.DryRun {
		lock := runlock.ForDir(root)
		if err := lock.Acquire(); err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				slog.Warn("Failed to release run lock", "path", lock.Path(), "error", err)
			}
		}()
	}

	s := &run{
		opts:      opts,
		namer:     naming.NewContentNamer(opts.Field),
		keys:      collision.NewRegistry(),
		copies:    collision.NewResolver(collision.NewRegistry(), collision.WithSeparator(opts.DuplicateSeparator)),
		relocator: r.relocator,
		now:       r.now,
		report: &Report{
			RunReport: domain.RunReport{Started: r.now()},
			Root:      root,
			DryRun:    opts.DryRun,
		},
	}
	cadence := domain.Cadence{Sink: opts.Progress, Every: opts.ProgressInterval}

	slog.Info("Renaming XML files", "root", root, "files", total, "field", s.namer.Field, "dry_run", opts.DryRun)

	var runErr error
	for c, err := range dir.Candidates(ctx) {
		if err != nil {
			runErr = err
			break
		}
		s.handle(c)
		s.report.Processed++
		cadence.Step(domain.Progress{
			Processed: s.report.Processed,
			Total:     total,
			Current:   c.SourcePath,
			Matched:   s.report.Matched,
		})
	}

	report := s.report
	report.Finished = r.now()
	slog.Info("Renaming finished",
		"processed", report.Processed,
		"renamed", report.Renamed,
		"already_canonical", report.AlreadyCanonical,
		"duplicates", report.Duplicates,
		"missing_key", report.MissingKey,
		"errors", report.Errors)
	return report, runErr
}

type run struct {
	opts      Options
	namer     naming.Namer
	keys      *collision.Registry
	copies    *collision.Resolver
	relocator *relocate.Relocator
	now       func() time.Time
	report    *Report
}

func (s *run) handle(c *domain.Candidate) {
	path := c.SourcePath
	parent := filepath.Dir(path)

	dec, err := s.namer.Canonical(c)
	if err != nil {
		var parseErr *matcher.ParseError
		if errors.As(err, &parseErr) {
			slog.Warn("Could not parse file", "path", path, "error", err)
		} else {
			slog.Warn("No key found", "path", path, "field", s.namer.Field)
		}
		s.report.MissingKey++
		s.report.Skipped++
		return
	}
	s.report.Matched++

	if dec.AlreadyCanonical {
		s.keys.Claim(parent, dec.Key, path)
		s.report.AlreadyCanonical++
		slog.Debug("Already canonical", "path", path)
		return
	}

	target := filepath.Join(parent, dec.Name)
	if s.occupied(target, path) || !s.keys.Claim(parent, dec.Key, target) {
		s.duplicate(c, parent, dec)
		return
	}

	if s.opts.DryRun {
		s.act(Action{Kind: ActionRenamed, Source: path, Destination: target, Key: dec.Key})
		s.report.Renamed++
		return
	}

	res, err := s.relocator.Relocate(path, target)
	if err != nil {
		s.keys.Release(parent, target)
		slog.Error("Failed to rename file", "path", path, "target", target, "error", err)
		s.report.Fail(path, err)
		return
	}
	s.moved(c, res, Action{Kind: ActionRenamed, Source: path, Destination: target, Key: dec.Key})
	s.report.Renamed++
}

// duplicate moves c into the duplicates folder under its canonical name.
func (s *run) duplicate(c *domain.Candidate, parent string, dec naming.Decision) {
	path := c.SourcePath
	copiesDir := filepath.Join(parent, s.opts.DuplicatesDir)

	dst, err := s.copies.ResolveKey(copiesDir, dec.Name, path)
	if err != nil {
		slog.Error("No name available for duplicate", "path", path, "error", err)
		s.report.Fail(path, err)
		return
	}

	action := Action{Kind: ActionDuplicate, Source: path, Destination: dst, Key: dec.Key}
	if s.opts.DryRun {
		s.act(action)
		s.report.Duplicates++
		return
	}

	res, err := s.relocator.Relocate(path, dst)
	if err != nil {
		s.copies.Registry().Release(copiesDir, dst)
		slog.Error("Failed to move duplicate", "path", path, "destination", dst, "error", err)
		s.report.Fail(path, err)
		return
	}
	s.moved(c, res, action)
	s.report.Duplicates++
}

// occupied reports whether target exists on disk as a different file than
// path.
func (s *run) occupied(target, path string) bool {
	tinfo, err := os.Stat(target)
	if err != nil {
		return false
	}
	pinfo, err := os.Stat(path)
	if err != nil {
		return true
	}
	return !os.SameFile(tinfo, pinfo)
}

func (s *run) act(a Action) {
	s.report.Actions = append(s.report.Actions, a)
	if s.opts.DryRun {
		slog.Info("Would move", "kind", string(a.Kind), "source", a.Source, "destination", a.Destination)
	}
}

func (s *run) moved(c *domain.Candidate, res relocate.Result, a Action) {
	s.act(a)
	if res.Warning != "" {
		slog.Warn("Source retained after copy", "path", a.Source, "warning", res.Warning)
		s.report.Warnings++
	}
	slog.Info("Moved", "kind", string(a.Kind), "source", a.Source, "destination", a.Destination, "method", res.Method.String())

	if s.opts.Recorder == nil {
		return
	}
	content, _ := c.Content()
	tag, _ := matcher.RootTagOf(content)
	err := s.opts.Recorder.Record(domain.Placement{
		RunID:       s.opts.RunID,
		Name:        filepath.Base(a.Destination),
		RootTag:     tag,
		Key:         a.Key,
		Source:      a.Source,
		Destination: a.Destination,
		Origin:      c.Origin,
		At:          s.now(),
		Content:     content,
	})
	if err != nil {
		slog.Warn("Failed to catalog document", "path", a.Destination, "error", err)
		s.report.Warnings++
	}
}
