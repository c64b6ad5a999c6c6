// Package router moves XML documents into per-folder subfolders according to
// the root element of their content.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sha1n/xmlsort/internal/audit"
	"github.com/sha1n/xmlsort/internal/collision"
	"github.com/sha1n/xmlsort/internal/domain"
	"github.com/sha1n/xmlsort/internal/matcher"
	"github.com/sha1n/xmlsort/internal/relocate"
	"github.com/sha1n/xmlsort/internal/runlock"
	"github.com/sha1n/xmlsort/internal/source"
)

const (
	// DefaultTargetTag is the root element routed by default.
	DefaultTargetTag = "MensajeHacienda"

	// DefaultPendingTag is the root element listed in the pending report.
	DefaultPendingTag = "FacturaElectronica"

	// DefaultSubfolder receives routed documents.
	DefaultSubfolder = "HaciendaResponse"

	// DefaultProgressInterval is the number of files between progress updates.
	DefaultProgressInterval = 100
)

var (
	// ErrSourceNotFound indicates the source root is missing or not a directory.
	ErrSourceNotFound = errors.New("source directory not found")

	// ErrNoCandidates indicates the source tree holds no .xml files.
	ErrNoCandidates = errors.New("no XML files found")

	// ErrDestination indicates the destination root could not be created.
	ErrDestination = errors.New("destination directory unavailable")
)

// Skip reasons.
const (
	SkipInDestination = "already_in_destination"
	SkipUnreadable    = "unreadable"
	SkipNoMatch       = "no_match"
)

// Options configure one routing run.
type Options struct {
	Source string
	// Destination is the optional root that mirrors the source tree. When
	// empty, documents are routed into a subfolder next to where they are.
	Destination string
	TargetTags  []string
	PendingTag  string
	Subfolder   string
	// Exclude holds path patterns, relative to Source, that are never read.
	Exclude          []string
	Workers          int
	ProgressInterval int
	RunID            string

	// Audit receives one route record per routed or failed document.
	Audit *audit.Writer
	// Recorder receives every placement.
	Recorder domain.PlacementRecorder
	Progress domain.ProgressSink
	// ReportFile, when set, receives the final report.
	ReportFile string
}

func (o Options) withDefaults() Options {
	if len(o.TargetTags) == 0 {
		o.TargetTags = []string{DefaultTargetTag}
	}
	if o.PendingTag == "" {
		o.PendingTag = DefaultPendingTag
	}
	if o.Subfolder == "" {
		o.Subfolder = DefaultSubfolder
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.ProgressInterval < 1 {
		o.ProgressInterval = DefaultProgressInterval
	}
	if o.Progress == nil {
		o.Progress = domain.NopProgress
	}
	return o
}

// Move is one routed document.
type Move struct {
	Source         string
	Destination    string
	RootTag        string
	Method         relocate.Method
	SourceRetained bool
}

// Report summarizes a routing run.
type Report struct {
	domain.RunReport
	Source      string
	Destination string
	// Skips counts skipped documents per reason.
	Skips map[string]int
	Moves []Move
	// Pending lists documents with the pending root tag, relative to Source.
	Pending []string
	// Inventory lists routed documents, relative to the destination root
	// (or Source when routing in place).
	Inventory []string
}

// Router routes documents by root tag.
type Router struct {
	relocator *relocate.Relocator
	now       func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithRelocator replaces the OS relocator.
func WithRelocator(r *relocate.Relocator) Option {
	return func(rt *Router) {
		rt.relocator = r
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(rt *Router) {
		rt.now = now
	}
}

// New creates a Router.
func New(opts ...Option) *Router {
	r := &Router{relocator: relocate.New(nil), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run holds the state shared by the workers of one Route call.
type run struct {
	opts      Options
	srcRoot   string
	destRoot  string
	targets   map[string]struct{}
	resolver  *collision.Resolver
	locks     *collision.DirLocks
	relocator *relocate.Relocator
	now       func() time.Time
	cadence   domain.Cadence

	mu     sync.Mutex
	report *Report
	total  int
}

// Route classifies every XML file under opts.Source and moves those whose
// root element is a target tag. It never overwrites a file. Per-document
// failures are folded into the report; only setup failures return an error
// with a nil report.
func (r *Router) Route(ctx context.Context, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	srcRoot, err := filepath.Abs(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceNotFound, err)
	}
	filter := source.NewPathFilter(opts.Exclude...)
	dir := source.NewDir(srcRoot, filter)
	total, err := dir.Scan()
	switch {
	case errors.Is(err, source.ErrRootNotFound), errors.Is(err, source.ErrNotDirectory):
		return nil, fmt.Errorf("%w: %w", ErrSourceNotFound, err)
	case errors.Is(err, source.ErrEmpty):
		return nil, fmt.Errorf("%w: %w", ErrNoCandidates, err)
	case err != nil:
		return nil, err
	}

	destRoot := ""
	lockRoot := srcRoot
	if opts.Destination != "" {
		if destRoot, err = filepath.Abs(opts.Destination); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDestination, err)
		}
		if err := os.MkdirAll(destRoot, 0755); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDestination, err)
		}
		lockRoot = destRoot
	}

	lock := runlock.ForDir(lockRoot)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release run lock", "path", lock.Path(), "error", err)
		}
	}()

	state := &run{
		opts:      opts,
		srcRoot:   srcRoot,
		destRoot:  destRoot,
		targets:   tagSet(opts.TargetTags),
		resolver:  collision.NewResolver(collision.NewRegistry()),
		locks:     collision.NewDirLocks(),
		relocator: r.relocator,
		now:       r.now,
		cadence:   domain.Cadence{Sink: opts.Progress, Every: opts.ProgressInterval},
		total:     total,
		report: &Report{
			RunReport:   domain.RunReport{Started: r.now()},
			Source:      srcRoot,
			Destination: destRoot,
			Skips:       make(map[string]int),
		},
	}

	slog.Info("Routing XML files", "source", srcRoot, "destination", destRoot, "files", total, "workers", opts.Workers)

	runErr := state.process(ctx, dir)

	report := state.report
	report.Pending, report.Inventory = state.listings(filter)
	report.Finished = r.now()

	if opts.ReportFile != "" {
		if err := writeReportFile(opts.ReportFile, report); err != nil {
			slog.Warn("Failed to write report file", "path", opts.ReportFile, "error", err)
			report.Warnings++
		}
	}

	slog.Info("Routing finished",
		"processed", report.Processed,
		"routed", report.Routed,
		"skipped", report.Skipped,
		"errors", report.Errors,
		"duration", report.Duration())

	return report, runErr
}

// process feeds candidates to the workers. It returns the context error when
// the run was interrupted; documents handled before that stay handled.
func (s *run) process(ctx context.Context, dir *source.Dir) error {
	sem := make(chan struct{}, s.opts.Workers)
	var wg sync.WaitGroup
	var runErr error

	for c, err := range dir.Candidates(ctx) {
		if err != nil {
			runErr = err
			break
		}
		sem <- struct{}{} // Acquire
		wg.Add(1)
		go func(c *domain.Candidate) {
			defer wg.Done()
			defer func() { <-sem }() // Release
			s.handle(c)
		}(c)
	}

	wg.Wait()
	return runErr
}

// handle walks one candidate through classification and relocation.
func (s *run) handle(c *domain.Candidate) {
	path := c.SourcePath

	if s.inDestination(path) {
		slog.Debug("Skipping file already in destination", "path", path)
		s.done(path, SkipInDestination)
		return
	}

	content, err := c.Content()
	var tag string
	if err == nil {
		tag, err = matcher.RootTagOf(content)
	}
	if err != nil {
		var parseErr *matcher.ParseError
		if errors.As(err, &parseErr) && !parseErr.IO {
			slog.Warn("Invalid XML", "path", path, "error", err)
		} else {
			slog.Warn("Could not read file", "path", path, "error", err)
		}
		s.done(path, SkipUnreadable)
		return
	}

	if _, ok := s.targets[tag]; !ok {
		s.done(path, SkipNoMatch)
		return
	}

	destDir := s.destinationDir(path)
	dst, res, err := s.place(path, destDir)
	if err != nil {
		slog.Error("Failed to route file", "path", path, "root_tag", tag, "error", err)
		s.appendAudit(audit.Record{File: filepath.Base(path), RootTag: tag, Source: path, Outcome: "error"})
		s.mu.Lock()
		s.report.Matched++
		s.report.Fail(path, err)
		s.mu.Unlock()
		s.done(path, "")
		return
	}

	if res.Warning != "" {
		slog.Warn("Source retained after copy", "path", path, "destination", dst, "warning", res.Warning)
	}
	slog.Info("Moved", "source", path, "destination", dst, "root_tag", tag, "method", res.Method.String())

	s.appendAudit(audit.Record{
		File:        filepath.Base(dst),
		RootTag:     tag,
		Source:      path,
		Destination: dst,
		Outcome:     res.Method.String(),
	})
	s.record(domain.Placement{
		RunID:       s.opts.RunID,
		Name:        filepath.Base(dst),
		RootTag:     tag,
		Source:      path,
		Destination: dst,
		Origin:      c.Origin,
		At:          s.now(),
		Content:     content,
	})

	s.mu.Lock()
	s.report.Matched++
	s.report.Routed++
	if res.SourceRetained {
		s.report.Warnings++
	}
	s.report.Moves = append(s.report.Moves, Move{
		Source:         path,
		Destination:    dst,
		RootTag:        tag,
		Method:         res.Method,
		SourceRetained: res.SourceRetained,
	})
	s.mu.Unlock()
	s.done(path, "")
}

// place resolves a free name in destDir and relocates src there. The
// directory stays locked from resolution until the file is in place.
func (s *run) place(src, destDir string) (string, relocate.Result, error) {
	unlock := s.locks.Lock(destDir)
	defer unlock()

	dst, err := s.resolver.Resolve(destDir, filepath.Base(src))
	if err != nil {
		return "", relocate.Result{}, err
	}
	res, err := s.relocator.Relocate(src, dst)
	if err != nil {
		s.resolver.Registry().Release(destDir, dst)
		return "", relocate.Result{}, err
	}
	return dst, res, nil
}

// done counts a processed file and reports progress.
func (s *run) done(path, skip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Processed++
	if skip != "" {
		s.report.Skipped++
		s.report.Skips[skip]++
	}
	s.cadence.Step(domain.Progress{
		Processed: s.report.Processed,
		Total:     s.total,
		Current:   path,
		Matched:   s.report.Matched,
	})
}

func (s *run) appendAudit(rec audit.Record) {
	if s.opts.Audit == nil {
		return
	}
	rec.ProcessedAt = s.now()
	if err := s.opts.Audit.Append(rec); err != nil {
		slog.Warn("Failed to write audit record", "path", s.opts.Audit.Path(), "error", err)
		s.mu.Lock()
		s.report.Warnings++
		s.mu.Unlock()
	}
}

func (s *run) record(p domain.Placement) {
	if s.opts.Recorder == nil {
		return
	}
	if err := s.opts.Recorder.Record(p); err != nil {
		slog.Warn("Failed to catalog document", "path", p.Destination, "error", err)
		s.mu.Lock()
		s.report.Warnings++
		s.mu.Unlock()
	}
}
