// Package extract saves the XML attachments of mail containers into an
// output directory, logging who sent each one.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sha1n/xmlsort/internal/audit"
	"github.com/sha1n/xmlsort/internal/collision"
	"github.com/sha1n/xmlsort/internal/domain"
	"github.com/sha1n/xmlsort/internal/matcher"
	"github.com/sha1n/xmlsort/internal/naming"
	"github.com/sha1n/xmlsort/internal/relocate"
	"github.com/sha1n/xmlsort/internal/runlock"
	"github.com/sha1n/xmlsort/internal/source"
)

const (
	// DefaultMaxXMLSize caps the size of a single attachment.
	DefaultMaxXMLSize int64 = 10 << 20

	// MaxInvalidShown is the number of invalid files kept in a validation.
	MaxInvalidShown = 5

	// MaxErrorExcerpt caps the error text kept per invalid file.
	MaxErrorExcerpt = 100
)

// ErrOutput indicates the output directory could not be created.
var ErrOutput = errors.New("output directory unavailable")

// Options configure one extraction run.
type Options struct {
	Output string
	// Patterns select the attachments to keep. Defaults to
	// matcher.DefaultPatternSet.
	Patterns   *matcher.PatternSet
	MaxXMLSize int64
	// Validate checks the well-formedness of every extracted file.
	Validate         bool
	Audit            *audit.Writer
	Recorder         domain.PlacementRecorder
	RunID            string
	Progress         domain.ProgressSink
	ProgressInterval int
}

func (o Options) withDefaults() Options {
	if o.Patterns == nil {
		o.Patterns = matcher.DefaultPatternSet()
	}
	if o.MaxXMLSize <= 0 {
		o.MaxXMLSize = DefaultMaxXMLSize
	}
	if o.ProgressInterval < 1 {
		o.ProgressInterval = 100
	}
	if o.Progress == nil {
		o.Progress = domain.NopProgress
	}
	return o
}

// InvalidFile is an extracted file that is not well-formed.
type InvalidFile struct {
	Name string
	Err  string
}

// Validation summarizes the well-formedness check.
type Validation struct {
	Valid   int
	Invalid int
	// First holds up to MaxInvalidShown invalid files.
	First []InvalidFile
}

// Report summarizes an extraction run. Processed, Matched and Routed count
// attachments; Routed is the number of files written.
type Report struct {
	domain.RunReport
	Source              string
	Output              string
	ContainersFound     int
	ContainersProcessed int
	Validation          *Validation
}

// Extracted returns the number of files written.
func (r *Report) Extracted() int {
	return r.Routed
}

// Extractor saves matching attachments.
type Extractor struct {
	relocator *relocate.Relocator
	namer     naming.Namer
	now       func() time.Time
}

// New creates an Extractor. A nil relocator uses the OS.
func New(relocator *relocate.Relocator) *Extractor {
	if relocator == nil {
		relocator = relocate.New(nil)
	}
	return &Extractor{relocator: relocator, namer: naming.Namer{Mode: naming.ByName}, now: time.Now}
}

// Extract writes every attachment of src matching opts.Patterns into
// opts.Output, never overwriting an existing file. Containers that cannot be
// read are counted as errors and skipped.
func (e *Extractor) Extract(ctx context.Context, src source.Source, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	found, err := src.Scan()
	if err != nil {
		return nil, err
	}

	output, err := filepath.Abs(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutput, err)
	}
	if err := os.MkdirAll(output, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutput, err)
	}

	lock := runlock.ForDir(output)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release run lock", "path", lock.Path(), "error", err)
		}
	}()

	report := &Report{
		RunReport:       domain.RunReport{Started: e.now()},
		Source:          src.Name(),
		Output:          output,
		ContainersFound: found,
	}
	resolver := collision.NewResolver(collision.NewRegistry())
	cadence := domain.Cadence{Sink: opts.Progress, Every: opts.ProgressInterval}
	counter, _ := src.(source.ContainerCounter)

	slog.Info("Extracting XML attachments", "source", src.Name(), "containers", found, "output", output, "kinds", opts.Patterns.Kinds())

	var (
		extracted []string
		failed    int
		lastSeen  int
		runErr    error
	)
	step := func(current string) {
		done := failed
		if counter != nil {
			done += counter.ContainersProcessed()
		}
		if done == lastSeen {
			return
		}
		lastSeen = done
		cadence.Step(domain.Progress{Processed: done, Total: found, Current: current, Matched: report.Routed})
	}

	for c, err := range src.Candidates(ctx) {
		if err != nil {
			var containerErr *source.ContainerError
			if !errors.As(err, &containerErr) {
				runErr = err
				break
			}
			slog.Error("Failed to read container", "container", containerErr.Container, "error", containerErr.Err)
			report.Fail(containerErr.Container, err)
			failed++
			step(containerErr.Container)
			continue
		}
		step(c.Origin.Container)

		// Attachments keep the name they were sent with.
		decision, err := e.namer.Canonical(c)
		if err != nil {
			report.Fail(fmt.Sprintf("%s (%s)", c.RawName, c.Origin.Container), err)
			continue
		}
		name := strings.TrimSpace(decision.Name)
		report.Processed++
		kind, ok := opts.Patterns.Match(name)
		if !ok {
			report.Skipped++
			continue
		}
		report.Matched++

		if dst, ok := e.save(c, name, kind, output, resolver, report, opts); ok {
			extracted = append(extracted, dst)
		}
	}

	if counter != nil {
		report.ContainersProcessed = counter.ContainersProcessed()
	} else {
		report.ContainersProcessed = found - failed
	}
	step("")

	if opts.Validate {
		report.Validation = ValidateFiles(extracted)
	}
	report.Finished = e.now()

	slog.Info("Extraction finished",
		"containers", report.ContainersProcessed,
		"extracted", report.Routed,
		"errors", report.Errors,
		"duration", report.Duration())
	return report, runErr
}

// save writes one attachment and returns its final path.
func (e *Extractor) save(c *domain.Candidate, name, kind, output string, resolver *collision.Resolver, report *Report, opts Options) (string, bool) {
	container := c.Origin.Container
	skip := func(msg string, size int64) (string, bool) {
		slog.Warn(msg, "name", name, "container", container, "size", size, "max", opts.MaxXMLSize)
		report.Skipped++
		report.Warnings++
		return "", false
	}

	// Sources that know the size up front are checked before any read.
	if c.Size > opts.MaxXMLSize {
		return skip("Skipping oversized attachment", c.Size)
	}
	content, err := c.Content()
	if err != nil {
		report.Fail(fmt.Sprintf("%s (%s)", name, container), err)
		return "", false
	}
	if len(content) == 0 {
		return skip("Skipping empty attachment", 0)
	}
	if int64(len(content)) > opts.MaxXMLSize {
		return skip("Skipping oversized attachment", int64(len(content)))
	}

	dst, err := resolver.Resolve(output, name)
	if err != nil {
		report.Fail(fmt.Sprintf("%s (%s)", name, container), err)
		return "", false
	}
	if _, err := e.relocator.Materialize(content, dst); err != nil {
		resolver.Registry().Release(output, dst)
		slog.Error("Failed to extract attachment", "name", name, "container", container, "error", err)
		report.Fail(fmt.Sprintf("%s (%s)", name, container), err)
		return "", false
	}
	report.Routed++
	slog.Debug("Extracted", "name", filepath.Base(dst), "container", container, "kind", kind)

	now := e.now()
	if opts.Audit != nil {
		err := opts.Audit.Append(audit.Record{
			File:        filepath.Base(dst),
			Sender:      c.Origin.Sender,
			Subject:     c.Origin.Subject,
			EmailDate:   c.Origin.Date,
			ProcessedAt: now,
			Container:   container,
			Folder:      c.Origin.Folder,
			SourceKind:  report.Source,
			Destination: dst,
			Outcome:     relocate.Moved.String(),
		})
		if err != nil {
			slog.Warn("Failed to write audit record", "path", opts.Audit.Path(), "error", err)
			report.Warnings++
		}
	}

	if opts.Recorder != nil {
		tag, _ := matcher.RootTagOf(content)
		err := opts.Recorder.Record(domain.Placement{
			RunID:       opts.RunID,
			Name:        filepath.Base(dst),
			Kind:        kind,
			RootTag:     tag,
			Source:      c.SourcePath,
			Destination: dst,
			Origin:      c.Origin,
			At:          now,
			Content:     content,
		})
		if err != nil {
			slog.Warn("Failed to catalog document", "path", dst, "error", err)
			report.Warnings++
		}
	}
	return dst, true
}

// ValidateFiles checks that every file in paths is well-formed XML.
func ValidateFiles(paths []string) *Validation {
	v := &Validation{}
	for _, path := range paths {
		err := validateFile(path)
		if err == nil {
			v.Valid++
			continue
		}
		v.Invalid++
		slog.Warn("Invalid XML", "path", path, "error", err)
		if len(v.First) < MaxInvalidShown {
			v.First = append(v.First, InvalidFile{Name: filepath.Base(path), Err: excerpt(err.Error(), MaxErrorExcerpt)})
		}
	}
	return v
}

func validateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return matcher.Validate(f)
}

func excerpt(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
