package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xmlsort/internal/audit"
	"github.com/sha1n/xmlsort/internal/catalog"
	"github.com/sha1n/xmlsort/internal/config"
	"github.com/sha1n/xmlsort/internal/domain"
	"github.com/sha1n/xmlsort/internal/matcher"
	"github.com/spf13/pflag"
)

// ErrMissingArgument indicates a required path was given neither as an
// argument nor in the settings.
var ErrMissingArgument = errors.New("missing argument")

// RunParams contains dependencies for the run functions
type RunParams struct {
	LoadSettings  func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings func(*config.Settings) error
	// Stdout receives summaries, Stderr the log.
	Stdout io.Writer
	Stderr io.Writer
	// NewRunID identifies one invocation in audit logs and the catalog.
	NewRunID          func() string
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:  config.LoadSettingsWithFlags,
		ValidSettings: config.ValidateSettings,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		NewRunID:      uuid.NewString,
	}
}

// prepare loads and validates the settings and installs the logger.
func (p RunParams) prepare(flags *pflag.FlagSet, command string) (*config.Settings, string, error) {
	settings, err := p.LoadSettings(flags)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load settings: %w", err)
	}

	if err := p.ValidSettings(settings); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging - always use stderr so stdout only carries summaries
	stderr := p.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	slog.SetDefault(config.NewLogger(stderr, settings.LogLevel, settings.LogFormat))

	runID := ""
	if p.NewRunID != nil {
		runID = p.NewRunID()
	}
	slog.Info("Starting xmlsort", "command", command, "run_id", runID)
	config.Log(settings)

	return settings, runID, nil
}

func (p RunParams) stdout() io.Writer {
	if p.Stdout == nil {
		return os.Stdout
	}
	return p.Stdout
}

// patterns builds the configured pattern set. Settings are validated, so
// an error here is unexpected.
func patterns(s *config.Settings) (*matcher.PatternSet, error) {
	set, err := matcher.NewPatternSet(s.Patterns.Primary, s.Patterns.Auxiliary...)
	if err != nil {
		return nil, fmt.Errorf("invalid patterns: %w", err)
	}
	return set, nil
}

// openCatalog opens the catalog when one is configured. The returned close
// function is never nil.
func openCatalog(s *config.Settings) (*catalog.Catalog, func(), error) {
	if !s.CatalogEnabled() {
		return nil, func() {}, nil
	}
	c, err := catalog.Open(s.Catalog.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return c, func() {
		if err := c.Close(); err != nil {
			slog.Error("Failed to close catalog", "error", err)
		}
	}, nil
}

// recorder returns c as a PlacementRecorder, or nil when there is no catalog.
func recorder(c *catalog.Catalog) domain.PlacementRecorder {
	if c == nil {
		return nil
	}
	return c
}

// auditWriter creates a writer for path, relative to base unless absolute.
// An empty path disables the log.
func auditWriter(path, base string, mode audit.Mode, maxField int) (*audit.Writer, error) {
	if path == "" {
		return nil, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	w, err := audit.NewWriter(path, mode, audit.WithMaxField(maxField))
	if err != nil {
		return nil, fmt.Errorf("failed to create audit log: %w", err)
	}
	slog.Info("Audit log", "path", w.Path(), "mode", string(mode))
	return w, nil
}

// progressLogger reports progress on the log.
func progressLogger(command string) domain.ProgressSink {
	return domain.ProgressFunc(func(p domain.Progress) {
		if p.Total >= 0 {
			slog.Info("Progress", "command", command, "processed", p.Processed, "total", p.Total, "matched", p.Matched)
			return
		}
		slog.Info("Progress", "command", command, "processed", p.Processed, "matched", p.Matched)
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
