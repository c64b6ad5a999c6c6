package config

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel converts a log level name to a slog.Level. Unknown names map
// to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the operator log handler: text by default, JSON when
// format is "json".
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: log_level", "value", s.LogLevel)
	logger.InfoContext(ctx, "Config: workers", "value", s.Workers)
	logger.InfoContext(ctx, "Config: patterns", "primary", s.Patterns.Primary, "auxiliary", s.Patterns.Auxiliary)

	logger.DebugContext(ctx, "Config: route.target_tags", "value", s.Route.TargetTags)
	logger.DebugContext(ctx, "Config: route.pending_tag", "value", s.Route.PendingTag)
	logger.DebugContext(ctx, "Config: route.subfolder", "value", s.Route.Subfolder)
	logger.DebugContext(ctx, "Config: rename.field", "value", s.Rename.Field)
	logger.DebugContext(ctx, "Config: rename.duplicates_dir", "value", s.Rename.DuplicatesDir)
	logger.DebugContext(ctx, "Config: extract.max_xml_size", "value", s.Extract.MaxXMLSize)

	if s.CatalogEnabled() {
		logger.InfoContext(ctx, "Config: catalog.dir", "value", s.Catalog.Dir)
	}
}

// SettingsLogValue returns a compact slog.Value for Settings.
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("log_level", s.LogLevel),
		slog.Int("workers", s.Workers),
		slog.Any("target_tags", s.Route.TargetTags),
		slog.String("subfolder", s.Route.Subfolder),
		slog.String("field", s.Rename.Field),
		slog.Bool("catalog", s.CatalogEnabled()),
	)
}
