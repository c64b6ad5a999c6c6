package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sha1n/xmlsort/internal/audit"
	"github.com/sha1n/xmlsort/internal/matcher"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "XMLSORT"

// PatternSettings configures the file name patterns.
type PatternSettings struct {
	Primary   string   `mapstructure:"primary"`
	Auxiliary []string `mapstructure:"auxiliary"`
}

// RouteSettings configures classification routing.
type RouteSettings struct {
	Source      string   `mapstructure:"source"`
	Destination string   `mapstructure:"destination"`
	TargetTags  []string `mapstructure:"target_tags"`
	PendingTag  string   `mapstructure:"pending_tag"`
	Subfolder   string   `mapstructure:"subfolder"`
	LogFile     string   `mapstructure:"log_file"`
	ReportFile  string   `mapstructure:"report_file"`
	Exclude     []string `mapstructure:"exclude"`
}

// RenameSettings configures content-keyed renaming.
type RenameSettings struct {
	Root               string   `mapstructure:"root"`
	Field              string   `mapstructure:"field"`
	DuplicatesDir      string   `mapstructure:"duplicates_dir"`
	DuplicateSeparator string   `mapstructure:"duplicate_separator"`
	DryRun             bool     `mapstructure:"dry_run"`
	Exclude            []string `mapstructure:"exclude"`
}

// ExtractSettings configures attachment extraction.
type ExtractSettings struct {
	Input          string `mapstructure:"input"`
	Output         string `mapstructure:"output"`
	LogFile        string `mapstructure:"log_file"`
	LogMode        string `mapstructure:"log_mode"`
	MaxXMLSize     int64  `mapstructure:"max_xml_size"`
	Recursive      bool   `mapstructure:"recursive"`
	SkipValidation bool   `mapstructure:"skip_validation"`
}

// CatalogSettings configures the optional document catalog.
type CatalogSettings struct {
	Dir        string `mapstructure:"dir"`
	MaxResults int    `mapstructure:"max_results"`
}

// Settings application settings
type Settings struct {
	LogLevel         string          `mapstructure:"log_level"`
	LogFormat        string          `mapstructure:"log_format"`
	Workers          int             `mapstructure:"workers"`
	ProgressInterval int             `mapstructure:"progress_interval"`
	MaxFieldLength   int             `mapstructure:"max_field_length"`
	Patterns         PatternSettings `mapstructure:"patterns"`
	Route            RouteSettings   `mapstructure:"route"`
	Rename           RenameSettings  `mapstructure:"rename"`
	Extract          ExtractSettings `mapstructure:"extract"`
	Catalog          CatalogSettings `mapstructure:"catalog"`
}

// CatalogEnabled reports whether placements should be indexed.
func (s *Settings) CatalogEnabled() bool {
	return s.Catalog.Dir != ""
}

// flagBindings maps setting keys to CLI flag names. Commands register only
// the flags they use; unregistered flags are skipped.
var flagBindings = map[string]string{
	"log_level":                  "log-level",
	"log_format":                 "log-format",
	"workers":                    "workers",
	"progress_interval":          "progress-interval",
	"max_field_length":           "max-field-length",
	"patterns.primary":           "primary-pattern",
	"patterns.auxiliary":         "aux-patterns",
	"route.destination":          "dest",
	"route.target_tags":          "target-tags",
	"route.pending_tag":          "pending-tag",
	"route.subfolder":            "subfolder",
	"route.log_file":             "route-log",
	"route.report_file":          "report-file",
	"route.exclude":              "exclude",
	"rename.field":               "field",
	"rename.duplicates_dir":      "duplicates-dir",
	"rename.duplicate_separator": "duplicate-separator",
	"rename.dry_run":             "dry-run",
	"rename.exclude":             "exclude",
	"extract.log_file":           "log-file",
	"extract.log_mode":           "log-mode",
	"extract.max_xml_size":       "max-xml-size",
	"extract.recursive":          "recursive",
	"extract.skip_validation":    "no-validate",
	"catalog.dir":                "catalog-dir",
	"catalog.max_results":        "max-results",
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("workers", 1)
	v.SetDefault("progress_interval", 100)
	v.SetDefault("max_field_length", 100)

	v.SetDefault("patterns.primary", matcher.KindInvoice)
	v.SetDefault("patterns.auxiliary", []string{matcher.KindCreditNote, matcher.KindDebitNote, matcher.KindSupportDocument})

	v.SetDefault("route.source", "")
	v.SetDefault("route.destination", "")
	v.SetDefault("route.target_tags", []string{"MensajeHacienda"})
	v.SetDefault("route.pending_tag", "FacturaElectronica")
	v.SetDefault("route.subfolder", "HaciendaResponse")
	v.SetDefault("route.log_file", "")
	v.SetDefault("route.report_file", "")
	v.SetDefault("route.exclude", []string{})

	v.SetDefault("rename.root", "")
	v.SetDefault("rename.field", "Clave")
	v.SetDefault("rename.duplicates_dir", "Copias")
	v.SetDefault("rename.duplicate_separator", "_copia_")
	v.SetDefault("rename.dry_run", false)
	v.SetDefault("rename.exclude", []string{})

	v.SetDefault("extract.input", "")
	v.SetDefault("extract.output", "")
	v.SetDefault("extract.log_file", "remitentes.csv")
	v.SetDefault("extract.log_mode", "eml")
	v.SetDefault("extract.max_xml_size", int64(10*1024*1024)) // 10MB
	v.SetDefault("extract.recursive", false)
	v.SetDefault("extract.skip_validation", false)

	v.SetDefault("catalog.dir", "")
	v.SetDefault("catalog.max_results", 20)

	// Environment variables: XMLSORT_ROUTE_SUBFOLDER -> route.subfolder
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	settings.Patterns.Auxiliary = cleanList(settings.Patterns.Auxiliary)
	settings.Route.TargetTags = cleanList(settings.Route.TargetTags)
	settings.Route.Exclude = cleanList(settings.Route.Exclude)
	settings.Rename.Exclude = cleanList(settings.Rename.Exclude)

	for _, p := range []*string{
		&settings.Route.Source, &settings.Route.Destination, &settings.Route.LogFile, &settings.Route.ReportFile,
		&settings.Rename.Root, &settings.Extract.Input, &settings.Extract.Output, &settings.Extract.LogFile,
		&settings.Catalog.Dir,
	} {
		*p = expandHomeDir(strings.TrimSpace(*p))
	}

	return &settings, nil
}

// cleanList splits comma separated entries, as they arrive from env vars,
// trims them and drops empty ones.
func cleanList(values []string) []string {
	var result []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// ValidateSettings checks that the settings are usable by every command.
func ValidateSettings(s *Settings) error {
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("log-level must be one of debug, info, warn, error, got: " + s.LogLevel)
	}

	switch strings.ToLower(s.LogFormat) {
	case "text", "json":
	default:
		return errors.New("log-format must be 'text' or 'json', got: " + s.LogFormat)
	}

	if s.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if s.ProgressInterval <= 0 {
		return errors.New("progress-interval must be positive")
	}
	if s.MaxFieldLength <= 3 {
		return errors.New("max-field-length must be greater than 3")
	}

	if _, err := matcher.NewPatternSet(s.Patterns.Primary, s.Patterns.Auxiliary...); err != nil {
		return fmt.Errorf("invalid patterns: %w", err)
	}

	if err := validateRouteSettings(&s.Route); err != nil {
		return err
	}
	if err := validateRenameSettings(&s.Rename); err != nil {
		return err
	}

	if _, err := audit.ParseMode(s.Extract.LogMode); err != nil {
		return fmt.Errorf("invalid log-mode: %w", err)
	}
	if s.Extract.MaxXMLSize <= 0 {
		return errors.New("max-xml-size must be positive")
	}
	if s.Catalog.MaxResults <= 0 {
		return errors.New("max-results must be positive")
	}

	return nil
}

func validateRouteSettings(r *RouteSettings) error {
	if len(r.TargetTags) == 0 {
		return errors.New("target-tags requires at least one tag")
	}
	if strings.TrimSpace(r.PendingTag) == "" {
		return errors.New("pending-tag cannot be empty")
	}
	return validateDirName("subfolder", r.Subfolder)
}

func validateRenameSettings(r *RenameSettings) error {
	if strings.TrimSpace(r.Field) == "" {
		return errors.New("field cannot be empty")
	}
	if r.DuplicateSeparator == "" {
		return errors.New("duplicate-separator cannot be empty")
	}
	return validateDirName("duplicates-dir", r.DuplicatesDir)
}

// validateDirName requires a single path component.
func validateDirName(flag, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New(flag + " cannot be empty")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errors.New(flag + " must be a plain folder name, got: " + name)
	}
	return nil
}
