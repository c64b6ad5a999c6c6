package app

import (
	"testing"

	"github.com/sha1n/xmlsort/internal/config"
	"github.com/spf13/pflag"
)

func TestRegisterFlags(t *testing.T) {
	tests := []struct {
		name     string
		register func(*pflag.FlagSet)
		expected []string
	}{
		{"global", RegisterGlobalFlags, []string{"log-level", "log-format", "progress-interval", "max-field-length", "primary-pattern", "aux-patterns", "catalog-dir"}},
		{"route", RegisterRouteFlags, []string{"dest", "target-tags", "pending-tag", "subfolder", "route-log", "report-file", "exclude", "workers"}},
		{"rename", RegisterRenameFlags, []string{"field", "duplicates-dir", "duplicate-separator", "dry-run", "exclude"}},
		{"extract", RegisterExtractFlags, []string{"log-file", "log-mode", "max-xml-size", "recursive", "no-validate"}},
		{"search", RegisterSearchFlags, []string{"root-tag", "kind", "max-results"}},
		{"serve", RegisterServeFlags, []string{"max-results", "target-tags", "subfolder"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
			tt.register(flags)
			for _, name := range tt.expected {
				if flags.Lookup(name) == nil {
					t.Errorf("Expected flag %q to be registered", name)
				}
			}
		})
	}
}

func TestRegisterFlags_Shorthand(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterGlobalFlags(flags)
	RegisterRouteFlags(flags)

	shorthandFlags := map[string]string{
		"log-level":   "l",
		"dest":        "d",
		"target-tags": "t",
		"subfolder":   "s",
		"workers":     "w",
	}

	for name, shorthand := range shorthandFlags {
		flag := flags.Lookup(name)
		if flag == nil {
			t.Errorf("Flag %q not found", name)
			continue
		}
		if flag.Shorthand != shorthand {
			t.Errorf("Flag %q expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
		}
	}
}

func TestRegisterFlags_FlowIntoSettings(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterGlobalFlags(flags)
	RegisterRouteFlags(flags)

	err := flags.Parse([]string{
		"--log-level", "debug",
		"--dest", "/tmp/out",
		"--target-tags", "MensajeHacienda,FacturaElectronica",
		"-s", "Respuestas",
		"-w", "4",
	})
	if err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	s, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		t.Fatalf("LoadSettingsWithFlags failed: %v", err)
	}
	if s.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", s.LogLevel)
	}
	if s.Route.Destination != "/tmp/out" || s.Route.Subfolder != "Respuestas" || s.Workers != 4 {
		t.Errorf("Route = %+v Workers = %d", s.Route, s.Workers)
	}
	if len(s.Route.TargetTags) != 2 {
		t.Errorf("TargetTags = %v", s.Route.TargetTags)
	}
	// Unset flags keep their defaults.
	if s.Route.PendingTag != "FacturaElectronica" {
		t.Errorf("PendingTag = %q", s.Route.PendingTag)
	}
}
