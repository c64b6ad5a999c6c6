package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func testSettings() *Settings {
	return &Settings{
		LogLevel:  "info",
		LogFormat: "text",
		Workers:   1,
		Patterns:  PatternSettings{Primary: "FE", Auxiliary: []string{"NC"}},
		Route:     RouteSettings{TargetTags: []string{"MensajeHacienda"}, PendingTag: "FacturaElectronica", Subfolder: "HaciendaResponse"},
		Rename:    RenameSettings{Field: "Clave", DuplicatesDir: "Copias"},
	}
}

func TestLog(t *testing.T) {
	// Just verify it doesn't panic
	Log(testSettings())
}

func TestLogWithLogger_InfoLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	LogWithLogger(testSettings(), logger)

	output := buf.String()
	if !strings.Contains(output, "Config: workers") {
		t.Error("Expected workers in log output")
	}
	if strings.Contains(output, "route.subfolder") {
		t.Error("Route details are debug-only")
	}
	if strings.Contains(output, "catalog.dir") {
		t.Error("Catalog should not be logged when disabled")
	}
}

func TestLogWithLogger_DebugAndCatalog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s := testSettings()
	s.Catalog.Dir = "/tmp/catalog"
	LogWithLogger(s, logger)

	output := buf.String()
	for _, want := range []string{"route.subfolder", "HaciendaResponse", "catalog.dir", "/tmp/catalog"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in log output", want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "file", "FE1.xml")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if entry["msg"] != "shown" || entry["file"] != "FE1.xml" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "info", "text").Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("Expected text output, got %q", buf.String())
	}
}

func TestSettingsLogValue(t *testing.T) {
	v := SettingsLogValue(*testSettings())
	if v.Kind() != slog.KindGroup {
		t.Fatalf("Expected group value, got %v", v.Kind())
	}
	if !strings.Contains(v.String(), "HaciendaResponse") {
		t.Errorf("Expected subfolder in %s", v.String())
	}
}
