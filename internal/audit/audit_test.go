package audit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

var fixed = time.Date(2025, 10, 7, 14, 30, 5, 0, time.Local)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestCleanField(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain", "Proveedor S.A.", 100, "Proveedor S.A."},
		{"comma", "Perez, Juan", 100, "Perez; Juan"},
		{"newlines", "a\r\nb\nc", 100, "a  b c"},
		{"trim", "  x  ", 100, "x"},
		{"empty", "", 100, Unknown},
		{"blank", " \n ", 100, Unknown},
		{"truncate", strings.Repeat("a", 120), 100, strings.Repeat("a", 97) + "..."},
		{"exact", strings.Repeat("a", 100), 100, strings.Repeat("a", 100)},
		{"runes", strings.Repeat("ñ", 12), 10, strings.Repeat("ñ", 7) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanField(tt.in, tt.max); got != tt.want {
				t.Errorf("CleanField(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"eml", "MAILBOX", " route ", "combined"} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseMode("pdf"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Expected ErrUnknownMode, got %v", err)
	}
}

func TestWriter_EMLAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remitentes.csv")
	w, err := NewWriter(path, ModeEML, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	if err := w.Append(Record{File: "FE001.xml", Sender: "Ventas, SA <v@x.cr>", EmailDate: "Tue, 7 Oct 2025", Container: "m1.eml"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := w.Append(Record{File: "FE002.xml", Container: "m2.eml"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	lines := readLines(t, path)
	want := []string{
		ModeEML.Header(),
		"FE001.xml,Ventas; SA <v@x.cr>,Tue; 7 Oct 2025,2025-10-07 14:30:05,m1.eml",
		"FE002.xml,desconocido,desconocido,2025-10-07 14:30:05,m2.eml",
	}
	if len(lines) != len(want) {
		t.Fatalf("Got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestWriter_HeaderOnlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "route.csv")
	for range 2 {
		// A new writer on an existing log must not repeat the header.
		w, _ := NewWriter(path, ModeRoute)
		if err := w.Append(Record{File: "a.xml", RootTag: "MensajeHacienda", Outcome: "moved"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	lines := readLines(t, path)
	if len(lines) != 3 {
		t.Fatalf("Expected header plus two lines, got %q", lines)
	}
	if lines[0] != ModeRoute.Header() {
		t.Errorf("header = %q", lines[0])
	}
}

func TestWriter_EmptyFileGetsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	w, _ := NewWriter(path, ModeMailbox, WithClock(func() time.Time { return fixed }))
	if err := w.Append(Record{File: "FE1.xml", Sender: "s", Subject: "Factura", EmailDate: "d", Folder: "Inbox/Facturas"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	lines := readLines(t, path)
	if lines[0] != ModeMailbox.Header() || lines[1] != "FE1.xml,s,Factura,d,2025-10-07 14:30:05,Inbox/Facturas" {
		t.Errorf("Unexpected log: %q", lines)
	}
}

func TestWriter_Combined(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.csv")
	w, _ := NewWriter(path, ModeCombined)
	_ = w.Append(Record{File: "FE1.xml", SourceKind: "eml", Container: "m.eml", ProcessedAt: fixed})
	lines := readLines(t, path)
	if lines[1] != "FE1.xml,desconocido,desconocido,desconocido,2025-10-07 14:30:05,eml,m.eml" {
		t.Errorf("line = %q", lines[1])
	}
}

func TestWriter_FieldCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cap.csv")
	w, _ := NewWriter(path, ModeEML, WithMaxField(10))
	_ = w.Append(Record{File: "FE1.xml", Sender: "abcdefghijklmnop", ProcessedAt: fixed})
	lines := readLines(t, path)
	if !strings.HasPrefix(lines[1], "FE1.xml,abcdefg...,") {
		t.Errorf("line = %q", lines[1])
	}
}

func TestWriter_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.csv")
	w, _ := NewWriter(path, ModeRoute)
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Append(Record{File: "x.xml", Outcome: "moved"})
		}()
	}
	wg.Wait()
	if lines := readLines(t, path); len(lines) != 21 {
		t.Errorf("Expected 21 lines, got %d", len(lines))
	}
}

func TestWriter_OpenFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "log.csv")
	w, _ := NewWriter(path, ModeEML)
	if err := w.Append(Record{File: "a.xml"}); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestNewWriter_UnknownMode(t *testing.T) {
	if _, err := NewWriter("x", Mode("nope")); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Expected ErrUnknownMode, got %v", err)
	}
}
