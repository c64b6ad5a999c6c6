// Package audit appends one CSV line per processed document to a log file
// whose layout stays compatible with the legacy extraction reports.
package audit

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// Unknown replaces empty fields.
	Unknown = "desconocido"

	// DefaultMaxField is the longest field written, in runes.
	DefaultMaxField = 100

	// TimeLayout formats the processing timestamp.
	TimeLayout = "2006-01-02 15:04:05"
)

// ErrUnknownMode is returned for an unsupported log layout.
var ErrUnknownMode = errors.New("unknown audit mode")

// Mode selects the column layout of a log.
type Mode string

const (
	// ModeEML logs attachments pulled from .eml files.
	ModeEML Mode = "eml"
	// ModeMailbox logs attachments pulled from mailbox folders.
	ModeMailbox Mode = "mailbox"
	// ModeCombined merges both sources in one log.
	ModeCombined Mode = "combined"
	// ModeRoute logs classification routing decisions.
	ModeRoute Mode = "route"
)

var headers = map[Mode]string{
	ModeEML:      "archivo_xml,remitente,fecha_email,fecha_procesamiento,archivo_eml_origen",
	ModeMailbox:  "archivo_xml,remitente,asunto,fecha_email,fecha_procesamiento,carpeta_origen",
	ModeCombined: "archivo_xml,remitente,asunto,fecha_email,fecha_procesamiento,origen,ubicacion_origen",
	ModeRoute:    "archivo_xml,tag_raiz,ruta_origen,ruta_destino,fecha_procesamiento,resultado",
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := headers[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// Header returns the first line written to a log in mode m.
func (m Mode) Header() string {
	return headers[m]
}

// Record is one audit line. Each mode uses a subset of the fields.
type Record struct {
	File        string
	Sender      string
	Subject     string
	EmailDate   string
	ProcessedAt time.Time
	// Container is the originating .eml file name.
	Container string
	// Folder is the mailbox folder the attachment came from.
	Folder string
	// SourceKind names the source type in combined logs ("eml", "pst").
	SourceKind string
	RootTag    string
	Source     string
	// Destination is the final path, or empty when nothing was moved.
	Destination string
	// Outcome is a short result label such as "moved" or "error".
	Outcome string
}

func (r Record) columns(m Mode) []string {
	ts := r.ProcessedAt.Format(TimeLayout)
	switch m {
	case ModeEML:
		return []string{r.File, r.Sender, r.EmailDate, ts, r.Container}
	case ModeMailbox:
		return []string{r.File, r.Sender, r.Subject, r.EmailDate, ts, r.Folder}
	case ModeCombined:
		location := r.Folder
		if location == "" {
			location = r.Container
		}
		return []string{r.File, r.Sender, r.Subject, r.EmailDate, ts, r.SourceKind, location}
	default:
		return []string{r.File, r.RootTag, r.Source, r.Destination, ts, r.Outcome}
	}
}

// CleanField makes s safe for a comma separated line: commas become
// semicolons, line breaks become spaces, the result is trimmed and cut to
// max runes with a trailing "...". Empty input yields Unknown.
func CleanField(s string, max int) string {
	s = strings.ReplaceAll(s, ",", ";")
	s = strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	s = strings.TrimSpace(s)
	if max > 3 && utf8.RuneCountInString(s) > max {
		s = string([]rune(s)[:max-3]) + "..."
	}
	if s == "" {
		return Unknown
	}
	return s
}

// Writer appends records to a single log file. It is safe for concurrent
// use within one process.
type Writer struct {
	mu       sync.Mutex
	path     string
	mode     Mode
	maxField int
	now      func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithMaxField sets the field length cap.
func WithMaxField(n int) Option {
	return func(w *Writer) { w.maxField = n }
}

// WithClock sets the clock used when a record has no timestamp.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter creates a writer for path. The file is not touched until the
// first Append.
func NewWriter(path string, mode Mode, opts ...Option) (*Writer, error) {
	if _, ok := headers[mode]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	w := &Writer{
		path:     path,
		mode:     mode,
		maxField: DefaultMaxField,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the log location.
func (w *Writer) Path() string {
	return w.path
}

// Mode returns the log layout.
func (w *Writer) Mode() Mode {
	return w.mode
}

// Append writes rec as one line, preceded by the header when the log is new
// or empty.
func (w *Writer) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = w.now()
	}

	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat audit log: %w", err)
	}

	var b strings.Builder
	if info.Size() == 0 {
		b.WriteString(w.mode.Header())
		b.WriteByte('\n')
	}
	for i, col := range rec.columns(w.mode) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(CleanField(col, w.maxField))
	}
	b.WriteByte('\n')

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
