package testkit

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/sha1n/xmlsort/internal/app"
	"github.com/sha1n/xmlsort/internal/catalog"
	"github.com/spf13/pflag"
)

// Service represents a test service that can be started and stopped
type Service interface {
	Start() (map[string]any, error)
	Stop() error
	GetName() string
}

// TestEnvContext provides access to properties collected during environment startup
type TestEnvContext interface {
	GetProperties() map[string]any
	GetProperty(name string) (any, bool)
}

// TestEnv manages the lifecycle of test services
type TestEnv interface {
	Start() (map[string]any, error)
	Stop() error
	GetContext() TestEnvContext
}

type testEnvContextImpl struct {
	properties map[string]any
}

func (c *testEnvContextImpl) GetProperties() map[string]any {
	return c.properties
}

func (c *testEnvContextImpl) GetProperty(name string) (any, bool) {
	val, ok := c.properties[name]
	return val, ok
}

type testEnvImpl struct {
	services []Service
	context  *testEnvContextImpl
}

// NewTestEnv creates a new test environment with the given services
func NewTestEnv(services ...Service) TestEnv {
	return &testEnvImpl{
		services: services,
		context:  &testEnvContextImpl{properties: make(map[string]any)},
	}
}

func (e *testEnvImpl) Start() (map[string]any, error) {
	for _, s := range e.services {
		props, err := s.Start()
		if err != nil {
			return nil, err
		}
		for k, v := range props {
			e.context.properties[k] = v
		}
	}
	return e.context.properties, nil
}

func (e *testEnvImpl) Stop() error {
	var lastErr error
	// Stop in reverse order
	for i := len(e.services) - 1; i >= 0; i-- {
		if err := e.services[i].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (e *testEnvImpl) GetContext() TestEnvContext {
	return e.context
}

// Property names published by the services below
const (
	PropInbox   = "inbox"
	PropCatalog = "catalog"
)

// Message is one .eml file written by Mailbox.
type Message struct {
	From    string
	Subject string
	Date    string
	// Attachments maps file names to their content.
	Attachments map[string]string
}

// Bytes renders m as a multipart RFC 822 message with CRLF line endings.
func (m Message) Bytes() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	if m.Date != "" {
		fmt.Fprintf(&b, "Date: %s\r\n", m.Date)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=\"testkit\"\r\n\r\n")
	b.WriteString("--testkit\r\nContent-Type: text/plain\r\n\r\nAdjunto.\r\n")

	names := make([]string, 0, len(m.Attachments))
	for name := range m.Attachments {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		b.WriteString("--testkit\r\n")
		b.WriteString("Content-Type: application/xml\r\n")
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=\"%s\"\r\n", name)
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		b.WriteString(base64.StdEncoding.EncodeToString([]byte(m.Attachments[name])))
		b.WriteString("\r\n")
	}
	b.WriteString("--testkit--\r\n")
	return []byte(b.String())
}

// Mailbox is a service writing messages as numbered .eml files into a
// directory. It publishes the directory as PropInbox.
type Mailbox struct {
	Messages []Message

	dir string
}

func (m *Mailbox) Start() (map[string]any, error) {
	dir, err := os.MkdirTemp("", "xmlsort-inbox-")
	if err != nil {
		return nil, err
	}
	m.dir = dir
	for i, msg := range m.Messages {
		path := filepath.Join(dir, fmt.Sprintf("msg%03d.eml", i+1))
		if err := os.WriteFile(path, msg.Bytes(), 0644); err != nil {
			return nil, err
		}
	}
	return map[string]any{PropInbox: dir}, nil
}

func (m *Mailbox) Stop() error {
	if m.dir == "" {
		return nil
	}
	return os.RemoveAll(m.dir)
}

func (m *Mailbox) GetName() string {
	return "mailbox"
}

// CatalogService opens a document catalog in Dir and publishes it as
// PropCatalog.
type CatalogService struct {
	Dir string

	catalog *catalog.Catalog
}

func (c *CatalogService) Start() (map[string]any, error) {
	cat, err := catalog.Open(c.Dir)
	if err != nil {
		return nil, err
	}
	c.catalog = cat
	return map[string]any{PropCatalog: cat}, nil
}

func (c *CatalogService) Stop() error {
	if c.catalog == nil {
		return nil
	}
	return c.catalog.Close()
}

func (c *CatalogService) GetName() string {
	return "catalog"
}

// WriteTree writes files, keyed by slash separated paths relative to root.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	CatalogDir string // Catalog disabled if empty
	LogLevel   string // Defaults to "error"
	// Values sets additional flags by name.
	Values map[string]string
}

// NewTestFlags creates a pflag.FlagSet carrying the global flags and those of
// command (route, rename, extract, search or serve).
func NewTestFlags(t testing.TB, command string, opts *FlagOptions) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterGlobalFlags(flags)
	switch command {
	case "route":
		app.RegisterRouteFlags(flags)
	case "rename":
		app.RegisterRenameFlags(flags)
	case "extract":
		app.RegisterExtractFlags(flags)
	case "search":
		app.RegisterSearchFlags(flags)
	case "serve":
		app.RegisterServeFlags(flags)
	default:
		t.Fatalf("Unknown command: %s", command)
	}

	logLevel := "error"
	if opts != nil && opts.LogLevel != "" {
		logLevel = opts.LogLevel
	}
	set(t, flags, "log-level", logLevel)

	if opts != nil {
		if opts.CatalogDir != "" {
			set(t, flags, "catalog-dir", opts.CatalogDir)
		}
		for name, value := range opts.Values {
			set(t, flags, name, value)
		}
	}

	return flags
}

func set(t testing.TB, flags *pflag.FlagSet, name, value string) {
	t.Helper()
	if err := flags.Set(name, value); err != nil {
		t.Fatalf("Failed to set --%s: %v", name, err)
	}
}
