// Package catalog keeps a full-text index of every placed document so that
// operators can find an invoice by key, sender or content after routing.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/xmlsort/internal/domain"
)

const (
	// IndexName is the index directory created inside the catalog dir.
	IndexName = "documents.bleve"

	// MaxBatchSize is the maximum number of documents per batch
	MaxBatchSize = 100

	// DefaultMaxResults caps search hits when the query sets no size.
	DefaultMaxResults = 20
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("catalog is closed")

// Catalog is a bleve index of placements. It implements
// domain.PlacementRecorder and is safe for concurrent use.
type Catalog struct {
	mu      sync.Mutex
	index   bleve.Index
	batch   *bleve.Batch
	pending int
}

var _ domain.PlacementRecorder = (*Catalog)(nil)

// CreateIndexMapping creates the Bleve index mapping for catalog documents.
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Content - analyzed for full-text search, stored for snippets
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = true
	contentField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(domain.CatalogFieldContent, contentField)

	// Free text metadata
	for _, name := range []string{domain.CatalogFieldName, domain.CatalogFieldSender, domain.CatalogFieldSubject} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = standard.Name
		f.Store = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	// Exact-match filters and identifiers
	for _, name := range []string{
		domain.CatalogFieldKind, domain.CatalogFieldRootTag, domain.CatalogFieldKey,
		domain.CatalogFieldContainer, domain.CatalogFieldSource, domain.CatalogFieldDestination,
		domain.CatalogFieldRunID,
	} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	processed := bleve.NewDateTimeFieldMapping()
	processed.Store = true
	docMapping.AddFieldMappingsAt(domain.CatalogFieldProcessedAt, processed)

	// ID - stored but not indexed (we use the document ID)
	idField := bleve.NewTextFieldMapping()
	idField.Index = false
	idField.Store = true
	docMapping.AddFieldMappingsAt(domain.CatalogFieldID, idField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// Open opens the catalog in dir, creating it when missing.
func Open(dir string) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}
	path := filepath.Join(dir, IndexName)

	index, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		index, err = bleve.New(path, CreateIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	return &Catalog{index: index, batch: index.NewBatch()}, nil
}

// Exists reports whether dir holds a catalog.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, IndexName))
	return err == nil
}

// Record queues a placement, flushing every MaxBatchSize documents.
func (c *Catalog) Record(p domain.Placement) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index == nil {
		return ErrClosed
	}

	doc := domain.CatalogDocument{
		ID:          p.Destination,
		Name:        p.Name,
		Kind:        p.Kind,
		RootTag:     p.RootTag,
		Key:         p.Key,
		Sender:      p.Origin.Sender,
		Subject:     p.Origin.Subject,
		Container:   p.Origin.Container,
		Source:      p.Source,
		Destination: p.Destination,
		RunID:       p.RunID,
		ProcessedAt: p.At,
		Content:     string(p.Content),
	}
	if err := c.batch.Index(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to index %s: %w", doc.Name, err)
	}
	c.pending++

	if c.pending >= MaxBatchSize {
		return c.flushLocked()
	}
	return nil
}

// Flush writes queued documents.
func (c *Catalog) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == nil {
		return ErrClosed
	}
	return c.flushLocked()
}

func (c *Catalog) flushLocked() error {
	if c.pending == 0 {
		return nil
	}
	if err := c.index.Batch(c.batch); err != nil {
		return fmt.Errorf("batch index failed: %w", err)
	}
	c.batch = c.index.NewBatch()
	c.pending = 0
	return nil
}

// Count returns the number of indexed documents, excluding queued ones.
func (c *Catalog) Count() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == nil {
		return 0, ErrClosed
	}
	return c.index.DocCount()
}

// Close flushes and closes the index.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == nil {
		return nil
	}
	flushErr := c.flushLocked()
	closeErr := c.index.Close()
	c.index = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Query selects catalog documents.
type Query struct {
	// Text is matched against content, name, sender and subject, and exactly
	// against the key. Empty matches everything.
	Text    string
	RootTag string
	Kind    string
	Size    int
}

// Hit is one search result.
type Hit struct {
	ID          string
	Name        string
	Kind        string
	RootTag     string
	Key         string
	Sender      string
	Destination string
	Score       float64
	Fragments   []string
}

// Result holds the hits of a search.
type Result struct {
	Total uint64
	Hits  []Hit
}

// Search runs q against the catalog.
func (c *Catalog) Search(ctx context.Context, q Query) (*Result, error) {
	c.mu.Lock()
	index := c.index
	c.mu.Unlock()
	if index == nil {
		return nil, ErrClosed
	}

	req := bleve.NewSearchRequest(buildQuery(q))
	req.Size = q.Size
	if req.Size <= 0 {
		req.Size = DefaultMaxResults
	}
	req.Fields = []string{
		domain.CatalogFieldName, domain.CatalogFieldKind, domain.CatalogFieldRootTag,
		domain.CatalogFieldKey, domain.CatalogFieldSender, domain.CatalogFieldDestination,
	}
	if strings.TrimSpace(q.Text) != "" {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField(domain.CatalogFieldContent)
	}

	res, err := index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := &Result{Total: res.Total}
	for _, h := range res.Hits {
		hit := Hit{
			ID:          h.ID,
			Name:        stringField(h.Fields, domain.CatalogFieldName),
			Kind:        stringField(h.Fields, domain.CatalogFieldKind),
			RootTag:     stringField(h.Fields, domain.CatalogFieldRootTag),
			Key:         stringField(h.Fields, domain.CatalogFieldKey),
			Sender:      stringField(h.Fields, domain.CatalogFieldSender),
			Destination: stringField(h.Fields, domain.CatalogFieldDestination),
			Score:       h.Score,
		}
		if frags, ok := h.Fragments[domain.CatalogFieldContent]; ok {
			hit.Fragments = frags
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// buildQuery constructs a Bleve query from search arguments.
func buildQuery(q Query) query.Query {
	var search query.Query
	text := strings.TrimSpace(q.Text)
	if text == "" {
		search = bleve.NewMatchAllQuery()
	} else {
		content := bleve.NewMatchQuery(text)
		content.SetField(domain.CatalogFieldContent)

		name := bleve.NewMatchQuery(text)
		name.SetField(domain.CatalogFieldName)
		name.SetBoost(3.0)

		sender := bleve.NewMatchQuery(text)
		sender.SetField(domain.CatalogFieldSender)

		subject := bleve.NewMatchQuery(text)
		subject.SetField(domain.CatalogFieldSubject)

		key := bleve.NewTermQuery(text)
		key.SetField(domain.CatalogFieldKey)
		key.SetBoost(5.0)

		search = bleve.NewDisjunctionQuery(content, name, sender, subject, key)
	}

	if q.RootTag == "" && q.Kind == "" {
		return search
	}

	must := []query.Query{search}
	if q.RootTag != "" {
		tag := bleve.NewTermQuery(q.RootTag)
		tag.SetField(domain.CatalogFieldRootTag)
		must = append(must, tag)
	}
	if q.Kind != "" {
		kind := bleve.NewTermQuery(strings.ToUpper(q.Kind))
		kind.SetField(domain.CatalogFieldKind)
		must = append(must, kind)
	}
	return bleve.NewConjunctionQuery(must...)
}

func stringField(fields map[string]any, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}
