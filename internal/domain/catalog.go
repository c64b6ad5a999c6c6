package domain

import "time"

// CatalogDocument is a placed document as stored in the search catalog.
type CatalogDocument struct {
	// ID is the destination path, unique per placement.
	ID string `json:"id"`

	// Name is the final file name.
	Name string `json:"name"`

	// Kind is the naming pattern kind (e.g. "FE"), empty for content routing.
	Kind string `json:"kind"`

	// RootTag is the namespace-stripped root element.
	RootTag string `json:"root_tag"`

	// Key is the content key (e.g. the Clave), when one was extracted.
	Key string `json:"key"`

	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Container string `json:"container"`

	Source      string `json:"source"`
	Destination string `json:"destination"`

	// RunID groups the documents placed by one invocation.
	RunID string `json:"run_id"`

	ProcessedAt time.Time `json:"processed_at"`

	// Content is the XML text used for full-text search and snippets.
	Content string `json:"content"`
}

// Bleve field name constants for consistent field references in queries and mappings.
const (
	CatalogFieldID          = "id"
	CatalogFieldName        = "name"
	CatalogFieldKind        = "kind"
	CatalogFieldRootTag     = "root_tag"
	CatalogFieldKey         = "key"
	CatalogFieldSender      = "sender"
	CatalogFieldSubject     = "subject"
	CatalogFieldContainer   = "container"
	CatalogFieldSource      = "source"
	CatalogFieldDestination = "destination"
	CatalogFieldRunID       = "run_id"
	CatalogFieldProcessedAt = "processed_at"
	CatalogFieldContent     = "content"
)
