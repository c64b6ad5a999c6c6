// Package naming derives the file name a document should carry in its
// destination.
package naming

import (
	"errors"
	"strings"

	"github.com/sha1n/xmlsort/internal/domain"
	"github.com/sha1n/xmlsort/internal/matcher"
)

const (
	// Fallback replaces names that are empty after sanitization.
	Fallback = "desconocido"

	// DefaultField is the XML element that holds the document key.
	DefaultField = "Clave"

	xmlExt = ".xml"
)

// ErrNoKey indicates the key field is absent or empty.
var ErrNoKey = errors.New("document has no key field")

// invalidChars are rejected by common filesystems in a path component.
const invalidChars = `<>:"/\|?*`

// Mode selects how a canonical name is computed.
type Mode int

const (
	// ByName keeps the original file name, which already satisfies a naming
	// pattern.
	ByName Mode = iota
	// ByContent derives the name from a field of the XML content.
	ByContent
)

// Sanitize makes s safe as a file name component.
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(invalidChars, r) {
			return '_'
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if s == "" {
		return Fallback
	}
	return s
}

// Decision is the outcome of canonical naming.
type Decision struct {
	Name string
	// Key is the extracted field value, content mode only.
	Key string
	// AlreadyCanonical is true when the candidate already carries Name,
	// ignoring case. Such candidates must not be renamed.
	AlreadyCanonical bool
}

// Namer computes canonical names.
type Namer struct {
	Mode  Mode
	Field string
}

// NewContentNamer returns a namer keyed on field.
func NewContentNamer(field string) Namer {
	if strings.TrimSpace(field) == "" {
		field = DefaultField
	}
	return Namer{Mode: ByContent, Field: field}
}

// Canonical computes the canonical name of c. In content mode a missing key
// yields ErrNoKey and malformed content a *matcher.ParseError.
func (n Namer) Canonical(c *domain.Candidate) (Decision, error) {
	if n.Mode == ByName {
		return Decision{Name: c.RawName, AlreadyCanonical: true}, nil
	}

	content, err := c.Content()
	if err != nil {
		return Decision{}, &matcher.ParseError{Err: err, IO: true}
	}
	key, err := matcher.ExtractFieldOf(content, n.Field)
	if err != nil {
		return Decision{}, err
	}
	if key == "" {
		return Decision{}, ErrNoKey
	}

	name := WithXMLExt(Sanitize(key))
	return Decision{
		Name:             name,
		Key:              key,
		AlreadyCanonical: strings.EqualFold(c.RawName, name),
	}, nil
}

// WithXMLExt appends .xml unless name already ends with it in any case.
func WithXMLExt(name string) string {
	if strings.HasSuffix(strings.ToLower(name), xmlExt) {
		return name
	}
	return name + xmlExt
}
