package matcher

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

var (
	// ErrNoRoot indicates a document without any element.
	ErrNoRoot = errors.New("document has no root element")

	// ErrMultipleRoots indicates content after the root element was closed.
	ErrMultipleRoots = errors.New("content after the root element")
)

// ParseError reports a document that could not be parsed. Read failures and
// malformed content are both parse errors; IO tells them apart for logging.
type ParseError struct {
	Err error
	IO  bool
}

func (e *ParseError) Error() string {
	if e.IO {
		return "read failed: " + e.Err.Error()
	}
	return "malformed XML: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(err error) *ParseError {
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, ErrNoRoot) || errors.Is(err, ErrMultipleRoots) {
		return &ParseError{Err: err}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return &ParseError{Err: err}
	}
	return &ParseError{Err: err, IO: true}
}

// LocalName strips a Clark-notation namespace ("{uri}Tag") or a prefix
// ("ns:Tag") from a tag name.
func LocalName(tag string) string {
	if i := strings.LastIndexByte(tag, '}'); i >= 0 {
		tag = tag[i+1:]
	}
	if i := strings.LastIndexByte(tag, ':'); i >= 0 {
		tag = tag[i+1:]
	}
	return strings.TrimSpace(tag)
}

// newDecoder returns a strict decoder that understands the charsets
// registered with IANA, not just UTF-8.
func newDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.Strict = true
	d.CharsetReader = charsetReader
	return d
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// RootTag returns the local name of the document element. It reads only up
// to the first start element.
func RootTag(r io.Reader) (string, error) {
	d := newDecoder(r)
	for {
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", &ParseError{Err: ErrNoRoot}
			}
			return "", newParseError(err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return LocalName(se.Name.Local), nil
		}
	}
}

// RootTagOf is RootTag over an in-memory document.
func RootTagOf(content []byte) (string, error) {
	return RootTag(bytes.NewReader(content))
}

type frame struct {
	text      *strings.Builder
	childSeen bool
}

// ExtractField returns the trimmed text of the first descendant of the root
// element whose local name is field, in document order. Elements in any
// namespace are considered first; when the first such element has no text,
// the first element with that name and no namespace is used instead.
//
// An absent or empty field yields "" with a nil error. The whole document is
// parsed; malformed content yields a *ParseError.
func ExtractField(r io.Reader, field string) (string, error) {
	d := newDecoder(r)
	field = LocalName(field)

	var (
		wildcard, bare         strings.Builder
		haveWildcard, haveBare bool
		stack                  []*frame
	)

	for {
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", newParseError(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			var f frame
			if len(stack) > 0 {
				stack[len(stack)-1].childSeen = true
				if t.Name.Local == field {
					if !haveWildcard {
						haveWildcard = true
						f.text = &wildcard
					}
					if !haveBare && t.Name.Space == "" {
						haveBare = true
						if f.text == nil {
							f.text = &bare
						}
					}
				}
			}
			stack = append(stack, &f)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			if top.text != nil && !top.childSeen {
				top.text.Write(t)
			}
		}
	}

	if v := strings.TrimSpace(wildcard.String()); v != "" {
		return v, nil
	}
	if haveBare {
		// A bare match that was also the wildcard match wrote into wildcard.
		return strings.TrimSpace(bare.String()), nil
	}
	return "", nil
}

// ExtractFieldOf is ExtractField over an in-memory document.
func ExtractFieldOf(content []byte, field string) (string, error) {
	return ExtractField(bytes.NewReader(content), field)
}

// Validate parses the whole document and reports whether it is well formed.
func Validate(r io.Reader) error {
	d := newDecoder(r)
	depth := 0
	rootClosed := false
	for {
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return newParseError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if rootClosed {
				return &ParseError{Err: ErrMultipleRoots}
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				rootClosed = true
			}
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return &ParseError{Err: ErrMultipleRoots}
			}
		}
	}
	if !rootClosed {
		return &ParseError{Err: ErrNoRoot}
	}
	return nil
}
