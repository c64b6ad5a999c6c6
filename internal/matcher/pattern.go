package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Default naming pattern prefixes.
const (
	KindInvoice         = "FE"
	KindCreditNote      = "NC"
	KindDebitNote       = "ND"
	KindSupportDocument = "DS"
)

// ErrInvalidPrefix indicates a pattern prefix that is empty or not alphabetic.
var ErrInvalidPrefix = errors.New("pattern prefix must be alphabetic")

var prefixPattern = regexp.MustCompile(`^[A-Za-z]+$`)

// KindDescriptions maps the default kinds to a human readable description.
var KindDescriptions = map[string]string{
	KindInvoice:         "invoice",
	KindCreditNote:      "credit note",
	KindDebitNote:       "debit note",
	KindSupportDocument: "support document",
}

// NamePattern matches file names such as FE12345.xml, FE-12345.xml and
// FE_12345.xml: a fixed prefix, at most one separator, at least three digits
// and the .xml extension, ignoring case.
type NamePattern struct {
	Kind string
	re   *regexp.Regexp
}

// NewNamePattern builds the pattern for an alphabetic prefix. The prefix,
// upper-cased, becomes the pattern kind.
func NewNamePattern(prefix string) (NamePattern, error) {
	prefix = strings.TrimSpace(prefix)
	if !prefixPattern.MatchString(prefix) {
		return NamePattern{}, fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	re := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(prefix) + `[-_]?\d{3,}\.xml$`)
	return NamePattern{Kind: strings.ToUpper(prefix), re: re}, nil
}

// Match reports whether name satisfies the pattern.
func (p NamePattern) Match(name string) bool {
	return p.re != nil && p.re.MatchString(name)
}

// PatternSet is one primary pattern plus auxiliary patterns, evaluated in
// insertion order.
type PatternSet struct {
	primary   NamePattern
	auxiliary []NamePattern
}

// NewPatternSet builds a set from a primary prefix and auxiliary prefixes.
func NewPatternSet(primary string, auxiliary ...string) (*PatternSet, error) {
	p, err := NewNamePattern(primary)
	if err != nil {
		return nil, err
	}
	set := &PatternSet{primary: p}
	for _, prefix := range auxiliary {
		aux, err := NewNamePattern(prefix)
		if err != nil {
			return nil, err
		}
		set.auxiliary = append(set.auxiliary, aux)
	}
	return set, nil
}

// DefaultPatternSet returns FE as primary with NC, ND and DS as auxiliary.
func DefaultPatternSet() *PatternSet {
	set, err := NewPatternSet(KindInvoice, KindCreditNote, KindDebitNote, KindSupportDocument)
	if err != nil {
		panic(err)
	}
	return set
}

// Match tests a file name (not a path). Surrounding whitespace is ignored.
// The first matching kind is returned; the primary pattern is tried first.
func (s *PatternSet) Match(filename string) (string, bool) {
	name := strings.TrimSpace(filename)
	if name == "" {
		return "", false
	}
	if s.primary.Match(name) {
		return s.primary.Kind, true
	}
	for _, p := range s.auxiliary {
		if p.Match(name) {
			return p.Kind, true
		}
	}
	return "", false
}

// Kinds returns the kinds in evaluation order.
func (s *PatternSet) Kinds() []string {
	kinds := make([]string, 0, 1+len(s.auxiliary))
	kinds = append(kinds, s.primary.Kind)
	for _, p := range s.auxiliary {
		kinds = append(kinds, p.Kind)
	}
	return kinds
}
