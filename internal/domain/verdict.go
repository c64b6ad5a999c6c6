package domain

// VerdictKind enumerates classification outcomes.
type VerdictKind int

const (
	// NoMatch means the candidate is not a target document.
	NoMatch VerdictKind = iota
	// NameMatch means the file name satisfied a naming pattern.
	NameMatch
	// ContentMatch means the XML root element is a target tag.
	ContentMatch
)

// String returns a short label for logs.
func (k VerdictKind) String() string {
	switch k {
	case NameMatch:
		return "name_match"
	case ContentMatch:
		return "content_match"
	default:
		return "no_match"
	}
}

// Verdict is the result of classifying a candidate.
type Verdict struct {
	Kind VerdictKind
	// NameKind is the matching pattern kind (e.g. "FE") for NameMatch.
	NameKind string
	// RootTag is the namespace-stripped root element for ContentMatch.
	RootTag string
}

// Matched reports whether the verdict is anything other than NoMatch.
func (v Verdict) Matched() bool {
	return v.Kind != NoMatch
}
